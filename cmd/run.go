package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/ratefit/internal/config"
	"github.com/cwbudde/ratefit/internal/fit"
	"github.com/cwbudde/ratefit/internal/opt"
	"github.com/cwbudde/ratefit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	runX0        float64
	runH0        float64
	runTol       float64
	runBeta      float64
	runHorizon   float64
	runOptimizer string
	runRestarts  int
	runSeed      int64
	runSpan      float64
	runCheckDir  string
	runTrace     bool
	runTable     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single calibration",
	Long: `Runs the calibration pipeline: build the growth-model oracle and
minimize its squared error from the chosen starting point. Prints the
final result on stdout; --table renders the per-iteration trace on
stderr.`,
	RunE: runCalibration,
}

func init() {
	runCmd.Flags().Float64Var(&runX0, "x0", 1.5, "Starting parameter value")
	runCmd.Flags().Float64Var(&runH0, "h0", 0.1, "Initial stencil size")
	runCmd.Flags().Float64Var(&runTol, "tol", 1e-7, "Convergence tolerance on parameter movement")
	runCmd.Flags().Float64Var(&runBeta, "beta", 1.0, "True rate constant behind the target")
	runCmd.Flags().Float64Var(&runHorizon, "horizon", 5.0, "Integration horizon")
	runCmd.Flags().StringVar(&runOptimizer, "optimizer", "imfilter", "Optimizer backend: imfilter, mayfly")
	runCmd.Flags().IntVar(&runRestarts, "restarts", 0, "Jittered restart rounds after the first")
	runCmd.Flags().Int64Var(&runSeed, "seed", 42, "Random seed for restarts and the mayfly backend")
	runCmd.Flags().Float64Var(&runSpan, "span", 2.0, "Jitter radius around x0")
	runCmd.Flags().StringVar(&runCheckDir, "checkpoint-dir", "", "Persist a checkpoint under this directory")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Write a JSONL iteration trace next to the checkpoint")
	runCmd.Flags().BoolVar(&runTable, "table", false, "Render the per-iteration table on stderr")

	rootCmd.AddCommand(runCmd)
}

// runSettings merges the config file with explicitly set flags. Flags
// win over file values; file values win over flag defaults.
func runSettings(cmd *cobra.Command) (fit.Settings, error) {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fit.Settings{}, err
	}

	s := fit.DefaultSettings()
	s.X0 = cfg.Calibration.X0
	s.H0 = cfg.Calibration.H0
	s.Tol = cfg.Calibration.Tol
	s.Beta = cfg.Calibration.Beta
	s.Horizon = cfg.Calibration.Horizon
	s.Backend = fit.NormalizeBackend(cfg.Calibration.Optimizer)
	s.Restarts = cfg.Calibration.Restarts
	s.Seed = cfg.Calibration.Seed
	s.Span = cfg.Calibration.Span

	flags := cmd.Flags()
	if flags.Changed("x0") {
		s.X0 = runX0
	}
	if flags.Changed("h0") {
		s.H0 = runH0
	}
	if flags.Changed("tol") {
		s.Tol = runTol
	}
	if flags.Changed("beta") {
		s.Beta = runBeta
	}
	if flags.Changed("horizon") {
		s.Horizon = runHorizon
	}
	if flags.Changed("optimizer") {
		s.Backend = fit.NormalizeBackend(runOptimizer)
	}
	if flags.Changed("restarts") {
		s.Restarts = runRestarts
	}
	if flags.Changed("seed") {
		s.Seed = runSeed
	}
	if flags.Changed("span") {
		s.Span = runSpan
	}

	return s, nil
}

func runCalibration(cmd *cobra.Command, args []string) error {
	settings, err := runSettings(cmd)
	if err != nil {
		return err
	}

	var observers []opt.Observer

	if runTable {
		table := newIterTable(cmd.ErrOrStderr())
		observers = append(observers, table.Observe)
	}

	var checkpointStore *store.FSStore
	if runCheckDir != "" {
		checkpointStore, err = store.NewFSStore(runCheckDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
	}

	// The trace and checkpoint share one id, minted up front so the
	// trace can observe the run as it happens.
	jobID := uuid.New().String()

	lastOuter := 0
	lastStencil := settings.H0
	if checkpointStore != nil {
		observers = append(observers, func(ev opt.Event) {
			lastOuter = ev.Outer
			if ev.Stencil > 0 {
				lastStencil = ev.Stencil
			}
		})
	}

	if runTrace {
		if checkpointStore == nil {
			return fmt.Errorf("--trace requires --checkpoint-dir")
		}
		trace, err := store.NewTraceWriter(checkpointStore.BaseDir(), jobID, false)
		if err != nil {
			return fmt.Errorf("failed to create trace writer: %w", err)
		}
		defer trace.Close()
		observers = append(observers, func(ev opt.Event) {
			if err := trace.Write(ev); err != nil {
				slog.Warn("Failed to write trace event", "error", err)
			}
		})
	}

	report, err := fit.Calibrate(cmd.Context(), settings, combineObservers(observers))
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	if checkpointStore != nil {
		checkpoint := store.NewCheckpoint(
			jobID,
			report.RunID,
			report.Best.X,
			report.Best.Loss,
			lastOuter,
			lastStencil,
			report.Evals,
			"completed",
			store.RunConfig{
				X0:       settings.X0,
				H0:       settings.H0,
				Tol:      settings.Tol,
				Beta:     settings.Beta,
				Horizon:  settings.Horizon,
				Backend:  string(settings.Backend),
				Restarts: settings.Restarts,
				Seed:     settings.Seed,
				Span:     settings.Span,
			},
		)
		if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		slog.Info("Checkpoint saved", "job_id", jobID, "dir", runCheckDir)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Final Result: β = %-+12.10g, MSE = %-12.10g\n", report.Best.X, report.Best.Loss)
	return nil
}

// combineObservers fans one optimizer event out to several sinks.
func combineObservers(observers []opt.Observer) opt.Observer {
	if len(observers) == 0 {
		return nil
	}
	if len(observers) == 1 {
		return observers[0]
	}
	return func(ev opt.Event) {
		for _, o := range observers {
			o(ev)
		}
	}
}
