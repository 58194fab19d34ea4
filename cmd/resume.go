package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/ratefit/internal/fit"
	"github.com/cwbudde/ratefit/internal/opt"
	"github.com/cwbudde/ratefit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	resumeCheckDir  string
	resumeBeta      float64
	resumeHorizon   float64
	resumeOptimizer string
	resumeTrace     bool
	resumeTable     bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a calibration from its checkpoint",
	Long: `Loads the checkpoint for a job and continues the implicit-filtering
schedule: the outer loop restarts from the stored best point at the
stored stencil size, with the remaining outer iteration budget. The
objective must match the one the checkpoint was taken under; the
scenario flags exist to assert that, not to change it.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeCheckDir, "checkpoint-dir", "./data", "Directory holding checkpoints")
	resumeCmd.Flags().Float64Var(&resumeBeta, "beta", 0, "Expected rate constant (checked against the checkpoint)")
	resumeCmd.Flags().Float64Var(&resumeHorizon, "horizon", 0, "Expected integration horizon (checked against the checkpoint)")
	resumeCmd.Flags().StringVar(&resumeOptimizer, "optimizer", "", "Expected backend (checked against the checkpoint)")
	resumeCmd.Flags().BoolVar(&resumeTrace, "trace", false, "Append resumed iterations to the job's JSONL trace")
	resumeCmd.Flags().BoolVar(&resumeTable, "table", false, "Render the per-iteration table on stderr")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeCheckDir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	cp, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint is not usable: %w", err)
	}

	// Resuming into a different objective would silently corrupt the
	// run, so any scenario flag the user sets must agree with the
	// checkpoint.
	desired := cp.Config
	flags := cmd.Flags()
	if flags.Changed("beta") {
		desired.Beta = resumeBeta
	}
	if flags.Changed("horizon") {
		desired.Horizon = resumeHorizon
	}
	if flags.Changed("optimizer") {
		desired.Backend = string(fit.NormalizeBackend(resumeOptimizer))
	}
	if err := cp.IsCompatible(desired); err != nil {
		return fmt.Errorf("cannot resume: %w", err)
	}
	if fit.NormalizeBackend(cp.Config.Backend) != fit.BackendImFilter {
		return fmt.Errorf("cannot resume: backend %q has no stencil schedule to continue", cp.Config.Backend)
	}

	imf := opt.NewImFilter(cp.Stencil, cp.Config.Tol)
	remaining := imf.MaxOuter - cp.OuterIndex - 1
	if remaining <= 0 {
		return fmt.Errorf("checkpoint %s has exhausted its outer iteration budget (%d of %d)",
			jobID, cp.OuterIndex+1, imf.MaxOuter)
	}
	imf.MaxOuter = remaining

	var observers []opt.Observer
	if resumeTable {
		table := newIterTable(cmd.ErrOrStderr())
		observers = append(observers, table.Observe)
	}

	lastOuter := 0
	lastStencil := cp.Stencil
	observers = append(observers, func(ev opt.Event) {
		lastOuter = ev.Outer
		if ev.Stencil > 0 {
			lastStencil = ev.Stencil
		}
	})

	if resumeTrace {
		trace, err := store.NewTraceWriter(checkpointStore.BaseDir(), jobID, true)
		if err != nil {
			return fmt.Errorf("failed to open trace writer: %w", err)
		}
		defer trace.Close()
		observers = append(observers, func(ev opt.Event) {
			if err := trace.Write(ev); err != nil {
				slog.Warn("Failed to write trace event", "error", err)
			}
		})
	}
	imf.Observer = combineObservers(observers)

	oracle := fit.NewCountingOracle(fit.GrowthMSE(cp.Config.Beta, cp.Config.Horizon))

	slog.Info("Resuming calibration",
		"job_id", jobID,
		"x", cp.BestX,
		"stencil", cp.Stencil,
		"remaining_outer", remaining,
	)

	best, err := imf.Optimize(oracle.Eval, cp.BestX)
	if err != nil {
		return fmt.Errorf("resumed optimization failed: %w", err)
	}

	updated := store.NewCheckpoint(
		jobID,
		uuid.New().String(),
		best.X,
		best.Loss,
		cp.OuterIndex+lastOuter+1,
		lastStencil,
		cp.Evals+oracle.Count(),
		"completed",
		cp.Config,
	)
	if err := checkpointStore.SaveCheckpoint(jobID, updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Final Result: β = %-+12.10g, MSE = %-12.10g\n", best.X, best.Loss)
	return nil
}
