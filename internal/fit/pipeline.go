package fit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/ratefit/internal/opt"
)

// Calibrate runs one calibration: build the growth oracle, run the
// configured backend from X0, then optionally re-run from jittered starts
// keeping the best result. Restart rounds end early when the convergence
// tracker goes stale or ctx is cancelled.
//
// The optimizer core itself is synchronous and uninterruptible by design;
// cancellation takes effect between rounds.
func Calibrate(ctx context.Context, s Settings, observer opt.Observer) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	runID := uuid.New().String()
	started := time.Now()

	oracle := NewCountingOracle(GrowthMSE(s.Beta, s.Horizon))

	optimizer, err := NewOptimizer(string(s.Backend), s, observer)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting calibration",
		"run_id", runID,
		"backend", NormalizeBackend(string(s.Backend)),
		"x0", s.X0,
		"h0", s.H0,
		"restarts", s.Restarts,
	)

	best, err := optimizer.Optimize(oracle.Eval, s.X0)
	if err != nil {
		return nil, fmt.Errorf("optimization round failed: %w", err)
	}

	rounds := 1
	converged := false

	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(best.Loss)

	rng := rand.New(rand.NewSource(s.Seed))
	for r := 0; r < s.Restarts; r++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("calibration cancelled after %d rounds: %w", rounds, err)
		}

		x0 := s.X0 + (rng.Float64()*2-1)*s.Span
		slog.Debug("Restart round", "round", r+1, "x0", x0)

		res, err := optimizer.Optimize(oracle.Eval, x0)
		if err != nil {
			return nil, fmt.Errorf("restart round %d failed: %w", r+1, err)
		}
		rounds++

		if res.Loss < best.Loss {
			best = res
		}
		if tracker.Update(best.Loss) {
			converged = true
			break
		}
	}

	report := &Report{
		RunID:     runID,
		Best:      best,
		Evals:     oracle.Count(),
		Rounds:    rounds,
		Converged: converged,
		Duration:  time.Since(started),
	}

	slog.Info("Calibration complete",
		"run_id", runID,
		"x", best.X,
		"loss", best.Loss,
		"evals", report.Evals,
		"rounds", rounds,
	)

	return report, nil
}
