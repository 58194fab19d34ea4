package fit

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls early termination of restart rounds.
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active.
	Enabled bool

	// Patience is the number of rounds with no significant improvement
	// before the restart schedule stops.
	Patience int

	// Threshold is the minimum relative improvement required to count as
	// progress: (oldLoss - newLoss) / oldLoss.
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for restart runs.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.001, // 0.1% improvement
	}
}

// DisabledConvergenceConfig returns a config with detection switched off.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker records round losses and detects when additional
// restarts have stopped paying off.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	lossHistory     []float64
	bestLoss        float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		lossHistory:     []float64{},
		bestLoss:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a round's best loss and returns true once the configured
// patience has run out without significant improvement.
func (c *ConvergenceTracker) Update(loss float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.lossHistory = append(c.lossHistory, loss)

	if loss < c.bestLoss {
		c.bestLoss = loss
	}

	// First round just sets the baseline.
	if len(c.lossHistory) == 1 {
		c.lastSignificant = loss
		return false
	}

	relativeImprovement := (c.lastSignificant - loss) / c.lastSignificant

	if relativeImprovement >= c.config.Threshold {
		c.lastSignificant = loss
		c.staleCount = 0
		slog.Debug("Round improved the loss",
			"loss", loss,
			"relative_improvement", relativeImprovement,
		)
		return false
	}

	c.staleCount++
	slog.Debug("No significant loss improvement",
		"loss", loss,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Restart schedule converged, stopping early",
			"stale_count", c.staleCount,
			"best_loss", c.bestLoss,
		)
		return true
	}

	return false
}

// BestLoss returns the best loss seen so far.
func (c *ConvergenceTracker) BestLoss() float64 {
	return c.bestLoss
}

// History returns a copy of the recorded round losses.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.lossHistory...)
}

// StaleCount returns the current number of rounds without improvement.
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state.
func (c *ConvergenceTracker) Reset() {
	c.lossHistory = []float64{}
	c.bestLoss = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
