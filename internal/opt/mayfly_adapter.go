package opt

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external mayfly swarm library as a baseline
// backend for scalar calibration. The swarm has no stencil schedule, so
// every oracle evaluation uses the fixed stencil size configured here.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
	stencil  float64
	lower    float64
	upper    float64
}

// NewMayfly creates a mayfly baseline searching [lower, upper] and
// evaluating the oracle at the given stencil size.
func NewMayfly(maxIters, popSize int, seed int64, stencil, lower, upper float64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		stencil:  stencil,
		lower:    lower,
		upper:    upper,
	}
}

// Optimize runs the swarm. x0 is unused: the swarm seeds its own
// population across [lower, upper] rather than starting from a point.
func (m *MayflyAdapter) Optimize(oracle Oracle, x0 float64) (Result, error) {
	config := mayfly.NewDefaultConfig()

	config.ObjectiveFunc = func(params []float64) float64 {
		return oracle(params[0], m.stencil)
	}
	config.ProblemSize = 1
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = m.lower
	config.UpperBound = m.upper

	// Seeded for reproducibility
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return Result{}, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	return Result{X: result.GlobalBest.Position[0], Loss: result.GlobalBest.Cost}, nil
}
