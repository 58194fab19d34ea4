package fit

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/ratefit/internal/ode"
	"github.com/cwbudde/ratefit/internal/opt"
)

// GrowthMSE builds the growth-model oracle: integrate y' = x·y to the
// horizon with step h and return the squared error against the closed-form
// target exp(beta·horizon).
//
// The stencil argument doubles as the integration step, so the loss
// surface sharpens as the optimizer shrinks its stencil. Each evaluation
// constructs a fresh trajectory; nothing is shared between calls, which
// keeps the oracle pure and the differencing calls drift-free.
func GrowthMSE(beta, horizon float64) opt.Oracle {
	if horizon <= 0 {
		panic("fit: horizon must be positive")
	}
	target := math.Exp(beta * horizon)

	return func(x, h float64) float64 {
		estimate := ode.Solve(x, h, horizon)
		diff := target - estimate
		return diff * diff
	}
}

// CountingOracle wraps an oracle with an evaluation counter. The optimizer
// never memoizes, so the count is the true cost of a run. The counter is
// atomic so progress monitors can read it while a round is in flight.
type CountingOracle struct {
	oracle opt.Oracle
	n      atomic.Int64
}

// NewCountingOracle wraps the given oracle.
func NewCountingOracle(oracle opt.Oracle) *CountingOracle {
	return &CountingOracle{oracle: oracle}
}

// Eval evaluates the wrapped oracle. Pass the method value as an
// opt.Oracle.
func (c *CountingOracle) Eval(x, h float64) float64 {
	c.n.Add(1)
	return c.oracle(x, h)
}

// Count returns the number of evaluations so far.
func (c *CountingOracle) Count() int {
	return int(c.n.Load())
}
