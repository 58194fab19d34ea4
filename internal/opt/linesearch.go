package opt

import (
	"fmt"
	"math"
)

// backtrackingLineSearch finds a step length along direction p satisfying
// the Armijo sufficient-decrease condition
//
//	loss(x + a·p) - loss(x) ≤ c·a·p·grad
//
// trying a = reduction^i for i = 0..tries-1. The right-hand side is
// negative for a descent direction, so acceptance requires an actual
// decrease proportional to the predicted one. Since grad is only a finite
// difference estimate, the search can legitimately exhaust its budget;
// that is reported as a LineSearchError.
//
// p must not be an ascent direction. That is the caller's invariant to
// maintain, so a violation panics instead of returning an error.
func backtrackingLineSearch(oracle Oracle, x, p, grad, h float64, tries int) (Result, error) {
	if p*grad > 0 {
		panic(fmt.Sprintf("opt: line search requires a descent direction (p=%g, grad=%g)", p, grad))
	}

	lossOld := oracle(x, h)

	for i := 0; i < tries; i++ {
		a := math.Pow(lineSearchReduction, float64(i))

		xNew := x + a*p
		lossNew := oracle(xNew, h)

		requiredDecrease := armijoConstant * a * p * grad
		actualDecrease := lossNew - lossOld

		if actualDecrease <= requiredDecrease {
			return Result{X: xNew, Loss: lossNew}, nil
		}
	}

	return Result{}, &LineSearchError{X: x, Tries: tries}
}
