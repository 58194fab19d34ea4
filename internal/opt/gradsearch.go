package opt

import (
	"fmt"
	"math"
)

// gradSearch locally improves x at a fixed stencil size: estimate gradient
// and curvature, take a safeguarded quasi-Newton step through a
// backtracking line search, repeat. The pass stops on a stencil failure, a
// line-search failure, or after MaxInner iterations, whichever comes
// first.
//
// It returns the improved result, or a NoImprovementError (wrapping the
// stopping cause, if any) when the pass ended without a strictly better
// point than it started from.
func (f *ImFilter) gradSearch(oracle Oracle, x, h float64, outer int) (Result, error) {
	start := Result{X: x, Loss: oracle(x, h)}
	current := start

	var cause error

	for i := 0; i < f.MaxInner; i++ {
		grad, hess, err := estimateGradient(oracle, current, h)
		if err != nil {
			f.emit(Event{
				Kind: EventStencilFailure, Outer: outer, Inner: i, Stencil: h,
				X: current.X, Loss: current.Loss,
				Msg: "unable to clearly estimate gradient",
			})
			cause = err
			break
		}

		// Quasi-Newton step scaled by the curvature estimate.
		p := -sign(grad) * math.Abs(grad) / hess

		// Non-positive curvature flips the step uphill; fall back to the
		// plain steepest-descent step.
		if p*grad > 0 {
			p = -sign(grad) * math.Abs(grad)
		}
		// An ill-conditioned curvature estimate can blow the step up.
		if math.Abs(p) > maxStepLength {
			p = -sign(grad) * maxStepLength
		}

		// Structurally guaranteed after the safeguards above. A violation
		// is a logic defect, not a data-dependent failure.
		if p*grad > 0 {
			panic(fmt.Sprintf("opt: ascent direction after safeguards (p=%g, grad=%g)", p, grad))
		}

		f.emit(Event{
			Kind: EventIteration, Outer: outer, Inner: i, Stencil: h,
			X: current.X, Loss: current.Loss, Grad: math.Abs(grad),
		})

		next, err := backtrackingLineSearch(oracle, current.X, p, grad, h, f.MaxLineTries)
		if err != nil {
			f.emit(Event{
				Kind: EventLineSearchFailure, Outer: outer, Inner: i, Stencil: h,
				X: current.X, Loss: current.Loss, Grad: math.Abs(grad),
				Msg: "line search failure",
			})
			cause = err
			break
		}
		current = next
	}

	if current == start || current.Loss >= start.Loss {
		return Result{}, &NoImprovementError{Stencil: h, Cause: cause}
	}
	return current, nil
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
