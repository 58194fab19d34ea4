package opt

import "math"

// Implicit-filtering constants. Process-wide; the per-run knobs (initial
// stencil, tolerance, iteration budgets) live on ImFilter.
const (
	lineSearchReduction = 0.7   // step-length backtracking factor
	stencilReduction    = 0.25  // outer-loop stencil shrink factor
	armijoConstant      = 0.001 // sufficient-decrease fraction
	maxIters            = 10    // inner iterations, also line-search tries
	maxOuterIters       = 20    // stencil sizes attempted
	maxStepLength       = 3.0   // clamp on the quasi-Newton step
)

// ImFilter minimizes a derivative-free scalar objective by implicit
// filtering: central finite differences at a stencil size h estimate
// gradient and curvature, a safeguarded quasi-Newton line search improves
// the point until the estimates stop being trustworthy, then h shrinks
// geometrically and the cycle repeats. Noise below the current stencil
// resolution is filtered out implicitly, which is what makes the scheme
// robust on simulation-backed objectives.
type ImFilter struct {
	H0  float64 // initial stencil size
	Tol float64 // stop once an accepted point moves at most this far

	MaxOuter     int // stencil sizes attempted
	MaxInner     int // gradient steps per stencil size
	MaxLineTries int // backtracking budget per line search

	Observer Observer // optional diagnostics sink, may be nil
}

// NewImFilter returns an implicit-filtering optimizer with the standard
// iteration budgets.
func NewImFilter(h0, tol float64) *ImFilter {
	return &ImFilter{
		H0:           h0,
		Tol:          tol,
		MaxOuter:     maxOuterIters,
		MaxInner:     maxIters,
		MaxLineTries: maxIters,
	}
}

// ImplicitFiltering minimizes the oracle from x0 with the standard
// configuration. It always returns the best point found; if every inner
// pass at every stencil size fails, that is the initial point itself.
func ImplicitFiltering(oracle Oracle, x0, h0, tol float64) Result {
	best, _ := NewImFilter(h0, tol).Optimize(oracle, x0)
	return best
}

// Optimize runs the shrinking-stencil schedule h0·0.25^i from x0. Inner
// passes that fail (stencil failure, line-search failure, no improvement)
// simply hand control to the next smaller stencil; the loop terminates
// early once an accepted point moves at most Tol, since shrinking the
// stencil further no longer changes the answer.
//
// The returned error is always nil; the signature satisfies Optimizer.
func (f *ImFilter) Optimize(oracle Oracle, x0 float64) (Result, error) {
	best := Result{X: x0, Loss: oracle(x0, f.H0)}

	for i := 0; i < f.MaxOuter; i++ {
		h := f.H0 * math.Pow(stencilReduction, float64(i))

		f.emit(Event{Kind: EventOuterStart, Outer: i, Stencil: h, X: best.X, Loss: best.Loss})

		improved, err := f.gradSearch(oracle, best.X, h, i)
		if err != nil {
			continue
		}

		diff := math.Abs(best.X - improved.X)
		best = improved

		f.emit(Event{Kind: EventAccepted, Outer: i, Stencil: h, X: best.X, Loss: best.Loss, Diff: diff})

		if diff <= f.Tol {
			f.emit(Event{Kind: EventConverged, Outer: i, Stencil: h, X: best.X, Loss: best.Loss, Diff: diff,
				Msg: "stencil schedule converged"})
			break
		}
	}

	return best, nil
}

func (f *ImFilter) emit(ev Event) {
	if f.Observer != nil {
		f.Observer(ev)
	}
}
