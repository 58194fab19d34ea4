package opt

import "fmt"

// Failure sentinels for the implicit-filtering loops. All three are
// recoverable: the outer loop responds to each by moving on to a smaller
// stencil size, and the run always ends with the best point found.
// Use errors.Is to match.
var (
	ErrStencil       = &StencilError{}
	ErrLineSearch    = &LineSearchError{}
	ErrNoImprovement = &NoImprovementError{}
)

// StencilError reports that no trustworthy derivative estimate exists at
// the current stencil size: either no descent direction is observable at
// this resolution, or the gradient magnitude sits below the noise floor
// implied by the perturbation size.
type StencilError struct {
	X       float64
	Stencil float64
	Grad    float64
}

func (e *StencilError) Error() string {
	return fmt.Sprintf("stencil failure at x=%g (h=%g): unable to clearly estimate gradient", e.X, e.Stencil)
}

func (e *StencilError) Is(target error) bool {
	_, ok := target.(*StencilError)
	return ok
}

// LineSearchError reports that no step length satisfied the sufficient
// decrease condition within the backtracking budget.
type LineSearchError struct {
	X     float64
	Tries int
}

func (e *LineSearchError) Error() string {
	return fmt.Sprintf("line search failure at x=%g: no sufficient decrease in %d tries", e.X, e.Tries)
}

func (e *LineSearchError) Is(target error) bool {
	_, ok := target.(*LineSearchError)
	return ok
}

// NoImprovementError reports that an inner pass ended without a strictly
// better point. When a stencil or line-search failure stopped the pass,
// it is carried as the cause and remains matchable through errors.Is.
type NoImprovementError struct {
	Stencil float64
	Cause   error
}

func (e *NoImprovementError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no improvement at stencil h=%g: %v", e.Stencil, e.Cause)
	}
	return fmt.Sprintf("no improvement at stencil h=%g", e.Stencil)
}

func (e *NoImprovementError) Is(target error) bool {
	_, ok := target.(*NoImprovementError)
	return ok
}

func (e *NoImprovementError) Unwrap() error { return e.Cause }
