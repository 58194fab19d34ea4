package opt

// EventKind labels a point in the optimization lifecycle.
type EventKind string

const (
	// EventOuterStart marks the beginning of an outer iteration at a
	// freshly shrunk stencil size.
	EventOuterStart EventKind = "outer-start"

	// EventIteration is one inner gradient step: the point, its loss, and
	// the gradient magnitude about to be searched along.
	EventIteration EventKind = "iteration"

	// EventStencilFailure means the derivative estimate could not be
	// trusted and the inner pass stopped.
	EventStencilFailure EventKind = "stencil-failure"

	// EventLineSearchFailure means no step satisfied sufficient decrease
	// and the inner pass stopped.
	EventLineSearchFailure EventKind = "line-search-failure"

	// EventAccepted means an inner pass produced a strictly better point
	// that the outer loop adopted.
	EventAccepted EventKind = "accepted"

	// EventConverged means the accepted point moved at most tol and the
	// stencil schedule terminated early.
	EventConverged EventKind = "converged"
)

// Event is one diagnostic record from the optimizer. Events are purely
// observational: dropping them, or running with no observer at all, never
// changes optimization results.
type Event struct {
	Kind    EventKind `json:"kind"`
	Outer   int       `json:"outer"`
	Inner   int       `json:"inner,omitempty"`
	Stencil float64   `json:"stencil"`
	X       float64   `json:"x"`
	Loss    float64   `json:"loss"`
	Grad    float64   `json:"grad,omitempty"`
	Diff    float64   `json:"diff,omitempty"`
	Msg     string    `json:"msg,omitempty"`
}

// Observer receives optimizer events. A nil Observer is silent.
type Observer func(Event)
