package opt

// Oracle is a pure objective function: it maps a candidate parameter and
// the active stencil size to a scalar loss. Implementations must be
// deterministic and side-effect free; the optimizer assumes repeated calls
// with identical arguments return identical results. The stencil argument
// is advisory: an oracle may use it (the growth-model oracle takes it as
// its integration step) or ignore it entirely.
type Oracle func(x, h float64) float64

// Result is a candidate parameter and its oracle loss at creation time.
// Results are value types: never mutated, only superseded. Comparing two
// results for equality is how an inner pass detects that it went nowhere.
type Result struct {
	X    float64 `json:"x"`
	Loss float64 `json:"loss"`
}

// Optimizer is the seam between the calibration pipeline and a concrete
// optimization backend.
type Optimizer interface {
	// Optimize minimizes the oracle starting from x0.
	// Returns the best result found and any backend failure.
	Optimize(oracle Oracle, x0 float64) (Result, error)
}
