// Package ode integrates the scalar growth equation y'(t) = r·y(t) with
// initial condition y(0) = 1, using a fixed-step explicit second-order
// method (Heun).
package ode

// Initial condition shared by every trajectory.
const (
	t0 = 0.0
	y0 = 1.0
)

// Point is one element of an integrated trajectory.
type Point struct {
	T float64
	Y float64
}

// Sequence lazily integrates y' = rate·y from (0, 1) with a fixed step.
// Each Next call advances the cursor by one step and returns the new point.
// The sequence is unbounded and cannot be rewound; callers needing a fresh
// trajectory construct a new Sequence. State is O(1) and owned exclusively
// by the sequence, so independent evaluations never observe each other.
type Sequence struct {
	rate float64
	step float64
	cur  Point
}

// NewSequence creates a sequence positioned at the initial condition.
func NewSequence(rate, step float64) *Sequence {
	if step <= 0 {
		panic("ode: step size must be positive")
	}
	return &Sequence{
		rate: rate,
		step: step,
		cur:  Point{T: t0, Y: y0},
	}
}

// Next advances one step and returns the new point.
//
// One Heun step: slope k1 at the current point, slope k2 at the point
// advanced a full step along k1, update by the average of the two.
func (s *Sequence) Next() Point {
	k1 := s.rate * s.cur.Y
	k2 := s.rate * (s.cur.Y + s.step*k1)

	s.cur = Point{
		T: s.cur.T + s.step,
		Y: s.cur.Y + s.step*0.5*(k1+k2),
	}
	return s.cur
}

// Solve integrates to the horizon and returns the final state value. The
// trajectory takes trunc(horizon/step) fixed steps, so it stops at or just
// short of the horizon rather than stepping past it. A step larger than
// the horizon takes no steps at all and returns the initial value.
func Solve(rate, step, horizon float64) float64 {
	seq := NewSequence(rate, step)

	n := int(horizon / step)
	y := y0
	for i := 0; i < n; i++ {
		y = seq.Next().Y
	}
	return y
}
