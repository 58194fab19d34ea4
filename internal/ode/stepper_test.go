package ode

import (
	"math"
	"testing"
)

func TestSequenceSingleStep(t *testing.T) {
	// One Heun step of y' = y from y(0)=1 with step 0.5:
	// k1 = 1, k2 = 1.5, y = 1 + 0.5*1.25 = 1.625
	seq := NewSequence(1.0, 0.5)
	p := seq.Next()

	if p.T != 0.5 {
		t.Errorf("Expected t=0.5 after one step, got %g", p.T)
	}
	if math.Abs(p.Y-1.625) > 1e-15 {
		t.Errorf("Expected y=1.625 after one step, got %g", p.Y)
	}
}

func TestSequenceIsFresh(t *testing.T) {
	// Two sequences with the same parameters must produce identical
	// trajectories; no state is shared between instances.
	a := NewSequence(0.7, 0.1)
	b := NewSequence(0.7, 0.1)

	for i := 0; i < 100; i++ {
		pa, pb := a.Next(), b.Next()
		if pa != pb {
			t.Fatalf("Trajectories diverged at step %d: %+v vs %+v", i, pa, pb)
		}
	}
}

func TestSolveMatchesExponential(t *testing.T) {
	got := Solve(1.0, 1.0/1024, 1.0)
	want := math.E

	if math.Abs(got-want) > 1e-5 {
		t.Errorf("Expected e within 1e-5, got %g (error %g)", got, math.Abs(got-want))
	}
}

func TestSolveSecondOrderConvergence(t *testing.T) {
	// Halving the step must cut the error by about 4x.
	want := math.Exp(2.0)

	errAt := func(step float64) float64 {
		return math.Abs(Solve(1.0, step, 2.0) - want)
	}

	coarse := errAt(1.0 / 64)
	fine := errAt(1.0 / 128)

	ratio := coarse / fine
	if ratio < 3.5 || ratio > 4.5 {
		t.Errorf("Expected error ratio near 4 for halved step, got %g (coarse=%g, fine=%g)",
			ratio, coarse, fine)
	}
}

func TestSolveTruncatesStepCount(t *testing.T) {
	// trunc(1.0/0.3) = 3: Solve must stop after three steps rather than
	// stepping past the horizon.
	seq := NewSequence(1.0, 0.3)
	var want Point
	for i := 0; i < 3; i++ {
		want = seq.Next()
	}

	got := Solve(1.0, 0.3, 1.0)
	if got != want.Y {
		t.Errorf("Expected Solve to stop after 3 steps (y=%g), got %g", want.Y, got)
	}
}

func TestSolveZeroSteps(t *testing.T) {
	// Step larger than the horizon: no steps taken, initial value returned.
	if got := Solve(1.0, 2.0, 1.0); got != 1.0 {
		t.Errorf("Expected initial value 1.0 with zero steps, got %g", got)
	}
}

func TestSolveNegativeRateDecays(t *testing.T) {
	got := Solve(-1.0, 1.0/512, 1.0)
	want := math.Exp(-1.0)

	if math.Abs(got-want) > 1e-5 {
		t.Errorf("Expected exp(-1) within 1e-5, got %g", got)
	}
}
