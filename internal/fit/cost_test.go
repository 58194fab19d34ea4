package fit

import (
	"sync"
	"testing"
)

func TestGrowthMSE_MinimumNearTrueRate(t *testing.T) {
	oracle := GrowthMSE(1.0, 5.0)

	h := 0.001
	atTruth := oracle(1.0, h)
	below := oracle(0.5, h)
	above := oracle(1.5, h)

	if atTruth >= below {
		t.Errorf("Loss at the true rate (%g) should beat 0.5 (%g)", atTruth, below)
	}
	if atTruth >= above {
		t.Errorf("Loss at the true rate (%g) should beat 1.5 (%g)", atTruth, above)
	}
}

func TestGrowthMSE_SharpensWithSmallerStep(t *testing.T) {
	oracle := GrowthMSE(1.0, 5.0)

	coarse := oracle(1.0, 0.1)
	fine := oracle(1.0, 0.001)

	if fine >= coarse {
		t.Errorf("Finer integration should reduce truncation error: coarse %g, fine %g", coarse, fine)
	}
}

func TestGrowthMSE_NonNegative(t *testing.T) {
	oracle := GrowthMSE(1.0, 5.0)

	for _, x := range []float64{-2, -0.5, 0, 0.7, 1, 1.3, 3} {
		if loss := oracle(x, 0.01); loss < 0 {
			t.Errorf("Loss must be non-negative, got %g at x=%g", loss, x)
		}
	}
}

func TestGrowthMSE_PanicsOnBadHorizon(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for non-positive horizon")
		}
	}()
	GrowthMSE(1.0, 0)
}

func TestCountingOracle(t *testing.T) {
	oracle := NewCountingOracle(GrowthMSE(1.0, 5.0))

	if oracle.Count() != 0 {
		t.Errorf("Fresh oracle should have count 0, got %d", oracle.Count())
	}

	for i := 0; i < 7; i++ {
		oracle.Eval(1.0, 0.1)
	}
	if oracle.Count() != 7 {
		t.Errorf("Expected 7 evaluations, got %d", oracle.Count())
	}
}

func TestCountingOracle_ConcurrentReads(t *testing.T) {
	oracle := NewCountingOracle(func(x, h float64) float64 { return x })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				oracle.Eval(1.0, 0.1)
				_ = oracle.Count()
			}
		}()
	}
	wg.Wait()

	if oracle.Count() != 1000 {
		t.Errorf("Expected 1000 evaluations, got %d", oracle.Count())
	}
}
