package fit

import (
	"fmt"
	"time"

	"github.com/cwbudde/ratefit/internal/opt"
)

// Settings describes one calibration run: the growth model whose rate
// constant is being recovered, the optimizer backend, and the restart
// schedule.
type Settings struct {
	X0      float64 `json:"x0"`      // starting parameter value
	H0      float64 `json:"h0"`      // initial stencil size
	Tol     float64 `json:"tol"`     // movement tolerance ending the stencil schedule
	Beta    float64 `json:"beta"`    // true rate constant behind the target
	Horizon float64 `json:"horizon"` // integration horizon

	Backend  Backend `json:"backend"`
	Restarts int     `json:"restarts,omitempty"` // jittered re-runs after the first (0 = single round)
	Span     float64 `json:"span,omitempty"`     // jitter radius; also the mayfly bounds half-width
	Seed     int64   `json:"seed,omitempty"`

	// Swarm budget, ignored by the imfilter backend.
	SwarmIters int `json:"swarm_iters,omitempty"`
	SwarmPop   int `json:"swarm_pop,omitempty"`
}

// DefaultSettings mirrors the reference calibration scenario: recover
// beta = 1 over a horizon of 5 starting from 1.5.
func DefaultSettings() Settings {
	return Settings{
		X0:         1.5,
		H0:         0.1,
		Tol:        1e-7,
		Beta:       1.0,
		Horizon:    5.0,
		Backend:    BackendImFilter,
		Restarts:   0,
		Span:       2.0,
		Seed:       42,
		SwarmIters: 200,
		SwarmPop:   20,
	}
}

// Validate checks field ranges before a run.
func (s Settings) Validate() error {
	if s.H0 <= 0 {
		return fmt.Errorf("h0 must be positive, got %g", s.H0)
	}
	if s.Tol < 0 {
		return fmt.Errorf("tol must be non-negative, got %g", s.Tol)
	}
	if s.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %g", s.Horizon)
	}
	if s.Restarts < 0 {
		return fmt.Errorf("restarts must be non-negative, got %d", s.Restarts)
	}

	needsSpan := s.Restarts > 0 || NormalizeBackend(string(s.Backend)) == BackendMayfly
	if needsSpan && s.Span <= 0 {
		return fmt.Errorf("span must be positive with restarts or the mayfly backend, got %g", s.Span)
	}

	if NormalizeBackend(string(s.Backend)) == BackendMayfly {
		if s.SwarmIters <= 0 {
			return fmt.Errorf("swarm_iters must be positive, got %d", s.SwarmIters)
		}
		if s.SwarmPop < 20 {
			// mayfly v0.1.0 misbehaves below 20 individuals
			return fmt.Errorf("swarm_pop must be at least 20, got %d", s.SwarmPop)
		}
	}

	return nil
}

// Report summarizes a finished calibration run.
type Report struct {
	RunID     string        `json:"run_id"`
	Best      opt.Result    `json:"best"`
	Evals     int           `json:"evals"`  // oracle evaluations across all rounds
	Rounds    int           `json:"rounds"` // optimization rounds executed
	Converged bool          `json:"converged"`
	Duration  time.Duration `json:"duration"`
}
