package fit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/ratefit/internal/opt"
)

// Backend identifies an optimizer implementation.
type Backend string

const (
	BackendImFilter Backend = "imfilter"
	BackendMayfly   Backend = "mayfly"
)

// ErrUnknownBackend is returned when the name does not match a known backend.
var ErrUnknownBackend = errors.New("unknown optimizer backend")

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "imfilter", "implicit-filtering", "if":
		return BackendImFilter
	case "mayfly", "swarm":
		return BackendMayfly
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Backend {
	return []Backend{BackendImFilter, BackendMayfly}
}

// NewOptimizer constructs the optimizer for the requested backend. The
// observer is attached where the backend supports one.
func NewOptimizer(name string, s Settings, observer opt.Observer) (opt.Optimizer, error) {
	switch NormalizeBackend(name) {
	case BackendImFilter:
		f := opt.NewImFilter(s.H0, s.Tol)
		f.Observer = observer
		return f, nil
	case BackendMayfly:
		return opt.NewMayfly(s.SwarmIters, s.SwarmPop, s.Seed, s.H0, s.X0-s.Span, s.X0+s.Span), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
