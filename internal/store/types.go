package store

import (
	"fmt"
	"time"
)

// SchemaVersion is written into every checkpoint. Bump it when the
// checkpoint layout changes incompatibly.
const SchemaVersion = 1

// RunConfig holds the calibration settings a checkpoint was created with.
// It mirrors the fit settings rather than importing them, so the store
// stays free of import cycles with the server package.
type RunConfig struct {
	X0      float64 `json:"x0"`
	H0      float64 `json:"h0"`
	Tol     float64 `json:"tol"`
	Beta    float64 `json:"beta"`
	Horizon float64 `json:"horizon"`
	Backend string  `json:"backend"` // imfilter, mayfly

	Restarts int     `json:"restarts,omitempty"`
	Seed     int64   `json:"seed,omitempty"`
	Span     float64 `json:"span,omitempty"`
}

// Checkpoint is a persisted snapshot of a calibration run.
//
// A checkpoint records the best point found and where the stencil
// schedule stood when the snapshot was taken, but not the transient
// state of the inner loops. Resuming therefore restarts the outer loop
// at the recorded stencil size with the remaining iteration budget; the
// best loss can only improve from there, but the step-by-step trajectory
// of a resumed run will not match an uninterrupted one exactly. Saving
// full inner-loop state would tie the checkpoint format to one backend
// for no practical gain.
type Checkpoint struct {
	// JobID is the unique identifier for this calibration job.
	JobID string `json:"jobId"`

	// RunID identifies the pipeline run that produced this snapshot.
	RunID string `json:"runId,omitempty"`

	// SchemaVersion records the checkpoint layout version.
	SchemaVersion int `json:"schemaVersion"`

	// BestX and BestLoss are the best parameter found so far and its
	// oracle loss.
	BestX    float64 `json:"bestX"`
	BestLoss float64 `json:"bestLoss"`

	// OuterIndex is the number of completed outer (stencil) iterations.
	OuterIndex int `json:"outerIndex"`

	// Stencil is the stencil size active when the snapshot was taken.
	Stencil float64 `json:"stencil"`

	// Evals counts oracle evaluations across the run.
	Evals int `json:"evals"`

	// Status is the run state at snapshot time: running, completed,
	// failed, cancelled.
	Status string `json:"status"`

	// CreatedAt records when this checkpoint was created.
	CreatedAt time.Time `json:"createdAt"`

	// Config holds the calibration settings, needed for compatibility
	// validation during resume.
	Config RunConfig `json:"config"`
}

// CheckpointInfo is checkpoint metadata for listings.
type CheckpointInfo struct {
	JobID      string    `json:"jobId"`
	BestX      float64   `json:"bestX"`
	BestLoss   float64   `json:"bestLoss"`
	OuterIndex int       `json:"outerIndex"`
	Status     string    `json:"status"`
	Backend    string    `json:"backend"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewCheckpoint creates a checkpoint from run state.
func NewCheckpoint(jobID, runID string, bestX, bestLoss float64, outerIndex int, stencil float64, evals int, status string, config RunConfig) *Checkpoint {
	return &Checkpoint{
		JobID:         jobID,
		RunID:         runID,
		SchemaVersion: SchemaVersion,
		BestX:         bestX,
		BestLoss:      bestLoss,
		OuterIndex:    outerIndex,
		Stencil:       stencil,
		Evals:         evals,
		Status:        status,
		CreatedAt:     time.Now(),
		Config:        config,
	}
}

// ToInfo converts a full Checkpoint to its listing metadata.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:      c.JobID,
		BestX:      c.BestX,
		BestLoss:   c.BestLoss,
		OuterIndex: c.OuterIndex,
		Status:     c.Status,
		Backend:    c.Config.Backend,
		CreatedAt:  c.CreatedAt,
	}
}

// Validate checks that the checkpoint has usable data. Returns a
// ValidationError naming the first offending field.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if c.SchemaVersion != SchemaVersion {
		return &ValidationError{Field: "SchemaVersion", Reason: fmt.Sprintf("unsupported version %d", c.SchemaVersion)}
	}
	if c.BestLoss < 0 {
		return &ValidationError{Field: "BestLoss", Reason: "cannot be negative"}
	}
	if c.OuterIndex < 0 {
		return &ValidationError{Field: "OuterIndex", Reason: "cannot be negative"}
	}
	if c.Stencil <= 0 {
		return &ValidationError{Field: "Stencil", Reason: "must be positive"}
	}
	if c.Evals < 0 {
		return &ValidationError{Field: "Evals", Reason: "cannot be negative"}
	}
	if c.CreatedAt.IsZero() {
		return &ValidationError{Field: "CreatedAt", Reason: "cannot be zero"}
	}
	if c.Config.H0 <= 0 {
		return &ValidationError{Field: "Config.H0", Reason: "must be positive"}
	}
	if c.Config.Tol < 0 {
		return &ValidationError{Field: "Config.Tol", Reason: "cannot be negative"}
	}
	if c.Config.Horizon <= 0 {
		return &ValidationError{Field: "Config.Horizon", Reason: "must be positive"}
	}
	if c.Config.Backend == "" {
		return &ValidationError{Field: "Config.Backend", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// IsCompatible checks whether this checkpoint can be resumed under the
// given settings. The model (beta, horizon) and the backend must match;
// tolerances and budgets may differ, since resume supplies its own.
func (c *Checkpoint) IsCompatible(config RunConfig) error {
	if c.Config.Beta != config.Beta {
		return &CompatibilityError{
			Field:    "Beta",
			Expected: fmt.Sprintf("%g", c.Config.Beta),
			Actual:   fmt.Sprintf("%g", config.Beta),
		}
	}
	if c.Config.Horizon != config.Horizon {
		return &CompatibilityError{
			Field:    "Horizon",
			Expected: fmt.Sprintf("%g", c.Config.Horizon),
			Actual:   fmt.Sprintf("%g", config.Horizon),
		}
	}
	if c.Config.Backend != config.Backend {
		return &CompatibilityError{
			Field:    "Backend",
			Expected: c.Config.Backend,
			Actual:   config.Backend,
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

func (e *CompatibilityError) Is(target error) bool {
	_, ok := target.(*CompatibilityError)
	return ok
}
