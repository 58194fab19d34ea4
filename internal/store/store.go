package store

// Store defines the interface for checkpoint persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil on success
//   - Return ErrNotFound if the checkpoint doesn't exist (Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveCheckpoint atomically saves a checkpoint for the given job,
	// overwriting any existing one. Implementations should use atomic
	// write strategies (temp file + rename) to prevent corruption.
	SaveCheckpoint(jobID string, checkpoint *Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for the given job.
	// Returns ErrNotFound if no checkpoint exists for this jobID.
	LoadCheckpoint(jobID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for all available checkpoints,
	// most recent first. The slice may be empty.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint and all associated
	// artifacts (checkpoint.json, trace.jsonl) for the given job.
	// Returns ErrNotFound if no checkpoint exists for this jobID.
	DeleteCheckpoint(jobID string) error
}

// ErrNotFound is returned when a requested checkpoint does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing checkpoint error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "checkpoint not found: " + e.JobID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
