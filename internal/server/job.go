package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/ratefit/internal/store"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// JobConfig is an alias to avoid duplication with store.RunConfig
type JobConfig = store.RunConfig

// Job represents one server-side calibration run
type Job struct {
	ID        string     `json:"id"`
	State     JobState   `json:"state"`
	Config    JobConfig  `json:"config"`
	BestX     float64    `json:"bestX"`
	BestLoss  float64    `json:"bestLoss"`
	Outer     int        `json:"outer"`    // completed outer (stencil) iterations
	Stencil   float64    `json:"stencil"`  // stencil size last observed
	Evals     int        `json:"evals"`    // oracle evaluations so far
	Rounds    int        `json:"rounds"`   // optimization rounds executed
	Converged bool       `json:"converged"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// JobManager manages the lifecycle of calibration jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
	hub         *WSHub // optional, set by the server
}

// SetHub attaches a websocket hub; published events are mirrored to it.
func (jm *JobManager) SetHub(hub *WSHub) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.hub = hub
}

// Publish fans a progress event out to SSE subscribers and, when a hub
// is attached, to websocket clients watching the job.
func (jm *JobManager) Publish(event ProgressEvent) {
	jm.broadcaster.Broadcast(event)

	jm.mu.RLock()
	hub := jm.hub
	jm.mu.RUnlock()
	if hub != nil {
		hub.BroadcastJob(event)
	}
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	snapshot := *job
	return &snapshot
}

// GetJob retrieves a snapshot of a job by ID. Workers mutate jobs
// through UpdateJob under the write lock, so readers get copies.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// ListJobs returns snapshots of all jobs
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns snapshots of all jobs currently running
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			snapshot := *job
			runningJobs = append(runningJobs, &snapshot)
		}
	}
	return runningJobs
}

// RegisterCancel records the cancel function for a job's worker context
func (jm *JobManager) RegisterCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// CancelJob cancels a running job. Returns false if the job is unknown
// or no longer cancellable.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return false
	}
	if job.State != StatePending && job.State != StateRunning {
		return false
	}

	cancel, ok := jm.cancels[id]
	if !ok {
		return false
	}
	cancel()
	delete(jm.cancels, id)
	return true
}
