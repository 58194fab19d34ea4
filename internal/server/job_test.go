package server

import (
	"sync"
	"testing"
	"time"
)

func testConfig() JobConfig {
	return JobConfig{
		X0:      1.5,
		H0:      0.1,
		Tol:     1e-7,
		Beta:    1.0,
		Horizon: 5.0,
		Backend: "imfilter",
		Seed:    42,
	}
}

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testConfig())

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.X0 != 1.5 {
		t.Errorf("Config not set correctly")
	}
	if job.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists = jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	jm.CreateJob(testConfig())
	jm.CreateJob(testConfig())

	if got := len(jm.ListJobs()); got != 2 {
		t.Errorf("Expected 2 jobs, got %d", got)
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.BestX = 1.02
		j.BestLoss = 0.004
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Errorf("Expected running, got %s", updated.State)
	}
	if updated.BestX != 1.02 {
		t.Errorf("Expected BestX 1.02, got %g", updated.BestX)
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()

	running := jm.CreateJob(testConfig())
	jm.CreateJob(testConfig()) // stays pending
	jm.UpdateJob(running.ID, func(j *Job) { j.State = StateRunning })

	got := jm.GetRunningJobs()
	if len(got) != 1 {
		t.Fatalf("Expected 1 running job, got %d", len(got))
	}
	if got[0].ID != running.ID {
		t.Error("Wrong job reported as running")
	}
}

func TestJobManager_ConcurrentAccess(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			jm.UpdateJob(job.ID, func(j *Job) { j.Evals = n })
		}(i)
		go func() {
			defer wg.Done()
			// Field reads must be safe against concurrent UpdateJob.
			if j, ok := jm.GetJob(job.ID); ok {
				_ = j.Evals
				_ = j.State
			}
			for _, j := range jm.ListJobs() {
				_ = j.BestLoss
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Concurrent access deadlocked")
	}
}

func TestJobManager_AccessorsReturnSnapshots(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	// Mutating a returned job must not leak into manager state.
	job.State = StateFailed
	job.Evals = 999

	stored, ok := jm.GetJob(job.ID)
	if !ok {
		t.Fatal("Job should exist")
	}
	if stored.State != StatePending || stored.Evals != 0 {
		t.Errorf("Stored job mutated through a snapshot: state=%s evals=%d", stored.State, stored.Evals)
	}

	// A snapshot must not observe later updates either.
	before, _ := jm.GetJob(job.ID)
	jm.UpdateJob(job.ID, func(j *Job) { j.Evals = 42 })
	if before.Evals != 0 {
		t.Errorf("Snapshot changed after UpdateJob: evals=%d", before.Evals)
	}

	listed := jm.ListJobs()[0]
	listed.BestLoss = -1
	after, _ := jm.GetJob(job.ID)
	if after.BestLoss == -1 {
		t.Error("ListJobs snapshot mutation leaked into manager state")
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	// No cancel registered yet.
	if jm.CancelJob(job.ID) {
		t.Error("Cancel should fail before a worker is registered")
	}

	cancelled := make(chan struct{})
	jm.RegisterCancel(job.ID, func() { close(cancelled) })

	if !jm.CancelJob(job.ID) {
		t.Fatal("Cancel should succeed for a pending job")
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("Cancel function was not invoked")
	}

	// A finished job is no longer cancellable.
	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })
	jm.RegisterCancel(job.ID, func() {})
	if jm.CancelJob(job.ID) {
		t.Error("Cancel should fail for a completed job")
	}

	if jm.CancelJob("nonexistent") {
		t.Error("Cancel should fail for unknown job")
	}
}
