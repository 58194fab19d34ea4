package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/ratefit/internal/fit"
	"github.com/cwbudde/ratefit/internal/opt"
	"github.com/cwbudde/ratefit/internal/store"
)

// settingsFromConfig converts the persisted job configuration to
// calibration settings, filling defaults for fields the API omits.
func settingsFromConfig(config JobConfig) fit.Settings {
	s := fit.DefaultSettings()
	s.X0 = config.X0
	s.H0 = config.H0
	s.Tol = config.Tol
	s.Beta = config.Beta
	s.Horizon = config.Horizon
	s.Backend = fit.NormalizeBackend(config.Backend)
	s.Restarts = config.Restarts
	if config.Seed != 0 {
		s.Seed = config.Seed
	}
	if config.Span != 0 {
		s.Span = config.Span
	}
	return s
}

// runJob executes a calibration job in the background. When
// checkpointStore is not nil, the iteration trace is written alongside
// the job's checkpoint, and a checkpoint is saved when the run ends.
func runJob(ctx context.Context, jm *JobManager, checkpointStore *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	settings := settingsFromConfig(job.Config)

	slog.Info("Starting job", "job_id", jobID, "backend", settings.Backend, "x0", settings.X0)

	var trace *store.TraceWriter
	if checkpointStore != nil {
		tw, err := store.NewTraceWriter(checkpointStore.BaseDir(), jobID, false)
		if err != nil {
			slog.Warn("Trace disabled for job", "job_id", jobID, "error", err)
		} else {
			trace = tw
			defer trace.Close()
		}
	}

	// The observer bridge keeps the job record current, streams progress
	// to subscribers, and appends the raw event to the trace. The core
	// stays synchronous; this callback is the only seam where the server
	// sees a run in flight.
	observer := func(ev opt.Event) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Outer = ev.Outer
			j.Stencil = ev.Stencil
			switch ev.Kind {
			case opt.EventAccepted, opt.EventConverged:
				j.BestX = ev.X
				j.BestLoss = ev.Loss
			}
		})

		current, ok := jm.GetJob(jobID)
		if !ok {
			return
		}
		jm.Publish(ProgressEvent{
			JobID:     jobID,
			State:     current.State,
			Kind:      ev.Kind,
			Outer:     ev.Outer,
			Stencil:   ev.Stencil,
			X:         ev.X,
			Loss:      ev.Loss,
			Timestamp: time.Now(),
		})

		if trace != nil {
			if err := trace.Write(ev); err != nil {
				slog.Warn("Failed to write trace event", "job_id", jobID, "error", err)
			}
		}
	}

	start := time.Now()
	report, err := fit.Calibrate(ctx, settings, observer)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			saveCheckpoint(jm, checkpointStore, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}
	elapsed := time.Since(start)

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestX = report.Best.X
		j.BestLoss = report.Best.Loss
		j.Evals = report.Evals
		j.Rounds = report.Rounds
		j.Converged = report.Converged
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	saveCheckpoint(jm, checkpointStore, jobID)

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"best_x", report.Best.X,
		"best_loss", report.Best.Loss,
		"evals", report.Evals,
	)

	jm.Publish(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Kind:      opt.EventConverged,
		X:         report.Best.X,
		Loss:      report.Best.Loss,
		Evals:     report.Evals,
		Timestamp: time.Now(),
	})

	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// saveCheckpoint persists the job's current best state. Failures are
// logged, not fatal: the in-memory job record remains authoritative.
func saveCheckpoint(jm *JobManager, checkpointStore *store.FSStore, jobID string) {
	if checkpointStore == nil {
		return
	}

	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	stencil := job.Stencil
	if stencil <= 0 {
		stencil = job.Config.H0
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		"",
		job.BestX,
		job.BestLoss,
		job.Outer,
		stencil,
		job.Evals,
		string(job.State),
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
		return
	}

	slog.Debug("Checkpoint saved", "job_id", jobID, "outer", job.Outer, "best_loss", job.BestLoss)
}
