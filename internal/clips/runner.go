package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bestof/clipper/internal/logging"
)

// Pipeline produces the artifact for a request. *Assembler implements it.
type Pipeline interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Runner executes queued jobs and records every outcome on the registry.
// Nothing that happens inside a job escapes Process except as a returned error.
type Runner struct {
	registry *Registry
	pipeline Pipeline
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner creates a Runner. timeout <= 0 disables the per-job deadline.
func NewRunner(registry *Registry, pipeline Pipeline, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		registry: registry,
		pipeline: pipeline,
		timeout:  timeout,
		logger:   logging.WithComponent(logger, "runner"),
		now:      time.Now,
	}
}

func (r *Runner) Process(ctx context.Context, task Task) (err error) {
	logger := logging.WithJobID(r.logger, task.JobID)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in clip job: %v", rec)
			logger.Error("recovered from panic", "panic", rec)
			r.markFailed(task.JobID, err)
		}
	}()

	job, err := r.registry.Get(task.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", task.JobID, err)
	}

	if _, err := r.registry.Transition(job.ID, Downloading{StartedAt: r.now()}); err != nil {
		return err
	}
	logger.Info("processing clip", "url", job.SourceURL, "mode", job.Mode)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.pipeline.Run(ctx, Request{
		JobID:       job.ID,
		SourceURL:   job.SourceURL,
		Mode:        job.Mode,
		Transitions: job.Transitions,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("job timed out after %s: %w", r.timeout, err)
		}
		r.markFailed(job.ID, err)
		return err
	}

	if _, err := r.registry.Transition(job.ID, Completed{
		ArtifactPath:   res.ArtifactPath,
		CompletedAt:    r.now(),
		Plan:           res.Plan,
		SourceDuration: res.SourceDuration,
	}); err != nil {
		return err
	}

	logger.Info("clip completed", "artifact", res.ArtifactPath, "segments", len(res.Plan))
	return nil
}

func (r *Runner) markFailed(id string, cause error) {
	if _, err := r.registry.Transition(id, Failed{Error: cause.Error(), FailedAt: r.now()}); err != nil {
		r.logger.Warn("failed to record job failure", "job_id", id, "error", err)
	}
}
