// Package clips owns the clip job lifecycle: submission, background
// assembly on a bounded worker queue and the registry that callers poll.
package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bestof/clipper/internal/entitlement"
	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/planner"
)

type Submission struct {
	URL         string
	Mode        planner.Mode
	Transitions bool
	UserID      string
}

type StatusView struct {
	ID          string
	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

type Info struct {
	Job *Job
	// DownloadURL is set only when the job is Completed.
	DownloadURL string
}

// JobService is what the HTTP layer uses to submit and poll jobs.
type JobService interface {
	Submit(ctx context.Context, sub Submission) (string, error)
	Status(id string) (*StatusView, error)
	Info(id string) (*Info, error)
	List(limit int) []*Job
}

// Enqueuer schedules a task without blocking. *Queue implements it.
type Enqueuer interface {
	Enqueue(task Task) error
}

type Service struct {
	registry     *Registry
	queue        Enqueuer
	metadata     media.MetadataSource
	entitlements entitlement.Checker
	logger       *slog.Logger
	newID        func() string
}

// NewService creates a Service. A nil checker allows every request.
func NewService(registry *Registry, queue Enqueuer, metadata media.MetadataSource, checker entitlement.Checker, logger *slog.Logger) *Service {
	if checker == nil {
		checker = entitlement.Unrestricted{}
	}
	return &Service{
		registry:     registry,
		queue:        queue,
		metadata:     metadata,
		entitlements: checker,
		logger:       logger.With("component", "clips"),
		newID:        uuid.NewString,
	}
}

// Submit validates the request, reads source metadata, records the job as
// Processing and schedules it. It returns without waiting for the clip.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	if !sub.Mode.Valid() {
		return "", fmt.Errorf("%w: %q", planner.ErrInvalidMode, sub.Mode)
	}

	if err := s.entitlements.Authorize(ctx, sub.UserID, sub.Mode); err != nil {
		return "", err
	}

	info, err := s.metadata.Metadata(ctx, sub.URL)
	if err != nil {
		return "", &MetadataError{URL: sub.URL, Err: err}
	}

	job, err := s.registry.Create(&Job{
		ID:          s.newID(),
		SourceURL:   sub.URL,
		Mode:        sub.Mode,
		Transitions: sub.Transitions,
		UserID:      sub.UserID,
		Source:      *info,
	})
	if err != nil {
		return "", err
	}
	logger := s.logger.With("job_id", job.ID)

	if err := s.queue.Enqueue(Task{JobID: job.ID}); err != nil {
		if _, terr := s.registry.Transition(job.ID, Failed{Error: err.Error(), FailedAt: time.Now()}); terr != nil {
			logger.Warn("failed to fail unscheduled job", "error", terr)
		}
		logger.Warn("clip job not scheduled", "error", err)
		return "", err
	}

	if err := s.entitlements.RecordUsage(ctx, sub.UserID); err != nil {
		logger.Warn("failed to record clip usage", "user_id", sub.UserID, "error", err)
	}

	logger.Info("clip job submitted", "url", sub.URL, "mode", sub.Mode, "title", info.Title)
	return job.ID, nil
}

func (s *Service) Status(id string) (*StatusView, error) {
	job, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		ID:          job.ID,
		Status:      job.Status(),
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt(),
		Error:       job.ErrorDetail(),
	}, nil
}

func (s *Service) Info(id string) (*Info, error) {
	job, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	info := &Info{Job: job}
	if job.Status() == StatusCompleted {
		info.DownloadURL = DownloadPath(job.ID)
	}
	return info, nil
}

func (s *Service) List(limit int) []*Job {
	return s.registry.List(limit)
}

// DownloadPath is the API path serving a completed job's artifact.
func DownloadPath(id string) string {
	return "/api/clips/" + id + "/download"
}

// IsQueueError reports whether err means the job could not be scheduled.
func IsQueueError(err error) bool {
	return errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) || errors.Is(err, ErrQueueNotStarted)
}
