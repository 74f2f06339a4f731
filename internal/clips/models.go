package clips

import (
	"slices"
	"time"

	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/planner"
)

type Status string

const (
	StatusProcessing  Status = "processing"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusProcessing:
		return 0
	case StatusDownloading:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// State is the lifecycle stage of a job. Each stage carries only the
// fields that are valid for it.
type State interface {
	Status() Status
	isState()
}

type Processing struct{}

type Downloading struct {
	StartedAt time.Time
}

type Completed struct {
	ArtifactPath   string
	CompletedAt    time.Time
	Plan           planner.Plan
	SourceDuration float64
}

type Failed struct {
	Error    string
	FailedAt time.Time
}

func (Processing) Status() Status  { return StatusProcessing }
func (Downloading) Status() Status { return StatusDownloading }
func (Completed) Status() Status   { return StatusCompleted }
func (Failed) Status() Status      { return StatusFailed }

func (Processing) isState()  {}
func (Downloading) isState() {}
func (Completed) isState()   {}
func (Failed) isState()      {}

// Job is an immutable snapshot. The registry replaces the whole value on
// every transition; callers must not modify a Job they did not create.
type Job struct {
	ID          string
	SourceURL   string
	Mode        planner.Mode
	Transitions bool
	UserID      string
	Source      media.SourceInfo
	CreatedAt   time.Time
	State       State
}

func (j *Job) Status() Status {
	return j.State.Status()
}

func (j *Job) CompletedAt() *time.Time {
	if c, ok := j.State.(Completed); ok {
		t := c.CompletedAt
		return &t
	}
	return nil
}

func (j *Job) ErrorDetail() string {
	if f, ok := j.State.(Failed); ok {
		return f.Error
	}
	return ""
}

func (j *Job) ArtifactPath() string {
	if c, ok := j.State.(Completed); ok {
		return c.ArtifactPath
	}
	return ""
}

func (j *Job) Plan() planner.Plan {
	if c, ok := j.State.(Completed); ok {
		return slices.Clone(c.Plan)
	}
	return nil
}

// UpdatedAt is the time of the most recent transition.
func (j *Job) UpdatedAt() time.Time {
	switch s := j.State.(type) {
	case Downloading:
		return s.StartedAt
	case Completed:
		return s.CompletedAt
	case Failed:
		return s.FailedAt
	}
	return j.CreatedAt
}

func (j *Job) with(state State) *Job {
	next := *j
	next.State = state
	return &next
}
