package clips

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("clip not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateJob      = errors.New("job already exists")
	ErrEmptyPlan         = errors.New("source too short for the requested mode")

	ErrQueueFull       = errors.New("queue is full")
	ErrQueueNotStarted = errors.New("queue not started")
	ErrQueueClosed     = errors.New("queue is shut down")
)

// MetadataError is returned by Submit when source metadata cannot be read.
// No job exists when it is returned.
type MetadataError struct {
	URL string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("failed to read video metadata: %v", e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ClipGenerationError wraps any failure inside the assembly pipeline.
type ClipGenerationError struct {
	JobID string
	Stage string
	Err   error
}

func (e *ClipGenerationError) Error() string {
	return fmt.Sprintf("clip generation failed at %s: %v", e.Stage, e.Err)
}

func (e *ClipGenerationError) Unwrap() error { return e.Err }
