package clips

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Journal mirrors registry changes into durable storage. The registry
// stays the source of truth; journal errors are only logged.
type Journal interface {
	RecordCreated(ctx context.Context, job *Job) error
	RecordTransition(ctx context.Context, job *Job) error
}

// Registry holds every job of this process keyed by id. Readers get whole
// snapshots, so a Completed job is never seen without its artifact path.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string

	journal Journal
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry. journal may be nil.
func NewRegistry(journal Journal, logger *slog.Logger) *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		journal: journal,
		logger:  logger.With("component", "registry"),
		now:     time.Now,
	}
}

// Create stores job in the Processing state. CreatedAt is set when zero.
func (r *Registry) Create(job *Job) (*Job, error) {
	snap := *job
	snap.State = Processing{}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = r.now()
	}

	r.mu.Lock()
	if _, exists := r.jobs[snap.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, snap.ID)
	}
	r.jobs[snap.ID] = &snap
	r.order = append(r.order, snap.ID)
	r.mu.Unlock()

	if r.journal != nil {
		if err := r.journal.RecordCreated(context.Background(), &snap); err != nil {
			r.logger.Warn("failed to journal job creation", "job_id", snap.ID, "error", err)
		}
	}
	return &snap, nil
}

func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

// List returns up to limit jobs, newest first. limit <= 0 means all.
func (r *Registry) List(limit int) []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.order)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*Job, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.jobs[r.order[i]])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Transition moves a job forward to next. Status never regresses and
// terminal states are final; anything else returns ErrInvalidTransition.
func (r *Registry) Transition(id string, next State) (*Job, error) {
	r.mu.Lock()
	cur, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	from, to := cur.Status(), next.Status()
	if to.rank() <= from.rank() {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	updated := cur.with(next)
	r.jobs[id] = updated
	r.mu.Unlock()

	r.logger.Debug("job transitioned", "job_id", id, "from", from, "to", to)

	if r.journal != nil {
		if err := r.journal.RecordTransition(context.Background(), updated); err != nil {
			r.logger.Warn("failed to journal transition", "job_id", id, "status", to, "error", err)
		}
	}
	return updated, nil
}
