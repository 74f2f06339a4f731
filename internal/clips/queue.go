package clips

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultWorkers       = 5
	DefaultQueueCapacity = 100
)

// Task identifies one job to run in the background.
type Task struct {
	JobID string
}

// Processor runs a Task. It is called from queue workers.
type Processor interface {
	Process(ctx context.Context, task Task) error
}

// Queue is a bounded in-memory queue drained by a fixed worker pool.
type Queue struct {
	log        *slog.Logger
	ch         chan Task
	workers    int
	wg         sync.WaitGroup
	cancelOnce sync.Once
	cancel     context.CancelFunc
	started    bool
	closed     bool
	mu         sync.Mutex
}

func NewQueue(logger *slog.Logger, capacity int, workers int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		log:     logger.With("component", "queue"),
		ch:      make(chan Task, capacity),
		workers: workers,
	}
}

// Start launches the workers. Cancelling ctx stops them.
func (q *Queue) Start(ctx context.Context, p Processor) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return errors.New("queue already started")
	}
	if q.closed {
		return ErrQueueClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, p, i)
	}
	q.started = true
	return nil
}

func (q *Queue) worker(ctx context.Context, p Processor, idx int) {
	defer q.wg.Done()
	log := q.log.With("worker", idx)
	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopping due to context cancellation")
			return
		case task, ok := <-q.ch:
			if !ok {
				log.Debug("queue closed, worker exiting")
				return
			}
			jobLog := log.With("job_id", task.JobID)
			start := time.Now()
			if err := p.Process(ctx, task); err != nil {
				jobLog.Error("job processing failed", "error", err, "duration", time.Since(start))
			} else {
				jobLog.Info("job processed", "duration", time.Since(start))
			}
		}
	}
}

// Enqueue never blocks; it fails with ErrQueueFull when capacity is reached.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if !q.started {
		return ErrQueueNotStarted
	}
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending is the number of tasks waiting for a worker.
func (q *Queue) Pending() int {
	return len(q.ch)
}

// Shutdown stops accepting work, cancels the context of running tasks and
// waits for workers to return up to deadline. A deadline <= 0 waits
// indefinitely. Buffered tasks may be dropped or run with a cancelled context.
func (q *Queue) Shutdown(deadline time.Duration) {
	q.cancelOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		if q.cancel != nil {
			q.cancel()
		}
		close(q.ch)
		q.mu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			q.wg.Wait()
		}()

		if deadline <= 0 {
			<-done
			return
		}

		timer := time.NewTimer(deadline)
		defer timer.Stop()
		select {
		case <-done:
			return
		case <-timer.C:
			q.log.Warn("queue shutdown deadline reached; workers may still be running")
		}
	})
}
