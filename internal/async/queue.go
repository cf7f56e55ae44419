// Package async runs document extraction jobs on a bounded worker
// pool behind a buffered channel.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one queued document extraction.
type Job struct {
	JobID       string // store job ID
	Path        string
	SubmittedAt time.Time
}

// Handler executes a job. Errors are terminal for the job; the handler
// owns status bookkeeping.
type Handler interface {
	HandleJob(ctx context.Context, job Job) error
}

type JobQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*JobQueue)

func WithWorkers(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *JobQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewJobQueue(handler Handler, logger *slog.Logger, opts ...Option) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &JobQueue{
		handler: handler,
		logger:  logger,
		workers: 2,
		timeout: 15 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *JobQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker_started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.handler.HandleJob(ctx, job)
					cancel()

					if err != nil {
						q.logger.Error("queue.job_failed",
							"worker_id", workerID,
							"job_id", job.JobID,
							"path", job.Path,
							"error", err,
						)
					} else {
						q.logger.Info("queue.job_ok",
							"worker_id", workerID,
							"job_id", job.JobID,
							"path", job.Path,
						)
					}
				}

				q.logger.Info("queue.worker_stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a job. When the buffer is full this blocks, which is
// the backpressure the watcher relies on.
func (q *JobQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue_after_shutdown", "job_id", job.JobID, "path", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "job_id", job.JobID, "path", job.Path)
	default:
		q.logger.Warn("queue.full_backpressure", "job_id", job.JobID, "path", job.Path)
		q.ch <- job
	}
	return nil
}

// Shutdown stops accepting jobs and waits for in-flight ones, bounded
// by ctx.
func (q *JobQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown_interrupted")
	case <-done:
		q.logger.Info("queue.drained")
	}
}
