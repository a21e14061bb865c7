// Package queue serializes document updates sent to a worker.
//
// At most one update runs at a time and at most one waits behind it. Queuing
// a new update replaces the waiting one, so bursts of edits collapse into the
// most recent content. Queries call WaitForDrain before touching the worker.
package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
)

// Job is one pending update.
type Job struct {
	// Label identifies the job in logs, usually the document URI.
	Label string
	Run   func(ctx context.Context) error
}

// Queue holds the running and waiting update jobs.
type Queue struct {
	mu      sync.Mutex
	running bool
	waiting *Job
	// idle is closed when the queue goes from busy to idle; replaced on the
	// next transition to busy.
	idle   chan struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
}

// New creates an idle queue.
func New(log *logger.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		idle:   idle,
		ctx:    ctx,
		cancel: cancel,
		log:    log.WithComponent("update-queue"),
	}
}

// Queue makes job the waiting update, discarding any update that has not
// started yet, and starts draining if the queue is idle.
func (q *Queue) Queue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.waiting != nil {
		q.log.Debug("superseding waiting update",
			zap.String("dropped", q.waiting.Label),
			zap.String("queued", job.Label))
	}
	q.waiting = &job
	if !q.running {
		q.running = true
		q.idle = make(chan struct{})
		go q.drain()
	}
}

// WaitForDrain blocks until nothing is running and nothing is waiting, or ctx
// ends. Updates queued while waiting extend the wait.
func (q *Queue) WaitForDrain(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports whether an update is running or waiting.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Close drops the waiting update, cancels the running one and releases all
// waiters. The queue accepts no further jobs.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.waiting = nil
	q.mu.Unlock()
	q.cancel()
}

// drain runs jobs one after another until none is waiting.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		job := q.waiting
		q.waiting = nil
		if job == nil || q.closed {
			q.running = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		if err := q.run(job); err != nil && q.ctx.Err() == nil {
			q.log.Warn("update failed", zap.String("label", job.Label), zap.Error(err))
		}
	}
}

func (q *Queue) run(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("update panicked", zap.String("label", job.Label), zap.Any("panic", r))
			err = nil
		}
	}()
	return job.Run(q.ctx)
}
