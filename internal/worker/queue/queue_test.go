package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kast-lang/playground/internal/common/logger"
)

func setupQueue(t *testing.T) *Queue {
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)
	q := New(log)
	t.Cleanup(q.Close)
	return q
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) job(label string, gate <-chan struct{}) Job {
	return Job{Label: label, Run: func(ctx context.Context) error {
		if gate != nil {
			<-gate
		}
		r.mu.Lock()
		r.seen = append(r.seen, label)
		r.mu.Unlock()
		return nil
	}}
}

// blocking returns a job that signals when it starts and then waits for gate.
func (r *recorder) blocking(label string, gate <-chan struct{}) (Job, <-chan struct{}) {
	started := make(chan struct{})
	inner := r.job(label, gate)
	return Job{Label: label, Run: func(ctx context.Context) error {
		close(started)
		return inner.Run(ctx)
	}}, started
}

func (r *recorder) labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestQueue_CoalescesWaitingJobs(t *testing.T) {
	q := setupQueue(t)
	rec := &recorder{}
	gate := make(chan struct{})

	first, started := rec.blocking("U1", gate)
	q.Queue(first)
	// U1 is now running and blocked; U2 and U3 compete for the waiting slot
	<-started
	q.Queue(rec.job("U2", nil))
	q.Queue(rec.job("U3", nil))
	close(gate)

	require.NoError(t, q.WaitForDrain(context.Background()))
	assert.Equal(t, []string{"U1", "U3"}, rec.labels())
}

func TestQueue_BurstBeforeStartKeepsOnlyLast(t *testing.T) {
	q := setupQueue(t)
	rec := &recorder{}
	gate := make(chan struct{})

	// hold the drain on a first job so the burst lands in the waiting slot
	warmup, started := rec.blocking("warmup", gate)
	q.Queue(warmup)
	<-started
	for _, l := range []string{"U1", "U2", "U3"} {
		q.Queue(rec.job(l, nil))
	}
	close(gate)

	require.NoError(t, q.WaitForDrain(context.Background()))
	assert.Equal(t, []string{"warmup", "U3"}, rec.labels())
}

func TestQueue_OneAtATime(t *testing.T) {
	q := setupQueue(t)
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	job := Job{Label: "f", Run: func(ctx context.Context) error {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}}
	for i := 0; i < 50; i++ {
		q.Queue(job)
	}
	require.NoError(t, q.WaitForDrain(context.Background()))
	assert.Equal(t, 1, maxSeen)
}

func TestQueue_WaitForDrain(t *testing.T) {
	t.Run("idle queue returns immediately", func(t *testing.T) {
		q := setupQueue(t)
		assert.NoError(t, q.WaitForDrain(context.Background()))
	})

	t.Run("waits for running and waiting jobs", func(t *testing.T) {
		q := setupQueue(t)
		rec := &recorder{}
		gate := make(chan struct{})
		first, started := rec.blocking("U1", gate)
		q.Queue(first)
		<-started
		q.Queue(rec.job("U2", nil))

		drained := make(chan struct{})
		go func() {
			_ = q.WaitForDrain(context.Background())
			close(drained)
		}()

		select {
		case <-drained:
			t.Fatal("drain resolved while U1 was still running")
		case <-time.After(20 * time.Millisecond):
		}
		close(gate)
		<-drained
		assert.Equal(t, []string{"U1", "U2"}, rec.labels())
	})

	t.Run("respects context", func(t *testing.T) {
		q := setupQueue(t)
		gate := make(chan struct{})
		defer close(gate)
		q.Queue((&recorder{}).job("slow", gate))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, q.WaitForDrain(ctx), context.DeadlineExceeded)
	})
}

func TestQueue_FailingJobDoesNotStopDrain(t *testing.T) {
	q := setupQueue(t)
	rec := &recorder{}
	gate := make(chan struct{})
	started := make(chan struct{})
	q.Queue(Job{Label: "bad", Run: func(context.Context) error {
		close(started)
		<-gate
		return errors.New("engine exploded")
	}})
	<-started
	q.Queue(rec.job("good", nil))
	close(gate)

	require.NoError(t, q.WaitForDrain(context.Background()))
	assert.Equal(t, []string{"good"}, rec.labels())
}

func TestQueue_PanicDoesNotStopDrain(t *testing.T) {
	q := setupQueue(t)
	rec := &recorder{}
	gate := make(chan struct{})
	started := make(chan struct{})
	q.Queue(Job{Label: "bad", Run: func(context.Context) error {
		close(started)
		<-gate
		panic("boom")
	}})
	<-started
	q.Queue(rec.job("good", nil))
	close(gate)

	require.NoError(t, q.WaitForDrain(context.Background()))
	assert.Equal(t, []string{"good"}, rec.labels())
}

func TestQueue_CloseCancelsAndReleases(t *testing.T) {
	q := setupQueue(t)
	cancelled := make(chan struct{})
	started := make(chan struct{})
	q.Queue(Job{Label: "long", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}})
	<-started
	rec := &recorder{}
	q.Queue(rec.job("never", nil))

	q.Close()
	<-cancelled
	require.NoError(t, q.WaitForDrain(context.Background()))
	assert.Empty(t, rec.labels())

	q.Queue(rec.job("after-close", nil))
	assert.False(t, q.Busy())
}
