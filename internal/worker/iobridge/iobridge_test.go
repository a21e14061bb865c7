package iobridge

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

type replies struct {
	mu   sync.Mutex
	got  map[uint64]string
	sent chan struct{}
}

func newReplies() *replies {
	return &replies{got: make(map[uint64]string), sent: make(chan struct{}, 8)}
}

func (r *replies) reply(id uint64, line string) error {
	r.mu.Lock()
	r.got[id] = line
	r.mu.Unlock()
	r.sent <- struct{}{}
	return nil
}

func TestBridge_ForwardsOutputInOrder(t *testing.T) {
	var out []string
	b := NewBridge(context.Background(), Handlers{Output: func(c string) { out = append(out, c) }}, newReplies().reply, logger.NewNop())
	for _, c := range []string{"a", "b", "c"} {
		b.HandleOutput(c)
	}
	b.Close()
	b.HandleOutput("late")
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestBridge_InputReplyCarriesRequestID(t *testing.T) {
	r := newReplies()
	b := NewBridge(context.Background(), Handlers{Input: func(ctx context.Context, prompt string) (string, error) {
		return "Alice", nil
	}}, r.reply, logger.NewNop())

	b.HandleInputRequest(17, "name?")
	select {
	case <-r.sent:
	case <-time.After(time.Second):
		t.Fatal("no reply sent")
	}
	assert.Equal(t, map[uint64]string{17: "Alice"}, r.got)
}

func TestBridge_ProviderFailureSendsNothing(t *testing.T) {
	r := newReplies()
	called := make(chan struct{})
	b := NewBridge(context.Background(), Handlers{Input: func(context.Context, string) (string, error) {
		close(called)
		return "", errors.New("user closed tab")
	}}, r.reply, logger.NewNop())

	b.HandleInputRequest(1, "")
	<-called
	select {
	case <-r.sent:
		t.Fatal("reply sent after provider failure")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBridge_ClosedDropsLateInput(t *testing.T) {
	r := newReplies()
	release := make(chan struct{})
	b := NewBridge(context.Background(), Handlers{Input: func(context.Context, string) (string, error) {
		<-release
		return "late", nil
	}}, r.reply, logger.NewNop())

	b.HandleInputRequest(1, "")
	b.Close()
	close(release)
	select {
	case <-r.sent:
		t.Fatal("reply sent for a closed bridge")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBridge_CloseCancelsPendingProvider(t *testing.T) {
	r := newReplies()
	waiting := make(chan struct{})
	ended := make(chan error, 1)
	b := NewBridge(context.Background(), Handlers{Input: func(ctx context.Context, _ string) (string, error) {
		close(waiting)
		<-ctx.Done()
		ended <- ctx.Err()
		return "", ctx.Err()
	}}, r.reply, logger.NewNop())

	b.HandleInputRequest(3, "name?")
	<-waiting
	b.Close()

	select {
	case err := <-ended:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("provider still waiting after Close")
	}
	select {
	case <-r.sent:
		t.Fatal("reply sent for a closed bridge")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPrompter_AskResolve(t *testing.T) {
	asked := make(chan uint64, 1)
	p := NewPrompter(func(id uint64, prompt string) error {
		assert.Equal(t, "name?", prompt)
		asked <- id
		return nil
	})

	result := make(chan string, 1)
	go func() {
		line, err := p.Ask(context.Background(), "name?")
		require.NoError(t, err)
		result <- line
	}()

	id := <-asked
	assert.False(t, p.Resolve(id+100, "stray"))
	assert.True(t, p.Resolve(id, "Alice"))
	assert.False(t, p.Resolve(id, "again"), "one-shot")
	assert.Equal(t, "Alice", <-result)
}

func TestPrompter_CloseAndCancel(t *testing.T) {
	p := NewPrompter(func(uint64, string) error { return nil })

	errs := make(chan error, 1)
	go func() {
		_, err := p.Ask(context.Background(), "")
		errs <- err
	}()
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.pending) == 1
	}, time.Second, time.Millisecond)

	p.Close()
	assert.ErrorIs(t, <-errs, ErrPrompterClosed)
	_, err := p.Ask(context.Background(), "")
	assert.ErrorIs(t, err, ErrPrompterClosed)

	q := NewPrompter(func(uint64, string) error { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Ask(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
