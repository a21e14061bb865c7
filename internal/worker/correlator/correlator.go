// Package correlator matches worker responses to the calls that caused them.
//
// Each call gets a fresh id and a one-shot waiter. A response resolves the
// waiter with the same id; Close rejects every waiter still outstanding.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/worker/protocol"
)

var (
	// ErrClosed is used by Close when no more specific reason is given.
	ErrClosed = errors.New("correlator closed")
	// ErrKindMismatch resolves a call whose response carried a different kind.
	ErrKindMismatch = errors.New("response kind does not match request")
	// ErrRemote resolves a call the worker answered with an error frame.
	ErrRemote = errors.New("worker rejected request")
)

type result struct {
	frame *protocol.Frame
	err   error
}

type pendingCall struct {
	kind protocol.Kind
	ch   chan result
}

// Correlator tracks outstanding calls by id.
type Correlator struct {
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*pendingCall
	closed  error

	log *logger.Logger
}

// New creates an empty correlator.
func New(log *logger.Logger) *Correlator {
	return &Correlator{
		pending: make(map[uint64]*pendingCall),
		log:     log.WithComponent("correlator"),
	}
}

// Call registers a waiter for a response of the given kind, invokes send with
// the allocated id and blocks until the response, ctx cancellation or Close.
// The waiter is registered before send runs, so a fast response is never lost.
func (c *Correlator) Call(ctx context.Context, kind protocol.Kind, send func(id uint64) error) (*protocol.Frame, error) {
	id := c.nextID.Add(1)
	call := &pendingCall{kind: kind, ch: make(chan result, 1)}

	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = call
	c.mu.Unlock()

	defer c.forget(id)

	if err := send(id); err != nil {
		return nil, fmt.Errorf("send %s: %w", kind, err)
	}

	select {
	case r := <-call.ch:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver resolves the waiter registered under f.ID. It reports false when no
// call is waiting for that id.
func (c *Correlator) Deliver(f *protocol.Frame) bool {
	c.mu.Lock()
	call, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("response for unknown call",
			zap.Uint64("id", f.ID),
			zap.String("kind", string(f.Kind)))
		return false
	}

	switch {
	case f.Kind == call.kind:
		call.ch <- result{frame: f}
	case f.Kind == protocol.KindError:
		call.ch <- result{err: remoteError(f)}
	default:
		c.log.Warn("response kind mismatch",
			zap.Uint64("id", f.ID),
			zap.String("expected", string(call.kind)),
			zap.String("got", string(f.Kind)))
		call.ch <- result{err: fmt.Errorf("%w: expected %s, got %s", ErrKindMismatch, call.kind, f.Kind)}
	}
	return true
}

// Close rejects all outstanding calls with err (ErrClosed when nil) and makes
// every later Call fail the same way. Only the first Close has effect.
func (c *Correlator) Close(err error) {
	if err == nil {
		err = ErrClosed
	}
	c.mu.Lock()
	if c.closed != nil {
		c.mu.Unlock()
		return
	}
	c.closed = err
	pending := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	for _, call := range pending {
		call.ch <- result{err: err}
	}
}

// Pending returns the number of outstanding calls.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func remoteError(f *protocol.Frame) error {
	var body protocol.ErrorResponse
	if err := f.DecodeBody(&body); err != nil || body.Message == "" {
		return ErrRemote
	}
	return fmt.Errorf("%w: %s", ErrRemote, body.Message)
}
