package iobridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPrompterClosed is returned by Ask once the worker shuts down.
var ErrPrompterClosed = errors.New("input channel closed")

// Asker sends an input request with the given id.
type Asker func(id uint64, prompt string) error

// Prompter is the worker side of program input. Each Ask owns a one-shot
// channel keyed by a fresh id; Resolve completes it exactly once.
type Prompter struct {
	ask    Asker
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan string
	closed  bool
}

// NewPrompter creates a prompter that sends requests through ask.
func NewPrompter(ask Asker) *Prompter {
	return &Prompter{ask: ask, pending: make(map[uint64]chan string)}
}

// Ask sends prompt and blocks until the matching reply, ctx end or Close.
func (p *Prompter) Ask(ctx context.Context, prompt string) (string, error) {
	id := p.nextID.Add(1)
	ch := make(chan string, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrPrompterClosed
	}
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.ask(id, prompt); err != nil {
		return "", err
	}

	select {
	case line, ok := <-ch:
		if !ok {
			return "", ErrPrompterClosed
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Resolve hands line to the Ask waiting under id. It reports false when no
// such Ask is waiting, including when it was already resolved.
func (p *Prompter) Resolve(id uint64, line string) bool {
	p.mu.Lock()
	ch, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- line
	return true
}

// Close fails every waiting Ask and all later ones.
func (p *Prompter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
}
