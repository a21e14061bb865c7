// Package iobridge relays a running program's output and input across the
// worker boundary.
//
// On the coordinator side a Bridge forwards output chunks to the UI and turns
// each input request into exactly one reply. On the worker side a Prompter
// suspends the program on a one-shot channel until that reply arrives.
package iobridge

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
)

// OutputHandler receives program output in order.
type OutputHandler func(chunk string)

// InputProvider supplies one line of input for prompt. It may take as long
// as it needs; there is no timeout.
type InputProvider func(ctx context.Context, prompt string) (string, error)

// Handlers are the UI callbacks for one run.
type Handlers struct {
	Output OutputHandler
	Input  InputProvider
}

// Replier sends the line answering the input request with the given id.
type Replier func(id uint64, line string) error

// Bridge is the coordinator side of one run's I/O.
type Bridge struct {
	ctx      context.Context
	cancel   context.CancelFunc
	handlers Handlers
	reply    Replier
	closed   atomic.Bool
	log      *logger.Logger
}

// NewBridge creates a bridge whose input providers observe ctx. Close also
// cancels the context they were given.
func NewBridge(ctx context.Context, h Handlers, reply Replier, log *logger.Logger) *Bridge {
	ctx, cancel := context.WithCancel(ctx)
	return &Bridge{ctx: ctx, cancel: cancel, handlers: h, reply: reply, log: log.WithComponent("io-bridge")}
}

// HandleOutput forwards chunk unless the bridge is closed.
func (b *Bridge) HandleOutput(chunk string) {
	if b.closed.Load() || b.handlers.Output == nil {
		return
	}
	b.handlers.Output(chunk)
}

// HandleInputRequest asks the provider for a line on its own goroutine and
// sends the reply when it resolves. A failed provider sends nothing; the
// program stays suspended until its worker is terminated.
func (b *Bridge) HandleInputRequest(id uint64, prompt string) {
	if b.closed.Load() {
		return
	}
	if b.handlers.Input == nil {
		b.log.Warn("no input provider, answering with an empty line", zap.Uint64("id", id))
		b.send(id, "")
		return
	}
	go func() {
		line, err := b.handlers.Input(b.ctx, prompt)
		if err != nil {
			b.log.Warn("input provider failed", zap.Uint64("id", id), zap.Error(err))
			return
		}
		if b.closed.Load() {
			b.log.Debug("dropping input for finished run", zap.Uint64("id", id))
			return
		}
		b.send(id, line)
	}()
}

// Close stops forwarding and cancels pending input providers; later output
// and input replies are dropped.
func (b *Bridge) Close() {
	b.closed.Store(true)
	b.cancel()
}

func (b *Bridge) send(id uint64, line string) {
	if err := b.reply(id, line); err != nil {
		b.log.Warn("failed to send input reply", zap.Uint64("id", id), zap.Error(err))
	}
}
