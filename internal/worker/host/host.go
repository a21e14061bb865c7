// Package host runs an engine behind a worker channel. It is the code that
// lives inside the isolated execution context: it owns the engine and every
// document's analysis state, and answers requests strictly in arrival order.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/engine"
	"github.com/kast-lang/playground/internal/worker/channel"
	"github.com/kast-lang/playground/internal/worker/iobridge"
	"github.com/kast-lang/playground/internal/worker/protocol"
)

// Host serves one coordinator connection.
type Host struct {
	engine engine.Engine
	ch     *channel.Channel
	// states is only touched from the channel's delivery goroutine.
	states   map[string]engine.State
	prompter *iobridge.Prompter

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	runs    sync.WaitGroup
	log     *logger.Logger
}

// Serve announces readiness with init and handles requests until the
// coordinator closes the connection or ctx ends.
func Serve(ctx context.Context, conn io.ReadWriteCloser, codec protocol.Codec, eng engine.Engine, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := &Host{
		engine: eng,
		states: make(map[string]engine.State),
		ctx:    ctx,
		cancel: cancel,
		log:    log.WithComponent("worker-host"),
	}
	h.ch = channel.New(conn, codec, log)
	h.prompter = iobridge.NewPrompter(func(id uint64, prompt string) error {
		return h.ch.Send(id, protocol.InputRequest{Prompt: prompt})
	})
	h.ch.Start(h.handle)

	if err := h.ch.Send(0, protocol.Init{Version: eng.Version()}); err != nil {
		h.ch.Terminate()
		return fmt.Errorf("send init: %w", err)
	}

	select {
	case <-ctx.Done():
		h.ch.Terminate()
	case <-h.ch.Done():
	}
	cancel()
	h.prompter.Close()
	h.runs.Wait()

	err := h.ch.Err()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, channel.ErrTerminated) {
		return nil
	}
	return err
}

func (h *Host) send(id uint64, msg protocol.Message) {
	if err := h.ch.Send(id, msg); err != nil {
		h.log.Error("failed to send message", zap.String("kind", string(msg.Kind())), zap.Error(err))
	}
}

func (h *Host) handle(f *protocol.Frame) {
	req, err := protocol.DecodeRequest(f)
	if err != nil {
		h.log.Warn("unsupported request", zap.String("kind", string(f.Kind)), zap.Error(err))
		if f.ID != 0 {
			h.send(f.ID, protocol.ErrorResponse{Message: err.Error()})
		}
		return
	}

	switch r := req.(type) {
	case *protocol.UpdateFileRequest:
		h.answer(f.ID, protocol.UpdateFileResponse{URI: r.URI}, func() protocol.Response {
			state := h.engine.ProcessFile(r.URI, r.Contents)
			h.states[r.URI] = state
			return protocol.UpdateFileResponse{URI: r.URI, Diagnostics: h.engine.Diagnostics(state)}
		})
	case *protocol.FormatRequest:
		h.withState(f.ID, r.URI, protocol.FormatResponse{}, func(s engine.State) protocol.Response {
			return protocol.FormatResponse{Result: h.engine.Format(s)}
		})
	case *protocol.HoverRequest:
		h.withState(f.ID, r.URI, protocol.HoverResponse{}, func(s engine.State) protocol.Response {
			return protocol.HoverResponse{Result: h.engine.Hover(s, r.Position)}
		})
	case *protocol.CompleteRequest:
		h.withState(f.ID, r.URI, protocol.CompleteResponse{}, func(s engine.State) protocol.Response {
			return protocol.CompleteResponse{Result: h.engine.Complete(s, r.Position)}
		})
	case *protocol.PrepareRenameRequest:
		h.withState(f.ID, r.URI, protocol.PrepareRenameResponse{}, func(s engine.State) protocol.Response {
			return protocol.PrepareRenameResponse{Result: h.engine.PrepareRename(s, r.Position)}
		})
	case *protocol.RenameRequest:
		h.withState(f.ID, r.URI, protocol.RenameResponse{}, func(s engine.State) protocol.Response {
			return protocol.RenameResponse{Result: h.engine.Rename(s, r.Position, r.NewName)}
		})
	case *protocol.FindDefinitionRequest:
		h.withState(f.ID, r.URI, protocol.FindDefinitionResponse{}, func(s engine.State) protocol.Response {
			return protocol.FindDefinitionResponse{Result: h.engine.FindDefinition(s, r.Position)}
		})
	case *protocol.InlayHintsRequest:
		h.withState(f.ID, r.URI, protocol.InlayHintsResponse{}, func(s engine.State) protocol.Response {
			return protocol.InlayHintsResponse{Result: h.engine.InlayHints(s)}
		})
	case *protocol.SemanticTokensLegendRequest:
		h.answer(f.ID, protocol.SemanticTokensLegendResponse{}, func() protocol.Response {
			return protocol.SemanticTokensLegendResponse{Legend: h.engine.SemanticTokensLegend()}
		})
	case *protocol.SemanticTokensRequest:
		h.withState(f.ID, r.URI, protocol.SemanticTokensResponse{}, func(s engine.State) protocol.Response {
			return protocol.SemanticTokensResponse{Result: h.engine.SemanticTokens(s)}
		})
	case *protocol.RunRequest:
		h.startRun(f.ID, r)
	case *protocol.InputReply:
		if !h.prompter.Resolve(f.ID, r.Line) {
			h.log.Warn("input reply for no pending prompt", zap.Uint64("id", f.ID))
		}
	default:
		h.log.Warn("unhandled request", zap.String("kind", string(f.Kind)))
	}
}

// answer sends what fn returns, or fallback when fn panics.
func (h *Host) answer(id uint64, fallback protocol.Response, fn func() protocol.Response) {
	resp := fallback
	func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error("engine panicked", zap.String("kind", string(fallback.Kind())), zap.Any("panic", r))
			}
		}()
		resp = fn()
	}()
	h.send(id, resp)
}

// withState answers with fallback when uri was never processed.
func (h *Host) withState(id uint64, uri string, fallback protocol.Response, fn func(engine.State) protocol.Response) {
	state, ok := h.states[uri]
	if !ok {
		h.log.Debug("request for unknown document", zap.String("uri", uri), zap.String("kind", string(fallback.Kind())))
		h.send(id, fallback)
		return
	}
	h.answer(id, fallback, func() protocol.Response { return fn(state) })
}
