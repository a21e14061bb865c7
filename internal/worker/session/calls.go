package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/tracing"
	"github.com/kast-lang/playground/internal/lsp"
	"github.com/kast-lang/playground/internal/worker/iobridge"
	"github.com/kast-lang/playground/internal/worker/protocol"
	"github.com/kast-lang/playground/internal/worker/queue"
)

// call performs one correlated round trip and decodes the response body.
func call[R any](ctx context.Context, s *Session, req protocol.Request) (_ *R, err error) {
	ctx, span := tracing.TraceWorkerCall(ctx, string(req.Kind()), s.id)
	defer func() { tracing.EndSpan(span, err) }()

	f, err := s.calls.Call(ctx, req.Kind(), func(id uint64) error {
		return s.ch.Send(id, req)
	})
	if err != nil {
		return nil, err
	}
	var resp R
	if err := f.DecodeBody(&resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.Kind(), err)
	}
	return &resp, nil
}

// query waits for pending updates so the worker answers against the latest
// content, then calls.
func query[R any](ctx context.Context, s *Session, req protocol.Request) (*R, error) {
	if err := s.updates.WaitForDrain(ctx); err != nil {
		return nil, err
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return call[R](ctx, s, req)
}

// UpdateFile queues new contents for uri and returns immediately. The
// diagnostics handler runs once the worker has processed them, unless a newer
// update for the session superseded this one first.
func (s *Session) UpdateFile(uri, contents string) {
	s.updates.Queue(queue.Job{
		Label: uri,
		Run: func(ctx context.Context) error {
			resp, err := call[protocol.UpdateFileResponse](ctx, s, protocol.UpdateFileRequest{URI: uri, Contents: contents})
			if err != nil {
				return err
			}
			if s.opts.OnDiagnostics != nil {
				s.opts.OnDiagnostics(uri, resp.Diagnostics)
			}
			return nil
		},
	})
}

// Format returns the edits that format uri.
func (s *Session) Format(ctx context.Context, uri string) ([]lsp.TextEdit, error) {
	resp, err := query[protocol.FormatResponse](ctx, s, protocol.FormatRequest{URI: uri})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Hover describes the symbol at pos, or nil when there is nothing to show.
func (s *Session) Hover(ctx context.Context, uri string, pos lsp.Position) (*lsp.Hover, error) {
	resp, err := query[protocol.HoverResponse](ctx, s, protocol.HoverRequest{URI: uri, Position: pos})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Complete lists completion candidates at pos.
func (s *Session) Complete(ctx context.Context, uri string, pos lsp.Position) ([]lsp.CompletionItem, error) {
	resp, err := query[protocol.CompleteResponse](ctx, s, protocol.CompleteRequest{URI: uri, Position: pos})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// PrepareRename returns the range a rename at pos would change, or nil when
// nothing there can be renamed.
func (s *Session) PrepareRename(ctx context.Context, uri string, pos lsp.Position) (*lsp.Range, error) {
	resp, err := query[protocol.PrepareRenameResponse](ctx, s, protocol.PrepareRenameRequest{URI: uri, Position: pos})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Rename renames the symbol at pos to newName.
func (s *Session) Rename(ctx context.Context, uri string, pos lsp.Position, newName string) (*lsp.WorkspaceEdit, error) {
	resp, err := query[protocol.RenameResponse](ctx, s, protocol.RenameRequest{URI: uri, Position: pos, NewName: newName})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// FindDefinition locates where the symbol at pos is defined.
func (s *Session) FindDefinition(ctx context.Context, uri string, pos lsp.Position) ([]lsp.Location, error) {
	resp, err := query[protocol.FindDefinitionResponse](ctx, s, protocol.FindDefinitionRequest{URI: uri, Position: pos})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// InlayHints returns the inline type hints for uri.
func (s *Session) InlayHints(ctx context.Context, uri string) ([]lsp.InlayHint, error) {
	resp, err := query[protocol.InlayHintsResponse](ctx, s, protocol.InlayHintsRequest{URI: uri})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SemanticTokens returns the encoded semantic tokens of uri.
func (s *Session) SemanticTokens(ctx context.Context, uri string) (*lsp.SemanticTokens, error) {
	resp, err := query[protocol.SemanticTokensResponse](ctx, s, protocol.SemanticTokensRequest{URI: uri})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SemanticTokensLegend is fetched once per session. It does not depend on any
// document, so it skips the drain.
func (s *Session) SemanticTokensLegend(ctx context.Context) (lsp.SemanticTokensLegend, error) {
	s.legendMu.Lock()
	cached := s.legend
	s.legendMu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	// shared by every waiting caller
	fetch := context.WithoutCancel(ctx)
	ch := s.legendGroup.DoChan("legend", func() (any, error) {
		resp, err := call[protocol.SemanticTokensLegendResponse](fetch, s, protocol.SemanticTokensLegendRequest{})
		if err != nil {
			return nil, err
		}
		s.legendMu.Lock()
		s.legend = &resp.Legend
		s.legendMu.Unlock()
		return resp.Legend, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return lsp.SemanticTokensLegend{}, res.Err
		}
		return res.Val.(lsp.SemanticTokensLegend), nil
	case <-ctx.Done():
		return lsp.SemanticTokensLegend{}, ctx.Err()
	}
}

// Run executes contents and streams its I/O through h until the worker
// reports completion. Output delivered after Run returns is dropped.
func (s *Session) Run(ctx context.Context, uri, contents string, h iobridge.Handlers) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	if err := s.updates.WaitForDrain(ctx); err != nil {
		return err
	}

	b := iobridge.NewBridge(ctx, h, func(id uint64, line string) error {
		return s.ch.Send(id, protocol.InputReply{Line: line})
	}, s.log)
	s.bridge.Store(b)
	defer func() {
		s.bridge.CompareAndSwap(b, nil)
		b.Close()
	}()

	s.log.Debug("running program", zap.String("uri", uri))
	_, err := call[protocol.RunResponse](ctx, s, protocol.RunRequest{URI: uri, Contents: contents})
	return err
}
