package websocket

import (
	"context"

	apperrors "github.com/kast-lang/playground/internal/common/errors"
	"github.com/kast-lang/playground/internal/lsp"
	"github.com/kast-lang/playground/internal/worker/iobridge"
	"github.com/kast-lang/playground/internal/worker/session"
	ws "github.com/kast-lang/playground/pkg/websocket"
)

// Register adds the workspace's actions to d.
func (w *Workspace) Register(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionFileUpdate, w.handleFileUpdate)

	d.RegisterFunc(ws.ActionLSPFormat, documentQuery(w, func(ctx context.Context, s *session.Session, uri string) (any, error) {
		edits, err := s.Format(ctx, uri)
		return toEditorEdits(edits), err
	}))
	d.RegisterFunc(ws.ActionLSPInlayHints, documentQuery(w, func(ctx context.Context, s *session.Session, uri string) (any, error) {
		hints, err := s.InlayHints(ctx, uri)
		return toEditorInlayHints(hints), err
	}))
	d.RegisterFunc(ws.ActionLSPSemanticTokens, documentQuery(w, func(ctx context.Context, s *session.Session, uri string) (any, error) {
		return s.SemanticTokens(ctx, uri)
	}))

	d.RegisterFunc(ws.ActionLSPHover, positionQuery(w, func(ctx context.Context, s *session.Session, uri string, pos lsp.Position) (any, error) {
		h, err := s.Hover(ctx, uri, pos)
		return toEditorHover(h), err
	}))
	d.RegisterFunc(ws.ActionLSPComplete, positionQuery(w, func(ctx context.Context, s *session.Session, uri string, pos lsp.Position) (any, error) {
		return s.Complete(ctx, uri, pos)
	}))
	d.RegisterFunc(ws.ActionLSPPrepareRename, positionQuery(w, func(ctx context.Context, s *session.Session, uri string, pos lsp.Position) (any, error) {
		r, err := s.PrepareRename(ctx, uri, pos)
		return toEditorRange(r), err
	}))
	d.RegisterFunc(ws.ActionLSPDefinition, positionQuery(w, func(ctx context.Context, s *session.Session, uri string, pos lsp.Position) (any, error) {
		locs, err := s.FindDefinition(ctx, uri, pos)
		return toEditorLocations(locs), err
	}))

	d.RegisterFunc(ws.ActionLSPRename, w.handleRename)
	d.RegisterFunc(ws.ActionLSPSemanticTokensLegend, w.handleLegend)
	d.RegisterFunc(ws.ActionRunStart, w.handleRunStart)
	d.RegisterFunc(ws.ActionRunInput, w.handleRunInput)
}

func parse(msg *ws.Message, v any) error {
	if err := msg.ParsePayload(v); err != nil {
		return apperrors.BadRequest("invalid payload: " + err.Error())
	}
	return nil
}

func requireURI(uri string) error {
	if uri == "" {
		return apperrors.BadRequest("uri is required")
	}
	return nil
}

func respond(msg *ws.Message, result any, err error) (*ws.Message, error) {
	if err != nil {
		return nil, err
	}
	return ws.NewResponse(msg.ID, msg.Action, Result{Result: result})
}

func documentQuery(w *Workspace, q func(context.Context, *session.Session, string) (any, error)) ws.HandlerFunc {
	return func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var req DocumentRequest
		if err := parse(msg, &req); err != nil {
			return nil, err
		}
		if err := requireURI(req.URI); err != nil {
			return nil, err
		}
		s, err := w.session(ctx)
		if err != nil {
			return nil, err
		}
		result, err := q(ctx, s, req.URI)
		return respond(msg, result, err)
	}
}

func positionQuery(w *Workspace, q func(context.Context, *session.Session, string, lsp.Position) (any, error)) ws.HandlerFunc {
	return func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var req PositionRequest
		if err := parse(msg, &req); err != nil {
			return nil, err
		}
		if err := requireURI(req.URI); err != nil {
			return nil, err
		}
		if !req.Position.Valid() {
			return nil, apperrors.BadRequest("position is out of range")
		}
		s, err := w.session(ctx)
		if err != nil {
			return nil, err
		}
		result, err := q(ctx, s, req.URI, req.Position.ToLSP())
		return respond(msg, result, err)
	}
}

func (w *Workspace) handleFileUpdate(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req FileUpdateRequest
	if err := parse(msg, &req); err != nil {
		return nil, err
	}
	if err := requireURI(req.URI); err != nil {
		return nil, err
	}
	s, err := w.session(ctx)
	if err != nil {
		return nil, err
	}
	s.UpdateFile(req.URI, req.Contents)
	return ws.NewResponse(msg.ID, msg.Action, map[string]any{"queued": true})
}

func (w *Workspace) handleRename(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req RenameRequest
	if err := parse(msg, &req); err != nil {
		return nil, err
	}
	if err := requireURI(req.URI); err != nil {
		return nil, err
	}
	if !req.Position.Valid() {
		return nil, apperrors.BadRequest("position is out of range")
	}
	if req.NewName == "" {
		return nil, apperrors.BadRequest("newName is required")
	}
	s, err := w.session(ctx)
	if err != nil {
		return nil, err
	}
	edit, err := s.Rename(ctx, req.URI, req.Position.ToLSP(), req.NewName)
	return respond(msg, toEditorWorkspaceEdit(edit), err)
}

func (w *Workspace) handleLegend(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	s, err := w.session(ctx)
	if err != nil {
		return nil, err
	}
	legend, err := s.SemanticTokensLegend(ctx)
	return respond(msg, legend, err)
}

// handleRunStart answers when the program finishes, however long that takes.
func (w *Workspace) handleRunStart(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req RunStartRequest
	if err := parse(msg, &req); err != nil {
		return nil, err
	}
	if req.URI == "" {
		req.URI = "file:///main.ks"
	}
	err := w.runs.Run(ctx, req.URI, req.Contents, iobridge.Handlers{
		Output: func(chunk string) {
			w.notify(ws.ActionRunOutput, OutputNotification{Chunk: chunk})
		},
		Input: w.askUser,
	})
	result, err := runResult(err)
	if err != nil {
		return nil, err
	}
	return ws.NewResponse(msg.ID, msg.Action, result)
}

func (w *Workspace) handleRunInput(_ context.Context, msg *ws.Message) (*ws.Message, error) {
	var req RunInputRequest
	if err := parse(msg, &req); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		return nil, apperrors.BadRequest("request_id is required")
	}
	if err := w.answer(req.RequestID, req.Line); err != nil {
		return nil, err
	}
	return ws.NewResponse(msg.ID, msg.Action, map[string]any{"accepted": true})
}
