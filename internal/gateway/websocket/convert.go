package websocket

import "github.com/kast-lang/playground/internal/lsp"

func toEditorDiagnostics(in []lsp.Diagnostic) []EditorDiagnostic {
	out := make([]EditorDiagnostic, 0, len(in))
	for _, d := range in {
		out = append(out, EditorDiagnostic{
			Range:    lsp.ToEditorRange(d.Range),
			Severity: d.Severity,
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}

func toEditorEdits(in []lsp.TextEdit) []EditorTextEdit {
	out := make([]EditorTextEdit, 0, len(in))
	for _, e := range in {
		out = append(out, EditorTextEdit{Range: lsp.ToEditorRange(e.Range), Text: e.NewText})
	}
	return out
}

func toEditorHover(h *lsp.Hover) *EditorHover {
	if h == nil {
		return nil
	}
	out := &EditorHover{Contents: h.Contents}
	if h.Range != nil {
		r := lsp.ToEditorRange(*h.Range)
		out.Range = &r
	}
	return out
}

func toEditorRange(r *lsp.Range) *lsp.EditorRange {
	if r == nil {
		return nil
	}
	out := lsp.ToEditorRange(*r)
	return &out
}

func toEditorLocations(in []lsp.Location) []EditorLocation {
	out := make([]EditorLocation, 0, len(in))
	for _, l := range in {
		out = append(out, EditorLocation{URI: l.URI, Range: lsp.ToEditorRange(l.Range)})
	}
	return out
}

func toEditorInlayHints(in []lsp.InlayHint) []EditorInlayHint {
	out := make([]EditorInlayHint, 0, len(in))
	for _, h := range in {
		out = append(out, EditorInlayHint{
			Position:     lsp.ToEditor(h.Position),
			Label:        h.Label,
			Kind:         h.Kind,
			PaddingLeft:  h.PaddingLeft,
			PaddingRight: h.PaddingRight,
		})
	}
	return out
}

func toEditorWorkspaceEdit(e *lsp.WorkspaceEdit) *EditorWorkspaceEdit {
	if e == nil {
		return nil
	}
	out := &EditorWorkspaceEdit{Edits: make(map[string][]EditorTextEdit, len(e.Changes))}
	for uri, edits := range e.Changes {
		out.Edits[uri] = toEditorEdits(edits)
	}
	return out
}
