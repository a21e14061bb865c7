package websocket

import (
	"github.com/kast-lang/playground/internal/lsp"
)

// Requests. Positions are in editor coordinates (1-based).

type FileUpdateRequest struct {
	URI      string `json:"uri"`
	Contents string `json:"contents"`
}

type DocumentRequest struct {
	URI string `json:"uri"`
}

type PositionRequest struct {
	URI      string             `json:"uri"`
	Position lsp.EditorPosition `json:"position"`
}

type RenameRequest struct {
	URI      string             `json:"uri"`
	Position lsp.EditorPosition `json:"position"`
	NewName  string             `json:"newName"`
}

type RunStartRequest struct {
	URI      string `json:"uri"`
	Contents string `json:"contents"`
}

type RunInputRequest struct {
	RequestID string `json:"request_id"`
	Line      string `json:"line"`
}

// Responses.

// Result wraps every lsp.* answer; a nil Result means "nothing here".
type Result struct {
	Result any `json:"result"`
}

const (
	RunStatusCompleted  = "completed"
	RunStatusSuperseded = "superseded"
)

type RunResult struct {
	Status string `json:"status"`
}

// Notifications.

type DiagnosticsNotification struct {
	URI         string             `json:"uri"`
	Diagnostics []EditorDiagnostic `json:"diagnostics"`
}

type OutputNotification struct {
	Chunk string `json:"chunk"`
}

type InputRequestNotification struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
}

type RunStateNotification struct {
	State string `json:"state"`
}

// Editor-facing result shapes.

type EditorDiagnostic struct {
	Range    lsp.EditorRange        `json:"range"`
	Severity lsp.DiagnosticSeverity `json:"severity"`
	Code     string                 `json:"code,omitempty"`
	Source   string                 `json:"source,omitempty"`
	Message  string                 `json:"message"`
}

type EditorTextEdit struct {
	Range lsp.EditorRange `json:"range"`
	Text  string          `json:"text"`
}

type EditorHover struct {
	Contents lsp.MarkupContent `json:"contents"`
	Range    *lsp.EditorRange  `json:"range,omitempty"`
}

type EditorLocation struct {
	URI   string          `json:"uri"`
	Range lsp.EditorRange `json:"range"`
}

type EditorInlayHint struct {
	Position     lsp.EditorPosition `json:"position"`
	Label        string             `json:"label"`
	Kind         lsp.InlayHintKind  `json:"kind,omitempty"`
	PaddingLeft  bool               `json:"paddingLeft,omitempty"`
	PaddingRight bool               `json:"paddingRight,omitempty"`
}

// EditorWorkspaceEdit groups edits by document URI.
type EditorWorkspaceEdit struct {
	Edits map[string][]EditorTextEdit `json:"edits"`
}
