// Package engine defines what the worker host needs from a language engine.
//
// An engine instance lives inside exactly one worker and is never shared.
// Every method returns "no result" (nil or empty) instead of an error when the
// request cannot be answered; only Run reports failures.
package engine

import (
	"context"

	"github.com/kast-lang/playground/internal/lsp"
)

// State is the opaque analysis result for one document.
type State interface {
	URI() string
}

// RunIO connects a running program to the outside world.
type RunIO interface {
	// Print emits a chunk of program output.
	Print(s string)
	// ReadLine suspends the program until a line of input is available.
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Engine is the analysis and execution surface of a language implementation.
type Engine interface {
	// Version identifies the engine build; reported in the worker handshake.
	Version() string

	ProcessFile(uri, source string) State
	Diagnostics(s State) []lsp.Diagnostic

	Format(s State) []lsp.TextEdit
	Hover(s State, pos lsp.Position) *lsp.Hover
	Complete(s State, pos lsp.Position) []lsp.CompletionItem
	PrepareRename(s State, pos lsp.Position) *lsp.Range
	Rename(s State, pos lsp.Position, newName string) *lsp.WorkspaceEdit
	FindDefinition(s State, pos lsp.Position) []lsp.Location
	InlayHints(s State) []lsp.InlayHint
	SemanticTokensLegend() lsp.SemanticTokensLegend
	SemanticTokens(s State) *lsp.SemanticTokens

	Run(ctx context.Context, uri, source string, io RunIO) error
}

// Factory creates a fresh engine for a new worker.
type Factory func() Engine
