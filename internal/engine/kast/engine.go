// Package kast is a small reference engine for the playground's demo
// language. Programs are sequences of statements terminated by `;`:
//
//	use std.*;
//	let name = "world";
//	print "hello, " + name;
//	ask what is your name;
//	echo it;
package kast

import (
	"context"

	"github.com/kast-lang/playground/internal/engine"
	"github.com/kast-lang/playground/internal/lsp"
)

// Version is reported in the worker handshake.
const Version = "kast-lite 0.1"

// DefaultSource is the program shown in a fresh editor.
const DefaultSource = "use std.*;\n\nprint \"hello, world\";\n"

// Engine implements engine.Engine. The zero value is ready to use.
type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine; it matches engine.Factory.
func New() engine.Engine {
	return &Engine{}
}

func (*Engine) Version() string { return Version }

func (*Engine) ProcessFile(uri, source string) engine.State {
	return analyze(uri, source)
}

func asFile(s engine.State) *file {
	f, _ := s.(*file)
	return f
}

func (*Engine) Diagnostics(s engine.State) []lsp.Diagnostic {
	f := asFile(s)
	if f == nil || f.diags == nil {
		return []lsp.Diagnostic{}
	}
	return f.diags
}

func (*Engine) Format(s engine.State) []lsp.TextEdit {
	if f := asFile(s); f != nil {
		return f.format()
	}
	return nil
}

func (*Engine) Hover(s engine.State, pos lsp.Position) *lsp.Hover {
	if f := asFile(s); f != nil {
		return f.hover(pos)
	}
	return nil
}

func (*Engine) Complete(s engine.State, pos lsp.Position) []lsp.CompletionItem {
	if f := asFile(s); f != nil {
		return f.complete(pos)
	}
	return nil
}

func (*Engine) PrepareRename(s engine.State, pos lsp.Position) *lsp.Range {
	if f := asFile(s); f != nil {
		return f.prepareRename(pos)
	}
	return nil
}

func (*Engine) Rename(s engine.State, pos lsp.Position, newName string) *lsp.WorkspaceEdit {
	if f := asFile(s); f != nil {
		return f.rename(pos, newName)
	}
	return nil
}

func (*Engine) FindDefinition(s engine.State, pos lsp.Position) []lsp.Location {
	if f := asFile(s); f != nil {
		return f.definition(pos)
	}
	return nil
}

func (*Engine) InlayHints(s engine.State) []lsp.InlayHint {
	if f := asFile(s); f != nil {
		return f.inlayHints()
	}
	return nil
}

func (*Engine) SemanticTokensLegend() lsp.SemanticTokensLegend {
	return legend
}

func (*Engine) SemanticTokens(s engine.State) *lsp.SemanticTokens {
	if f := asFile(s); f != nil {
		return f.semanticTokens()
	}
	return nil
}

// Run analyzes source and executes it. Analysis errors are reported as the
// first error without running anything.
func (*Engine) Run(ctx context.Context, uri, source string, io engine.RunIO) error {
	return analyze(uri, source).run(ctx, io)
}
