package kast

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kast-lang/playground/internal/lsp"
)

type scriptedIO struct {
	out     strings.Builder
	inputs  []string
	prompts []string
}

func (s *scriptedIO) Print(chunk string) { s.out.WriteString(chunk) }

func (s *scriptedIO) ReadLine(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.inputs) == 0 {
		return "", errors.New("no more input")
	}
	line := s.inputs[0]
	s.inputs = s.inputs[1:]
	return line, nil
}

func pos(line, char int) lsp.Position { return lsp.Position{Line: line, Character: char} }

func TestHoverOnPrint(t *testing.T) {
	e := New()
	st := e.ProcessFile("f", "print 1;")
	h := e.Hover(st, pos(0, 0))
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "print")
	assert.Equal(t, &lsp.Range{Start: pos(0, 0), End: pos(0, 5)}, h.Range)

	assert.Nil(t, e.Hover(st, pos(3, 0)))
}

func TestHoverVariants(t *testing.T) {
	e := New()
	st := e.ProcessFile("f", "use std.*;\nlet n = 1 + 2;\nlet s = \"a\" + n;\nask name;\necho it;")

	tests := []struct {
		name string
		pos  lsp.Position
		want string
	}{
		{"module", pos(0, 4), "module std"},
		{"int binding", pos(1, 4), "let n: int"},
		{"string binding", pos(2, 4), "let s: string"},
		{"reference", pos(2, 14), "let n: int"},
		{"number", pos(1, 8), "int"},
		{"string literal", pos(2, 8), "string"},
		{"builtin it", pos(4, 5), "it: string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := e.Hover(st, tt.pos)
			require.NotNil(t, h)
			assert.Contains(t, h.Contents.Value, tt.want)
		})
	}
}

func TestDiagnostics(t *testing.T) {
	e := New()
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{"clean", DefaultSource, nil},
		{"undefined name", "print x;", []string{"undefined name `x`"}},
		{"missing semicolon", "print 1", []string{"expected `;`"}},
		{"unknown statement", "x = 1;", []string{"unknown statement `x`"}},
		{"unterminated string", "print \"oops;", []string{"unterminated string literal", "expected `;`"}},
		{"bad operator", "print 1 2;", []string{"expected `+` or `;`"}},
		{"dangling plus", "print 1 +;", []string{"expected a value after `+`"}},
		{"let without value", "let x =;", []string{"expected expression after `=`"}},
		{"bad use", "use .std;", []string{"malformed module path"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := e.Diagnostics(e.ProcessFile("f", tt.source))
			require.Len(t, diags, len(tt.want))
			for i, want := range tt.want {
				assert.Contains(t, diags[i].Message, want)
				assert.Equal(t, lsp.SeverityError, diags[i].Severity)
				assert.Equal(t, "kast", diags[i].Source)
			}
		})
	}
}

func TestRun(t *testing.T) {
	e := New()

	t.Run("hello world", func(t *testing.T) {
		io := &scriptedIO{}
		require.NoError(t, e.Run(context.Background(), "f", DefaultSource, io))
		assert.Equal(t, "hello, world\n", io.out.String())
	})

	t.Run("input is echoed", func(t *testing.T) {
		io := &scriptedIO{inputs: []string{"Alice"}}
		require.NoError(t, e.Run(context.Background(), "f", "ask for input; echo it;", io))
		assert.Equal(t, []string{"for input"}, io.prompts)
		assert.Equal(t, "Alice\n", io.out.String())
	})

	t.Run("arithmetic and concatenation", func(t *testing.T) {
		io := &scriptedIO{}
		require.NoError(t, e.Run(context.Background(), "f", `let n = 40 + 2; print "n=" + n; print n + 1;`, io))
		assert.Equal(t, "n=42\n43\n", io.out.String())
	})

	t.Run("quoted prompt", func(t *testing.T) {
		io := &scriptedIO{inputs: []string{"Bob"}}
		require.NoError(t, e.Run(context.Background(), "f", `ask "name? "; print "hi " + it;`, io))
		assert.Equal(t, []string{"name? "}, io.prompts)
		assert.Equal(t, "hi Bob\n", io.out.String())
	})

	t.Run("analysis error stops before output", func(t *testing.T) {
		io := &scriptedIO{}
		err := e.Run(context.Background(), "f", "print 1; print y;", io)
		var rerr *RuntimeError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "1:16: undefined name `y`", err.Error())
		assert.Empty(t, io.out.String())
	})

	t.Run("input failure", func(t *testing.T) {
		io := &scriptedIO{}
		err := e.Run(context.Background(), "f", "print 1; ask; echo it;", io)
		assert.EqualError(t, err, "no more input")
		assert.Equal(t, "1\n", io.out.String())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := e.Run(ctx, "f", "print 1;", &scriptedIO{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFormat(t *testing.T) {
	e := New()

	t.Run("canonical source has no edits", func(t *testing.T) {
		assert.Empty(t, e.Format(e.ProcessFile("f", DefaultSource)))
	})

	t.Run("normalizes layout", func(t *testing.T) {
		src := "use   std . * ;let x=1+2;   # note\n\n\n\nprint x ;"
		edits := e.Format(e.ProcessFile("f", src))
		require.Len(t, edits, 1)
		assert.Equal(t, lsp.Range{End: pos(4, 9)}, edits[0].Range)
		assert.Equal(t, "use std.*;\nlet x = 1 + 2; # note\n\nprint x;\n", edits[0].NewText)
	})

	t.Run("invalid source is left alone", func(t *testing.T) {
		assert.Empty(t, e.Format(e.ProcessFile("f", "print")))
	})
}

func TestRename(t *testing.T) {
	e := New()
	src := "let x = 1;\nlet y = x + x;\nprint y;"
	st := e.ProcessFile("f", src)

	r := e.PrepareRename(st, pos(1, 8))
	require.NotNil(t, r)
	assert.Equal(t, lsp.Range{Start: pos(1, 8), End: pos(1, 9)}, *r)

	edit := e.Rename(st, pos(1, 8), "total")
	require.NotNil(t, edit)
	edits := edit.Changes["f"]
	require.Len(t, edits, 3)
	assert.Equal(t, pos(0, 4), edits[0].Range.Start)
	assert.Equal(t, pos(1, 8), edits[1].Range.Start)
	assert.Equal(t, pos(1, 12), edits[2].Range.Start)
	for _, ed := range edits {
		assert.Equal(t, "total", ed.NewText)
	}

	assert.Nil(t, e.Rename(st, pos(1, 8), "let"), "keywords are not valid names")
	assert.Nil(t, e.Rename(st, pos(1, 8), "9lives"))
	assert.Nil(t, e.PrepareRename(st, pos(0, 0)), "keywords cannot be renamed")

	withIt := e.ProcessFile("g", "ask; echo it;")
	assert.Nil(t, e.PrepareRename(withIt, pos(0, 10)), "it is builtin")
}

func TestShadowingResolvesToLatestBinding(t *testing.T) {
	e := New()
	st := e.ProcessFile("f", "let x = 1;\nlet x = x + 1;\nprint x;")

	defs := e.FindDefinition(st, pos(2, 6))
	require.Len(t, defs, 1)
	assert.Equal(t, pos(1, 4), defs[0].Range.Start)

	defs = e.FindDefinition(st, pos(1, 8))
	require.Len(t, defs, 1)
	assert.Equal(t, pos(0, 4), defs[0].Range.Start)

	assert.Nil(t, e.FindDefinition(st, pos(2, 0)))
}

func TestCompletion(t *testing.T) {
	e := New()
	st := e.ProcessFile("f", "let a = 1;\nask;\nlet b = 2;\nprint ")
	items := e.Complete(st, pos(3, 6))

	labels := make([]string, 0, len(items))
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	assert.Subset(t, labels, []string{"use", "let", "print", "echo", "ask", "a", "b", "it"})

	early := e.Complete(st, pos(1, 0))
	labels = labels[:0]
	for _, it := range early {
		labels = append(labels, it.Label)
	}
	assert.Contains(t, labels, "a")
	assert.NotContains(t, labels, "b")
}

func TestInlayHints(t *testing.T) {
	e := New()
	hints := e.InlayHints(e.ProcessFile("f", "let a = 1;\nlet b = \"s\" + a;\nlet c = nope;"))
	require.Len(t, hints, 2)
	assert.Equal(t, lsp.InlayHint{Position: pos(0, 5), Label: ": int", Kind: lsp.InlayHintKindType}, hints[0])
	assert.Equal(t, ": string", hints[1].Label)
}

func TestSemanticTokens(t *testing.T) {
	e := New()
	st := e.ProcessFile("f", "let x = 1;\nprint x;")
	toks := e.SemanticTokens(st)
	require.NotNil(t, toks)
	assert.Equal(t, []uint32{
		0, 0, 3, semKeyword, 0,
		0, 4, 1, semVariable, modDeclaration,
		0, 2, 1, semOperator, 0,
		0, 2, 1, semNumber, 0,
		1, 0, 5, semKeyword, 0,
		0, 6, 1, semVariable, 0,
	}, toks.Data)

	lg := e.SemanticTokensLegend()
	assert.Equal(t, "keyword", lg.TokenTypes[semKeyword])
	assert.Equal(t, "namespace", lg.TokenTypes[semNamespace])
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("total_2"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("it"))
	assert.False(t, IsIdentifier("print"))
	assert.False(t, IsIdentifier("a-b"))
}

func TestNilStateYieldsNoResult(t *testing.T) {
	e := New()
	assert.Nil(t, e.Hover(nil, pos(0, 0)))
	assert.Nil(t, e.SemanticTokens(nil))
	assert.Empty(t, e.Diagnostics(nil))
}
