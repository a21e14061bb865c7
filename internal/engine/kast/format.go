package kast

import (
	"sort"
	"strings"

	"github.com/kast-lang/playground/internal/lsp"
)

// layoutItem is a statement or a comment placed in the formatted output.
type layoutItem struct {
	start, end int
	text       string
	comment    bool
}

// formatted renders f in canonical layout: one statement per line, single
// spaces between tokens, at most one blank line between items.
func (f *file) formatted() (string, bool) {
	if f.hasErrors() {
		return "", false
	}
	items := make([]layoutItem, 0, len(f.stmts)+len(f.comments))
	for _, s := range f.stmts {
		items = append(items, layoutItem{start: s.toks[0].line, end: s.end, text: renderStmt(s)})
	}
	for _, c := range f.comments {
		items = append(items, layoutItem{start: c.line, end: c.line, text: strings.TrimRight(c.text, " \t"), comment: true})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].start < items[j].start })

	var b strings.Builder
	prevEnd := -1
	for i, it := range items {
		switch {
		case i == 0:
		case it.comment && it.start == prevEnd && !items[i-1].comment:
			// trailing comment stays on its statement's line
			b.WriteString(" ")
			b.WriteString(it.text)
			continue
		case it.start-prevEnd > 1:
			b.WriteString("\n\n")
		default:
			b.WriteString("\n")
		}
		b.WriteString(it.text)
		prevEnd = it.end
	}
	if len(items) > 0 {
		b.WriteString("\n")
	}
	return b.String(), true
}

func renderStmt(s *stmt) string {
	var b strings.Builder
	for i, t := range s.toks {
		if i > 0 && t.text != "." && s.toks[i-1].text != "." {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	b.WriteByte(';')
	return b.String()
}

func (f *file) format() []lsp.TextEdit {
	out, ok := f.formatted()
	if !ok || out == f.source {
		return []lsp.TextEdit{}
	}
	return []lsp.TextEdit{{
		Range:   lsp.Range{End: endPosition(f.source)},
		NewText: out,
	}}
}
