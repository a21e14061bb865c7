package kast

import (
	"fmt"
	"sort"

	"github.com/kast-lang/playground/internal/lsp"
)

func markdown(code, doc string) *lsp.MarkupContent {
	value := "```kast\n" + code + "\n```"
	if doc != "" {
		value += "\n\n" + doc
	}
	return &lsp.MarkupContent{Kind: lsp.MarkupKindMarkdown, Value: value}
}

func (f *file) hover(pos lsp.Position) *lsp.Hover {
	t := f.tokenAt(pos)
	if t == nil {
		return nil
	}
	var content *lsp.MarkupContent
	switch t.kind {
	case tokKeyword:
		content = markdown(t.text, keywords[t.text])
	case tokString:
		content = markdown("string", "")
	case tokNumber:
		content = markdown("int", "")
	case tokIdent:
		if f.modules[t] {
			content = markdown("module "+t.text, "")
			break
		}
		sym, ok := f.refs[t]
		if !ok {
			return nil
		}
		content = symbolDoc(sym)
	default:
		return nil
	}
	r := t.rng()
	return &lsp.Hover{Contents: *content, Range: &r}
}

func symbolDoc(sym *symbol) *lsp.MarkupContent {
	typ := string(sym.typ)
	if typ == "" {
		typ = "unknown"
	}
	if sym.builtin {
		return markdown(fmt.Sprintf("%s: %s", sym.name, typ), "The line read by the most recent `ask`.")
	}
	return markdown(fmt.Sprintf("let %s: %s", sym.name, typ), "")
}

func (f *file) complete(pos lsp.Position) []lsp.CompletionItem {
	items := make([]lsp.CompletionItem, 0, len(keywords)+4)
	names := make([]string, 0, len(keywords))
	for kw := range keywords {
		names = append(names, kw)
	}
	sort.Strings(names)
	for _, kw := range names {
		items = append(items, lsp.CompletionItem{
			Label:  kw,
			Kind:   lsp.CompletionKindKeyword,
			Detail: keywords[kw],
		})
	}
	for _, sym := range f.visibleAt(pos) {
		items = append(items, lsp.CompletionItem{
			Label:  sym.name,
			Kind:   lsp.CompletionKindVariable,
			Detail: string(sym.typ),
		})
	}
	return items
}

// renameTarget returns the user-defined symbol under pos.
func (f *file) renameTarget(pos lsp.Position) (*token, *symbol) {
	t := f.tokenAt(pos)
	if t == nil || t.kind != tokIdent {
		return nil, nil
	}
	sym, ok := f.refs[t]
	if !ok || sym.builtin {
		return nil, nil
	}
	return t, sym
}

func (f *file) prepareRename(pos lsp.Position) *lsp.Range {
	t, _ := f.renameTarget(pos)
	if t == nil {
		return nil
	}
	r := t.rng()
	return &r
}

func (f *file) rename(pos lsp.Position, newName string) *lsp.WorkspaceEdit {
	if !IsIdentifier(newName) {
		return nil
	}
	_, sym := f.renameTarget(pos)
	if sym == nil {
		return nil
	}
	var edits []lsp.TextEdit
	for t, s := range f.refs {
		if s == sym {
			edits = append(edits, lsp.TextEdit{Range: t.rng(), NewText: newName})
		}
	}
	sort.Slice(edits, func(i, j int) bool {
		a, b := edits[i].Range.Start, edits[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return &lsp.WorkspaceEdit{Changes: map[string][]lsp.TextEdit{f.uri: edits}}
}

func (f *file) definition(pos lsp.Position) []lsp.Location {
	t := f.tokenAt(pos)
	if t == nil || t.kind != tokIdent {
		return nil
	}
	sym, ok := f.refs[t]
	if !ok {
		return nil
	}
	return []lsp.Location{{URI: f.uri, Range: sym.def.rng()}}
}

func (f *file) inlayHints() []lsp.InlayHint {
	var hints []lsp.InlayHint
	for _, s := range f.stmts {
		if s.kind != stmtLet || s.defines == nil || s.defines.typ == typeUnknown {
			continue
		}
		hints = append(hints, lsp.InlayHint{
			Position: s.name.rng().End,
			Label:    ": " + string(s.defines.typ),
			Kind:     lsp.InlayHintKindType,
		})
	}
	return hints
}
