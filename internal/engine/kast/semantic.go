package kast

import (
	"fortio.org/safecast"

	"github.com/kast-lang/playground/internal/lsp"
)

var legend = lsp.SemanticTokensLegend{
	TokenTypes:     []string{"keyword", "variable", "string", "number", "operator", "namespace", "comment"},
	TokenModifiers: []string{"declaration", "readonly"},
}

const (
	semKeyword uint32 = iota
	semVariable
	semString
	semNumber
	semOperator
	semNamespace
	semComment
)

const (
	modDeclaration uint32 = 1 << iota
	modReadonly
)

func (f *file) classify(t *token) (typ, mods uint32, ok bool) {
	switch t.kind {
	case tokKeyword:
		return semKeyword, 0, true
	case tokString:
		return semString, 0, true
	case tokNumber:
		return semNumber, 0, true
	case tokComment:
		return semComment, 0, true
	case tokPunct:
		if t.text == "+" || t.text == "=" || t.text == "*" {
			return semOperator, 0, true
		}
		return 0, 0, false
	case tokIdent:
		if f.modules[t] {
			return semNamespace, 0, true
		}
		if sym, found := f.refs[t]; found {
			if sym.def == t {
				mods |= modDeclaration
			}
			if sym.builtin {
				mods |= modReadonly
			}
		}
		return semVariable, mods, true
	}
	return 0, 0, false
}

// semanticTokens encodes every classified token relative to the previous one.
func (f *file) semanticTokens() *lsp.SemanticTokens {
	data := make([]uint32, 0, len(f.toks)*5)
	prevLine, prevCol := 0, 0
	for i := range f.toks {
		t := &f.toks[i]
		typ, mods, ok := f.classify(t)
		if !ok {
			continue
		}
		deltaLine := t.line - prevLine
		deltaStart := t.col
		if deltaLine == 0 {
			deltaStart = t.col - prevCol
		}
		dl, err1 := safecast.Conv[uint32](deltaLine)
		ds, err2 := safecast.Conv[uint32](deltaStart)
		w, err3 := safecast.Conv[uint32](t.width)
		if err1 != nil || err2 != nil || err3 != nil {
			// tokens are emitted in source order, so deltas are never negative
			return nil
		}
		data = append(data, dl, ds, w, typ, mods)
		prevLine, prevCol = t.line, t.col
	}
	return &lsp.SemanticTokens{Data: data}
}
