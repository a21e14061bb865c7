package kast

import (
	"fmt"
	"strings"

	"github.com/kast-lang/playground/internal/lsp"
)

type valueType string

const (
	typeString  valueType = "string"
	typeInt     valueType = "int"
	typeUnknown valueType = ""
)

const itName = "it"

type symbol struct {
	name string
	// def is the defining token: the let name, or the ask keyword for it
	def     *token
	typ     valueType
	builtin bool
}

type stmtKind int

const (
	stmtUse stmtKind = iota
	stmtPrint
	stmtEcho
	stmtLet
	stmtAsk
)

type expr struct {
	operands []*token
	typ      valueType
}

type stmt struct {
	kind   stmtKind
	toks   []*token
	name   *token
	value  *expr
	prompt string
	// symbol defined by this statement, if any
	defines *symbol
	end     int // line of the terminating ';'
}

// file is the analysis state for one document.
type file struct {
	uri      string
	source   string
	toks     []token
	comments []*token
	stmts    []*stmt
	refs     map[*token]*symbol
	modules  map[*token]bool
	diags    []lsp.Diagnostic
}

func (f *file) URI() string { return f.uri }

func (f *file) hasErrors() bool {
	for _, d := range f.diags {
		if d.Severity == lsp.SeverityError {
			return true
		}
	}
	return false
}

func (f *file) errorf(t *token, format string, args ...any) {
	f.diags = append(f.diags, lsp.Diagnostic{
		Range:    t.rng(),
		Severity: lsp.SeverityError,
		Source:   "kast",
		Message:  fmt.Sprintf(format, args...),
	})
}

func analyze(uri, source string) *file {
	f := &file{
		uri:     uri,
		source:  source,
		refs:    make(map[*token]*symbol),
		modules: make(map[*token]bool),
	}
	var lexErrs []lexError
	f.toks, lexErrs = lex(source)
	for _, e := range lexErrs {
		t := token{line: e.line, col: e.col, width: e.width}
		f.errorf(&t, "%s", e.msg)
	}

	scope := make(map[string]*symbol)
	var group []*token
	for i := range f.toks {
		t := &f.toks[i]
		switch {
		case t.kind == tokComment:
			f.comments = append(f.comments, t)
		case t.is(tokPunct, ";"):
			if len(group) > 0 {
				if s := f.parseStmt(group, scope); s != nil {
					s.end = t.line
					f.stmts = append(f.stmts, s)
				}
			}
			group = nil
		default:
			group = append(group, t)
		}
	}
	if len(group) > 0 {
		last := group[len(group)-1]
		f.errorf(last, "expected `;` after statement")
		if s := f.parseStmt(group, scope); s != nil {
			s.end = last.line
			f.stmts = append(f.stmts, s)
		}
	}
	return f
}

func (f *file) parseStmt(toks []*token, scope map[string]*symbol) *stmt {
	head := toks[0]
	if head.kind != tokKeyword {
		f.errorf(head, "unknown statement `%s`", head.text)
		return nil
	}
	rest := toks[1:]
	s := &stmt{toks: toks}

	switch head.text {
	case "use":
		s.kind = stmtUse
		f.parseUsePath(head, rest)
	case "print", "echo":
		s.kind = stmtPrint
		if head.text == "echo" {
			s.kind = stmtEcho
		}
		if len(rest) == 0 {
			f.errorf(head, "expected expression after `%s`", head.text)
			return nil
		}
		s.value = f.parseExpr(rest, scope)
	case "let":
		s.kind = stmtLet
		if len(rest) == 0 || rest[0].kind != tokIdent {
			f.errorf(head, "expected name after `let`")
			return nil
		}
		s.name = rest[0]
		if len(rest) < 2 || !rest[1].is(tokPunct, "=") {
			f.errorf(s.name, "expected `=` after `%s`", s.name.text)
			return nil
		}
		if len(rest) < 3 {
			f.errorf(rest[1], "expected expression after `=`")
			return nil
		}
		s.value = f.parseExpr(rest[2:], scope)
		sym := &symbol{name: s.name.text, def: s.name, typ: s.value.typ}
		f.refs[s.name] = sym
		scope[sym.name] = sym
		s.defines = sym
	case "ask":
		s.kind = stmtAsk
		s.prompt = askPrompt(rest)
		sym := &symbol{name: itName, def: head, typ: typeString, builtin: true}
		scope[itName] = sym
		s.defines = sym
	}
	return s
}

func (f *file) parseUsePath(head *token, rest []*token) {
	if len(rest) == 0 {
		f.errorf(head, "expected module path after `use`")
		return
	}
	wantSegment := true
	for i, t := range rest {
		switch {
		case wantSegment && t.kind == tokIdent:
			f.modules[t] = true
			wantSegment = false
		case wantSegment && t.is(tokPunct, "*") && i == len(rest)-1 && i > 0:
			wantSegment = false
		case !wantSegment && t.is(tokPunct, "."):
			wantSegment = true
		default:
			f.errorf(t, "malformed module path")
			return
		}
	}
	if wantSegment {
		f.errorf(rest[len(rest)-1], "module path ends with `.`")
	}
}

func (f *file) parseExpr(toks []*token, scope map[string]*symbol) *expr {
	e := &expr{typ: typeInt}
	wantOperand := true
	for _, t := range toks {
		if !wantOperand {
			if !t.is(tokPunct, "+") {
				f.errorf(t, "expected `+` or `;`, found `%s`", t.text)
				e.typ = typeUnknown
				return e
			}
			wantOperand = true
			continue
		}
		switch t.kind {
		case tokString:
			e.typ = join(e.typ, typeString)
		case tokNumber:
			e.typ = join(e.typ, typeInt)
		case tokIdent:
			sym, ok := scope[t.text]
			if !ok {
				f.errorf(t, "undefined name `%s`", t.text)
				e.typ = typeUnknown
			} else {
				f.refs[t] = sym
				e.typ = join(e.typ, sym.typ)
			}
		default:
			f.errorf(t, "expected a value, found `%s`", t.text)
			e.typ = typeUnknown
			return e
		}
		e.operands = append(e.operands, t)
		wantOperand = false
	}
	if wantOperand {
		f.errorf(toks[len(toks)-1], "expected a value after `+`")
		e.typ = typeUnknown
	}
	return e
}

// join gives the type of a + b: int only when both sides are ints.
func join(a, b valueType) valueType {
	if a == typeUnknown || b == typeUnknown {
		return typeUnknown
	}
	if a == typeInt && b == typeInt {
		return typeInt
	}
	return typeString
}

func askPrompt(rest []*token) string {
	if len(rest) == 1 && rest[0].kind == tokString {
		return rest[0].value
	}
	words := make([]string, 0, len(rest))
	for _, t := range rest {
		words = append(words, t.text)
	}
	return strings.Join(words, " ")
}

// tokenAt returns the most specific token under pos, preferring names and
// keywords over punctuation.
func (f *file) tokenAt(pos lsp.Position) *token {
	var fallback *token
	for i := range f.toks {
		t := &f.toks[i]
		if t.kind == tokComment || !t.rng().Contains(pos) {
			continue
		}
		if t.kind != tokPunct {
			return t
		}
		if fallback == nil {
			fallback = t
		}
	}
	return fallback
}

// visibleAt returns the symbols in scope at pos, latest definition per name.
func (f *file) visibleAt(pos lsp.Position) []*symbol {
	byName := make(map[string]*symbol)
	var order []string
	for _, s := range f.stmts {
		if s.defines == nil {
			continue
		}
		def := s.defines.def
		if def.line > pos.Line || def.line == pos.Line && def.col >= pos.Character {
			break
		}
		if _, seen := byName[s.defines.name]; !seen {
			order = append(order, s.defines.name)
		}
		byName[s.defines.name] = s.defines
	}
	out := make([]*symbol, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// endPosition is the position just past the last character of the source.
func endPosition(source string) lsp.Position {
	lines := strings.Split(source, "\n")
	last := len(lines) - 1
	return lsp.Position{Line: last, Character: len([]rune(lines[last]))}
}
