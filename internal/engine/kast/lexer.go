package kast

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kast-lang/playground/internal/lsp"
)

type tokenKind int

const (
	tokKeyword tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
	tokComment
)

type token struct {
	kind tokenKind
	text string
	// value is the unquoted content of a string literal
	value string
	line  int
	col   int
	// width in columns of the source text
	width int
}

func (t *token) rng() lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: t.line, Character: t.col},
		End:   lsp.Position{Line: t.line, Character: t.col + t.width},
	}
}

func (t *token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

var keywords = map[string]string{
	"use":   "Imports a module into scope.",
	"let":   "Binds a name to the value of an expression.",
	"print": "Prints a value followed by a newline.",
	"echo":  "Prints a value followed by a newline.",
	"ask":   "Reads a line of input into `it`. The remaining words form the prompt.",
}

type lexError struct {
	line, col, width int
	msg              string
}

// lex splits source into tokens. Columns count runes.
func lex(source string) ([]token, []lexError) {
	var (
		toks []token
		errs []lexError
	)
	for lineNo, line := range strings.Split(source, "\n") {
		runes := []rune(strings.TrimRight(line, "\r"))
		for i := 0; i < len(runes); {
			r := runes[i]
			switch {
			case unicode.IsSpace(r):
				i++
			case r == '#':
				toks = append(toks, token{kind: tokComment, text: string(runes[i:]), line: lineNo, col: i, width: len(runes) - i})
				i = len(runes)
			case r == '"':
				j := i + 1
				var b strings.Builder
				closed := false
				for j < len(runes) {
					if runes[j] == '\\' && j+1 < len(runes) {
						switch runes[j+1] {
						case 'n':
							b.WriteRune('\n')
						case 't':
							b.WriteRune('\t')
						default:
							b.WriteRune(runes[j+1])
						}
						j += 2
						continue
					}
					if runes[j] == '"' {
						closed = true
						j++
						break
					}
					b.WriteRune(runes[j])
					j++
				}
				if !closed {
					errs = append(errs, lexError{line: lineNo, col: i, width: j - i, msg: "unterminated string literal"})
				}
				toks = append(toks, token{kind: tokString, text: string(runes[i:j]), value: b.String(), line: lineNo, col: i, width: j - i})
				i = j
			case unicode.IsDigit(r):
				j := i
				for j < len(runes) && unicode.IsDigit(runes[j]) {
					j++
				}
				toks = append(toks, token{kind: tokNumber, text: string(runes[i:j]), line: lineNo, col: i, width: j - i})
				i = j
			case isIdentStart(r):
				j := i
				for j < len(runes) && isIdentPart(runes[j]) {
					j++
				}
				text := string(runes[i:j])
				kind := tokIdent
				if _, ok := keywords[text]; ok {
					kind = tokKeyword
				}
				toks = append(toks, token{kind: kind, text: text, line: lineNo, col: i, width: j - i})
				i = j
			case strings.ContainsRune(";=+.*", r):
				toks = append(toks, token{kind: tokPunct, text: string(r), line: lineNo, col: i, width: 1})
				i++
			default:
				errs = append(errs, lexError{line: lineNo, col: i, width: 1, msg: fmt.Sprintf("unexpected character %q", r)})
				i++
			}
		}
	}
	return toks, errs
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// IsIdentifier reports whether name can be used as a binding name.
func IsIdentifier(name string) bool {
	if name == "" || name == itName {
		return false
	}
	if _, ok := keywords[name]; ok {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) || !isIdentPart(r) {
			return false
		}
	}
	return true
}
