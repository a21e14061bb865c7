package kast

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kast-lang/playground/internal/engine"
	"github.com/kast-lang/playground/internal/lsp"
)

type value struct {
	typ valueType
	s   string
	n   int64
}

func (v value) String() string {
	if v.typ == typeInt {
		return strconv.FormatInt(v.n, 10)
	}
	return v.s
}

// RuntimeError is a failure while executing a program.
type RuntimeError struct {
	Line, Col int
	Msg       string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line+1, e.Col+1, e.Msg)
}

func runtimeErr(t *token, format string, args ...any) error {
	return &RuntimeError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (f *file) run(ctx context.Context, io engine.RunIO) error {
	for _, d := range f.diags {
		if d.Severity == lsp.SeverityError {
			return &RuntimeError{Line: d.Range.Start.Line, Col: d.Range.Start.Character, Msg: d.Message}
		}
	}

	env := make(map[*symbol]value)
	for _, s := range f.stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch s.kind {
		case stmtUse:
		case stmtPrint, stmtEcho:
			v, err := f.eval(s.value, env)
			if err != nil {
				return err
			}
			io.Print(v.String() + "\n")
		case stmtLet:
			v, err := f.eval(s.value, env)
			if err != nil {
				return err
			}
			env[s.defines] = v
		case stmtAsk:
			line, err := io.ReadLine(ctx, s.prompt)
			if err != nil {
				return err
			}
			env[s.defines] = value{typ: typeString, s: line}
		}
	}
	return nil
}

func (f *file) eval(e *expr, env map[*symbol]value) (value, error) {
	var acc value
	for i, t := range e.operands {
		var v value
		switch t.kind {
		case tokString:
			v = value{typ: typeString, s: t.value}
		case tokNumber:
			n, err := strconv.ParseInt(t.text, 10, 64)
			if err != nil {
				return value{}, runtimeErr(t, "integer literal %s out of range", t.text)
			}
			v = value{typ: typeInt, n: n}
		case tokIdent:
			bound, ok := env[f.refs[t]]
			if !ok {
				return value{}, runtimeErr(t, "`%s` used before it was bound", t.text)
			}
			v = bound
		}
		if i == 0 {
			acc = v
			continue
		}
		if acc.typ == typeInt && v.typ == typeInt {
			acc.n += v.n
			continue
		}
		acc = value{typ: typeString, s: acc.String() + v.String()}
	}
	return acc, nil
}
