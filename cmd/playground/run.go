package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/lsp"
	"github.com/kast-lang/playground/internal/worker/iobridge"
	"github.com/kast-lang/playground/internal/worker/lifecycle"
	"github.com/kast-lang/playground/internal/worker/session"
	"github.com/kast-lang/playground/internal/worker/spawner"
)

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	noteColor    = color.New(color.FgBlue, color.Bold)
	pathColor    = color.New(color.Bold)
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a program on a fresh worker, reading input from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkers(cmd, args[0], func(ctx context.Context, sp spawner.Spawner, uri, source string, log *logger.Logger) error {
			return runProgram(ctx, sp, uri, source, os.Stdin, os.Stdout, log)
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Print the diagnostics of a program; exits 1 when it has errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkers(cmd, args[0], func(ctx context.Context, sp spawner.Spawner, uri, source string, log *logger.Logger) error {
			errs, err := checkProgram(ctx, sp, args[0], uri, source, os.Stdout, log)
			if err != nil {
				return err
			}
			if errs > 0 {
				return &exitError{code: 1}
			}
			return nil
		})
	},
}

type workerFunc func(ctx context.Context, sp spawner.Spawner, uri, source string, log *logger.Logger) error

// withWorkers loads path and hands it to fn with a spawner built from the
// configuration.
func withWorkers(cmd *cobra.Command, path string, fn workerFunc) error {
	cfg, log, err := bootstrap(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sp, err := newSpawner(cfg.Worker, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, sp, fileURI(path), string(source), log)
}

func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

// runProgram executes source to completion, streaming output to out and
// answering input requests from in.
func runProgram(ctx context.Context, sp spawner.Spawner, uri, source string, in io.Reader, out io.Writer, log *logger.Logger) error {
	mgr := lifecycle.NewManager(sp, session.Options{}, nil, log)
	defer mgr.Shutdown()

	lines := newLineReader(in)
	return mgr.Run(ctx, uri, source, iobridge.Handlers{
		Output: func(chunk string) {
			_, _ = io.WriteString(out, chunk)
		},
		Input: func(ctx context.Context, prompt string) (string, error) {
			if prompt != "" {
				_, _ = promptColor.Fprint(out, prompt)
			}
			return lines.next(ctx)
		},
	})
}

// lineReader hands out stdin lines one request at a time. A request abandoned
// by ctx leaves its read pending for the next one.
type lineReader struct {
	lines chan lineResult
	want  chan struct{}
}

type lineResult struct {
	line string
	err  error
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan lineResult, 1), want: make(chan struct{}, 1)}
	go lr.loop(bufio.NewReader(r))
	return lr
}

func (lr *lineReader) loop(r *bufio.Reader) {
	var failed error
	for range lr.want {
		if failed != nil {
			lr.lines <- lineResult{err: failed}
			continue
		}
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			failed = fmt.Errorf("read input: %w", err)
			lr.lines <- lineResult{err: failed}
			continue
		}
		lr.lines <- lineResult{line: strings.TrimRight(line, "\r\n")}
	}
}

func (lr *lineReader) next(ctx context.Context) (string, error) {
	select {
	case lr.want <- struct{}{}:
	default:
		// a previous read is still outstanding
	}
	select {
	case res := <-lr.lines:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// checkProgram prints the diagnostics of source and returns how many are
// errors.
func checkProgram(ctx context.Context, sp spawner.Spawner, path, uri, source string, out io.Writer, log *logger.Logger) (int, error) {
	diags := make(chan []lsp.Diagnostic, 1)
	s, err := session.Start(ctx, sp, session.Options{
		Logger: log,
		OnDiagnostics: func(_ string, d []lsp.Diagnostic) {
			diags <- d
		},
	})
	if err != nil {
		return 0, err
	}
	defer s.Terminate()

	s.UpdateFile(uri, source)

	var got []lsp.Diagnostic
	select {
	case got = <-diags:
	case <-s.Done():
		return 0, s.Err()
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	errs := 0
	for _, d := range got {
		if d.Severity == lsp.SeverityError {
			errs++
		}
		_, _ = fmt.Fprintln(out, formatDiagnostic(path, d))
	}
	return errs, nil
}

// formatDiagnostic renders d as "path:line:col: severity: message" in editor
// coordinates.
func formatDiagnostic(path string, d lsp.Diagnostic) string {
	pos := lsp.ToEditor(d.Range.Start)
	var label string
	switch d.Severity {
	case lsp.SeverityError:
		label = errorColor.Sprint("error")
	case lsp.SeverityWarning:
		label = warningColor.Sprint("warning")
	default:
		label = noteColor.Sprint("note")
	}
	return fmt.Sprintf("%s: %s: %s",
		pathColor.Sprintf("%s:%d:%d", path, pos.LineNumber, pos.Column), label, d.Message)
}
