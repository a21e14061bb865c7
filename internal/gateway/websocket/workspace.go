package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/kast-lang/playground/internal/common/errors"
	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/events"
	"github.com/kast-lang/playground/internal/events/bus"
	"github.com/kast-lang/playground/internal/lsp"
	"github.com/kast-lang/playground/internal/worker/lifecycle"
	"github.com/kast-lang/playground/internal/worker/session"
	"github.com/kast-lang/playground/internal/worker/spawner"
	ws "github.com/kast-lang/playground/pkg/websocket"
)

// WorkspaceConfig is shared by every connection.
type WorkspaceConfig struct {
	// Analysis spawns the long-lived worker serving editor queries.
	Analysis spawner.Spawner
	// Runs spawns one worker per program run.
	Runs             spawner.Spawner
	HandshakeTimeout time.Duration
	// Bus carries session and run state events; a private memory bus is used
	// when nil.
	Bus bus.EventBus
}

// Notifier pushes a notification to the editor.
type Notifier func(action string, payload any)

// Workspace is the server side of one editor: an analysis session started
// on first use and a run slot.
type Workspace struct {
	cfg    WorkspaceConfig
	notify Notifier
	ctx    context.Context

	mu       sync.Mutex
	analysis *session.Session
	closed   bool

	runs     *lifecycle.Manager
	runState bus.Subscription
	ownBus   bool

	inputMu sync.Mutex
	inputs  map[string]chan string

	logger *logger.Logger
}

// NewWorkspace creates a workspace whose notifications go to notify. It ends
// with ctx or Close.
func NewWorkspace(ctx context.Context, cfg WorkspaceConfig, notify Notifier, log *logger.Logger) (*Workspace, error) {
	w := &Workspace{
		cfg:    cfg,
		notify: notify,
		ctx:    ctx,
		inputs: make(map[string]chan string),
		logger: log.WithComponent("workspace"),
	}
	if w.cfg.Bus == nil {
		w.cfg.Bus = bus.NewMemoryEventBus(log)
		w.ownBus = true
	}

	w.runs = lifecycle.NewManager(cfg.Runs, session.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           log,
	}, w.cfg.Bus, log)

	sub, err := w.cfg.Bus.Subscribe(events.RunStateSubject(w.runs.ID()), w.forwardRunState)
	if err != nil {
		w.runs.Shutdown()
		if w.ownBus {
			w.cfg.Bus.Close()
		}
		return nil, err
	}
	w.runState = sub
	return w, nil
}

// Close terminates every worker of the workspace.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	analysis := w.analysis
	w.analysis = nil
	w.mu.Unlock()

	if analysis != nil {
		analysis.Terminate()
	}
	w.runs.Shutdown()
	if err := w.runState.Unsubscribe(); err != nil {
		w.logger.Debug("failed to unsubscribe run state", zap.Error(err))
	}
	if w.ownBus {
		w.cfg.Bus.Close()
	}
}

// session returns the live analysis session, starting one when there is
// none or the previous one died. Documents known only to a dead worker are
// lost; the editor resends them on its next edit.
func (w *Workspace) session(ctx context.Context) (*session.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, session.ErrTerminated
	}
	if w.analysis != nil {
		err := w.analysis.Err()
		if err == nil {
			return w.analysis, nil
		}
		w.logger.Warn("analysis worker died, starting a new one", zap.Error(err))
	}
	s, err := session.Start(ctx, w.cfg.Analysis, session.Options{
		HandshakeTimeout: w.cfg.HandshakeTimeout,
		OnDiagnostics:    w.publishDiagnostics,
		Logger:           w.logger,
		Bus:              w.cfg.Bus,
	})
	if err != nil {
		return nil, err
	}
	w.analysis = s
	return s, nil
}

func (w *Workspace) publishDiagnostics(uri string, diagnostics []lsp.Diagnostic) {
	w.notify(ws.ActionDiagnosticsPublish, DiagnosticsNotification{
		URI:         uri,
		Diagnostics: toEditorDiagnostics(diagnostics),
	})
}

func (w *Workspace) forwardRunState(_ context.Context, e *bus.Event) error {
	state, _ := e.Data["state"].(string)
	w.notify(ws.ActionRunState, RunStateNotification{State: state})
	return nil
}

// askUser turns an input request from the running program into a
// run.input.request notification and waits for the matching run.input.
func (w *Workspace) askUser(ctx context.Context, prompt string) (string, error) {
	id := uuid.New().String()
	answer := make(chan string, 1)

	w.inputMu.Lock()
	w.inputs[id] = answer
	w.inputMu.Unlock()
	defer func() {
		w.inputMu.Lock()
		delete(w.inputs, id)
		w.inputMu.Unlock()
	}()

	w.notify(ws.ActionRunInputRequest, InputRequestNotification{RequestID: id, Prompt: prompt})

	select {
	case line := <-answer:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-w.ctx.Done():
		return "", w.ctx.Err()
	}
}

func (w *Workspace) answer(requestID, line string) error {
	w.inputMu.Lock()
	ch, ok := w.inputs[requestID]
	if ok {
		delete(w.inputs, requestID)
	}
	w.inputMu.Unlock()
	if !ok {
		return apperrors.NotFound("input request", requestID)
	}
	ch <- line
	return nil
}

// runResult reports how a run ended.
func runResult(err error) (*RunResult, error) {
	switch {
	case err == nil:
		return &RunResult{Status: RunStatusCompleted}, nil
	case errors.Is(err, lifecycle.ErrSuperseded):
		return &RunResult{Status: RunStatusSuperseded}, nil
	default:
		return nil, err
	}
}
