// Package lifecycle owns the run slot: a fresh worker per program run, at
// most one of them alive at a time.
package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/common/tracing"
	"github.com/kast-lang/playground/internal/events"
	"github.com/kast-lang/playground/internal/events/bus"
	"github.com/kast-lang/playground/internal/worker/iobridge"
	"github.com/kast-lang/playground/internal/worker/session"
	"github.com/kast-lang/playground/internal/worker/spawner"
)

// State is the run slot's position in its state machine.
type State string

const (
	StateIdle       State = "idle"
	StateSpawning   State = "spawning"
	StateReady      State = "ready"
	StateRunning    State = "running"
	StateTerminated State = "terminated"
)

var (
	// ErrSuperseded is returned by a Run displaced by a newer one.
	ErrSuperseded = errors.New("run superseded by a newer run")
	// ErrShutdown is returned by Run after Shutdown.
	ErrShutdown = errors.New("run manager shut down")
)

// Manager serializes runs onto one slot. Starting a run terminates the
// previous run's worker; that is the only way to cancel one.
type Manager struct {
	id      string
	spawner spawner.Spawner
	opts    session.Options
	bus     bus.EventBus

	mu      sync.Mutex
	gen     uint64
	current *session.Session
	state   State
	closed  bool

	// publishMu keeps published transitions in the order they happened.
	publishMu sync.Mutex
	// outputMu is held while a chunk is checked and delivered, so no chunk
	// of a superseded run lands after the slot changed hands.
	outputMu sync.Mutex

	log *logger.Logger
}

// NewManager creates an idle manager. b may be nil.
func NewManager(sp spawner.Spawner, opts session.Options, b bus.EventBus, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	id := uuid.New().String()
	if opts.Logger == nil {
		opts.Logger = log
	}
	if opts.Bus == nil {
		opts.Bus = b
	}
	return &Manager{
		id:      id,
		spawner: sp,
		opts:    opts,
		bus:     b,
		state:   StateIdle,
		log:     log.WithComponent("run-manager").WithFields(zap.String("manager_id", id)),
	}
}

// ID names the manager on the event bus; see events.RunStateSubject.
func (m *Manager) ID() string { return m.id }

// State is the slot's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run executes contents on a fresh worker and returns when the program
// finishes. Output and input requests flow through h while this run owns the
// slot and are dropped once a newer run takes it.
func (m *Manager) Run(ctx context.Context, uri, contents string, h iobridge.Handlers) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShutdown
	}
	m.gen++
	gen := m.gen
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	m.awaitOutput()

	if prev != nil {
		m.log.Debug("terminating previous run", zap.String("session_id", prev.ID()))
		prev.Terminate()
		m.transition(ctx, gen, StateTerminated)
	}

	m.transition(ctx, gen, StateSpawning)
	s, err := session.Start(ctx, m.spawner, m.opts)
	if err != nil {
		m.transition(ctx, gen, StateTerminated)
		if m.superseded(gen) {
			return ErrSuperseded
		}
		return err
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		s.Terminate()
		return ErrSuperseded
	}
	m.current = s
	m.mu.Unlock()

	m.transition(ctx, gen, StateReady)
	m.transition(ctx, gen, StateRunning)
	err = s.Run(ctx, uri, contents, m.gate(gen, h))

	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()
	s.Terminate()

	if m.superseded(gen) {
		return ErrSuperseded
	}
	m.transition(ctx, gen, StateTerminated)
	return err
}

// Shutdown terminates the live run, if any, and rejects later runs.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	gen := m.gen
	cur := m.current
	m.current = nil
	m.mu.Unlock()
	m.awaitOutput()

	if cur != nil {
		cur.Terminate()
		m.transition(context.Background(), gen, StateTerminated)
	}
}

func (m *Manager) superseded(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen != m.gen
}

// awaitOutput returns once any chunk delivery that started before the
// generation bump has finished.
func (m *Manager) awaitOutput() {
	m.outputMu.Lock()
	m.outputMu.Unlock() //nolint:staticcheck // barrier
}

// gate drops I/O of a run once a newer one owns the slot.
func (m *Manager) gate(gen uint64, h iobridge.Handlers) iobridge.Handlers {
	var out iobridge.Handlers
	if h.Output != nil {
		out.Output = func(chunk string) {
			m.outputMu.Lock()
			defer m.outputMu.Unlock()
			if !m.superseded(gen) {
				h.Output(chunk)
			}
		}
	}
	if h.Input != nil {
		out.Input = func(ctx context.Context, prompt string) (string, error) {
			if m.superseded(gen) {
				return "", ErrSuperseded
			}
			return h.Input(ctx, prompt)
		}
	}
	return out
}

// transition moves the slot to st if gen still owns it.
func (m *Manager) transition(ctx context.Context, gen uint64, st State) {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = st
	m.mu.Unlock()

	m.log.Debug("run state changed", zap.String("state", string(st)), zap.Uint64("generation", gen))
	tracing.TraceRunState(ctx, m.id, string(st))
	if m.bus == nil {
		return
	}
	ev := bus.NewEvent(events.RunStateChanged, "run-manager", map[string]any{
		"manager_id": m.id,
		"state":      string(st),
		"generation": gen,
	})
	if err := m.bus.Publish(context.WithoutCancel(ctx), events.RunStateSubject(m.id), ev); err != nil {
		m.log.Warn("failed to publish run state", zap.String("state", string(st)), zap.Error(err))
	}
}
