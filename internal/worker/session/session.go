// Package session is the coordinator's handle on one worker. It composes the
// channel, correlator, update queue and I/O bridge into the typed capability
// surface the gateway and the lifecycle manager use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/events"
	"github.com/kast-lang/playground/internal/events/bus"
	"github.com/kast-lang/playground/internal/lsp"
	"github.com/kast-lang/playground/internal/worker/channel"
	"github.com/kast-lang/playground/internal/worker/correlator"
	"github.com/kast-lang/playground/internal/worker/iobridge"
	"github.com/kast-lang/playground/internal/worker/protocol"
	"github.com/kast-lang/playground/internal/worker/queue"
	"github.com/kast-lang/playground/internal/worker/spawner"
)

var (
	// ErrTerminated rejects calls on a session that was terminated.
	ErrTerminated = errors.New("worker session terminated")
	// ErrWorkerExited rejects calls when the worker went away on its own.
	ErrWorkerExited = errors.New("worker exited")
	// ErrHandshakeTimeout is returned by Start when init never arrives.
	ErrHandshakeTimeout = errors.New("worker handshake timed out")
	// ErrRunInProgress is returned by Run while another run owns the session.
	ErrRunInProgress = errors.New("a program is already running in this session")
)

const defaultHandshakeTimeout = 10 * time.Second

// DiagnosticsHandler receives the diagnostics of every processed update.
type DiagnosticsHandler func(uri string, diagnostics []lsp.Diagnostic)

// Options configure a session.
type Options struct {
	HandshakeTimeout time.Duration
	OnDiagnostics    DiagnosticsHandler
	Logger           *logger.Logger
	// Bus receives session.started and session.terminated; optional.
	Bus bus.EventBus
}

// Session is one live worker.
type Session struct {
	id      string
	version string

	ch      *channel.Channel
	calls   *correlator.Correlator
	updates *queue.Queue
	opts    Options

	ready chan string

	legendGroup singleflight.Group
	legendMu    sync.Mutex
	legend      *lsp.SemanticTokensLegend

	runMu  sync.Mutex
	bridge atomic.Pointer[iobridge.Bridge]

	stopOnce sync.Once
	done     chan struct{}
	reason   error

	log *logger.Logger
}

// Start spawns a worker and returns once it has announced itself. A worker
// that fails the handshake is terminated.
func Start(ctx context.Context, sp spawner.Spawner, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}

	id := uuid.New().String()
	log := opts.Logger.WithSessionID(id)

	conn, err := sp.Spawn(ctx)
	if err != nil {
		return nil, fmt.Errorf("spawn worker: %w", err)
	}

	s := &Session{
		id:      id,
		ch:      channel.New(conn, conn.Codec(), log),
		calls:   correlator.New(log),
		updates: queue.New(log),
		opts:    opts,
		ready:   make(chan string, 1),
		done:    make(chan struct{}),
		log:     log.WithComponent("worker-session"),
	}
	s.ch.Start(s.dispatch)

	timer := time.NewTimer(opts.HandshakeTimeout)
	defer timer.Stop()

	select {
	case s.version = <-s.ready:
	case <-timer.C:
		s.teardown(ErrHandshakeTimeout)
		return nil, ErrHandshakeTimeout
	case <-s.ch.Done():
		err := fmt.Errorf("%w before handshake: %v", ErrWorkerExited, s.ch.Err())
		s.teardown(err)
		return nil, err
	case <-ctx.Done():
		s.teardown(ctx.Err())
		return nil, ctx.Err()
	}

	go s.watch()
	s.log.Info("worker session started", zap.String("version", s.version), zap.String("codec", conn.Codec().Name()))
	s.publish(events.SessionStarted, map[string]any{"version": s.version})
	return s, nil
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

// Version is the engine version the worker reported in its handshake.
func (s *Session) Version() string { return s.version }

// Done is closed once the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err is the reason the session ended, nil while it is live.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.reason
	default:
		return nil
	}
}

// Terminate kills the worker and rejects every pending call with
// ErrTerminated. It is idempotent.
func (s *Session) Terminate() {
	s.teardown(ErrTerminated)
}

func (s *Session) watch() {
	select {
	case <-s.done:
	case <-s.ch.Done():
		err := s.ch.Err()
		if errors.Is(err, channel.ErrTerminated) {
			s.teardown(ErrTerminated)
			return
		}
		s.log.Warn("worker went away", zap.Error(err))
		s.teardown(fmt.Errorf("%w: %v", ErrWorkerExited, err))
	}
}

func (s *Session) teardown(reason error) {
	s.stopOnce.Do(func() {
		s.reason = reason
		s.ch.Terminate()
		s.updates.Close()
		s.calls.Close(reason)
		if b := s.bridge.Swap(nil); b != nil {
			b.Close()
		}
		close(s.done)
		s.log.Info("worker session ended", zap.String("reason", reason.Error()))
		s.publish(events.SessionTerminated, map[string]any{"reason": reason.Error()})
	})
}

func (s *Session) publish(eventType string, data map[string]any) {
	if s.opts.Bus == nil {
		return
	}
	data["session_id"] = s.id
	ev := bus.NewEvent(eventType, "worker-session", data)
	if err := s.opts.Bus.Publish(context.Background(), events.SessionSubject(s.id), ev); err != nil {
		s.log.Warn("failed to publish session event", zap.String("type", eventType), zap.Error(err))
	}
}

// dispatch routes every frame from the worker. It runs on the channel's read
// goroutine, so output reaches the bridge in arrival order.
func (s *Session) dispatch(f *protocol.Frame) {
	switch f.Kind {
	case protocol.KindInit:
		var hello protocol.Init
		if err := f.DecodeBody(&hello); err != nil {
			s.log.Warn("bad init frame", zap.Error(err))
		}
		select {
		case s.ready <- hello.Version:
		default:
			s.log.Warn("duplicate init from worker")
		}
	case protocol.KindOutput:
		var out protocol.Output
		if err := f.DecodeBody(&out); err != nil {
			s.log.Warn("bad output frame", zap.Error(err))
			return
		}
		if b := s.bridge.Load(); b != nil {
			b.HandleOutput(out.Chunk)
		} else {
			s.log.Debug("output with no active run", zap.Int("bytes", len(out.Chunk)))
		}
	case protocol.KindInput:
		var req protocol.InputRequest
		if err := f.DecodeBody(&req); err != nil {
			s.log.Warn("bad input request", zap.Error(err))
			return
		}
		if b := s.bridge.Load(); b != nil {
			b.HandleInputRequest(f.ID, req.Prompt)
		} else {
			s.log.Warn("input request with no active run", zap.Uint64("id", f.ID))
		}
	default:
		if !protocol.IsResponseKind(f.Kind) {
			s.log.Warn("ignoring unknown message kind", zap.String("kind", string(f.Kind)))
			return
		}
		s.calls.Deliver(f)
	}
}
