package spawner

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/engine"
	"github.com/kast-lang/playground/internal/worker/host"
	"github.com/kast-lang/playground/internal/worker/protocol"
)

// InProcess runs each worker as a goroutine with its own engine instance.
// Nothing is shared between workers but the process.
type InProcess struct {
	NewEngine engine.Factory
	Codec     protocol.Codec
	Logger    *logger.Logger
}

func (s *InProcess) Spawn(ctx context.Context) (Conn, error) {
	codec := s.Codec
	if codec == nil {
		codec = protocol.JSONCodec{}
	}
	log := s.Logger
	if log == nil {
		log = logger.Default()
	}

	coordEnd, workerEnd := net.Pipe()
	// The worker outlives the spawn request; only Close stops it.
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &pipeConn{Conn: coordEnd, codec: codec, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		if err := host.Serve(workerCtx, workerEnd, codec, s.NewEngine(), log); err != nil {
			log.Warn("in-process worker stopped with error", zap.Error(err))
		}
	}()
	return c, nil
}

type pipeConn struct {
	net.Conn
	codec  protocol.Codec
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (c *pipeConn) Codec() protocol.Codec { return c.codec }

func (c *pipeConn) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		err = c.Conn.Close()
	})
	return err
}
