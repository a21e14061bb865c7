// Package channel carries protocol frames over a byte stream shared with an
// isolated worker. Sends never block the caller; a dedicated writer drains an
// ordered outbox. Terminate is immediate and drops anything still queued.
package channel

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/worker/protocol"
)

// ErrTerminated is reported by Err after Terminate.
var ErrTerminated = errors.New("channel terminated")

// Handler receives inbound frames in arrival order, one at a time.
type Handler func(*protocol.Frame)

// Channel is one bidirectional, ordered message pipe to a worker.
type Channel struct {
	conn  io.ReadWriteCloser
	codec protocol.Codec
	log   *logger.Logger

	mu         sync.Mutex
	outbox     [][]byte
	terminated bool
	err        error

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New wraps conn. The writer starts immediately; call Start to begin reading.
func New(conn io.ReadWriteCloser, codec protocol.Codec, log *logger.Logger) *Channel {
	c := &Channel{
		conn:  conn,
		codec: codec,
		log:   log.WithComponent("worker-channel"),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Codec returns the codec frames are encoded with.
func (c *Channel) Codec() protocol.Codec {
	return c.codec
}

// Start begins delivering inbound frames to h. Only the first call has effect.
func (c *Channel) Start(h Handler) {
	c.startOnce.Do(func() {
		go c.readLoop(h)
	})
}

// Send encodes msg now and queues it for delivery. Sending on a terminated
// channel is a silent no-op; only encoding failures are returned.
func (c *Channel) Send(id uint64, msg protocol.Message) error {
	data, err := c.codec.Marshal(id, msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		c.log.Debug("dropping message for terminated worker", zap.String("kind", string(msg.Kind())))
		return nil
	}
	c.outbox = append(c.outbox, data)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Terminate closes the connection and discards queued messages. Idempotent.
func (c *Channel) Terminate() {
	c.shutdown(ErrTerminated)
}

// Done is closed once the inbound side has stopped.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the channel stopped: ErrTerminated, io.EOF when the worker
// closed its end, or a transport error.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Terminated reports whether the channel no longer accepts messages.
func (c *Channel) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

func (c *Channel) shutdown(reason error) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.terminated = true
		c.outbox = nil
		if c.err == nil {
			c.err = reason
		}
		c.mu.Unlock()
		close(c.stop)
		if err := c.conn.Close(); err != nil {
			c.log.Debug("close worker connection", zap.Error(err))
		}
	})
}

func (c *Channel) writeLoop() {
	for {
		select {
		case <-c.stop:
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if c.terminated || len(c.outbox) == 0 {
				c.mu.Unlock()
				break
			}
			data := c.outbox[0]
			c.outbox[0] = nil
			c.outbox = c.outbox[1:]
			c.mu.Unlock()

			if _, err := c.conn.Write(data); err != nil {
				c.log.Warn("write to worker failed", zap.Error(err))
				c.shutdown(err)
				return
			}
		}
	}
}

func (c *Channel) readLoop(h Handler) {
	defer close(c.done)
	dec := c.codec.NewDecoder(c.conn)
	for {
		f, err := dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedFrame) {
				c.log.Warn("skipping malformed frame", zap.Error(err))
				continue
			}
			if c.Terminated() {
				return
			}
			if !errors.Is(err, io.EOF) {
				c.log.Warn("read from worker failed", zap.Error(err))
			}
			c.shutdown(err)
			return
		}
		if c.Terminated() {
			return
		}
		h(f)
	}
}
