package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/kast-lang/playground/internal/common/errors"
	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/worker/lifecycle"
	"github.com/kast-lang/playground/internal/worker/session"
	ws "github.com/kast-lang/playground/pkg/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024

	sendBufferSize = 256
)

// Client is one editor connection.
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *logger.Logger

	// sendTimeout bounds how long a producer waits on a full send buffer
	// before the connection is given up.
	sendTimeout time.Duration
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, log *logger.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: log.WithFields(zap.String("client_id", id)),

		sendTimeout: writeWait,
	}
}

// ReadPump reads requests until the connection fails, dispatching each one.
// file.update and run.input are handled in arrival order on this goroutine;
// everything else gets its own goroutine so a slow query or a running program
// never blocks edits.
func (c *Client) ReadPump(ctx context.Context, d *ws.Dispatcher) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Failed to parse message", zap.Error(err))
			c.sendError("", "", ws.ErrorCodeBadRequest, "Invalid message format", nil)
			continue
		}

		switch msg.Action {
		case ws.ActionFileUpdate, ws.ActionRunInput:
			c.handleMessage(ctx, d, &msg)
		default:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.handleMessage(ctx, d, &msg)
			}()
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, d *ws.Dispatcher, msg *ws.Message) {
	c.logger.Debug("Received message",
		zap.String("action", msg.Action),
		zap.String("id", msg.ID))

	response, err := d.Dispatch(ctx, msg)
	if err != nil {
		code, message := errorCode(err)
		if code == ws.ErrorCodeInternalError {
			c.logger.Error("Handler error", zap.String("action", msg.Action), zap.Error(err))
		}
		c.sendError(msg.ID, msg.Action, code, message, nil)
		return
	}
	if response != nil {
		c.sendMessage(response)
	}
}

// errorCode maps handler errors onto protocol error codes.
func errorCode(err error) (string, string) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, session.ErrRunInProgress):
		return ws.ErrorCodeRunInProgress, err.Error()
	case errors.Is(err, session.ErrTerminated),
		errors.Is(err, session.ErrWorkerExited),
		errors.Is(err, session.ErrHandshakeTimeout),
		errors.Is(err, lifecycle.ErrShutdown):
		return ws.ErrorCodeWorkerUnavailable, err.Error()
	case errors.As(err, &appErr):
		switch appErr.Code {
		case apperrors.ErrCodeBadRequest:
			return ws.ErrorCodeBadRequest, appErr.Message
		case apperrors.ErrCodeNotFound:
			return ws.ErrorCodeNotFound, appErr.Message
		}
	}
	return ws.ErrorCodeInternalError, apperrors.PublicMessage(err)
}

// Notify pushes a server notification.
func (c *Client) Notify(action string, payload any) {
	msg, err := ws.NewNotification(action, payload)
	if err != nil {
		c.logger.Error("Failed to create notification", zap.String("action", action), zap.Error(err))
		return
	}
	c.sendMessage(msg)
}

func (c *Client) sendMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.done:
		return
	case c.send <- data:
		return
	default:
	}

	// A full buffer blocks the producer; an editor that stops reading is
	// disconnected.
	timer := time.NewTimer(c.sendTimeout)
	defer timer.Stop()
	select {
	case <-c.done:
	case c.send <- data:
	case <-timer.C:
		c.logger.Warn("Client not reading, closing connection", zap.String("action", msg.Action))
		_ = c.conn.Close()
		c.Close()
	}
}

func (c *Client) sendError(id, action, code, message string, details map[string]any) {
	msg, err := ws.NewError(id, action, code, message, details)
	if err != nil {
		c.logger.Error("Failed to create error message", zap.Error(err))
		return
	}
	c.sendMessage(msg)
}

// Wait blocks until every request handler started by ReadPump has returned.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close stops the write pump and closes the connection. Safe to call more
// than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// WritePump writes queued messages and keeps the connection alive with
// pings. Whatever is still queued when Close is called is flushed first.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			for {
				select {
				case message := <-c.send:
					if c.write(websocket.TextMessage, message) != nil {
						return
					}
				default:
					_ = c.write(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
