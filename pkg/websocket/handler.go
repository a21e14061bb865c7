package websocket

import (
	"context"
	"fmt"
	"sort"
)

// Handler answers one editor request.
type Handler interface {
	// Handle returns the reply for msg, or nil when the handler replies on
	// its own.
	Handle(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// Dispatcher routes editor requests by action. Actions are registered while
// a connection is being set up, before its first Dispatch, so the table is
// read without locking.
type Dispatcher struct {
	routes map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[string]Handler)}
}

// Register binds action to h, replacing any earlier binding.
func (d *Dispatcher) Register(action string, h Handler) {
	d.routes[action] = h
}

func (d *Dispatcher) RegisterFunc(action string, h HandlerFunc) {
	d.Register(action, h)
}

// Dispatch answers msg. Malformed envelopes and unknown actions get an error
// message rather than a Go error; a panicking handler is reported as
// INTERNAL_ERROR.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (reply *Message, err error) {
	if msg.Type != MessageTypeRequest {
		return NewError(msg.ID, msg.Action, ErrorCodeBadRequest,
			fmt.Sprintf("expected a request, got %q", msg.Type), nil)
	}
	if msg.ID == "" {
		return NewError("", msg.Action, ErrorCodeBadRequest, "request id is required", nil)
	}
	h, ok := d.routes[msg.Action]
	if !ok {
		return NewError(msg.ID, msg.Action, ErrorCodeUnknownAction, "Unknown action: "+msg.Action, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			reply, err = NewError(msg.ID, msg.Action, ErrorCodeInternalError, "internal error",
				map[string]any{"panic": fmt.Sprint(r)})
		}
	}()
	return h.Handle(ctx, msg)
}

func (d *Dispatcher) HasHandler(action string) bool {
	_, ok := d.routes[action]
	return ok
}

// Actions lists the registered actions in sorted order.
func (d *Dispatcher) Actions() []string {
	out := make([]string, 0, len(d.routes))
	for a := range d.routes {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
