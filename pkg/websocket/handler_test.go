package websocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesByAction(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc(ActionHealthCheck, func(ctx context.Context, msg *Message) (*Message, error) {
		return NewResponse(msg.ID, msg.Action, map[string]string{"status": "ok"})
	})
	assert.True(t, d.HasHandler(ActionHealthCheck))
	assert.False(t, d.HasHandler(ActionRunStart))

	req, err := NewRequest("1", ActionHealthCheck, nil)
	require.NoError(t, err)
	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, "1", resp.ID)

	var body map[string]string
	require.NoError(t, resp.ParsePayload(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestDispatcher_UnknownAction(t *testing.T) {
	d := NewDispatcher()
	req, err := NewRequest("7", "nope", nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, resp.Type)
	assert.Equal(t, "7", resp.ID)

	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeUnknownAction, payload.Code)
}

func TestNotificationHasNoID(t *testing.T) {
	msg, err := NewNotification(ActionRunOutput, map[string]string{"chunk": "hi\n"})
	require.NoError(t, err)
	assert.Empty(t, msg.ID)
	assert.Equal(t, MessageTypeNotification, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestParsePayload_Empty(t *testing.T) {
	msg := &Message{}
	var v struct{ A int }
	assert.NoError(t, msg.ParsePayload(&v))
}

func TestDispatcher_RejectsMalformedEnvelopes(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc(ActionHealthCheck, func(ctx context.Context, msg *Message) (*Message, error) {
		t.Fatal("handler reached")
		return nil, nil
	})

	tests := []struct {
		name string
		msg  *Message
	}{
		{name: "notification", msg: &Message{ID: "1", Type: MessageTypeNotification, Action: ActionHealthCheck}},
		{name: "no type", msg: &Message{ID: "1", Action: ActionHealthCheck}},
		{name: "no id", msg: &Message{Type: MessageTypeRequest, Action: ActionHealthCheck}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := d.Dispatch(context.Background(), tt.msg)
			require.NoError(t, err)
			assert.Equal(t, MessageTypeError, resp.Type)

			var payload ErrorPayload
			require.NoError(t, resp.ParsePayload(&payload))
			assert.Equal(t, ErrorCodeBadRequest, payload.Code)
		})
	}
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc(ActionRunStart, func(ctx context.Context, msg *Message) (*Message, error) {
		panic("boom")
	})
	req, err := NewRequest("3", ActionRunStart, nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "3", resp.ID)

	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeInternalError, payload.Code)
	assert.Equal(t, "boom", payload.Details["panic"])
}

func TestDispatcher_Actions(t *testing.T) {
	d := NewDispatcher()
	noop := func(context.Context, *Message) (*Message, error) { return nil, nil }
	d.RegisterFunc(ActionRunStart, noop)
	d.RegisterFunc(ActionFileUpdate, noop)
	d.RegisterFunc(ActionHealthCheck, noop)

	assert.Equal(t, []string{ActionFileUpdate, ActionHealthCheck, ActionRunStart}, d.Actions())
}
