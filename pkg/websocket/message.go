// Package websocket defines the editor gateway's message envelope and the
// dispatcher that routes requests to handlers by action.
package websocket

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeRequest      MessageType = "request"
	MessageTypeResponse     MessageType = "response"
	MessageTypeNotification MessageType = "notification"
	MessageTypeError        MessageType = "error"
)

// Message is the envelope for every message in either direction.
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorPayload represents an error response payload
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func newMessage(id string, typ MessageType, action string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        id,
		Type:      typ,
		Action:    action,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewRequest creates a new request message
func NewRequest(id, action string, payload any) (*Message, error) {
	return newMessage(id, MessageTypeRequest, action, payload)
}

// NewResponse creates a new response message
func NewResponse(id, action string, payload any) (*Message, error) {
	return newMessage(id, MessageTypeResponse, action, payload)
}

// NewNotification creates a server push message; it has no id.
func NewNotification(action string, payload any) (*Message, error) {
	return newMessage("", MessageTypeNotification, action, payload)
}

// NewError creates a new error response message
func NewError(id, action, code, message string, details map[string]any) (*Message, error) {
	return newMessage(id, MessageTypeError, action, ErrorPayload{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// ParsePayload parses the payload into the given struct
func (m *Message) ParsePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
