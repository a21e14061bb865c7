// Package bus provides the event bus used to broadcast worker lifecycle events.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a message on the event bus.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(eventType, source string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler handles one event.
type EventHandler func(ctx context.Context, event *Event) error

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus publishes events to subjects and delivers them to subscribers.
// Events published to one subject reach each subscription in publish order.
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	// Subscribe accepts NATS-style wildcards: * for one token, > for the rest.
	Subscribe(subject string, handler EventHandler) (Subscription, error)
	Close()
	IsConnected() bool
}
