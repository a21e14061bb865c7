package bus

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
)

// ErrBusClosed is returned after Close.
var ErrBusClosed = errors.New("event bus is closed")

const subscriptionBuffer = 256

// MemoryEventBus implements EventBus in process. Each subscription has its
// own delivery goroutine so handlers see events in publish order.
type MemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions []*memorySubscription
	closed        bool
	logger        *logger.Logger
}

type memorySubscription struct {
	bus     *MemoryEventBus
	subject string
	pattern *regexp.Regexp
	handler EventHandler
	events  chan delivery

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

type delivery struct {
	ctx     context.Context
	subject string
	event   *Event
}

// NewMemoryEventBus creates an in-memory event bus.
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{logger: log.WithComponent("memory-bus")}
}

func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subscriptions {
		if !sub.IsValid() || !matches(subject, sub.subject, sub.pattern) {
			continue
		}
		select {
		case sub.events <- delivery{ctx: context.WithoutCancel(ctx), subject: subject, event: event}:
		case <-sub.stop:
		}
	}
	b.logger.Debug("published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))
	return nil
}

func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub := &memorySubscription{
		bus:     b,
		subject: subject,
		pattern: compilePattern(subject),
		handler: handler,
		events:  make(chan delivery, subscriptionBuffer),
		active:  true,
		stop:    make(chan struct{}),
	}
	b.subscriptions = append(b.subscriptions, sub)
	go sub.deliver()
	b.logger.Debug("subscribed", zap.String("subject", subject))
	return sub, nil
}

// Close deactivates every subscription.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	subs := b.subscriptions
	b.subscriptions = nil
	b.closed = true
	b.mu.Unlock()
	for _, sub := range subs {
		sub.deactivate()
	}
}

func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

func (b *MemoryEventBus) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscriptions {
		if s == sub {
			b.subscriptions = append(b.subscriptions[:i], b.subscriptions[i+1:]...)
			return
		}
	}
}

func (s *memorySubscription) deliver() {
	for {
		select {
		case <-s.stop:
			return
		case d := <-s.events:
			if !s.IsValid() {
				return
			}
			if err := s.handler(d.ctx, d.event); err != nil {
				s.bus.logger.Error("event handler error",
					zap.String("subject", d.subject),
					zap.Error(err))
			}
		}
	}
}

func (s *memorySubscription) Unsubscribe() error {
	s.deactivate()
	s.bus.remove(s)
	return nil
}

func (s *memorySubscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *memorySubscription) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.active = false
		close(s.stop)
	}
}

func matches(subject, pattern string, regex *regexp.Regexp) bool {
	if regex == nil {
		return subject == pattern
	}
	return regex.MatchString(subject)
}

// compilePattern converts a NATS-style pattern to a regexp; nil for literals.
func compilePattern(pattern string) *regexp.Regexp {
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, ">") {
		return nil
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)
	escaped = strings.ReplaceAll(escaped, `>`, `.+`)
	regex, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return regex
}
