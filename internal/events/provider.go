package events

import (
	"fmt"
	"strings"

	"github.com/kast-lang/playground/internal/common/config"
	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/events/bus"
)

// Provide builds NATS when nats.url is set and the in-memory bus otherwise.
// The returned cleanup closes the bus.
func Provide(cfg *config.Config, log *logger.Logger) (bus.EventBus, func(), error) {
	if strings.TrimSpace(cfg.NATS.URL) != "" {
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize NATS event bus: %w", err)
		}
		return natsBus, natsBus.Close, nil
	}
	memBus := bus.NewMemoryEventBus(log)
	return memBus, memBus.Close, nil
}
