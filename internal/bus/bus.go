package bus

import (
	"fmt"
	"log/slog"

	"github.com/opencompliance/complycal/internal/domain"
)

// New creates an event bus based on configuration.
func New(cfg domain.EventBusConfig, logger *slog.Logger) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
