package events

import (
	"context"
	"log/slog"
	"sync"
)

// DisabledConsumer stands in when sale events are not consumed; activations
// then arrive only over HTTP or gRPC.
type DisabledConsumer struct {
	logger *slog.Logger
	reason string
	once   sync.Once
}

func NewDisabledConsumer(logger *slog.Logger, reason string) *DisabledConsumer {
	return &DisabledConsumer{logger: logger, reason: reason}
}

func (c *DisabledConsumer) Poll(ctx context.Context, _ int) ([]Message, error) {
	c.once.Do(func() {
		c.logger.InfoContext(ctx, "sale event consumption disabled",
			"module", "events.consumer",
			"layer", "adapter",
			"operation", "poll",
			"outcome", "skipped",
			"reason", c.reason,
		)
	})
	return nil, nil
}
