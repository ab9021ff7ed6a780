package events

import (
	"context"
	"log/slog"
	"sync"
)

// NoopConsumer stands in when no broker is configured. Delivery counters then
// only move through direct calls to the service.
type NoopConsumer struct {
	logger *slog.Logger
	once   sync.Once
}

func NewNoopConsumer(logger *slog.Logger) *NoopConsumer {
	return &NoopConsumer{logger: logger}
}

func (n *NoopConsumer) Poll(ctx context.Context, _ int) ([]Message, error) {
	n.once.Do(func() {
		if n.logger == nil {
			return
		}
		n.logger.InfoContext(ctx, "delivery metrics consumer idle",
			"module", "events.noop_consumer",
			"layer", "adapter",
			"operation", "poll",
			"outcome", "skipped",
			"reason", "no kafka brokers configured",
		)
	})
	return nil, nil
}

func (n *NoopConsumer) Commit(_ context.Context, _ ...Message) error {
	return nil
}

func (n *NoopConsumer) Rewind() error {
	return nil
}
