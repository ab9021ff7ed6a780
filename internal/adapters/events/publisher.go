package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
)

// LoggingPublisher writes outbox events to the log when no broker is
// configured. It keeps a running count so local runs can see the relay moving.
type LoggingPublisher struct {
	logger    *slog.Logger
	published atomic.Int64
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	var envelope contracts.EventEnvelope
	_ = json.Unmarshal(payload, &envelope)
	total := p.published.Add(1)
	p.logger.InfoContext(ctx, "experiment earnings event relayed",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_id", envelope.EventID,
		"event_type", eventType,
		"partition_key", partitionKey,
		"partition_key_path", envelope.PartitionKeyPath,
		"trace_id", envelope.TraceID,
		"payload_bytes", len(payload),
		"published_total", total,
	)
	return nil
}

// Published reports how many events this publisher has relayed.
func (p *LoggingPublisher) Published() int64 {
	return p.published.Load()
}
