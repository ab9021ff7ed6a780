package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Payload   []byte
}

// Consumer hands out messages without acknowledging them. Commit moves the
// group offset past the given messages; Rewind drops whatever was polled but
// not committed, so the next Poll starts again from the committed offset.
type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
	Commit(ctx context.Context, msgs ...Message) error
	Rewind() error
}

// DeliveryHandler applies ad delivery counter events.
type DeliveryHandler interface {
	HandleDeliveryEvent(ctx context.Context, event contracts.EventEnvelope) error
}

type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  DeliveryHandler
	interval time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler DeliveryHandler, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger: logger, consumer: consumer, handler: handler, interval: interval,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// processOnce handles one polled batch. A retryable failure commits only the
// messages before it and rewinds, so that event is delivered again next poll.
func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for i, msg := range msgs {
		if err := w.dispatch(ctx, msg); err != nil {
			if commitErr := w.consumer.Commit(ctx, msgs[:i]...); commitErr != nil {
				return errors.Join(err, commitErr)
			}
			if rewindErr := w.consumer.Rewind(); rewindErr != nil {
				return errors.Join(err, rewindErr)
			}
			return err
		}
	}
	return w.consumer.Commit(ctx, msgs...)
}

// dispatch returns an error only when the event should be redelivered.
func (w *ConsumerWorker) dispatch(ctx context.Context, msg Message) error {
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		w.logger.WarnContext(ctx, "dropping undecodable event",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "decode_event",
			"outcome", "failure",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if envelope.EventType == "" {
		envelope.EventType = msg.Topic
	}
	if envelope.EventType != domain.EventDeliveryVariantMetrics {
		return nil
	}
	err := w.handler.HandleDeliveryEvent(ctx, envelope)
	if err == nil {
		return nil
	}
	retry := isRetryable(err)
	w.logger.WarnContext(ctx, "failed to handle delivery event",
		"module", "events.consumer_worker",
		"layer", "adapter",
		"operation", "handle_delivery_event",
		"outcome", "failure",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"will_retry", retry,
		"error", err,
	)
	if retry {
		return fmt.Errorf("handle delivery event %s: %w", envelope.EventID, err)
	}
	return nil
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrDependencyUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
