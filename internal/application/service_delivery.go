package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// HandleDeliveryEvent applies counter deltas reported by ad delivery. Deltas
// for experiments that already reached a terminal status are dropped.
func (s *Service) HandleDeliveryEvent(ctx context.Context, event contracts.EventEnvelope) error {
	if event.EventType != domain.EventDeliveryVariantMetrics {
		s.metrics.ObserveEventConsumed(event.EventType, "unsupported")
		return domain.ErrUnsupportedEventType
	}
	if strings.TrimSpace(event.EventID) == "" || len(event.Data) == 0 {
		s.metrics.ObserveEventConsumed(event.EventType, "invalid")
		return domain.NewValidationError(domain.ReasonInvalidRequest, "event_id and data are required", nil)
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	now := s.nowFn()
	dup, err := s.eventDedup.IsDuplicate(ctx, event.EventID, now)
	if err != nil {
		return err
	}
	if dup {
		s.metrics.ObserveEventConsumed(event.EventType, "duplicate")
		return nil
	}

	var payload contracts.DeliveryVariantMetricsPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		s.metrics.ObserveEventConsumed(event.EventType, "invalid")
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	if payload.Impressions < 0 || payload.Engagements < 0 || payload.Conversions < 0 {
		s.metrics.ObserveEventConsumed(event.EventType, "invalid")
		return domain.NewValidationError(domain.ReasonNegativeCount, "counter deltas must be non-negative", map[string]any{
			"variant_id": payload.VariantID,
		})
	}

	err = s.experiments.IncrementCounters(ctx, ports.VariantCounterDelta{
		ExperimentID: payload.ExperimentID,
		VariantID:    payload.VariantID,
		Impressions:  payload.Impressions,
		Engagements:  payload.Engagements,
		Conversions:  payload.Conversions,
	}, now)
	switch {
	case errors.Is(err, domain.ErrCountersFrozen):
		s.metrics.ObserveEventConsumed(event.EventType, "frozen")
	case err != nil:
		s.metrics.ObserveEventConsumed(event.EventType, outcomeOf(err))
		return err
	default:
		s.metrics.ObserveEventConsumed(event.EventType, "success")
	}
	return s.eventDedup.MarkProcessed(ctx, event.EventID, event.EventType, now.Add(s.cfg.EventDedupTTL))
}
