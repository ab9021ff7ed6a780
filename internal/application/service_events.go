package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// outboxEvent wraps payload in the canonical envelope. Repositories store the
// result in the same transaction as the row it describes.
func (s *Service) outboxEvent(actor Actor, eventType, partitionKeyPath, partitionKey string, payload any) (ports.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	now := s.nowFn()
	eventID := uuid.New()
	traceID := actor.RequestID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	envelope := contracts.EventEnvelope{
		EventID:          eventID.String(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClassDomain,
		OccurredAt:       now,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    "v1",
		Data:             data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	return ports.OutboxEvent{
		EventID:          eventID,
		EventType:        eventType,
		PartitionKey:     partitionKey,
		PartitionKeyPath: partitionKeyPath,
		Payload:          raw,
		SchemaVersion:    envelope.SchemaVersion,
		TraceID:          traceID,
		OccurredAt:       now,
	}, nil
}

func (s *Service) experimentCreatedEvents(actor Actor) ports.OutboxEvents[domain.Experiment] {
	return func(exp domain.Experiment) ([]ports.OutboxEvent, error) {
		ids := make([]string, 0, len(exp.Variants))
		for _, v := range exp.Variants {
			ids = append(ids, v.VariantID)
		}
		event, err := s.outboxEvent(actor, domain.EventExperimentCreated, "data.experiment_id", exp.ExperimentID, contracts.ExperimentCreatedPayload{
			ExperimentID: exp.ExperimentID,
			CampaignID:   exp.CampaignID,
			VariantIDs:   ids,
			StartDate:    exp.StartDate.Format(time.RFC3339),
			CreatedAt:    exp.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		return []ports.OutboxEvent{event}, nil
	}
}

// experimentStatusEvents also emits experiment.completed when the saved
// experiment is COMPLETED, carrying the winner fixed at that write.
func (s *Service) experimentStatusEvents(actor Actor, from domain.ExperimentStatus) ports.OutboxEvents[domain.Experiment] {
	return func(exp domain.Experiment) ([]ports.OutboxEvent, error) {
		payload := contracts.ExperimentStatusChangedPayload{
			ExperimentID:     exp.ExperimentID,
			CampaignID:       exp.CampaignID,
			FromStatus:       string(from),
			ToStatus:         string(exp.Status),
			WinningVariantID: exp.WinningVariantID,
			Version:          exp.Version,
			ChangedAt:        exp.UpdatedAt.Format(time.RFC3339),
		}
		if exp.EndDate != nil {
			end := exp.EndDate.Format(time.RFC3339)
			payload.EndDate = &end
		}
		types := []string{domain.EventExperimentStatusChanged}
		if exp.Status == domain.ExperimentStatusCompleted {
			types = append(types, domain.EventExperimentCompleted)
		}
		out := make([]ports.OutboxEvent, 0, len(types))
		for _, eventType := range types {
			event, err := s.outboxEvent(actor, eventType, "data.experiment_id", exp.ExperimentID, payload)
			if err != nil {
				return nil, err
			}
			out = append(out, event)
		}
		return out, nil
	}
}

func (s *Service) earningsEvents(actor Actor, eventType string) ports.OutboxEvents[domain.EarningsPeriod] {
	return func(period domain.EarningsPeriod) ([]ports.OutboxEvent, error) {
		payload := contracts.EarningsPeriodPayload{
			PeriodID:         period.PeriodID,
			PartnerID:        period.PartnerID,
			Status:           string(period.Status),
			Amount:           domain.RoundCurrency(period.Amount).StringFixed(2),
			TotalImpressions: period.TotalImpressions,
			TotalEngagements: period.TotalEngagements,
			OccurredAt:       period.UpdatedAt.Format(time.RFC3339),
		}
		if period.TransactionID != nil {
			payload.TransactionID = *period.TransactionID
		}
		event, err := s.outboxEvent(actor, eventType, "data.partner_id", period.PartnerID, payload)
		if err != nil {
			return nil, err
		}
		return []ports.OutboxEvent{event}, nil
	}
}

func (s *Service) payoutRequestedEvents(actor Actor) ports.OutboxEvents[domain.PayoutRequest] {
	return func(req domain.PayoutRequest) ([]ports.OutboxEvent, error) {
		event, err := s.outboxEvent(actor, domain.EventPayoutRequested, "data.partner_id", req.PartnerID, contracts.PayoutRequestedPayload{
			PayoutID:           req.PayoutID,
			PartnerID:          req.PartnerID,
			Amount:             req.RequestedAmount.StringFixed(2),
			Currency:           req.Currency,
			PaymentMethodID:    req.PaymentMethodID,
			AuthorizationToken: req.AuthorizationToken,
			RequestedAt:        req.RequestDate.Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		return []ports.OutboxEvent{event}, nil
	}
}

func (s *Service) payoutStatusEvents(actor Actor, from domain.PayoutStatus) ports.OutboxEvents[domain.PayoutRequest] {
	return func(req domain.PayoutRequest) ([]ports.OutboxEvent, error) {
		event, err := s.outboxEvent(actor, domain.EventPayoutStatusChanged, "data.partner_id", req.PartnerID, contracts.PayoutStatusChangedPayload{
			PayoutID:   req.PayoutID,
			PartnerID:  req.PartnerID,
			Amount:     req.RequestedAmount.StringFixed(2),
			FromStatus: string(from),
			ToStatus:   string(req.Status),
			ReviewedBy: req.ReviewedBy,
			ChangedAt:  req.UpdatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		return []ports.OutboxEvent{event}, nil
	}
}
