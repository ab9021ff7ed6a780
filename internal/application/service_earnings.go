package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// RecordEarningsPeriod is the scheduler entry point that opens a PENDING
// period for one partner.
func (s *Service) RecordEarningsPeriod(ctx context.Context, actor Actor, partnerID string, input RecordEarningsPeriodInput) (domain.EarningsPeriod, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.EarningsPeriod{}, err
	}
	if err := domain.ValidateEarningsWindow(input.PeriodStart, input.PeriodEnd); err != nil {
		return domain.EarningsPeriod{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	partner, err := s.partners.GetByID(ctx, strings.TrimSpace(partnerID))
	if err != nil {
		return domain.EarningsPeriod{}, err
	}
	amount, err := s.calculator.ComputeAmount(input.TotalImpressions, input.TotalEngagements, partner.CommissionRate)
	if err != nil {
		return domain.EarningsPeriod{}, err
	}
	now := s.nowFn()
	period := domain.EarningsPeriod{
		PeriodID:         uuid.NewString(),
		PartnerID:        partner.PartnerID,
		PeriodStart:      input.PeriodStart.UTC(),
		PeriodEnd:        input.PeriodEnd.UTC(),
		TotalImpressions: input.TotalImpressions,
		TotalEngagements: input.TotalEngagements,
		CommissionRate:   partner.CommissionRate,
		Amount:           domain.RoundCurrency(amount),
		Status:           domain.EarningsStatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.earnings.Create(ctx, period, s.earningsEvents(actor, domain.EventEarningsPeriodRecorded)); err != nil {
		return domain.EarningsPeriod{}, err
	}
	s.metrics.ObserveEarningsRecorded(string(period.Status), period.Amount.InexactFloat64())
	s.invalidateSummary(ctx, partner.PartnerID)
	return period, nil
}

// ProcessEarningsPeriod recomputes the amount from the stored counters and the
// partner's current commission rate, then moves the period to PROCESSED.
func (s *Service) ProcessEarningsPeriod(ctx context.Context, actor Actor, periodID string) (domain.EarningsPeriod, error) {
	return s.transitionEarnings(ctx, actor, periodID, domain.EarningsStatusProcessed, func(ctx context.Context, next *domain.EarningsPeriod) error {
		partner, err := s.partners.GetByID(ctx, next.PartnerID)
		if err != nil {
			return err
		}
		amount, err := s.calculator.ComputeAmount(next.TotalImpressions, next.TotalEngagements, partner.CommissionRate)
		if err != nil {
			return err
		}
		next.CommissionRate = partner.CommissionRate
		next.Amount = domain.RoundCurrency(amount)
		return nil
	})
}

func (s *Service) MarkEarningsPeriodPaid(ctx context.Context, actor Actor, periodID, transactionID string) (domain.EarningsPeriod, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.EarningsPeriod{}, domain.NewValidationError(domain.ReasonInvalidRequest, "transactionId is required", map[string]any{"field": "transactionId"})
	}
	return s.transitionEarnings(ctx, actor, periodID, domain.EarningsStatusPaid, func(_ context.Context, next *domain.EarningsPeriod) error {
		next.TransactionID = &transactionID
		return nil
	})
}

func (s *Service) CancelEarningsPeriod(ctx context.Context, actor Actor, periodID string) (domain.EarningsPeriod, error) {
	return s.transitionEarnings(ctx, actor, periodID, domain.EarningsStatusCancelled, nil)
}

func (s *Service) transitionEarnings(ctx context.Context, actor Actor, periodID string, target domain.EarningsStatus, mutate func(context.Context, *domain.EarningsPeriod) error) (domain.EarningsPeriod, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.EarningsPeriod{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	current, err := s.earnings.GetByID(ctx, strings.TrimSpace(periodID))
	if err != nil {
		return domain.EarningsPeriod{}, err
	}
	next, err := domain.TransitionEarningsPeriod(current, target, s.nowFn())
	if err != nil {
		return domain.EarningsPeriod{}, err
	}
	if mutate != nil {
		if err := mutate(ctx, &next); err != nil {
			return domain.EarningsPeriod{}, err
		}
	}
	saved, err := s.earnings.UpdateStatus(ctx, next, current.Version, s.earningsEvents(actor, domain.EventEarningsPeriodTransition))
	if err != nil {
		return domain.EarningsPeriod{}, err
	}
	s.metrics.ObserveEarningsRecorded(string(saved.Status), saved.Amount.InexactFloat64())
	s.invalidateSummary(ctx, saved.PartnerID)
	return saved, nil
}

// GetEarningsSummary serves the partner dashboard totals, cached per partner
// and window until the next ledger write.
func (s *Service) GetEarningsSummary(ctx context.Context, actor Actor, rawPeriod string) (contracts.EarningsSummaryResponse, error) {
	if err := requireActor(actor); err != nil {
		return contracts.EarningsSummaryResponse{}, err
	}
	period, err := domain.ParseSummaryPeriod(rawPeriod)
	if err != nil {
		return contracts.EarningsSummaryResponse{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	partner, err := s.partnerFor(ctx, actor)
	if err != nil {
		return contracts.EarningsSummaryResponse{}, err
	}
	var key string
	if s.cache != nil {
		generation, err := s.summaryGeneration(ctx, partner.PartnerID)
		if err != nil {
			slog.Default().WarnContext(ctx, "summary generation read failed",
				"module", "application",
				"layer", "service",
				"operation", "get_earnings_summary",
				"outcome", "failure",
				"partner_id", partner.PartnerID,
				"error", err,
			)
		} else {
			key = summaryCacheKey(partner.PartnerID, generation, period)
			if cached, ok := s.cachedSummary(ctx, key); ok {
				return cached, nil
			}
		}
	}

	periods, err := s.earnings.ListByPartner(ctx, partner.PartnerID)
	if err != nil {
		return contracts.EarningsSummaryResponse{}, err
	}
	payouts, err := s.payouts.ListByPartner(ctx, partner.PartnerID)
	if err != nil {
		return contracts.EarningsSummaryResponse{}, err
	}
	summary := domain.SummarizeEarnings(period, periods, payouts, s.nowFn())
	summary.MinimumPayoutThreshold = s.cfg.MinimumPayoutThreshold
	summary.CommissionRate = partner.CommissionRate
	out := summaryResponse(summary, s.cfg.DefaultCurrency)

	if key != "" {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cfg.SummaryCacheTTL); err != nil {
				slog.Default().WarnContext(ctx, "summary cache write failed",
					"module", "application",
					"layer", "service",
					"operation", "get_earnings_summary",
					"outcome", "failure",
					"error", err,
				)
			}
		}
	}
	return out, nil
}

func (s *Service) cachedSummary(ctx context.Context, key string) (contracts.EarningsSummaryResponse, bool) {
	if s.cache == nil {
		return contracts.EarningsSummaryResponse{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return contracts.EarningsSummaryResponse{}, false
	}
	var out contracts.EarningsSummaryResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return contracts.EarningsSummaryResponse{}, false
	}
	return out, true
}

func (s *Service) ListEarningsPeriods(ctx context.Context, actor Actor, query ListQuery) ([]domain.EarningsPeriod, contracts.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, contracts.Pagination{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()
	partner, err := s.partnerFor(ctx, actor)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	q := ports.EarningsQuery{PartnerID: partner.PartnerID}
	if query.Status != "" {
		q.Status = domain.EarningsStatus(strings.ToUpper(strings.TrimSpace(query.Status)))
	}
	q.Limit, q.Offset = normalizePage(query.Limit, query.Offset)
	items, total, err := s.earnings.List(ctx, q)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	return items, contracts.Pagination{Limit: q.Limit, Offset: q.Offset, Total: total}, nil
}

func summaryResponse(summary domain.EarningsSummary, currency string) contracts.EarningsSummaryResponse {
	return contracts.EarningsSummaryResponse{
		Period:                 string(summary.Period),
		TotalEarnings:          domain.RoundCurrency(summary.TotalEarnings).StringFixed(2),
		PaidEarnings:           domain.RoundCurrency(summary.PaidEarnings).StringFixed(2),
		PendingPayments:        domain.RoundCurrency(summary.PendingPayments).StringFixed(2),
		CurrentMonthEarnings:   domain.RoundCurrency(summary.CurrentMonthEarnings).StringFixed(2),
		OpenPayoutRequests:     domain.RoundCurrency(summary.OpenPayoutRequests).StringFixed(2),
		AvailableBalance:       domain.RoundCurrency(summary.AvailableBalance).StringFixed(2),
		TotalImpressions:       summary.TotalImpressions,
		TotalEngagements:       summary.TotalEngagements,
		EngagementRate:         summary.EngagementRate,
		MinimumPayoutThreshold: summary.MinimumPayoutThreshold.StringFixed(2),
		CommissionRate:         summary.CommissionRate.String(),
		PeriodCount:            summary.PeriodCount,
		Currency:               currency,
	}
}
