package memory

import (
	"context"
	"slices"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

type EarningsRepository struct {
	ledger *ledger
}

func (r *EarningsRepository) Create(_ context.Context, period domain.EarningsPeriod, events ports.OutboxEvents[domain.EarningsPeriod]) error {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if _, exists := r.ledger.periods[period.PeriodID]; exists {
		return domain.ErrConflict
	}
	for _, id := range r.ledger.periodOrder {
		existing := r.ledger.periods[id]
		if existing.PartnerID == period.PartnerID &&
			existing.PeriodStart.Equal(period.PeriodStart) &&
			existing.PeriodEnd.Equal(period.PeriodEnd) &&
			existing.Status != domain.EarningsStatusCancelled {
			return domain.ErrConflict
		}
	}
	if period.Version == 0 {
		period.Version = 1
	}
	staged, err := buildEvents(events, period)
	if err != nil {
		return err
	}
	r.ledger.periods[period.PeriodID] = period
	r.ledger.periodOrder = append(r.ledger.periodOrder, period.PeriodID)
	r.ledger.outbox.append(staged)
	return nil
}

func (r *EarningsRepository) GetByID(_ context.Context, periodID string) (domain.EarningsPeriod, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	period, ok := r.ledger.periods[periodID]
	if !ok {
		return domain.EarningsPeriod{}, domain.ErrNotFound
	}
	return period, nil
}

func (r *EarningsRepository) List(_ context.Context, query ports.EarningsQuery) ([]domain.EarningsPeriod, int, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	items := make([]domain.EarningsPeriod, 0)
	for _, id := range r.ledger.periodOrder {
		period := r.ledger.periods[id]
		if query.PartnerID != "" && period.PartnerID != query.PartnerID {
			continue
		}
		if query.Status != "" && period.Status != query.Status {
			continue
		}
		items = append(items, period)
	}
	slices.SortStableFunc(items, func(a, b domain.EarningsPeriod) int {
		return b.PeriodStart.Compare(a.PeriodStart)
	})
	return paginate(items, query.Limit, query.Offset), len(items), nil
}

func (r *EarningsRepository) ListByPartner(_ context.Context, partnerID string) ([]domain.EarningsPeriod, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	return r.ledger.partnerPeriods(partnerID), nil
}

func (r *EarningsRepository) UpdateStatus(_ context.Context, next domain.EarningsPeriod, expectedVersion int64, events ports.OutboxEvents[domain.EarningsPeriod]) (domain.EarningsPeriod, error) {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	current, ok := r.ledger.periods[next.PeriodID]
	if !ok {
		return domain.EarningsPeriod{}, domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.EarningsPeriod{}, &domain.ConcurrentModificationError{Entity: "earnings period", ID: next.PeriodID}
	}
	next.Version = expectedVersion + 1
	staged, err := buildEvents(events, next)
	if err != nil {
		return domain.EarningsPeriod{}, err
	}
	r.ledger.periods[next.PeriodID] = next
	r.ledger.outbox.append(staged)
	return next, nil
}

type PayoutRepository struct {
	ledger *ledger
}

func (r *PayoutRepository) CreateAuthorized(_ context.Context, partnerID string, build ports.PayoutBuilder, events ports.OutboxEvents[domain.PayoutRequest]) (domain.PayoutRequest, error) {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	available := domain.AvailableBalance(r.ledger.partnerPeriods(partnerID), r.ledger.partnerPayouts(partnerID))
	req, err := build(available)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if req.Version == 0 {
		req.Version = 1
	}
	staged, err := buildEvents(events, req)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	r.ledger.payouts[req.PayoutID] = req
	r.ledger.payoutOrder = append(r.ledger.payoutOrder, req.PayoutID)
	r.ledger.outbox.append(staged)
	return req, nil
}

func (r *PayoutRepository) GetByID(_ context.Context, payoutID string) (domain.PayoutRequest, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	req, ok := r.ledger.payouts[payoutID]
	if !ok {
		return domain.PayoutRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (r *PayoutRepository) List(_ context.Context, query ports.PayoutQuery) ([]domain.PayoutRequest, int, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	items := make([]domain.PayoutRequest, 0)
	for _, id := range r.ledger.payoutOrder {
		req := r.ledger.payouts[id]
		if query.PartnerID != "" && req.PartnerID != query.PartnerID {
			continue
		}
		if query.Status != "" && req.Status != query.Status {
			continue
		}
		items = append(items, req)
	}
	slices.SortStableFunc(items, func(a, b domain.PayoutRequest) int {
		return b.RequestDate.Compare(a.RequestDate)
	})
	return paginate(items, query.Limit, query.Offset), len(items), nil
}

func (r *PayoutRepository) ListByPartner(_ context.Context, partnerID string) ([]domain.PayoutRequest, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	return r.ledger.partnerPayouts(partnerID), nil
}

func (r *PayoutRepository) UpdateStatus(_ context.Context, next domain.PayoutRequest, expectedVersion int64, events ports.OutboxEvents[domain.PayoutRequest]) (domain.PayoutRequest, error) {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	current, ok := r.ledger.payouts[next.PayoutID]
	if !ok {
		return domain.PayoutRequest{}, domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.PayoutRequest{}, &domain.ConcurrentModificationError{Entity: "payout request", ID: next.PayoutID}
	}
	next.Version = expectedVersion + 1
	staged, err := buildEvents(events, next)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	r.ledger.payouts[next.PayoutID] = next
	r.ledger.outbox.append(staged)
	return next, nil
}

func (l *ledger) partnerPeriods(partnerID string) []domain.EarningsPeriod {
	out := make([]domain.EarningsPeriod, 0)
	for _, id := range l.periodOrder {
		if p := l.periods[id]; p.PartnerID == partnerID {
			out = append(out, p)
		}
	}
	return out
}

func (l *ledger) partnerPayouts(partnerID string) []domain.PayoutRequest {
	out := make([]domain.PayoutRequest, 0)
	for _, id := range l.payoutOrder {
		if p := l.payouts[id]; p.PartnerID == partnerID {
			out = append(out, p)
		}
	}
	return out
}

var (
	_ ports.EarningsRepository = (*EarningsRepository)(nil)
	_ ports.PayoutRepository   = (*PayoutRepository)(nil)
)
