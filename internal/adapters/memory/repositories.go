package memory

import (
	"sync"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// Repositories is the in-process storage used by the memory driver and tests.
// Earnings and payouts share one ledger lock so balance checks see a
// consistent view. Every writer appends its events to the shared outbox while
// still holding its own lock.
type Repositories struct {
	Experiments *ExperimentRepository
	Campaigns   *CampaignRepository
	Partners    *PartnerRepository
	Earnings    *EarningsRepository
	Payouts     *PayoutRepository
	Idempotency *IdempotencyRepository
	EventDedup  *EventDedupRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	outbox := &OutboxRepository{}
	ledger := &ledger{
		periods: make(map[string]domain.EarningsPeriod),
		payouts: make(map[string]domain.PayoutRequest),
		outbox:  outbox,
	}
	return &Repositories{
		Experiments: &ExperimentRepository{experiments: make(map[string]domain.Experiment), outbox: outbox},
		Campaigns:   &CampaignRepository{campaigns: make(map[string]domain.Campaign)},
		Partners:    &PartnerRepository{partners: make(map[string]domain.Partner)},
		Earnings:    &EarningsRepository{ledger: ledger},
		Payouts:     &PayoutRepository{ledger: ledger},
		Idempotency: &IdempotencyRepository{records: make(map[string]ports.IdempotencyRecord)},
		EventDedup:  &EventDedupRepository{records: make(map[string]dedupRecord)},
		Outbox:      outbox,
	}
}

type ledger struct {
	mu          sync.RWMutex
	periods     map[string]domain.EarningsPeriod
	periodOrder []string
	payouts     map[string]domain.PayoutRequest
	payoutOrder []string
	outbox      *OutboxRepository
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
