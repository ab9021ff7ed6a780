package postgres

import (
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Experiments ports.ExperimentRepository
	Campaigns   ports.CampaignReader
	Partners    ports.PartnerRepository
	Earnings    ports.EarningsRepository
	Payouts     ports.PayoutRepository
	Idempotency ports.IdempotencyRepository
	EventDedup  ports.EventDedupRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Experiments: &experimentRepository{db: db},
		Campaigns:   &campaignRepository{db: db},
		Partners:    &partnerRepository{db: db},
		Earnings:    &earningsRepository{db: db},
		Payouts:     &payoutRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		EventDedup:  &eventDedupRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}
