package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

type Config struct {
	ServiceName            string
	DefaultCurrency        string
	BaseUnitRate           decimal.Decimal
	MinimumPayoutThreshold decimal.Decimal
	SummaryCacheTTL        time.Duration
	IdempotencyTTL         time.Duration
	EventDedupTTL          time.Duration
	PayoutRequestsPerHour  int
	StorageTimeout         time.Duration
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

func (a Actor) IsAdmin() bool { return a.Role == "admin" }

type CreateExperimentInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	Variants    []domain.VariantAllocation
}

type ChangeExperimentStatusInput struct {
	Status          string
	ExpectedVersion *int64
}

type ReplaceVariantsInput struct {
	Variants        []domain.VariantAllocation
	ExpectedVersion *int64
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

type RecordEarningsPeriodInput struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	TotalImpressions int64
	TotalEngagements int64
}

type RequestPayoutInput struct {
	Amount          decimal.Decimal
	PaymentMethodID string
}

type PayoutReviewAction string

const (
	PayoutReviewApprove  PayoutReviewAction = "approve"
	PayoutReviewReject   PayoutReviewAction = "reject"
	PayoutReviewComplete PayoutReviewAction = "complete"
)

type Service struct {
	cfg         Config
	calculator  domain.EarningsCalculator
	experiments ports.ExperimentRepository
	campaigns   ports.CampaignReader
	partners    ports.PartnerRepository
	earnings    ports.EarningsRepository
	payouts     ports.PayoutRepository
	idempotency ports.IdempotencyRepository
	eventDedup  ports.EventDedupRepository
	cache       ports.Cache
	tokens      ports.TokenVerifier
	metrics     ports.Metrics
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Experiments ports.ExperimentRepository
	Campaigns   ports.CampaignReader
	Partners    ports.PartnerRepository
	Earnings    ports.EarningsRepository
	Payouts     ports.PayoutRepository
	Idempotency ports.IdempotencyRepository
	EventDedup  ports.EventDedupRepository
	Cache       ports.Cache
	Tokens      ports.TokenVerifier
	Metrics     ports.Metrics
	Clock       func() time.Time
}
