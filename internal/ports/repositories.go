package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

type ExperimentQuery struct {
	CampaignID string
	Status     domain.ExperimentStatus
	Limit      int
	Offset     int
}

type VariantCounterDelta struct {
	ExperimentID string
	VariantID    string
	Impressions  int64
	Engagements  int64
	Conversions  int64
}

// OutboxEvents builds the events that describe a write from the row as it is
// about to be stored. Repositories insert them in the same transaction as the
// row, and an error from the builder aborts the write. A nil builder writes no
// events.
type OutboxEvents[T any] func(saved T) ([]OutboxEvent, error)

// ExperimentRepository persists experiments with their variants. Writes that
// change an experiment compare-and-set on Version and bump it by one; a lost
// race surfaces as *domain.ConcurrentModificationError.
type ExperimentRepository interface {
	Create(ctx context.Context, experiment domain.Experiment, events OutboxEvents[domain.Experiment]) error
	GetByID(ctx context.Context, experimentID string) (domain.Experiment, error)
	List(ctx context.Context, query ExperimentQuery) ([]domain.Experiment, int, error)
	// ApplyTransition writes status, winner, end date and updated_at together.
	ApplyTransition(ctx context.Context, next domain.Experiment, expectedVersion int64, events OutboxEvents[domain.Experiment]) (domain.Experiment, error)
	ReplaceVariants(ctx context.Context, experimentID string, variants []domain.Variant, expectedVersion int64, at time.Time) (domain.Experiment, error)
	// IncrementCounters fails with domain.ErrCountersFrozen unless the
	// experiment is ACTIVE or PAUSED.
	IncrementCounters(ctx context.Context, delta VariantCounterDelta, at time.Time) error
}

type CampaignReader interface {
	GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, error)
}

type PartnerRepository interface {
	GetByID(ctx context.Context, partnerID string) (domain.Partner, error)
	GetByUserID(ctx context.Context, userID string) (domain.Partner, error)
}

type EarningsQuery struct {
	PartnerID string
	Status    domain.EarningsStatus
	Limit     int
	Offset    int
}

type EarningsRepository interface {
	Create(ctx context.Context, period domain.EarningsPeriod, events OutboxEvents[domain.EarningsPeriod]) error
	GetByID(ctx context.Context, periodID string) (domain.EarningsPeriod, error)
	List(ctx context.Context, query EarningsQuery) ([]domain.EarningsPeriod, int, error)
	ListByPartner(ctx context.Context, partnerID string) ([]domain.EarningsPeriod, error)
	UpdateStatus(ctx context.Context, next domain.EarningsPeriod, expectedVersion int64, events OutboxEvents[domain.EarningsPeriod]) (domain.EarningsPeriod, error)
}

type PayoutQuery struct {
	PartnerID string
	Status    domain.PayoutStatus
	Limit     int
	Offset    int
}

// PayoutBuilder receives the partner's available balance, computed while the
// partner is locked, and returns the request to store or a gate rejection.
type PayoutBuilder func(available decimal.Decimal) (domain.PayoutRequest, error)

type PayoutRepository interface {
	CreateAuthorized(ctx context.Context, partnerID string, build PayoutBuilder, events OutboxEvents[domain.PayoutRequest]) (domain.PayoutRequest, error)
	GetByID(ctx context.Context, payoutID string) (domain.PayoutRequest, error)
	List(ctx context.Context, query PayoutQuery) ([]domain.PayoutRequest, int, error)
	ListByPartner(ctx context.Context, partnerID string) ([]domain.PayoutRequest, error)
	UpdateStatus(ctx context.Context, next domain.PayoutRequest, expectedVersion int64, events OutboxEvents[domain.PayoutRequest]) (domain.PayoutRequest, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
	Release(ctx context.Context, key string) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type OutboxEvent struct {
	EventID          uuid.UUID
	EventType        string
	PartitionKey     string
	PartitionKeyPath string
	Payload          []byte
	SchemaVersion    string
	TraceID          string
	OccurredAt       time.Time
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	// FetchUnpublished returns the oldest unpublished records whose RetryCount
	// is below maxRetries.
	FetchUnpublished(ctx context.Context, limit, maxRetries int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}
