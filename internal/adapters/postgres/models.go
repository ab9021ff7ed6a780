package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type experimentModel struct {
	ExperimentID     string     `gorm:"column:experiment_id;primaryKey"`
	CampaignID       string     `gorm:"column:campaign_id"`
	Name             string     `gorm:"column:name"`
	Description      string     `gorm:"column:description"`
	Status           string     `gorm:"column:status"`
	StartDate        time.Time  `gorm:"column:start_date"`
	EndDate          *time.Time `gorm:"column:end_date"`
	WinningVariantID *string    `gorm:"column:winning_variant_id"`
	Version          int64      `gorm:"column:version"`
	CreatedBy        string     `gorm:"column:created_by"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (experimentModel) TableName() string { return "experiments" }

type variantModel struct {
	VariantID         string    `gorm:"column:variant_id;primaryKey"`
	ExperimentID      string    `gorm:"column:experiment_id"`
	CreativeID        string    `gorm:"column:ad_creative_id"`
	Name              string    `gorm:"column:name"`
	TrafficAllocation float64   `gorm:"column:traffic_allocation"`
	Impressions       int64     `gorm:"column:impressions"`
	Engagements       int64     `gorm:"column:engagements"`
	Conversions       int64     `gorm:"column:conversions"`
	Position          int       `gorm:"column:position"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (variantModel) TableName() string { return "experiment_variants" }

type campaignModel struct {
	CampaignID   string `gorm:"column:campaign_id;primaryKey"`
	AdvertiserID string `gorm:"column:advertiser_id"`
}

func (campaignModel) TableName() string { return "campaigns" }

type creativeModel struct {
	CreativeID string `gorm:"column:ad_creative_id;primaryKey"`
	CampaignID string `gorm:"column:campaign_id"`
}

func (creativeModel) TableName() string { return "ad_creatives" }

type partnerModel struct {
	PartnerID      string          `gorm:"column:partner_id;primaryKey"`
	UserID         string          `gorm:"column:user_id"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,4)"`
}

func (partnerModel) TableName() string { return "partners" }

type paymentMethodModel struct {
	PaymentMethodID string `gorm:"column:payment_method_id;primaryKey"`
	PartnerID       string `gorm:"column:partner_id"`
}

func (paymentMethodModel) TableName() string { return "partner_payment_methods" }

type earningsPeriodModel struct {
	PeriodID         string          `gorm:"column:period_id;primaryKey"`
	PartnerID        string          `gorm:"column:partner_id"`
	PeriodStart      time.Time       `gorm:"column:period_start"`
	PeriodEnd        time.Time       `gorm:"column:period_end"`
	TotalImpressions int64           `gorm:"column:total_impressions"`
	TotalEngagements int64           `gorm:"column:total_engagements"`
	CommissionRate   decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,4)"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	Status           string          `gorm:"column:status"`
	PaidDate         *time.Time      `gorm:"column:paid_date"`
	TransactionID    *string         `gorm:"column:transaction_id"`
	Version          int64           `gorm:"column:version"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (earningsPeriodModel) TableName() string { return "earnings_periods" }

type payoutRequestModel struct {
	PayoutID           string          `gorm:"column:payout_id;primaryKey"`
	PartnerID          string          `gorm:"column:partner_id"`
	RequestedAmount    decimal.Decimal `gorm:"column:requested_amount;type:numeric(12,2)"`
	Currency           string          `gorm:"column:currency"`
	Status             string          `gorm:"column:status"`
	PaymentMethodID    string          `gorm:"column:payment_method_id"`
	AuthorizationToken string          `gorm:"column:authorization_token"`
	RequestDate        time.Time       `gorm:"column:request_date"`
	ProcessedDate      *time.Time      `gorm:"column:processed_date"`
	ReviewedBy         string          `gorm:"column:reviewed_by"`
	Version            int64           `gorm:"column:version"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (payoutRequestModel) TableName() string { return "payout_requests" }

type outboxModel struct {
	OutboxID         uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType        string     `gorm:"column:event_type"`
	PartitionKey     string     `gorm:"column:partition_key"`
	PartitionKeyPath string     `gorm:"column:partition_key_path"`
	Payload          string     `gorm:"column:payload"`
	SchemaVersion    string     `gorm:"column:schema_version"`
	TraceID          string     `gorm:"column:trace_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	FirstSeenAt      time.Time  `gorm:"column:first_seen_at"`
	PublishedAt      *time.Time `gorm:"column:published_at"`
	RetryCount       int        `gorm:"column:retry_count"`
	LastError        *string    `gorm:"column:last_error"`
	LastErrorAt      *time.Time `gorm:"column:last_error_at"`
}

func (outboxModel) TableName() string { return "experiment_earnings_outbox" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "experiment_earnings_idempotency" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "experiment_earnings_event_dedup" }
