package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type ExperimentCreatedPayload struct {
	ExperimentID string   `json:"experiment_id"`
	CampaignID   string   `json:"campaign_id"`
	VariantIDs   []string `json:"variant_ids"`
	StartDate    string   `json:"start_date"`
	CreatedAt    string   `json:"created_at"`
}

type ExperimentStatusChangedPayload struct {
	ExperimentID     string  `json:"experiment_id"`
	CampaignID       string  `json:"campaign_id"`
	FromStatus       string  `json:"from_status"`
	ToStatus         string  `json:"to_status"`
	WinningVariantID *string `json:"winning_variant_id,omitempty"`
	EndDate          *string `json:"end_date,omitempty"`
	Version          int64   `json:"version"`
	ChangedAt        string  `json:"changed_at"`
}

type EarningsPeriodPayload struct {
	PeriodID         string `json:"period_id"`
	PartnerID        string `json:"partner_id"`
	Status           string `json:"status"`
	Amount           string `json:"amount"`
	TotalImpressions int64  `json:"total_impressions"`
	TotalEngagements int64  `json:"total_engagements"`
	TransactionID    string `json:"transaction_id,omitempty"`
	OccurredAt       string `json:"occurred_at"`
}

type PayoutRequestedPayload struct {
	PayoutID           string `json:"payout_id"`
	PartnerID          string `json:"partner_id"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	PaymentMethodID    string `json:"payment_method_id"`
	AuthorizationToken string `json:"authorization_token"`
	RequestedAt        string `json:"requested_at"`
}

type PayoutStatusChangedPayload struct {
	PayoutID   string `json:"payout_id"`
	PartnerID  string `json:"partner_id"`
	Amount     string `json:"amount"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	ChangedAt  string `json:"changed_at"`
}

// DeliveryVariantMetricsPayload carries counter deltas accumulated by the
// ad-delivery service since its previous flush.
type DeliveryVariantMetricsPayload struct {
	ExperimentID string `json:"experiment_id"`
	VariantID    string `json:"variant_id"`
	Impressions  int64  `json:"impressions"`
	Engagements  int64  `json:"engagements"`
	Conversions  int64  `json:"conversions"`
	WindowEnd    string `json:"window_end"`
}
