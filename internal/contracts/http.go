package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

type SuccessResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status    string         `json:"status"`
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type VariantRequest struct {
	AdCreativeID      string   `json:"adCreativeId" validate:"required,max=64"`
	Name              string   `json:"name" validate:"required,max=120"`
	TrafficAllocation *float64 `json:"trafficAllocation,omitempty"`
}

type CreateExperimentRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description,omitempty" validate:"max=2000"`
	StartDate   time.Time        `json:"startDate"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
	Variants    []VariantRequest `json:"variants" validate:"dive"`
}

type UpdateExperimentStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty" validate:"omitempty,gte=1"`
}

type ReplaceVariantsRequest struct {
	Variants        []VariantRequest `json:"variants" validate:"dive"`
	ExpectedVersion *int64           `json:"expectedVersion,omitempty" validate:"omitempty,gte=1"`
}

type VariantResult struct {
	VariantID         string   `json:"variantId"`
	Name              string   `json:"name"`
	AdCreativeID      string   `json:"adCreativeId"`
	TrafficAllocation float64  `json:"trafficAllocation"`
	Impressions       int64    `json:"impressions"`
	Engagements       int64    `json:"engagements"`
	Conversions       int64    `json:"conversions"`
	EngagementRate    float64  `json:"engagementRate"`
	ConversionRate    float64  `json:"conversionRate"`
	LiftVsControl     *float64 `json:"liftVsControl,omitempty"`
	IsControl         bool     `json:"isControl"`
}

type ExperimentResultsResponse struct {
	ExperimentID     string          `json:"experimentId"`
	Status           string          `json:"status"`
	Variants         []VariantResult `json:"variants"`
	LeadingVariantID *string         `json:"leadingVariantId"`
	WinningVariantID *string         `json:"winningVariantId"`
	TotalImpressions int64           `json:"totalImpressions"`
	TotalEngagements int64           `json:"totalEngagements"`
	Final            bool            `json:"final"`
}

type RecordEarningsPeriodRequest struct {
	PeriodStart      time.Time `json:"periodStart"`
	PeriodEnd        time.Time `json:"periodEnd"`
	TotalImpressions int64     `json:"totalImpressions"`
	TotalEngagements int64     `json:"totalEngagements"`
}

type MarkEarningsPaidRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=128"`
}

type EarningsPeriodResponse struct {
	ID               string     `json:"id"`
	PartnerID        string     `json:"partnerId"`
	PeriodStart      time.Time  `json:"periodStart"`
	PeriodEnd        time.Time  `json:"periodEnd"`
	TotalImpressions int64      `json:"totalImpressions"`
	TotalEngagements int64      `json:"totalEngagements"`
	CommissionRate   string     `json:"commissionRate"`
	Amount           string     `json:"amount"`
	Status           string     `json:"status"`
	PaidDate         *time.Time `json:"paidDate,omitempty"`
	TransactionID    *string    `json:"transactionId,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type EarningsSummaryResponse struct {
	Period                 string  `json:"period"`
	TotalEarnings          string  `json:"totalEarnings"`
	PaidEarnings           string  `json:"paidEarnings"`
	PendingPayments        string  `json:"pendingPayments"`
	CurrentMonthEarnings   string  `json:"currentMonthEarnings"`
	OpenPayoutRequests     string  `json:"openPayoutRequests"`
	AvailableBalance       string  `json:"availableBalance"`
	TotalImpressions       int64   `json:"totalImpressions"`
	TotalEngagements       int64   `json:"totalEngagements"`
	EngagementRate         float64 `json:"engagementRate"`
	MinimumPayoutThreshold string  `json:"minimumPayoutThreshold"`
	CommissionRate         string  `json:"commissionRate"`
	PeriodCount            int     `json:"periodCount"`
	Currency               string  `json:"currency"`
}

type CreatePayoutRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"paymentMethodId" validate:"required,max=64"`
}

type ReviewPayoutRequest struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

type PayoutRequestResponse struct {
	ID                 string     `json:"id"`
	PartnerID          string     `json:"partnerId"`
	RequestedAmount    string     `json:"requestedAmount"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	PaymentMethodID    string     `json:"paymentMethodId"`
	AuthorizationToken string     `json:"authorizationToken"`
	RequestDate        time.Time  `json:"requestDate"`
	ProcessedDate      *time.Time `json:"processedDate,omitempty"`
	Version            int64      `json:"version"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}
