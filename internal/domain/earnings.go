package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EarningsStatus string

const (
	EarningsStatusPending   EarningsStatus = "PENDING"
	EarningsStatusProcessed EarningsStatus = "PROCESSED"
	EarningsStatusPaid      EarningsStatus = "PAID"
	EarningsStatusCancelled EarningsStatus = "CANCELLED"
)

var earningsTransitions = map[EarningsStatus][]EarningsStatus{
	EarningsStatusPending:   {EarningsStatusProcessed, EarningsStatusCancelled},
	EarningsStatusProcessed: {EarningsStatusPaid, EarningsStatusCancelled},
}

type EarningsPeriod struct {
	PeriodID         string          `json:"id"`
	PartnerID        string          `json:"partnerId"`
	PeriodStart      time.Time       `json:"periodStart"`
	PeriodEnd        time.Time       `json:"periodEnd"`
	TotalImpressions int64           `json:"totalImpressions"`
	TotalEngagements int64           `json:"totalEngagements"`
	CommissionRate   decimal.Decimal `json:"commissionRate"`
	Amount           decimal.Decimal `json:"amount"`
	Status           EarningsStatus  `json:"status"`
	PaidDate         *time.Time      `json:"paidDate,omitempty"`
	TransactionID    *string         `json:"transactionId,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Unpaid reports whether the period still counts toward pending payments.
func (p EarningsPeriod) Unpaid() bool {
	return p.Status == EarningsStatusPending || p.Status == EarningsStatusProcessed
}

// EarningsCalculator derives a partner's payable amount from delivery counters.
// The base unit rate is supplied by configuration.
type EarningsCalculator struct {
	baseUnitRate decimal.Decimal
}

func NewEarningsCalculator(baseUnitRate decimal.Decimal) (EarningsCalculator, error) {
	if !baseUnitRate.IsPositive() {
		return EarningsCalculator{}, NewValidationError(ReasonInvalidAmount, "base unit rate must be positive", map[string]any{
			"base_unit_rate": baseUnitRate.String(),
		})
	}
	return EarningsCalculator{baseUnitRate: baseUnitRate}, nil
}

func (c EarningsCalculator) BaseUnitRate() decimal.Decimal { return c.baseUnitRate }

// ComputeAmount returns impressions * baseUnitRate * commissionRate at full
// precision. Callers round with RoundCurrency when persisting or displaying.
func (c EarningsCalculator) ComputeAmount(totalImpressions, totalEngagements int64, commissionRate decimal.Decimal) (decimal.Decimal, error) {
	if totalImpressions < 0 || totalEngagements < 0 {
		return decimal.Zero, NewValidationError(ReasonNegativeCount, "impression and engagement counts must be non-negative", map[string]any{
			"total_impressions": totalImpressions,
			"total_engagements": totalEngagements,
		})
	}
	if err := ValidateCommissionRate(commissionRate); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(totalImpressions).Mul(c.baseUnitRate).Mul(commissionRate), nil
}

func ValidateCommissionRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return NewValidationError(ReasonInvalidCommissionRate, "commission rate must be within [0, 1]", map[string]any{
			"commission_rate": rate.String(),
		})
	}
	return nil
}

// RoundCurrency rounds to cents, half away from zero.
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// TransitionEarningsPeriod applies PENDING -> PROCESSED -> PAID and the
// cancellation edges. PAID periods are immutable.
func TransitionEarningsPeriod(period EarningsPeriod, target EarningsStatus, now time.Time) (EarningsPeriod, error) {
	allowed := false
	for _, s := range earningsTransitions[period.Status] {
		if s == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return EarningsPeriod{}, &InvalidTransitionError{
			Entity: "earnings period",
			From:   string(period.Status),
			To:     string(target),
		}
	}
	next := period
	next.Status = target
	next.UpdatedAt = now
	if target == EarningsStatusPaid {
		paid := now
		next.PaidDate = &paid
	}
	return next, nil
}

func ValidateEarningsWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return NewValidationError(ReasonInvalidRequest, "periodEnd must be after periodStart", map[string]any{
			"period_start": start,
			"period_end":   end,
		})
	}
	return nil
}
