package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "PENDING"
	PayoutStatusApproved  PayoutStatus = "APPROVED"
	PayoutStatusRejected  PayoutStatus = "REJECTED"
	PayoutStatusCompleted PayoutStatus = "COMPLETED"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:  {PayoutStatusApproved, PayoutStatusRejected},
	PayoutStatusApproved: {PayoutStatusCompleted},
}

type PayoutRequest struct {
	PayoutID           string          `json:"id"`
	PartnerID          string          `json:"partnerId"`
	RequestedAmount    decimal.Decimal `json:"requestedAmount"`
	Currency           string          `json:"currency"`
	Status             PayoutStatus    `json:"status"`
	PaymentMethodID    string          `json:"paymentMethodId"`
	AuthorizationToken string          `json:"authorizationToken"`
	RequestDate        time.Time       `json:"requestDate"`
	ProcessedDate      *time.Time      `json:"processedDate,omitempty"`
	ReviewedBy         string          `json:"reviewedBy,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Committed reports whether the request still holds part of the balance.
func (p PayoutRequest) Committed() bool {
	return p.Status != PayoutStatusRejected
}

// PayoutAuthorization is the gate's decision, handed to the payment processor.
type PayoutAuthorization struct {
	RequestedAmount  decimal.Decimal `json:"requestedAmount"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	MinimumThreshold decimal.Decimal `json:"minimumThreshold"`
	Token            string          `json:"token"`
}

// AuthorizePayout checks the threshold first, then the balance. It holds no
// state, so identical inputs always produce the same decision and token.
func AuthorizePayout(requested, available, minimum decimal.Decimal) (PayoutAuthorization, error) {
	if !requested.IsPositive() || !requested.Equal(requested.Truncate(2)) {
		return PayoutAuthorization{}, NewValidationError(ReasonInvalidAmount, "amount must be positive with at most two decimal places", map[string]any{
			"requested_amount": requested.String(),
		})
	}
	if requested.LessThan(minimum) {
		return PayoutAuthorization{}, &BelowThresholdError{Requested: requested, Minimum: minimum}
	}
	if requested.GreaterThan(available) {
		return PayoutAuthorization{}, &InsufficientBalanceError{Requested: requested, Available: available}
	}
	return PayoutAuthorization{
		RequestedAmount:  requested,
		AvailableBalance: available,
		MinimumThreshold: minimum,
		Token:            authorizationToken(requested, available, minimum),
	}, nil
}

func authorizationToken(requested, available, minimum decimal.Decimal) string {
	canonical := requested.StringFixed(2) + "|" + available.StringFixed(2) + "|" + minimum.StringFixed(2)
	sum := sha256.Sum256([]byte(canonical))
	return "pa_" + hex.EncodeToString(sum[:16])
}

// AvailableBalance is everything earned in non-cancelled periods minus every
// payout request that was not rejected.
func AvailableBalance(periods []EarningsPeriod, payouts []PayoutRequest) decimal.Decimal {
	earned := decimal.Zero
	for _, p := range periods {
		if p.Status == EarningsStatusCancelled {
			continue
		}
		earned = earned.Add(p.Amount)
	}
	committed := decimal.Zero
	for _, p := range payouts {
		if p.Committed() {
			committed = committed.Add(p.RequestedAmount)
		}
	}
	return earned.Sub(committed)
}

func TransitionPayoutRequest(req PayoutRequest, target PayoutStatus, reviewer string, now time.Time) (PayoutRequest, error) {
	allowed := false
	for _, s := range payoutTransitions[req.Status] {
		if s == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return PayoutRequest{}, &InvalidTransitionError{
			Entity: "payout request",
			From:   string(req.Status),
			To:     string(target),
		}
	}
	next := req
	next.Status = target
	next.UpdatedAt = now
	if reviewer != "" {
		next.ReviewedBy = reviewer
	}
	if target != PayoutStatusApproved {
		processed := now
		next.ProcessedDate = &processed
	}
	return next, nil
}
