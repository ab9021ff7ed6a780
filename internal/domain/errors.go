package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("resource not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrCountersFrozen         = errors.New("variant counters are frozen")
	ErrBelowThreshold         = errors.New("amount below minimum payout threshold")
	ErrInsufficientBalance    = errors.New("insufficient available balance")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
	ErrUnsupportedEventType   = errors.New("unsupported event type")
)

const (
	ReasonAllocationNot100      = "allocation_not_100"
	ReasonCreativeNotInCampaign = "creative_not_in_campaign"
	ReasonInsufficientVariants  = "insufficient_variants"
	ReasonInvalidAllocation     = "invalid_allocation"
	ReasonInvalidCommissionRate = "invalid_commission_rate"
	ReasonNegativeCount         = "negative_count"
	ReasonInvalidAmount         = "invalid_amount"
	ReasonInvalidRequest        = "invalid_request"
	ReasonInvalidTransition     = "invalid_transition"
	ReasonConcurrentUpdate      = "concurrent_modification"
	ReasonCountersFrozen        = "counters_frozen"
	ReasonBelowThreshold        = "below_threshold"
	ReasonInsufficientBalance   = "insufficient_balance"
)

// ValidationError reports malformed or semantically invalid input.
type ValidationError struct {
	Reason  string
	Message string
	Details map[string]any
}

func NewValidationError(reason, message string, details map[string]any) *ValidationError {
	return &ValidationError{Reason: reason, Message: message, Details: details}
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type ConcurrentModificationError struct {
	Entity string
	ID     string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

type BelowThresholdError struct {
	Requested decimal.Decimal
	Minimum   decimal.Decimal
}

func (e *BelowThresholdError) Error() string {
	return fmt.Sprintf("requested amount %s is below the minimum payout threshold %s",
		e.Requested.StringFixed(2), e.Minimum.StringFixed(2))
}

func (e *BelowThresholdError) Unwrap() error { return ErrBelowThreshold }

type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("requested amount %s exceeds available balance %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ErrorReason returns the machine-readable reason carried by err, or "" when err
// is not one of the typed domain errors.
func ErrorReason(err error) string {
	var validationErr *ValidationError
	var transitionErr *InvalidTransitionError
	var concurrentErr *ConcurrentModificationError
	var thresholdErr *BelowThresholdError
	var balanceErr *InsufficientBalanceError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Reason
	case errors.As(err, &transitionErr):
		return ReasonInvalidTransition
	case errors.As(err, &concurrentErr):
		return ReasonConcurrentUpdate
	case errors.As(err, &thresholdErr):
		return ReasonBelowThreshold
	case errors.As(err, &balanceErr):
		return ReasonInsufficientBalance
	case errors.Is(err, ErrCountersFrozen):
		return ReasonCountersFrozen
	default:
		return ""
	}
}

// ErrorDetails returns structured details for typed domain errors.
func ErrorDetails(err error) map[string]any {
	var validationErr *ValidationError
	var transitionErr *InvalidTransitionError
	var thresholdErr *BelowThresholdError
	var balanceErr *InsufficientBalanceError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Details
	case errors.As(err, &transitionErr):
		return map[string]any{"from": transitionErr.From, "to": transitionErr.To}
	case errors.As(err, &thresholdErr):
		return map[string]any{
			"requested_amount":  thresholdErr.Requested.StringFixed(2),
			"minimum_threshold": thresholdErr.Minimum.StringFixed(2),
		}
	case errors.As(err, &balanceErr):
		return map[string]any{
			"requested_amount":  balanceErr.Requested.StringFixed(2),
			"available_balance": balanceErr.Available.StringFixed(2),
		}
	default:
		return nil
	}
}
