package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComputeAmountIsExact(t *testing.T) {
	t.Parallel()

	calc, err := NewEarningsCalculator(decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	for i := 0; i < 100; i++ {
		amount, err := calc.ComputeAmount(1_000_000, 0, decimal.RequireFromString("0.3"))
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if got := RoundCurrency(amount).StringFixed(2); got != "300.00" {
			t.Fatalf("expected 300.00, got %s", got)
		}
		if !amount.Equal(decimal.NewFromInt(300)) {
			t.Fatalf("expected exactly 300 before rounding, got %s", amount)
		}
	}
}

func TestComputeAmountKeepsPrecisionUntilRounded(t *testing.T) {
	t.Parallel()

	calc, _ := NewEarningsCalculator(decimal.RequireFromString("0.001"))
	amount, err := calc.ComputeAmount(12_345, 10, decimal.RequireFromString("0.15"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if amount.String() != "1.85175" {
		t.Fatalf("expected unrounded 1.85175, got %s", amount)
	}
	if RoundCurrency(amount).StringFixed(2) != "1.85" {
		t.Fatalf("expected 1.85 after rounding, got %s", RoundCurrency(amount))
	}
}

func TestComputeAmountRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	calc, _ := NewEarningsCalculator(decimal.RequireFromString("0.001"))
	cases := []struct {
		name        string
		impressions int64
		engagements int64
		rate        string
		reason      string
	}{
		{name: "rate above one", impressions: 10, rate: "1.01", reason: ReasonInvalidCommissionRate},
		{name: "negative rate", impressions: 10, rate: "-0.1", reason: ReasonInvalidCommissionRate},
		{name: "negative impressions", impressions: -1, rate: "0.5", reason: ReasonNegativeCount},
		{name: "negative engagements", impressions: 1, engagements: -4, rate: "0.5", reason: ReasonNegativeCount},
	}
	for _, tc := range cases {
		_, err := calc.ComputeAmount(tc.impressions, tc.engagements, decimal.RequireFromString(tc.rate))
		if !errors.Is(err, ErrInvalidInput) || ErrorReason(err) != tc.reason {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.reason, err)
		}
	}
	for _, rate := range []string{"0", "1"} {
		if _, err := calc.ComputeAmount(10, 0, decimal.RequireFromString(rate)); err != nil {
			t.Fatalf("rate %s should be accepted: %v", rate, err)
		}
	}
}

func TestNewEarningsCalculatorRequiresPositiveRate(t *testing.T) {
	t.Parallel()

	if _, err := NewEarningsCalculator(decimal.Zero); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected zero base rate to be rejected, got %v", err)
	}
}

func TestEarningsPeriodTransitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	period := EarningsPeriod{Status: EarningsStatusPending}
	processed, err := TransitionEarningsPeriod(period, EarningsStatusProcessed, now)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	paid, err := TransitionEarningsPeriod(processed, EarningsStatusPaid, now)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.PaidDate == nil || !paid.PaidDate.Equal(now) {
		t.Fatalf("expected paid date to be stamped")
	}
	for _, target := range []EarningsStatus{EarningsStatusPending, EarningsStatusProcessed, EarningsStatusCancelled, EarningsStatusPaid} {
		if _, err := TransitionEarningsPeriod(paid, target, now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("PAID -> %s must be rejected, got %v", target, err)
		}
	}
	if _, err := TransitionEarningsPeriod(period, EarningsStatusPaid, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("PENDING -> PAID must be rejected, got %v", err)
	}
	if _, err := TransitionEarningsPeriod(processed, EarningsStatusCancelled, now); err != nil {
		t.Fatalf("PROCESSED -> CANCELLED should be allowed: %v", err)
	}
}
