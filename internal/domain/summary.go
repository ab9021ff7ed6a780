package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SummaryPeriod string

const (
	SummaryPeriod7Days   SummaryPeriod = "7d"
	SummaryPeriod30Days  SummaryPeriod = "30d"
	SummaryPeriod90Days  SummaryPeriod = "90d"
	SummaryPeriodYear    SummaryPeriod = "1y"
	SummaryPeriodAllTime SummaryPeriod = "all"
)

func ParseSummaryPeriod(raw string) (SummaryPeriod, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SummaryPeriod30Days, nil
	}
	switch p := SummaryPeriod(raw); p {
	case SummaryPeriod7Days, SummaryPeriod30Days, SummaryPeriod90Days, SummaryPeriodYear, SummaryPeriodAllTime:
		return p, nil
	default:
		return "", NewValidationError(ReasonInvalidRequest, "period must be one of 7d, 30d, 90d, 1y, all", map[string]any{"period": raw})
	}
}

// Since returns the inclusive lower bound of the window, or nil for all time.
func (p SummaryPeriod) Since(now time.Time) *time.Time {
	var since time.Time
	switch p {
	case SummaryPeriod7Days:
		since = now.AddDate(0, 0, -7)
	case SummaryPeriod30Days:
		since = now.AddDate(0, 0, -30)
	case SummaryPeriod90Days:
		since = now.AddDate(0, 0, -90)
	case SummaryPeriodYear:
		since = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &since
}

type EarningsSummary struct {
	Period                 SummaryPeriod
	TotalEarnings          decimal.Decimal
	PaidEarnings           decimal.Decimal
	PendingPayments        decimal.Decimal
	CurrentMonthEarnings   decimal.Decimal
	OpenPayoutRequests     decimal.Decimal
	AvailableBalance       decimal.Decimal
	TotalImpressions       int64
	TotalEngagements       int64
	EngagementRate         float64
	MinimumPayoutThreshold decimal.Decimal
	CommissionRate         decimal.Decimal
	PeriodCount            int
}

// SummarizeEarnings folds a partner's ledger into dashboard totals. Window
// totals cover periods ending inside the window; pending, current-month and
// balance figures are always all-time.
func SummarizeEarnings(period SummaryPeriod, periods []EarningsPeriod, payouts []PayoutRequest, now time.Time) EarningsSummary {
	out := EarningsSummary{
		Period:               period,
		TotalEarnings:        decimal.Zero,
		PaidEarnings:         decimal.Zero,
		PendingPayments:      decimal.Zero,
		CurrentMonthEarnings: decimal.Zero,
		OpenPayoutRequests:   decimal.Zero,
	}
	since := period.Since(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	for _, p := range periods {
		if p.Status == EarningsStatusCancelled {
			continue
		}
		if p.Unpaid() {
			out.PendingPayments = out.PendingPayments.Add(p.Amount)
		}
		if !p.PeriodStart.Before(monthStart) {
			out.CurrentMonthEarnings = out.CurrentMonthEarnings.Add(p.Amount)
		}
		if since != nil && p.PeriodEnd.Before(*since) {
			continue
		}
		out.PeriodCount++
		out.TotalEarnings = out.TotalEarnings.Add(p.Amount)
		out.TotalImpressions += p.TotalImpressions
		out.TotalEngagements += p.TotalEngagements
		if p.Status == EarningsStatusPaid {
			out.PaidEarnings = out.PaidEarnings.Add(p.Amount)
		}
	}
	for _, p := range payouts {
		if p.Status == PayoutStatusPending || p.Status == PayoutStatusApproved {
			out.OpenPayoutRequests = out.OpenPayoutRequests.Add(p.RequestedAmount)
		}
	}
	out.AvailableBalance = AvailableBalance(periods, payouts)
	out.EngagementRate = EngagementRate(out.TotalImpressions, out.TotalEngagements)
	return out
}
