package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

func seedExperiment(t *testing.T, repo *ExperimentRepository, status domain.ExperimentStatus) domain.Experiment {
	t.Helper()
	exp := domain.Experiment{
		ExperimentID: "exp-1",
		CampaignID:   "camp-1",
		Name:         "Test",
		Status:       status,
		Variants: []domain.Variant{
			{VariantID: "v-1", ExperimentID: "exp-1", CreativeID: "cr-1", TrafficAllocation: 50},
			{VariantID: "v-2", ExperimentID: "exp-1", CreativeID: "cr-2", TrafficAllocation: 50, Position: 1},
		},
	}
	if err := repo.Create(context.Background(), exp, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	stored, err := repo.GetByID(context.Background(), exp.ExperimentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return stored
}

func TestExperimentRepositoryCompareAndSet(t *testing.T) {
	t.Parallel()

	repo := NewRepositories().Experiments
	exp := seedExperiment(t, repo, domain.ExperimentStatusDraft)
	if exp.Version != 1 {
		t.Fatalf("expected version 1, got %d", exp.Version)
	}
	next := exp
	next.Status = domain.ExperimentStatusActive
	saved, err := repo.ApplyTransition(context.Background(), next, 1, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}
	_, err = repo.ApplyTransition(context.Background(), next, 1, nil)
	var conflict *domain.ConcurrentModificationError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected stale write to fail, got %v", err)
	}
}

func statusEvents(eventTypes ...string) ports.OutboxEvents[domain.Experiment] {
	return func(saved domain.Experiment) ([]ports.OutboxEvent, error) {
		out := make([]ports.OutboxEvent, 0, len(eventTypes))
		for _, eventType := range eventTypes {
			out = append(out, ports.OutboxEvent{
				EventID:      uuid.New(),
				EventType:    eventType,
				PartitionKey: saved.ExperimentID,
				Payload:      []byte(`{"status":"` + string(saved.Status) + `"}`),
			})
		}
		return out, nil
	}
}

func TestExperimentTransitionStoresEventsWithState(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	ctx := context.Background()
	exp := seedExperiment(t, repos.Experiments, domain.ExperimentStatusActive)
	if err := repos.Experiments.IncrementCounters(ctx, ports.VariantCounterDelta{
		ExperimentID: "exp-1",
		VariantID:    "v-2",
		Impressions:  100,
		Engagements:  7,
	}, time.Now()); err != nil {
		t.Fatalf("increment: %v", err)
	}
	next := exp
	next.Status = domain.ExperimentStatusCompleted

	var seen domain.Experiment
	saved, err := repos.Experiments.ApplyTransition(ctx, next, exp.Version, func(s domain.Experiment) ([]ports.OutboxEvent, error) {
		seen = s
		return statusEvents(domain.EventExperimentStatusChanged, domain.EventExperimentCompleted)(s)
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if seen.Version != saved.Version || seen.WinningVariantID == nil || *seen.WinningVariantID != "v-2" {
		t.Fatalf("expected builder to see the stored row, got %+v", seen)
	}
	types := repos.Outbox.EventTypes()
	if len(types) != 2 || types[0] != domain.EventExperimentStatusChanged || types[1] != domain.EventExperimentCompleted {
		t.Fatalf("expected status and completion events, got %v", types)
	}
}

func TestExperimentTransitionBuilderFailureWritesNothing(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	ctx := context.Background()
	exp := seedExperiment(t, repos.Experiments, domain.ExperimentStatusActive)
	next := exp
	next.Status = domain.ExperimentStatusCompleted

	boom := errors.New("encode event")
	_, err := repos.Experiments.ApplyTransition(ctx, next, exp.Version, func(domain.Experiment) ([]ports.OutboxEvent, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected builder error, got %v", err)
	}
	stored, err := repos.Experiments.GetByID(ctx, exp.ExperimentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.ExperimentStatusActive || stored.Version != exp.Version {
		t.Fatalf("expected experiment untouched, got %s v%d", stored.Status, stored.Version)
	}
	if types := repos.Outbox.EventTypes(); len(types) != 0 {
		t.Fatalf("expected no outbox rows, got %v", types)
	}

	saved, err := repos.Experiments.ApplyTransition(ctx, next, exp.Version, statusEvents(domain.EventExperimentStatusChanged))
	if err != nil || saved.Status != domain.ExperimentStatusCompleted {
		t.Fatalf("expected the same transition to succeed on retry, got %+v %v", saved, err)
	}
}

func TestLedgerBuilderFailureWritesNothing(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	ctx := context.Background()
	boom := errors.New("encode event")
	failing := func(domain.EarningsPeriod) ([]ports.OutboxEvent, error) { return nil, boom }
	period := domain.EarningsPeriod{
		PeriodID:    "ep-1",
		PartnerID:   "partner-1",
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("80.00"),
		Status:      domain.EarningsStatusPending,
	}
	if err := repos.Earnings.Create(ctx, period, failing); !errors.Is(err, boom) {
		t.Fatalf("expected builder error, got %v", err)
	}
	if _, err := repos.Earnings.GetByID(ctx, "ep-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no stored period, got %v", err)
	}
	if err := repos.Earnings.Create(ctx, period, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := repos.Payouts.CreateAuthorized(ctx, "partner-1", func(decimal.Decimal) (domain.PayoutRequest, error) {
		return domain.PayoutRequest{PayoutID: "po-1", PartnerID: "partner-1", RequestedAmount: decimal.NewFromInt(60), Status: domain.PayoutStatusPending}, nil
	}, func(domain.PayoutRequest) ([]ports.OutboxEvent, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected builder error, got %v", err)
	}
	payouts, _ := repos.Payouts.ListByPartner(ctx, "partner-1")
	if len(payouts) != 0 {
		t.Fatalf("expected no stored payout, got %+v", payouts)
	}
	if types := repos.Outbox.EventTypes(); len(types) != 0 {
		t.Fatalf("expected no outbox rows, got %v", types)
	}
}

func TestExperimentRepositoryFreezesCounters(t *testing.T) {
	t.Parallel()

	repo := NewRepositories().Experiments
	seedExperiment(t, repo, domain.ExperimentStatusCompleted)
	err := repo.IncrementCounters(context.Background(), ports.VariantCounterDelta{
		ExperimentID: "exp-1",
		VariantID:    "v-1",
		Impressions:  10,
	}, time.Now())
	if !errors.Is(err, domain.ErrCountersFrozen) {
		t.Fatalf("expected frozen counters, got %v", err)
	}
}

func TestExperimentRepositoryUnknownVariant(t *testing.T) {
	t.Parallel()

	repo := NewRepositories().Experiments
	seedExperiment(t, repo, domain.ExperimentStatusActive)
	err := repo.IncrementCounters(context.Background(), ports.VariantCounterDelta{
		ExperimentID: "exp-1",
		VariantID:    "v-9",
		Impressions:  10,
	}, time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPayoutRepositoryUsesLedgerBalance(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	ctx := context.Background()
	if err := repos.Earnings.Create(ctx, domain.EarningsPeriod{
		PeriodID:    "ep-1",
		PartnerID:   "partner-1",
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("80.00"),
		Status:      domain.EarningsStatusPending,
	}, nil); err != nil {
		t.Fatalf("create earnings: %v", err)
	}

	var seen decimal.Decimal
	_, err := repos.Payouts.CreateAuthorized(ctx, "partner-1", func(available decimal.Decimal) (domain.PayoutRequest, error) {
		seen = available
		return domain.PayoutRequest{PayoutID: "po-1", PartnerID: "partner-1", RequestedAmount: decimal.NewFromInt(60), Status: domain.PayoutStatusPending}, nil
	}, nil)
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	if !seen.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected builder to see 80, got %s", seen)
	}
	_, _ = repos.Payouts.CreateAuthorized(ctx, "partner-1", func(available decimal.Decimal) (domain.PayoutRequest, error) {
		seen = available
		return domain.PayoutRequest{}, domain.ErrInsufficientBalance
	}, nil)
	if !seen.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected committed payout to reduce balance to 20, got %s", seen)
	}
}

func TestIdempotencyReleaseKeepsCompletedRecords(t *testing.T) {
	t.Parallel()

	repo := NewRepositories().Idempotency
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if err := repo.Reserve(ctx, "k", "h", now.Add(time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.Reserve(ctx, "k", "h", now.Add(time.Hour)); err == nil {
		t.Fatalf("expected second reservation to fail")
	}
	if err := repo.Complete(ctx, "k", 201, []byte("{}"), now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := repo.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	rec, err := repo.Get(ctx, "k", now)
	if err != nil || rec == nil || rec.Status != "completed" {
		t.Fatalf("expected completed record to survive release, got %+v %v", rec, err)
	}
}
