package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

func TestCreateExperimentStartsAsDraft(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	exp, err := f.svc.CreateExperiment(context.Background(), advertiser(), "camp-1", twoVariantInput())
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	if exp.Status != domain.ExperimentStatusDraft || exp.Version != 1 {
		t.Fatalf("expected DRAFT v1, got %s v%d", exp.Status, exp.Version)
	}
	if len(exp.Variants) != 2 || exp.Variants[0].Position != 0 || exp.Variants[1].CreativeID != "cr-2" {
		t.Fatalf("unexpected variants: %+v", exp.Variants)
	}
	if exp.WinningVariantID != nil {
		t.Fatalf("draft must not carry a winner")
	}
	types := f.repos.Outbox.EventTypes()
	if len(types) != 1 || types[0] != domain.EventExperimentCreated {
		t.Fatalf("expected experiment.created in outbox, got %v", types)
	}
}

func TestCreateExperimentRejectsBadAllocationBeforePersisting(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	input := twoVariantInput()
	input.Variants[1].TrafficAllocation = pct(40)
	_, err := f.svc.CreateExperiment(context.Background(), advertiser(), "camp-1", input)
	if domain.ErrorReason(err) != domain.ReasonAllocationNot100 {
		t.Fatalf("expected allocation_not_100, got %v", err)
	}

	input = twoVariantInput()
	input.Variants[1].CreativeID = "cr-9"
	_, err = f.svc.CreateExperiment(context.Background(), advertiser(), "camp-1", input)
	if domain.ErrorReason(err) != domain.ReasonCreativeNotInCampaign {
		t.Fatalf("expected creative_not_in_campaign, got %v", err)
	}

	items, page, err := f.svc.ListExperiments(context.Background(), advertiser(), "camp-1", application.ListQuery{})
	if err != nil {
		t.Fatalf("list experiments: %v", err)
	}
	if len(items) != 0 || page.Total != 0 {
		t.Fatalf("expected nothing persisted, got %d", page.Total)
	}
}

func TestCreateExperimentHidesForeignCampaign(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.CreateExperiment(context.Background(), advertiser(), "camp-2", twoVariantInput())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign campaign, got %v", err)
	}
	_, err = f.svc.CreateExperiment(context.Background(), advertiser(), "camp-missing", twoVariantInput())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing campaign, got %v", err)
	}
}

func TestCreateExperimentIdempotentReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	actor := advertiser()
	actor.IdempotencyKey = "exp-create-1"
	first, err := f.svc.CreateExperiment(context.Background(), actor, "camp-1", twoVariantInput())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.CreateExperiment(context.Background(), actor, "camp-1", twoVariantInput())
	if err != nil {
		t.Fatalf("replayed create: %v", err)
	}
	if first.ExperimentID != second.ExperimentID {
		t.Fatalf("expected replay to return the same experiment")
	}

	changed := twoVariantInput()
	changed.Name = "Different"
	if _, err := f.svc.CreateExperiment(context.Background(), actor, "camp-1", changed); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestCompleteExperimentPicksWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	exp := activeExperiment(t, f)
	x, y := exp.Variants[0].VariantID, exp.Variants[1].VariantID
	if err := f.svc.HandleDeliveryEvent(ctx, deliveryEvent(t, "evt-x", exp.ExperimentID, x, 1000, 300)); err != nil {
		t.Fatalf("deliver x: %v", err)
	}
	if err := f.svc.HandleDeliveryEvent(ctx, deliveryEvent(t, "evt-y", exp.ExperimentID, y, 1000, 100)); err != nil {
		t.Fatalf("deliver y: %v", err)
	}

	done, err := f.svc.ChangeExperimentStatus(ctx, advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{Status: "completed"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.WinningVariantID == nil || *done.WinningVariantID != x {
		t.Fatalf("expected winner %s, got %v", x, done.WinningVariantID)
	}
	if done.EndDate == nil || !done.EndDate.Equal(fixedNow) {
		t.Fatalf("expected end date at transition time, got %v", done.EndDate)
	}
	if !done.HasVariant(*done.WinningVariantID) {
		t.Fatalf("winner must reference one of the experiment's variants")
	}

	_, err = f.svc.ChangeExperimentStatus(ctx, advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{Status: "ACTIVE"})
	var transitionErr *domain.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidTransitionError after completion, got %v", err)
	}
}

func TestCountersFreezeAfterTerminalStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	exp := activeExperiment(t, f)
	variantID := exp.Variants[0].VariantID
	if _, err := f.svc.ChangeExperimentStatus(ctx, advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{Status: "CANCELLED"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.svc.HandleDeliveryEvent(ctx, deliveryEvent(t, "evt-late", exp.ExperimentID, variantID, 500, 50)); err != nil {
		t.Fatalf("late delivery should be dropped quietly, got %v", err)
	}
	got, err := f.svc.GetExperiment(ctx, advertiser(), exp.ExperimentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Variants[0].Impressions != 0 {
		t.Fatalf("expected frozen counters, got %d impressions", got.Variants[0].Impressions)
	}
}

func TestDeliveryEventDedup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	exp := activeExperiment(t, f)
	event := deliveryEvent(t, "evt-1", exp.ExperimentID, exp.Variants[1].VariantID, 10, 4)
	for i := 0; i < 3; i++ {
		if err := f.svc.HandleDeliveryEvent(ctx, event); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	got, _ := f.svc.GetExperiment(ctx, advertiser(), exp.ExperimentID)
	if got.Variants[1].Impressions != 10 || got.Variants[1].Engagements != 4 {
		t.Fatalf("expected a single application of the event, got %+v", got.Variants[1])
	}

	bad := deliveryEvent(t, "evt-2", exp.ExperimentID, exp.Variants[1].VariantID, -1, 0)
	if err := f.svc.HandleDeliveryEvent(ctx, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected negative delta to be rejected, got %v", err)
	}
	bad.EventType = "delivery.other"
	if err := f.svc.HandleDeliveryEvent(ctx, bad); !errors.Is(err, domain.ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported event type, got %v", err)
	}
}

func TestChangeStatusRejectsStaleVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	exp := activeExperiment(t, f)
	stale := exp.Version - 1
	_, err := f.svc.ChangeExperimentStatus(ctx, advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{
		Status:          "PAUSED",
		ExpectedVersion: &stale,
	})
	var conflict *domain.ConcurrentModificationError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrentModificationError, got %v", err)
	}
}

func TestConcurrentCompletionHasSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	exp := activeExperiment(t, f)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := "COMPLETED"
			if i%2 == 1 {
				target = "CANCELLED"
			}
			_, err := f.svc.ChangeExperimentStatus(context.Background(), advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{Status: target})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrInvalidTransition):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one terminal transition, got %d", successes)
	}
}

func TestReplaceVariantsOnlyWhileDraft(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	exp, err := f.svc.CreateExperiment(ctx, advertiser(), "camp-1", twoVariantInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := f.svc.ReplaceVariants(ctx, advertiser(), exp.ExperimentID, application.ReplaceVariantsInput{
		Variants: []domain.VariantAllocation{
			{CreativeID: "cr-1", Name: "Control"},
			{CreativeID: "cr-2", Name: "B"},
			{CreativeID: "cr-3", Name: "C"},
		},
	})
	if err != nil {
		t.Fatalf("replace variants: %v", err)
	}
	if len(updated.Variants) != 3 || updated.Version != exp.Version+1 {
		t.Fatalf("expected 3 variants at v%d, got %d at v%d", exp.Version+1, len(updated.Variants), updated.Version)
	}

	if _, err := f.svc.ChangeExperimentStatus(ctx, advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{Status: "ACTIVE"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	_, err = f.svc.ReplaceVariants(ctx, advertiser(), exp.ExperimentID, application.ReplaceVariantsInput{
		Variants: []domain.VariantAllocation{{CreativeID: "cr-1"}, {CreativeID: "cr-2"}},
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected variants to be locked after activation, got %v", err)
	}
}

func TestExperimentResultsReportLift(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	exp := activeExperiment(t, f)
	if err := f.svc.HandleDeliveryEvent(ctx, deliveryEvent(t, "evt-a", exp.ExperimentID, exp.Variants[0].VariantID, 200, 20)); err != nil {
		t.Fatalf("deliver a: %v", err)
	}
	if err := f.svc.HandleDeliveryEvent(ctx, deliveryEvent(t, "evt-b", exp.ExperimentID, exp.Variants[1].VariantID, 100, 15)); err != nil {
		t.Fatalf("deliver b: %v", err)
	}
	results, err := f.svc.GetExperimentResults(ctx, advertiser(), exp.ExperimentID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.LeadingVariantID == nil || *results.LeadingVariantID != exp.Variants[1].VariantID {
		t.Fatalf("expected second variant to lead, got %v", results.LeadingVariantID)
	}
	if results.Final || results.WinningVariantID != nil {
		t.Fatalf("active experiment results must not be final")
	}
	lift := results.Variants[1].LiftVsControl
	if lift == nil || *lift < 0.4999 || *lift > 0.5001 {
		t.Fatalf("expected 50%% lift, got %v", lift)
	}
	if results.TotalImpressions != 300 {
		t.Fatalf("expected 300 impressions, got %d", results.TotalImpressions)
	}
}
