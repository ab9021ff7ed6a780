package application_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *application.Service
	repos *memory.Repositories
	cache ports.Cache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithCache(t, memory.NewCache())
}

func newFixtureWithCache(t *testing.T, cache ports.Cache) fixture {
	t.Helper()
	repos := memory.NewRepositories()
	repos.Campaigns.Put(domain.Campaign{
		CampaignID:   "camp-1",
		AdvertiserID: "adv-1",
		CreativeIDs:  []string{"cr-1", "cr-2", "cr-3"},
	})
	repos.Campaigns.Put(domain.Campaign{
		CampaignID:   "camp-2",
		AdvertiserID: "adv-2",
		CreativeIDs:  []string{"cr-9"},
	})
	repos.Partners.Put(domain.Partner{
		PartnerID:        "partner-1",
		UserID:           "user-p1",
		CommissionRate:   decimal.RequireFromString("0.3"),
		PaymentMethodIDs: []string{"pm-1"},
	})
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			BaseUnitRate:           decimal.RequireFromString("0.001"),
			MinimumPayoutThreshold: decimal.RequireFromString("50"),
			PayoutRequestsPerHour:  5,
		},
		Experiments: repos.Experiments,
		Campaigns:   repos.Campaigns,
		Partners:    repos.Partners,
		Earnings:    repos.Earnings,
		Payouts:     repos.Payouts,
		Idempotency: repos.Idempotency,
		EventDedup:  repos.EventDedup,
		Cache:       cache,
		Clock:       func() time.Time { return fixedNow },
	})
	return fixture{svc: svc, repos: repos, cache: cache}
}

func advertiser() application.Actor {
	return application.Actor{SubjectID: "adv-1", Role: "advertiser", RequestID: "req-1"}
}

func partnerActor() application.Actor {
	return application.Actor{SubjectID: "user-p1", Role: "partner", RequestID: "req-2"}
}

func adminActor() application.Actor {
	return application.Actor{SubjectID: "admin-1", Role: "admin", RequestID: "req-3"}
}

func pct(v float64) *float64 { return &v }

func twoVariantInput() application.CreateExperimentInput {
	return application.CreateExperimentInput{
		Name:      "Headline test",
		StartDate: fixedNow.Add(24 * time.Hour),
		Variants: []domain.VariantAllocation{
			{CreativeID: "cr-1", Name: "Control", TrafficAllocation: pct(50)},
			{CreativeID: "cr-2", Name: "Bold", TrafficAllocation: pct(50)},
		},
	}
}

func deliveryEvent(t *testing.T, eventID, experimentID, variantID string, impressions, engagements int64) contracts.EventEnvelope {
	t.Helper()
	data, err := json.Marshal(contracts.DeliveryVariantMetricsPayload{
		ExperimentID: experimentID,
		VariantID:    variantID,
		Impressions:  impressions,
		Engagements:  engagements,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return contracts.EventEnvelope{
		EventID:          eventID,
		EventType:        domain.EventDeliveryVariantMetrics,
		EventClass:       domain.CanonicalEventClassDomain,
		OccurredAt:       fixedNow,
		PartitionKeyPath: "data.experiment_id",
		PartitionKey:     experimentID,
		SourceService:    "M60-Ad-Delivery-Service",
		SchemaVersion:    "v1",
		Data:             data,
	}
}

func activeExperiment(t *testing.T, f fixture) domain.Experiment {
	t.Helper()
	ctx := context.Background()
	exp, err := f.svc.CreateExperiment(ctx, advertiser(), "camp-1", twoVariantInput())
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	exp, err = f.svc.ChangeExperimentStatus(ctx, advertiser(), exp.ExperimentID, application.ChangeExperimentStatusInput{Status: "ACTIVE"})
	if err != nil {
		t.Fatalf("activate experiment: %v", err)
	}
	return exp
}
