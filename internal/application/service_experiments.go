package application

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

func (s *Service) CreateExperiment(ctx context.Context, actor Actor, campaignID string, input CreateExperimentInput) (domain.Experiment, error) {
	if err := requireActor(actor); err != nil {
		return domain.Experiment{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	campaign, err := s.campaignFor(ctx, actor, campaignID)
	if err != nil {
		return domain.Experiment{}, err
	}
	if err := domain.ValidateExperimentSchedule(input.Name, input.StartDate, input.EndDate); err != nil {
		return domain.Experiment{}, err
	}
	normalized, err := domain.ValidateAllocation(input.Variants, campaign.CreativeSet())
	if err != nil {
		return domain.Experiment{}, err
	}

	request := struct {
		CampaignID string
		Input      CreateExperimentInput
	}{CampaignID: campaign.CampaignID, Input: input}
	return runIdempotent(ctx, s, "create_experiment", actor, request, http.StatusCreated, func() (domain.Experiment, error) {
		now := s.nowFn()
		experimentID := uuid.NewString()
		exp := domain.Experiment{
			ExperimentID: experimentID,
			CampaignID:   campaign.CampaignID,
			Name:         strings.TrimSpace(input.Name),
			Description:  strings.TrimSpace(input.Description),
			Status:       domain.ExperimentStatusDraft,
			StartDate:    input.StartDate.UTC(),
			Variants:     buildVariants(experimentID, normalized, now),
			Version:      1,
			CreatedBy:    actor.SubjectID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if input.EndDate != nil {
			end := input.EndDate.UTC()
			exp.EndDate = &end
		}
		if err := s.experiments.Create(ctx, exp, s.experimentCreatedEvents(actor)); err != nil {
			return domain.Experiment{}, err
		}
		return exp, nil
	})
}

func (s *Service) GetExperiment(ctx context.Context, actor Actor, experimentID string) (domain.Experiment, error) {
	if err := requireActor(actor); err != nil {
		return domain.Experiment{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()
	exp, _, err := s.experimentFor(ctx, actor, experimentID)
	return exp, err
}

func (s *Service) ListExperiments(ctx context.Context, actor Actor, campaignID string, query ListQuery) ([]domain.Experiment, contracts.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, contracts.Pagination{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()
	campaign, err := s.campaignFor(ctx, actor, campaignID)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	q := ports.ExperimentQuery{CampaignID: campaign.CampaignID, Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status, err := domain.ParseExperimentStatus(query.Status)
		if err != nil {
			return nil, contracts.Pagination{}, err
		}
		q.Status = status
	}
	q.Limit, q.Offset = normalizePage(q.Limit, q.Offset)
	items, total, err := s.experiments.List(ctx, q)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	return items, contracts.Pagination{Limit: q.Limit, Offset: q.Offset, Total: total}, nil
}

// ChangeExperimentStatus runs the lifecycle transition and stores the result
// with a compare-and-set on the version that was read.
func (s *Service) ChangeExperimentStatus(ctx context.Context, actor Actor, experimentID string, input ChangeExperimentStatusInput) (domain.Experiment, error) {
	if err := requireActor(actor); err != nil {
		return domain.Experiment{}, err
	}
	target, err := domain.ParseExperimentStatus(input.Status)
	if err != nil {
		return domain.Experiment{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	exp, _, err := s.experimentFor(ctx, actor, experimentID)
	if err != nil {
		return domain.Experiment{}, err
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != exp.Version {
		s.metrics.ObserveExperimentTransition(string(exp.Status), string(target), "conflict")
		return domain.Experiment{}, &domain.ConcurrentModificationError{Entity: "experiment", ID: exp.ExperimentID}
	}

	next, err := domain.TransitionExperiment(exp, target, s.nowFn())
	if err != nil {
		s.metrics.ObserveExperimentTransition(string(exp.Status), string(target), outcomeOf(err))
		return domain.Experiment{}, err
	}
	saved, err := s.experiments.ApplyTransition(ctx, next, exp.Version, s.experimentStatusEvents(actor, exp.Status))
	if err != nil {
		s.metrics.ObserveExperimentTransition(string(exp.Status), string(target), outcomeOf(err))
		return domain.Experiment{}, err
	}
	s.metrics.ObserveExperimentTransition(string(exp.Status), string(target), "success")
	return saved, nil
}

// ReplaceVariants swaps the variant set of a DRAFT experiment.
func (s *Service) ReplaceVariants(ctx context.Context, actor Actor, experimentID string, input ReplaceVariantsInput) (domain.Experiment, error) {
	if err := requireActor(actor); err != nil {
		return domain.Experiment{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	exp, campaign, err := s.experimentFor(ctx, actor, experimentID)
	if err != nil {
		return domain.Experiment{}, err
	}
	if exp.Status != domain.ExperimentStatusDraft {
		return domain.Experiment{}, domain.NewVariantsLockedError(exp.Status)
	}
	expected := exp.Version
	if input.ExpectedVersion != nil {
		expected = *input.ExpectedVersion
	}
	normalized, err := domain.ValidateAllocation(input.Variants, campaign.CreativeSet())
	if err != nil {
		return domain.Experiment{}, err
	}
	now := s.nowFn()
	return s.experiments.ReplaceVariants(ctx, exp.ExperimentID, buildVariants(exp.ExperimentID, normalized, now), expected, now)
}

// GetExperimentResults reports per-variant rates, lift against the first
// variant, and the current leader. The leader uses the same selection rule as
// completion, so it equals the winner an immediate completion would record.
func (s *Service) GetExperimentResults(ctx context.Context, actor Actor, experimentID string) (contracts.ExperimentResultsResponse, error) {
	exp, err := s.GetExperiment(ctx, actor, experimentID)
	if err != nil {
		return contracts.ExperimentResultsResponse{}, err
	}
	out := contracts.ExperimentResultsResponse{
		ExperimentID:     exp.ExperimentID,
		Status:           string(exp.Status),
		Variants:         make([]contracts.VariantResult, 0, len(exp.Variants)),
		LeadingVariantID: domain.SelectWinner(exp.Variants),
		WinningVariantID: exp.WinningVariantID,
		Final:            exp.Status == domain.ExperimentStatusCompleted,
	}
	controlRate := 0.0
	for i, v := range exp.Variants {
		rate := domain.EngagementRate(v.Impressions, v.Engagements)
		result := contracts.VariantResult{
			VariantID:         v.VariantID,
			Name:              v.Name,
			AdCreativeID:      v.CreativeID,
			TrafficAllocation: v.TrafficAllocation,
			Impressions:       v.Impressions,
			Engagements:       v.Engagements,
			Conversions:       v.Conversions,
			EngagementRate:    rate,
			ConversionRate:    domain.ConversionRate(v.Impressions, v.Conversions),
			IsControl:         i == 0,
		}
		if i == 0 {
			controlRate = rate
		} else if controlRate > 0 {
			lift := (rate - controlRate) / controlRate
			result.LiftVsControl = &lift
		}
		out.TotalImpressions += v.Impressions
		out.TotalEngagements += v.Engagements
		out.Variants = append(out.Variants, result)
	}
	return out, nil
}

func buildVariants(experimentID string, normalized []domain.NormalizedAllocation, now time.Time) []domain.Variant {
	out := make([]domain.Variant, 0, len(normalized))
	for i, n := range normalized {
		name := n.Name
		if name == "" {
			name = "Variant " + string(rune('A'+i%26))
		}
		out = append(out, domain.Variant{
			VariantID:         uuid.NewString(),
			ExperimentID:      experimentID,
			CreativeID:        n.CreativeID,
			Name:              name,
			TrafficAllocation: n.TrafficAllocation,
			Position:          i,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return out
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
