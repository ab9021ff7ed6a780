package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

type ExperimentRepository struct {
	mu          sync.RWMutex
	experiments map[string]domain.Experiment
	outbox      *OutboxRepository
}

func cloneExperiment(exp domain.Experiment) domain.Experiment {
	out := exp
	out.Variants = append([]domain.Variant(nil), exp.Variants...)
	if exp.EndDate != nil {
		end := *exp.EndDate
		out.EndDate = &end
	}
	if exp.WinningVariantID != nil {
		winner := *exp.WinningVariantID
		out.WinningVariantID = &winner
	}
	return out
}

func (r *ExperimentRepository) Create(_ context.Context, exp domain.Experiment, events ports.OutboxEvents[domain.Experiment]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.experiments[exp.ExperimentID]; exists {
		return domain.ErrConflict
	}
	if exp.Version == 0 {
		exp.Version = 1
	}
	staged, err := buildEvents(events, cloneExperiment(exp))
	if err != nil {
		return err
	}
	r.experiments[exp.ExperimentID] = cloneExperiment(exp)
	r.outbox.append(staged)
	return nil
}

func (r *ExperimentRepository) GetByID(_ context.Context, experimentID string) (domain.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.experiments[experimentID]
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound
	}
	return cloneExperiment(exp), nil
}

func (r *ExperimentRepository) List(_ context.Context, query ports.ExperimentQuery) ([]domain.Experiment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]domain.Experiment, 0)
	for _, exp := range r.experiments {
		if query.CampaignID != "" && exp.CampaignID != query.CampaignID {
			continue
		}
		if query.Status != "" && exp.Status != query.Status {
			continue
		}
		items = append(items, cloneExperiment(exp))
	}
	slices.SortFunc(items, func(a, b domain.Experiment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(items, query.Limit, query.Offset), len(items), nil
}

func (r *ExperimentRepository) ApplyTransition(_ context.Context, next domain.Experiment, expectedVersion int64, events ports.OutboxEvents[domain.Experiment]) (domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.experiments[next.ExperimentID]
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.Experiment{}, &domain.ConcurrentModificationError{Entity: "experiment", ID: next.ExperimentID}
	}
	current.Status = next.Status
	current.EndDate = next.EndDate
	current.WinningVariantID = next.WinningVariantID
	if next.Status == domain.ExperimentStatusCompleted {
		// Counters may have moved since the caller read the experiment.
		current.WinningVariantID = domain.SelectWinner(current.Variants)
	}
	current.UpdatedAt = next.UpdatedAt
	current.Version = expectedVersion + 1
	stored := cloneExperiment(current)
	staged, err := buildEvents(events, cloneExperiment(stored))
	if err != nil {
		return domain.Experiment{}, err
	}
	r.experiments[next.ExperimentID] = stored
	r.outbox.append(staged)
	return cloneExperiment(stored), nil
}

func (r *ExperimentRepository) ReplaceVariants(_ context.Context, experimentID string, variants []domain.Variant, expectedVersion int64, at time.Time) (domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.experiments[experimentID]
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.Experiment{}, &domain.ConcurrentModificationError{Entity: "experiment", ID: experimentID}
	}
	if current.Status != domain.ExperimentStatusDraft {
		return domain.Experiment{}, domain.NewVariantsLockedError(current.Status)
	}
	current.Variants = append([]domain.Variant(nil), variants...)
	current.UpdatedAt = at
	current.Version = expectedVersion + 1
	r.experiments[experimentID] = cloneExperiment(current)
	return cloneExperiment(current), nil
}

func (r *ExperimentRepository) IncrementCounters(_ context.Context, delta ports.VariantCounterDelta, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.experiments[delta.ExperimentID]
	if !ok {
		return domain.ErrNotFound
	}
	if !current.Status.AcceptsCounters() {
		return domain.ErrCountersFrozen
	}
	variants := append([]domain.Variant(nil), current.Variants...)
	for i := range variants {
		if variants[i].VariantID != delta.VariantID {
			continue
		}
		variants[i].Impressions += delta.Impressions
		variants[i].Engagements += delta.Engagements
		variants[i].Conversions += delta.Conversions
		variants[i].UpdatedAt = at
		current.Variants = variants
		r.experiments[delta.ExperimentID] = current
		return nil
	}
	return domain.ErrNotFound
}

var _ ports.ExperimentRepository = (*ExperimentRepository)(nil)
