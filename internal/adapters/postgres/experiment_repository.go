package postgres

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type experimentRepository struct {
	db *gorm.DB
}

func (r *experimentRepository) Create(ctx context.Context, exp domain.Experiment, events ports.OutboxEvents[domain.Experiment]) error {
	if exp.Version == 0 {
		exp.Version = 1
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toExperimentModel(exp)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		if err := insertVariants(tx, exp.Variants); err != nil {
			return err
		}
		return stageOutbox(tx, events, exp)
	})
	return storageErr("create experiment", err)
}

func (r *experimentRepository) GetByID(ctx context.Context, experimentID string) (domain.Experiment, error) {
	exp, err := loadExperiment(r.db.WithContext(ctx), experimentID)
	return exp, storageErr("get experiment", err)
}

func (r *experimentRepository) List(ctx context.Context, query ports.ExperimentQuery) ([]domain.Experiment, int, error) {
	db := r.db.WithContext(ctx).Model(&experimentModel{})
	if query.CampaignID != "" {
		db = db.Where("campaign_id = ?", query.CampaignID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", string(query.Status))
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, storageErr("count experiments", err)
	}
	var rows []experimentModel
	if err := db.Order("created_at desc").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, storageErr("list experiments", err)
	}
	if len(rows) == 0 {
		return []domain.Experiment{}, int(total), nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ExperimentID)
	}
	var variants []variantModel
	if err := r.db.WithContext(ctx).Where("experiment_id IN ?", ids).Order("position asc").Find(&variants).Error; err != nil {
		return nil, 0, storageErr("list experiment variants", err)
	}
	byExperiment := make(map[string][]variantModel, len(rows))
	for _, v := range variants {
		byExperiment[v.ExperimentID] = append(byExperiment[v.ExperimentID], v)
	}
	out := make([]domain.Experiment, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainExperiment(row, byExperiment[row.ExperimentID]))
	}
	return out, int(total), nil
}

// ApplyTransition locks the experiment row so the winner of a completion is
// computed from the counters as they stand when they freeze.
func (r *experimentRepository) ApplyTransition(ctx context.Context, next domain.Experiment, expectedVersion int64, events ports.OutboxEvents[domain.Experiment]) (domain.Experiment, error) {
	var saved domain.Experiment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row experimentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("experiment_id = ?", next.ExperimentID).
			Take(&row).Error; err != nil {
			return err
		}
		if row.Version != expectedVersion {
			return &domain.ConcurrentModificationError{Entity: "experiment", ID: next.ExperimentID}
		}
		winner := next.WinningVariantID
		if next.Status == domain.ExperimentStatusCompleted {
			var variants []variantModel
			if err := tx.Where("experiment_id = ?", next.ExperimentID).Order("position asc").Find(&variants).Error; err != nil {
				return err
			}
			winner = domain.SelectWinner(toDomainExperiment(row, variants).Variants)
		}
		res := tx.Model(&experimentModel{}).
			Where("experiment_id = ? AND version = ?", next.ExperimentID, expectedVersion).
			Updates(map[string]any{
				"status":             string(next.Status),
				"end_date":           next.EndDate,
				"winning_variant_id": winner,
				"updated_at":         next.UpdatedAt,
				"version":            expectedVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ConcurrentModificationError{Entity: "experiment", ID: next.ExperimentID}
		}
		loaded, err := loadExperiment(tx, next.ExperimentID)
		if err != nil {
			return err
		}
		if err := stageOutbox(tx, events, loaded); err != nil {
			return err
		}
		saved = loaded
		return nil
	})
	return saved, storageErr("apply experiment transition", err)
}

func (r *experimentRepository) ReplaceVariants(ctx context.Context, experimentID string, variants []domain.Variant, expectedVersion int64, at time.Time) (domain.Experiment, error) {
	var saved domain.Experiment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row experimentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("experiment_id = ?", experimentID).
			Take(&row).Error; err != nil {
			return err
		}
		if row.Version != expectedVersion {
			return &domain.ConcurrentModificationError{Entity: "experiment", ID: experimentID}
		}
		if domain.ExperimentStatus(row.Status) != domain.ExperimentStatusDraft {
			return domain.NewVariantsLockedError(domain.ExperimentStatus(row.Status))
		}
		if err := tx.Where("experiment_id = ?", experimentID).Delete(&variantModel{}).Error; err != nil {
			return err
		}
		if err := insertVariants(tx, variants); err != nil {
			return err
		}
		if err := tx.Model(&experimentModel{}).
			Where("experiment_id = ?", experimentID).
			Updates(map[string]any{"updated_at": at, "version": expectedVersion + 1}).Error; err != nil {
			return err
		}
		loaded, err := loadExperiment(tx, experimentID)
		if err != nil {
			return err
		}
		saved = loaded
		return nil
	})
	return saved, storageErr("replace experiment variants", err)
}

// IncrementCounters share-locks the experiment row before touching variants.
// A completion holds that row FOR UPDATE while it picks the winner, so a delta
// either lands before the freeze or sees the terminal status and is refused.
func (r *experimentRepository) IncrementCounters(ctx context.Context, delta ports.VariantCounterDelta, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row experimentModel
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("experiment_id", "status").
			Where("experiment_id = ?", delta.ExperimentID).
			Take(&row).Error; err != nil {
			return err
		}
		if !domain.ExperimentStatus(row.Status).AcceptsCounters() {
			return domain.ErrCountersFrozen
		}
		res := tx.Model(&variantModel{}).
			Where("variant_id = ? AND experiment_id = ?", delta.VariantID, delta.ExperimentID).
			Updates(map[string]any{
				"impressions": gorm.Expr("impressions + ?", delta.Impressions),
				"engagements": gorm.Expr("engagements + ?", delta.Engagements),
				"conversions": gorm.Expr("conversions + ?", delta.Conversions),
				"updated_at":  at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return storageErr("increment variant counters", err)
}

func loadExperiment(db *gorm.DB, experimentID string) (domain.Experiment, error) {
	var row experimentModel
	if err := db.Where("experiment_id = ?", experimentID).Take(&row).Error; err != nil {
		return domain.Experiment{}, err
	}
	var variants []variantModel
	if err := db.Where("experiment_id = ?", experimentID).Order("position asc").Find(&variants).Error; err != nil {
		return domain.Experiment{}, err
	}
	return toDomainExperiment(row, variants), nil
}

func insertVariants(tx *gorm.DB, variants []domain.Variant) error {
	if len(variants) == 0 {
		return nil
	}
	rows := make([]variantModel, 0, len(variants))
	for _, v := range variants {
		rows = append(rows, toVariantModel(v))
	}
	return tx.Create(&rows).Error
}

var _ ports.ExperimentRepository = (*experimentRepository)(nil)
