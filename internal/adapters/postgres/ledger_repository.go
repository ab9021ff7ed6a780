package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type earningsRepository struct {
	db *gorm.DB
}

func (r *earningsRepository) Create(ctx context.Context, period domain.EarningsPeriod, events ports.OutboxEvents[domain.EarningsPeriod]) error {
	if period.Version == 0 {
		period.Version = 1
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toEarningsModel(period)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return stageOutbox(tx, events, period)
	})
	return storageErr("create earnings period", err)
}

func (r *earningsRepository) GetByID(ctx context.Context, periodID string) (domain.EarningsPeriod, error) {
	var row earningsPeriodModel
	if err := r.db.WithContext(ctx).Where("period_id = ?", periodID).Take(&row).Error; err != nil {
		return domain.EarningsPeriod{}, storageErr("get earnings period", err)
	}
	return toDomainEarnings(row), nil
}

func (r *earningsRepository) List(ctx context.Context, query ports.EarningsQuery) ([]domain.EarningsPeriod, int, error) {
	db := r.db.WithContext(ctx).Model(&earningsPeriodModel{})
	if query.PartnerID != "" {
		db = db.Where("partner_id = ?", query.PartnerID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", string(query.Status))
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, storageErr("count earnings periods", err)
	}
	var rows []earningsPeriodModel
	if err := db.Order("period_start desc").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, storageErr("list earnings periods", err)
	}
	out := make([]domain.EarningsPeriod, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainEarnings(row))
	}
	return out, int(total), nil
}

func (r *earningsRepository) ListByPartner(ctx context.Context, partnerID string) ([]domain.EarningsPeriod, error) {
	periods, err := partnerPeriods(r.db.WithContext(ctx), partnerID)
	return periods, storageErr("list partner earnings", err)
}

func (r *earningsRepository) UpdateStatus(ctx context.Context, next domain.EarningsPeriod, expectedVersion int64, events ports.OutboxEvents[domain.EarningsPeriod]) (domain.EarningsPeriod, error) {
	next.Version = expectedVersion + 1
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&earningsPeriodModel{}).
			Where("period_id = ? AND version = ?", next.PeriodID, expectedVersion).
			Updates(map[string]any{
				"status":          string(next.Status),
				"commission_rate": next.CommissionRate,
				"amount":          next.Amount,
				"paid_date":       next.PaidDate,
				"transaction_id":  next.TransactionID,
				"updated_at":      next.UpdatedAt,
				"version":         next.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ConcurrentModificationError{Entity: "earnings period", ID: next.PeriodID}
		}
		return stageOutbox(tx, events, next)
	})
	if err != nil {
		return domain.EarningsPeriod{}, storageErr("update earnings period", err)
	}
	return next, nil
}

type payoutRepository struct {
	db *gorm.DB
}

// CreateAuthorized locks the partner row, so concurrent requests for one
// partner see each other's committed amounts.
func (r *payoutRepository) CreateAuthorized(ctx context.Context, partnerID string, build ports.PayoutBuilder, events ports.OutboxEvents[domain.PayoutRequest]) (domain.PayoutRequest, error) {
	var created domain.PayoutRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var partner partnerModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("partner_id = ?", partnerID).
			Take(&partner).Error; err != nil {
			return err
		}
		periods, err := partnerPeriods(tx, partnerID)
		if err != nil {
			return err
		}
		payouts, err := partnerPayouts(tx, partnerID)
		if err != nil {
			return err
		}
		req, err := build(domain.AvailableBalance(periods, payouts))
		if err != nil {
			return err
		}
		if req.Version == 0 {
			req.Version = 1
		}
		row := toPayoutModel(req)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := stageOutbox(tx, events, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return domain.PayoutRequest{}, storageErr("create payout request", err)
	}
	return created, nil
}

func (r *payoutRepository) GetByID(ctx context.Context, payoutID string) (domain.PayoutRequest, error) {
	var row payoutRequestModel
	if err := r.db.WithContext(ctx).Where("payout_id = ?", payoutID).Take(&row).Error; err != nil {
		return domain.PayoutRequest{}, storageErr("get payout request", err)
	}
	return toDomainPayout(row), nil
}

func (r *payoutRepository) List(ctx context.Context, query ports.PayoutQuery) ([]domain.PayoutRequest, int, error) {
	db := r.db.WithContext(ctx).Model(&payoutRequestModel{})
	if query.PartnerID != "" {
		db = db.Where("partner_id = ?", query.PartnerID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", string(query.Status))
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, storageErr("count payout requests", err)
	}
	var rows []payoutRequestModel
	if err := db.Order("request_date desc").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, storageErr("list payout requests", err)
	}
	out := make([]domain.PayoutRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, int(total), nil
}

func (r *payoutRepository) ListByPartner(ctx context.Context, partnerID string) ([]domain.PayoutRequest, error) {
	payouts, err := partnerPayouts(r.db.WithContext(ctx), partnerID)
	return payouts, storageErr("list partner payouts", err)
}

func (r *payoutRepository) UpdateStatus(ctx context.Context, next domain.PayoutRequest, expectedVersion int64, events ports.OutboxEvents[domain.PayoutRequest]) (domain.PayoutRequest, error) {
	next.Version = expectedVersion + 1
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&payoutRequestModel{}).
			Where("payout_id = ? AND version = ?", next.PayoutID, expectedVersion).
			Updates(map[string]any{
				"status":         string(next.Status),
				"processed_date": next.ProcessedDate,
				"reviewed_by":    next.ReviewedBy,
				"updated_at":     next.UpdatedAt,
				"version":        next.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ConcurrentModificationError{Entity: "payout request", ID: next.PayoutID}
		}
		return stageOutbox(tx, events, next)
	})
	if err != nil {
		return domain.PayoutRequest{}, storageErr("update payout request", err)
	}
	return next, nil
}

func partnerPeriods(db *gorm.DB, partnerID string) ([]domain.EarningsPeriod, error) {
	var rows []earningsPeriodModel
	if err := db.Where("partner_id = ?", partnerID).Order("period_start asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.EarningsPeriod, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainEarnings(row))
	}
	return out, nil
}

func partnerPayouts(db *gorm.DB, partnerID string) ([]domain.PayoutRequest, error) {
	var rows []payoutRequestModel
	if err := db.Where("partner_id = ?", partnerID).Order("request_date asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PayoutRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, nil
}

var (
	_ ports.EarningsRepository = (*earningsRepository)(nil)
	_ ports.PayoutRepository   = (*payoutRepository)(nil)
)
