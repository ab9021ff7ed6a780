package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
	"gorm.io/gorm"
)

// campaignRepository reads the campaign projection kept in sync from the
// campaign service's events.
type campaignRepository struct {
	db *gorm.DB
}

func (r *campaignRepository) GetCampaign(ctx context.Context, campaignID string) (domain.Campaign, error) {
	var row campaignModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Take(&row).Error; err != nil {
		return domain.Campaign{}, storageErr("get campaign", err)
	}
	var creatives []creativeModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Find(&creatives).Error; err != nil {
		return domain.Campaign{}, storageErr("list campaign creatives", err)
	}
	out := domain.Campaign{
		CampaignID:   row.CampaignID,
		AdvertiserID: row.AdvertiserID,
		CreativeIDs:  make([]string, 0, len(creatives)),
	}
	for _, c := range creatives {
		out.CreativeIDs = append(out.CreativeIDs, c.CreativeID)
	}
	return out, nil
}

type partnerRepository struct {
	db *gorm.DB
}

func (r *partnerRepository) GetByID(ctx context.Context, partnerID string) (domain.Partner, error) {
	return r.find(ctx, "partner_id = ?", partnerID)
}

func (r *partnerRepository) GetByUserID(ctx context.Context, userID string) (domain.Partner, error) {
	return r.find(ctx, "user_id = ?", userID)
}

func (r *partnerRepository) find(ctx context.Context, cond string, arg string) (domain.Partner, error) {
	var row partnerModel
	if err := r.db.WithContext(ctx).Where(cond, arg).Take(&row).Error; err != nil {
		return domain.Partner{}, storageErr("get partner", err)
	}
	var methods []paymentMethodModel
	if err := r.db.WithContext(ctx).Where("partner_id = ?", row.PartnerID).Find(&methods).Error; err != nil {
		return domain.Partner{}, storageErr("list payment methods", err)
	}
	out := domain.Partner{
		PartnerID:        row.PartnerID,
		UserID:           row.UserID,
		CommissionRate:   row.CommissionRate,
		PaymentMethodIDs: make([]string, 0, len(methods)),
	}
	for _, m := range methods {
		out.PaymentMethodIDs = append(out.PaymentMethodIDs, m.PaymentMethodID)
	}
	return out, nil
}

var (
	_ ports.CampaignReader    = (*campaignRepository)(nil)
	_ ports.PartnerRepository = (*partnerRepository)(nil)
)
