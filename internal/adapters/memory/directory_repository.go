package memory

import (
	"context"
	"sync"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// CampaignRepository and PartnerRepository hold read models owned by other
// services. Put seeds them for local runs and tests.
type CampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]domain.Campaign
}

func (r *CampaignRepository) Put(campaign domain.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign.CreativeIDs = append([]string(nil), campaign.CreativeIDs...)
	r.campaigns[campaign.CampaignID] = campaign
}

func (r *CampaignRepository) GetCampaign(_ context.Context, campaignID string) (domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	campaign, ok := r.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	campaign.CreativeIDs = append([]string(nil), campaign.CreativeIDs...)
	return campaign, nil
}

type PartnerRepository struct {
	mu       sync.RWMutex
	partners map[string]domain.Partner
}

func (r *PartnerRepository) Put(partner domain.Partner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner.PaymentMethodIDs = append([]string(nil), partner.PaymentMethodIDs...)
	r.partners[partner.PartnerID] = partner
}

func (r *PartnerRepository) GetByID(_ context.Context, partnerID string) (domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partner, ok := r.partners[partnerID]
	if !ok {
		return domain.Partner{}, domain.ErrNotFound
	}
	return partner, nil
}

func (r *PartnerRepository) GetByUserID(_ context.Context, userID string) (domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, partner := range r.partners {
		if partner.UserID == userID {
			return partner, nil
		}
	}
	return domain.Partner{}, domain.ErrNotFound
}

var (
	_ ports.CampaignReader    = (*CampaignRepository)(nil)
	_ ports.PartnerRepository = (*PartnerRepository)(nil)
)
