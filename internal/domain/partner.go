package domain

import "github.com/shopspring/decimal"

// Campaign is the read-only view of a campaign this service needs: who owns it
// and which creatives it holds.
type Campaign struct {
	CampaignID   string
	AdvertiserID string
	CreativeIDs  []string
}

func (c Campaign) CreativeSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.CreativeIDs))
	for _, id := range c.CreativeIDs {
		out[id] = struct{}{}
	}
	return out
}

type Partner struct {
	PartnerID        string
	UserID           string
	CommissionRate   decimal.Decimal
	PaymentMethodIDs []string
}

func (p Partner) OwnsPaymentMethod(methodID string) bool {
	for _, id := range p.PaymentMethodIDs {
		if id == methodID {
			return true
		}
	}
	return false
}
