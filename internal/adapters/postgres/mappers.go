package postgres

import (
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

func toExperimentModel(exp domain.Experiment) experimentModel {
	return experimentModel{
		ExperimentID:     exp.ExperimentID,
		CampaignID:       exp.CampaignID,
		Name:             exp.Name,
		Description:      exp.Description,
		Status:           string(exp.Status),
		StartDate:        exp.StartDate,
		EndDate:          exp.EndDate,
		WinningVariantID: exp.WinningVariantID,
		Version:          exp.Version,
		CreatedBy:        exp.CreatedBy,
		CreatedAt:        exp.CreatedAt,
		UpdatedAt:        exp.UpdatedAt,
	}
}

func toDomainExperiment(row experimentModel, variants []variantModel) domain.Experiment {
	out := domain.Experiment{
		ExperimentID:     row.ExperimentID,
		CampaignID:       row.CampaignID,
		Name:             row.Name,
		Description:      row.Description,
		Status:           domain.ExperimentStatus(row.Status),
		StartDate:        row.StartDate.UTC(),
		EndDate:          row.EndDate,
		WinningVariantID: row.WinningVariantID,
		Version:          row.Version,
		CreatedBy:        row.CreatedBy,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		Variants:         make([]domain.Variant, 0, len(variants)),
	}
	for _, v := range variants {
		out.Variants = append(out.Variants, toDomainVariant(v))
	}
	return out
}

func toVariantModel(v domain.Variant) variantModel {
	return variantModel{
		VariantID:         v.VariantID,
		ExperimentID:      v.ExperimentID,
		CreativeID:        v.CreativeID,
		Name:              v.Name,
		TrafficAllocation: v.TrafficAllocation,
		Impressions:       v.Impressions,
		Engagements:       v.Engagements,
		Conversions:       v.Conversions,
		Position:          v.Position,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
}

func toDomainVariant(row variantModel) domain.Variant {
	return domain.Variant{
		VariantID:         row.VariantID,
		ExperimentID:      row.ExperimentID,
		CreativeID:        row.CreativeID,
		Name:              row.Name,
		TrafficAllocation: row.TrafficAllocation,
		Impressions:       row.Impressions,
		Engagements:       row.Engagements,
		Conversions:       row.Conversions,
		Position:          row.Position,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

func toEarningsModel(p domain.EarningsPeriod) earningsPeriodModel {
	return earningsPeriodModel{
		PeriodID:         p.PeriodID,
		PartnerID:        p.PartnerID,
		PeriodStart:      p.PeriodStart,
		PeriodEnd:        p.PeriodEnd,
		TotalImpressions: p.TotalImpressions,
		TotalEngagements: p.TotalEngagements,
		CommissionRate:   p.CommissionRate,
		Amount:           p.Amount,
		Status:           string(p.Status),
		PaidDate:         p.PaidDate,
		TransactionID:    p.TransactionID,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toDomainEarnings(row earningsPeriodModel) domain.EarningsPeriod {
	return domain.EarningsPeriod{
		PeriodID:         row.PeriodID,
		PartnerID:        row.PartnerID,
		PeriodStart:      row.PeriodStart.UTC(),
		PeriodEnd:        row.PeriodEnd.UTC(),
		TotalImpressions: row.TotalImpressions,
		TotalEngagements: row.TotalEngagements,
		CommissionRate:   row.CommissionRate,
		Amount:           row.Amount,
		Status:           domain.EarningsStatus(row.Status),
		PaidDate:         row.PaidDate,
		TransactionID:    row.TransactionID,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

func toPayoutModel(p domain.PayoutRequest) payoutRequestModel {
	return payoutRequestModel{
		PayoutID:           p.PayoutID,
		PartnerID:          p.PartnerID,
		RequestedAmount:    p.RequestedAmount,
		Currency:           p.Currency,
		Status:             string(p.Status),
		PaymentMethodID:    p.PaymentMethodID,
		AuthorizationToken: p.AuthorizationToken,
		RequestDate:        p.RequestDate,
		ProcessedDate:      p.ProcessedDate,
		ReviewedBy:         p.ReviewedBy,
		Version:            p.Version,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toDomainPayout(row payoutRequestModel) domain.PayoutRequest {
	return domain.PayoutRequest{
		PayoutID:           row.PayoutID,
		PartnerID:          row.PartnerID,
		RequestedAmount:    row.RequestedAmount,
		Currency:           row.Currency,
		Status:             domain.PayoutStatus(row.Status),
		PaymentMethodID:    row.PaymentMethodID,
		AuthorizationToken: row.AuthorizationToken,
		RequestDate:        row.RequestDate.UTC(),
		ProcessedDate:      row.ProcessedDate,
		ReviewedBy:         row.ReviewedBy,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
}
