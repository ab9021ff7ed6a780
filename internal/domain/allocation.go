package domain

import (
	"math"
	"strings"
)

const (
	MinVariantsPerExperiment = 2
	AllocationTotal          = 100.0
	AllocationTolerance      = 0.01
)

// VariantAllocation is a proposed variant before validation. A nil
// TrafficAllocation means the caller left the share to the default split.
type VariantAllocation struct {
	CreativeID        string
	Name              string
	TrafficAllocation *float64
}

type NormalizedAllocation struct {
	CreativeID        string
	Name              string
	TrafficAllocation float64
}

// ValidateAllocation checks a proposed variant set against the owning campaign's
// creatives and returns the variants with omitted shares filled in as 100/count.
func ValidateAllocation(variants []VariantAllocation, campaignCreativeIDs map[string]struct{}) ([]NormalizedAllocation, error) {
	if len(variants) < MinVariantsPerExperiment {
		return nil, NewValidationError(ReasonInsufficientVariants, "an experiment needs at least two variants", map[string]any{
			"minimum": MinVariantsPerExperiment,
			"count":   len(variants),
		})
	}

	defaultShare := AllocationTotal / float64(len(variants))
	out := make([]NormalizedAllocation, 0, len(variants))
	sum := 0.0
	for _, v := range variants {
		share := defaultShare
		if v.TrafficAllocation != nil {
			share = *v.TrafficAllocation
		}
		sum += share
		out = append(out, NormalizedAllocation{
			CreativeID:        strings.TrimSpace(v.CreativeID),
			Name:              strings.TrimSpace(v.Name),
			TrafficAllocation: share,
		})
	}

	// The total is judged before individual shares so a list that misses 100
	// always reports allocation_not_100.
	if !math.IsNaN(sum) && math.Abs(sum-AllocationTotal) > AllocationTolerance {
		return nil, NewValidationError(ReasonAllocationNot100, "traffic allocations must sum to 100", map[string]any{
			"sum":       sum,
			"tolerance": AllocationTolerance,
		})
	}

	for i, v := range out {
		share := v.TrafficAllocation
		if math.IsNaN(share) || math.IsInf(share, 0) || share < 0 || share > AllocationTotal {
			return nil, NewValidationError(ReasonInvalidAllocation, "traffic allocation must be between 0 and 100", map[string]any{
				"index":              i,
				"traffic_allocation": share,
			})
		}
	}

	for i, v := range out {
		if _, ok := campaignCreativeIDs[v.CreativeID]; !ok || v.CreativeID == "" {
			return nil, NewValidationError(ReasonCreativeNotInCampaign, "creative does not belong to the campaign", map[string]any{
				"index":          i,
				"ad_creative_id": v.CreativeID,
			})
		}
	}
	return out, nil
}
