package domain

import "math/bits"

// EngagementRate is engagements/impressions, or 0 when nothing was served.
func EngagementRate(impressions, engagements int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(engagements) / float64(impressions)
}

// ConversionRate is conversions/impressions, or 0 when nothing was served.
func ConversionRate(impressions, conversions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(conversions) / float64(impressions)
}

// SelectWinner returns the id of the variant with the strictly highest
// engagement rate. Ties keep the earliest variant in input order. When no
// variant has served an impression the result is nil.
func SelectWinner(variants []Variant) *string {
	best := -1
	anyServed := false
	for i, v := range variants {
		if v.Impressions > 0 {
			anyServed = true
		}
		if best < 0 || rateGreater(v, variants[best]) {
			best = i
		}
	}
	if !anyServed || best < 0 {
		return nil
	}
	id := variants[best].VariantID
	return &id
}

// rateGreater compares a.eng/a.imp > b.eng/b.imp exactly by cross
// multiplication in 128 bits, so equal ratios such as 50/100 and 25/50 tie.
func rateGreater(a, b Variant) bool {
	aNum, aDen := rateTerms(a)
	bNum, bDen := rateTerms(b)
	lhsHi, lhsLo := bits.Mul64(aNum, bDen)
	rhsHi, rhsLo := bits.Mul64(bNum, aDen)
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo > rhsLo
}

func rateTerms(v Variant) (uint64, uint64) {
	if v.Impressions <= 0 || v.Engagements <= 0 {
		return 0, 1
	}
	return uint64(v.Engagements), uint64(v.Impressions)
}
