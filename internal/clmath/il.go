package clmath

import "math"

// ImpermanentLoss is the result of ImpermanentLossAmplified. Percentages are
// negative for a loss against holding.
type ImpermanentLoss struct {
	BaselinePct       float64 `json:"il_v2_pct"`
	AmplifiedPct      float64 `json:"il_v3_pct"`
	CapitalEfficiency float64 `json:"capital_efficiency"`
	PriceRatio        float64 `json:"price_ratio"`
}

// ImpermanentLossBaseline is 2√r/(1+r)-1 in percent with r = current/initial.
// IL(r) equals IL(1/r).
func ImpermanentLossBaseline(priceInitial, priceCurrent float64) float64 {
	if priceInitial <= 0 {
		return 0
	}
	return baselineIL(priceCurrent / priceInitial)
}

// ImpermanentLossAmplified scales the baseline loss by the range's capital
// efficiency, floored at -100%.
func ImpermanentLossAmplified(priceInitial, priceCurrent, priceLower, priceUpper float64) ImpermanentLoss {
	if priceInitial <= 0 || priceLower <= 0 || priceUpper <= priceLower {
		return ImpermanentLoss{CapitalEfficiency: 1, PriceRatio: 1}
	}
	r := priceCurrent / priceInitial
	base := baselineIL(r)
	ce := CapitalEfficiency(priceLower, priceUpper)
	return ImpermanentLoss{
		BaselinePct:       base,
		AmplifiedPct:      math.Max(base*ce, -100),
		CapitalEfficiency: ce,
		PriceRatio:        r,
	}
}

func baselineIL(r float64) float64 {
	if r < 0 {
		return 0
	}
	return (2*math.Sqrt(r)/(1+r) - 1) * 100
}
