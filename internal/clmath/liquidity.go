package clmath

import "math"

// LiquidityFromAmounts derives virtual liquidity from deposited amounts for a
// price range. Below the range only token0 counts, above it only token1, and
// inside it the smaller of the two single-sided estimates.
func LiquidityFromAmounts(amount0, amount1, priceCurrent, priceLower, priceUpper float64) float64 {
	if amount0 == 0 && amount1 == 0 {
		return 0
	}
	spC := math.Sqrt(priceCurrent)
	spL := math.Sqrt(priceLower)
	spU := math.Sqrt(priceUpper)

	switch {
	case priceCurrent <= priceLower:
		return safeDiv(amount0, 1/spL-1/spU)
	case priceCurrent >= priceUpper:
		return safeDiv(amount1, spU-spL)
	}
	l0 := safeDiv(amount0, 1/spC-1/spU)
	l1 := safeDiv(amount1, spC-spL)
	if l0 > 0 && l1 > 0 {
		return math.Min(l0, l1)
	}
	return math.Max(l0, l1)
}

// Amounts are raw token quantities (smallest units) as floats.
type Amounts struct {
	Amount0 float64
	Amount1 float64
}

// AmountsFromLiquidity returns raw token amounts for a position. The regime is
// chosen by tick: below when currentTick < tickLower, above when
// currentTick >= tickUpper, in range otherwise.
func AmountsFromLiquidity(liquidity, sqrtPrice float64, currentTick, tickLower, tickUpper int32) Amounts {
	if liquidity == 0 || sqrtPrice == 0 {
		return Amounts{}
	}
	spL := math.Pow(tickBase, float64(tickLower)/2)
	spU := math.Pow(tickBase, float64(tickUpper)/2)

	switch {
	case currentTick < tickLower:
		return Amounts{Amount0: liquidity * (1/spL - 1/spU)}
	case currentTick >= tickUpper:
		return Amounts{Amount1: liquidity * (spU - spL)}
	default:
		return Amounts{
			Amount0: liquidity * (1/sqrtPrice - 1/spU),
			Amount1: liquidity * (sqrtPrice - spL),
		}
	}
}

// CapitalEfficiency is 1/(1-sqrt(lo/hi)), the depth multiplier against a
// full-range position. Degenerate ranges return 1.
func CapitalEfficiency(priceLower, priceUpper float64) float64 {
	if priceUpper <= priceLower || priceLower <= 0 {
		return 1
	}
	denom := 1 - math.Sqrt(priceLower/priceUpper)
	if denom <= 0 {
		return 1
	}
	return 1 / denom
}

// PositionShare returns the position's share of in-range pool liquidity in percent.
func PositionShare(liquidity, poolLiquidity float64) float64 {
	if poolLiquidity <= 0 {
		return 0
	}
	return liquidity / poolLiquidity * 100
}

// RangeWidthPct is (hi-lo)/current in percent.
func RangeWidthPct(current, lower, upper float64) float64 {
	if current <= 0 || upper <= lower {
		return 0
	}
	return (upper - lower) / current * 100
}

// Proximity describes where the current price sits inside a range.
type Proximity struct {
	InRange            bool    `json:"in_range"`
	DownsideBufferPct  float64 `json:"downside_buffer_pct"`
	UpsideBufferPct    float64 `json:"upside_buffer_pct"`
	PositionInRangePct float64 `json:"position_in_range_pct"`
}

// RangeProximity reports distance to both range edges relative to the current
// price. The range is half-open, [lower, upper), like a tick range.
func RangeProximity(current, lower, upper float64) Proximity {
	if upper <= lower || current <= 0 {
		return Proximity{}
	}
	p := Proximity{
		InRange:           lower <= current && current < upper,
		DownsideBufferPct: (current - lower) / current * 100,
		UpsideBufferPct:   (upper - current) / current * 100,
	}
	if p.InRange {
		p.PositionInRangePct = (current - lower) / (upper - lower) * 100
	}
	return p
}

// FeeEstimate is a pro-rata fee projection from 24h volume.
type FeeEstimate struct {
	DailyFeesUSD  float64 `json:"daily_fees_usd"`
	AnnualFeesUSD float64 `json:"annual_fees_usd"`
	APYPct        float64 `json:"apy_pct"`
}

// EstimateFeeAPY projects fees as volume × feeTier × L/poolL, annualized over
// the position value. It assumes the position stays in range.
func EstimateFeeAPY(volume24h, feeTier, liquidity, poolLiquidity, valueUSD float64) FeeEstimate {
	if poolLiquidity <= 0 || valueUSD <= 0 {
		return FeeEstimate{}
	}
	daily := volume24h * feeTier * (liquidity / poolLiquidity)
	annual := daily * 365
	return FeeEstimate{
		DailyFeesUSD:  daily,
		AnnualFeesUSD: annual,
		APYPct:        annual / valueUSD * 100,
	}
}

func safeDiv(num, denom float64) float64 {
	if denom <= 0 {
		return 0
	}
	return num / denom
}
