package position

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"positionScope/internal/clmath"
	"positionScope/internal/model"
	"positionScope/internal/stable"
)

func (r *Reader) assemble(
	pos model.PositionRecord,
	state model.PoolState,
	token0, token1 model.TokenMeta,
	lower, upper *model.TickBoundaryInfo,
	opts Options,
) *model.PositionSnapshot {
	d0, d1 := token0.Decimals, token1.Decimals

	snap := &model.PositionSnapshot{
		PositionID:    pos.TokenID,
		Network:       r.deployment.Network,
		Dex:           r.deployment.Dex,
		DexName:       r.deployment.DexName,
		PoolAddress:   state.Address,
		Token0:        token0,
		Token1:        token1,
		FeeRaw:        pos.Fee,
		FeeTier:       float64(pos.Fee) / 1e6,
		FeeLabel:      FeeLabel(pos.Fee),
		TickLower:     pos.TickLower,
		TickUpper:     pos.TickUpper,
		LiquidityRaw:  pos.Liquidity.String(),
		PoolLiquidity: bigString(state.Liquidity),
		SqrtPriceX96:  bigString(state.SqrtPriceX96),
		PoolTick:      state.Tick,
		IsActive:      pos.Active(),
		ReadAt:        r.now().UTC(),
	}

	snap.CurrentPrice = clmath.SqrtPriceX96ToPrice(state.SqrtPriceX96, d0, d1)
	snap.PriceLower = clmath.TickToHumanPrice(int64(pos.TickLower), d0, d1)
	snap.PriceUpper = clmath.TickToHumanPrice(int64(pos.TickUpper), d0, d1)
	snap.InRange = pos.TickLower <= state.Tick && state.Tick < pos.TickUpper

	raw0, raw1 := r.amounts(pos, state)
	snap.Amount0Raw, snap.Amount1Raw = raw0.String(), raw1.String()
	snap.Amount0 = clmath.ToHuman(raw0, d0).InexactFloat64()
	snap.Amount1 = clmath.ToHuman(raw1, d1).InexactFloat64()

	fees := clmath.UncollectedFees(
		clmath.PositionFees{
			Liquidity:            pos.Liquidity,
			TickLower:            pos.TickLower,
			TickUpper:            pos.TickUpper,
			FeeGrowthInside0Last: pos.FeeGrowthInside0LastX128,
			FeeGrowthInside1Last: pos.FeeGrowthInside1LastX128,
			TokensOwed0:          pos.TokensOwed0,
			TokensOwed1:          pos.TokensOwed1,
		},
		state.FeeGrowthGlobal0X128, state.FeeGrowthGlobal1X128,
		state.Tick,
		feeGrowth(lower), feeGrowth(upper),
		d0, d1,
	)
	if fees.Fallback {
		r.logger.Warn("tick data unavailable, fees limited to tokensOwed",
			zap.Uint64("position", pos.TokenID), zap.String("pool", state.Address))
	}
	snap.Fees0Raw, snap.Fees1Raw = fees.Raw0.String(), fees.Raw1.String()
	snap.Fees0 = fees.Amount0.InexactFloat64()
	snap.Fees1 = fees.Amount1.InexactFloat64()
	snap.FeesFallback = fees.Fallback

	r.valueInUSD(snap)

	liquidity, _ := new(big.Float).SetInt(pos.Liquidity).Float64()
	poolLiquidity := 0.0
	if state.Liquidity != nil {
		poolLiquidity, _ = new(big.Float).SetInt(state.Liquidity).Float64()
	}
	snap.PositionSharePct = clmath.PositionShare(liquidity, poolLiquidity)
	snap.RangeWidthPct = clmath.RangeWidthPct(snap.CurrentPrice, snap.PriceLower, snap.PriceUpper)
	snap.CapitalEfficiency = clmath.CapitalEfficiency(snap.PriceLower, snap.PriceUpper)
	snap.Proximity = clmath.RangeProximity(snap.CurrentPrice, snap.PriceLower, snap.PriceUpper)
	// The pool tick decides; the float price can land on either side of an edge.
	if snap.Proximity.InRange != snap.InRange {
		snap.Proximity.InRange = snap.InRange
		snap.Proximity.PositionInRangePct = 0
		if snap.InRange && snap.CurrentPrice >= snap.PriceUpper {
			snap.Proximity.PositionInRangePct = 100
		}
	}

	snap.InitialPrice = opts.InitialPrice
	if snap.InitialPrice <= 0 {
		snap.InitialPrice = snap.CurrentPrice
	}
	snap.ILAtLower = clmath.ImpermanentLossAmplified(snap.InitialPrice, snap.PriceLower, snap.PriceLower, snap.PriceUpper)
	snap.ILAtUpper = clmath.ImpermanentLossAmplified(snap.InitialPrice, snap.PriceUpper, snap.PriceLower, snap.PriceUpper)
	return snap
}

// amounts prefers exact integer math and falls back to float math when the
// inputs fall outside the TickMath domain.
func (r *Reader) amounts(pos model.PositionRecord, state model.PoolState) (*big.Int, *big.Int) {
	exact, err := clmath.AmountsForLiquidity(pos.Liquidity, state.SqrtPriceX96, state.Tick, pos.TickLower, pos.TickUpper)
	if err == nil {
		return exact.Amount0, exact.Amount1
	}
	r.logger.Debug("exact amounts unavailable", zap.Uint64("position", pos.TokenID), zap.Error(err))

	liquidity, _ := new(big.Float).SetInt(pos.Liquidity).Float64()
	approx := clmath.AmountsFromLiquidity(liquidity, clmath.SqrtPriceX96ToFloat(state.SqrtPriceX96), state.Tick, pos.TickLower, pos.TickUpper)
	a0, _ := big.NewFloat(approx.Amount0).Int(nil)
	a1, _ := big.NewFloat(approx.Amount1).Int(nil)
	return a0, a1
}

// valueInUSD prices both sides against the stable token. Without exactly one
// stable token, token1 is assumed to be the quote asset.
func (r *Reader) valueInUSD(snap *model.PositionSnapshot) {
	price := snap.CurrentPrice
	side := r.classifier.StableSide(snap.Token0.Symbol, snap.Token1.Symbol)

	if side == stable.Token0 {
		snap.QuoteSide = model.QuoteToken0
		snap.Token0ValueUSD = snap.Amount0
		snap.Token1ValueUSD = divOrZero(snap.Amount1, price)
		snap.Fee0ValueUSD = snap.Fees0
		snap.Fee1ValueUSD = divOrZero(snap.Fees1, price)
	} else {
		snap.QuoteSide = model.QuoteToken1
		snap.QuoteAssumed = side == stable.Neither
		snap.Token0ValueUSD = snap.Amount0 * price
		snap.Token1ValueUSD = snap.Amount1
		snap.Fee0ValueUSD = snap.Fees0 * price
		snap.Fee1ValueUSD = snap.Fees1
	}
	snap.TotalValueUSD = snap.Token0ValueUSD + snap.Token1ValueUSD
	snap.TotalFeesUSD = snap.Fee0ValueUSD + snap.Fee1ValueUSD
	if snap.TotalValueUSD > 0 {
		snap.Token0Pct = snap.Token0ValueUSD / snap.TotalValueUSD * 100
		snap.Token1Pct = snap.Token1ValueUSD / snap.TotalValueUSD * 100
	}
}

func (r *Reader) addFormulas(snap *model.PositionSnapshot) {
	a := &snap.Audit
	a.Apply("current_price",
		fmt.Sprintf("(%s / 2^96)^2 * 10^(%d - %d)", snap.SqrtPriceX96, snap.Token0.Decimals, snap.Token1.Decimals),
		snap.CurrentPrice)
	a.Apply("price_lower",
		fmt.Sprintf("1.0001^%d * 10^(%d - %d)", snap.TickLower, snap.Token0.Decimals, snap.Token1.Decimals),
		snap.PriceLower)
	a.Apply("price_upper",
		fmt.Sprintf("1.0001^%d * 10^(%d - %d)", snap.TickUpper, snap.Token0.Decimals, snap.Token1.Decimals),
		snap.PriceUpper)
	a.Apply("token0_amount", amountExpression(snap, 0), snap.Amount0)
	a.Apply("token1_amount", amountExpression(snap, 1), snap.Amount1)

	feeSource := "L * (feeGrowthInside - feeGrowthInsideLast) / 2^128 + tokensOwed"
	if snap.FeesFallback {
		feeSource = "tokensOwed"
	}
	a.Apply("fees0", fmt.Sprintf("(%s) / 10^%d = %s / 10^%d", feeSource, snap.Token0.Decimals, snap.Fees0Raw, snap.Token0.Decimals), snap.Fees0)
	a.Apply("fees1", fmt.Sprintf("(%s) / 10^%d = %s / 10^%d", feeSource, snap.Token1.Decimals, snap.Fees1Raw, snap.Token1.Decimals), snap.Fees1)
	a.Apply("position_share", fmt.Sprintf("%s / %s * 100", snap.LiquidityRaw, snap.PoolLiquidity), snap.PositionSharePct)
	a.Apply("capital_efficiency",
		fmt.Sprintf("1 / (1 - sqrt(%g / %g))", snap.PriceLower, snap.PriceUpper),
		snap.CapitalEfficiency)
}

func amountExpression(snap *model.PositionSnapshot, token int) string {
	var regime string
	switch {
	case snap.PoolTick < snap.TickLower:
		regime = "below range"
	case snap.PoolTick >= snap.TickUpper:
		regime = "above range"
	default:
		regime = "in range"
	}
	if token == 0 {
		return fmt.Sprintf("L * (1/sqrtP - 1/sqrtPu) / 10^%d (%s, L=%s) = %s / 10^%d",
			snap.Token0.Decimals, regime, snap.LiquidityRaw, snap.Amount0Raw, snap.Token0.Decimals)
	}
	return fmt.Sprintf("L * (sqrtP - sqrtPl) / 10^%d (%s, L=%s) = %s / 10^%d",
		snap.Token1.Decimals, regime, snap.LiquidityRaw, snap.Amount1Raw, snap.Token1.Decimals)
}

// FeeLabel renders a fee in hundredths of a bip as a percentage, e.g. 500 -> "0.05%".
func FeeLabel(fee uint32) string {
	return fmt.Sprintf("%.2f%%", float64(fee)/1e4)
}

func feeGrowth(info *model.TickBoundaryInfo) *clmath.TickFeeGrowth {
	if info == nil {
		return nil
	}
	return &clmath.TickFeeGrowth{Outside0: info.FeeGrowthOutside0X128, Outside1: info.FeeGrowthOutside1X128}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func divOrZero(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}
