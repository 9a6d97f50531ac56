package clmath

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	Q256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

// SubMod256 returns (a-b) mod 2^256, matching EVM unchecked subtraction.
func SubMod256(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(orZero(a), orZero(b))
	return r.Mod(r, Q256)
}

// TickFeeGrowth holds a tick's feeGrowthOutside accumulators (X128).
type TickFeeGrowth struct {
	Outside0 *big.Int
	Outside1 *big.Int
}

// PositionFees holds the position fields the fee computation reads.
type PositionFees struct {
	Liquidity            *big.Int
	TickLower            int32
	TickUpper            int32
	FeeGrowthInside0Last *big.Int
	FeeGrowthInside1Last *big.Int
	TokensOwed0          *big.Int
	TokensOwed1          *big.Int
}

// Fees is the uncollected fee result. Raw values are in token base units.
type Fees struct {
	Raw0     *big.Int
	Raw1     *big.Int
	Amount0  decimal.Decimal
	Amount1  decimal.Decimal
	Inside0  *big.Int
	Inside1  *big.Int
	Fallback bool
}

// FeeGrowthInside reproduces the pool's fee-growth-inside computation for one
// token. Every subtraction wraps modulo 2^256.
func FeeGrowthInside(global, lowerOutside, upperOutside *big.Int, currentTick, tickLower, tickUpper int32) *big.Int {
	var below, above *big.Int
	if currentTick >= tickLower {
		below = new(big.Int).Set(orZero(lowerOutside))
	} else {
		below = SubMod256(global, lowerOutside)
	}
	if currentTick < tickUpper {
		above = new(big.Int).Set(orZero(upperOutside))
	} else {
		above = SubMod256(global, upperOutside)
	}
	return SubMod256(SubMod256(global, below), above)
}

// UncollectedFees computes liquidity × (inside - insideLast) mod 2^256 / 2^128
// plus tokensOwed for both tokens. Missing boundary data degrades the result to
// tokensOwed only with Fallback set; it never fails.
func UncollectedFees(
	pos PositionFees,
	feeGrowthGlobal0, feeGrowthGlobal1 *big.Int,
	currentTick int32,
	lower, upper *TickFeeGrowth,
	decimals0, decimals1 uint8,
) Fees {
	if !boundaryComplete(lower) || !boundaryComplete(upper) || pos.Liquidity == nil {
		return owedOnly(pos, decimals0, decimals1)
	}

	inside0 := FeeGrowthInside(feeGrowthGlobal0, lower.Outside0, upper.Outside0, currentTick, pos.TickLower, pos.TickUpper)
	inside1 := FeeGrowthInside(feeGrowthGlobal1, lower.Outside1, upper.Outside1, currentTick, pos.TickLower, pos.TickUpper)

	raw0 := accrued(pos.Liquidity, inside0, pos.FeeGrowthInside0Last)
	raw1 := accrued(pos.Liquidity, inside1, pos.FeeGrowthInside1Last)
	raw0.Add(raw0, orZero(pos.TokensOwed0))
	raw1.Add(raw1, orZero(pos.TokensOwed1))

	return Fees{
		Raw0:    raw0,
		Raw1:    raw1,
		Amount0: ToHuman(raw0, decimals0),
		Amount1: ToHuman(raw1, decimals1),
		Inside0: inside0,
		Inside1: inside1,
	}
}

func accrued(liquidity, inside, last *big.Int) *big.Int {
	delta := SubMod256(inside, last)
	r := new(big.Int).Mul(liquidity, delta)
	return r.Quo(r, Q128)
}

func owedOnly(pos PositionFees, decimals0, decimals1 uint8) Fees {
	raw0 := new(big.Int).Set(orZero(pos.TokensOwed0))
	raw1 := new(big.Int).Set(orZero(pos.TokensOwed1))
	return Fees{
		Raw0:     raw0,
		Raw1:     raw1,
		Amount0:  ToHuman(raw0, decimals0),
		Amount1:  ToHuman(raw1, decimals1),
		Fallback: true,
	}
}

func boundaryComplete(b *TickFeeGrowth) bool {
	return b != nil && b.Outside0 != nil && b.Outside1 != nil
}

// ToHuman scales a base-unit integer by 10^-decimals.
func ToHuman(raw *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(orZero(raw), -int32(decimals))
}

var zero = new(big.Int)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return zero
	}
	return v
}
