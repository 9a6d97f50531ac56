// Package clmath holds the concentrated-liquidity math: tick and price
// conversion, liquidity and token amounts, capital efficiency, impermanent
// loss and fee-growth accounting. Every function is a pure transform.
package clmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

const (
	MinTick = -887272
	MaxTick = 887272

	tickBase = 1.0001
)

// ErrDomain is returned for inputs outside a formula's domain, such as a
// non-positive price passed to a logarithm.
var ErrDomain = errors.New("math domain error")

var (
	q96f  = new(big.Float).SetInt(Q96)
	logTB = math.Log(tickBase)
)

// ClampTick bounds tick to [MinTick, MaxTick].
func ClampTick(tick int64) int64 {
	if tick < MinTick {
		return MinTick
	}
	if tick > MaxTick {
		return MaxTick
	}
	return tick
}

// PriceToTick returns floor(log(price)/log(1.0001)), clamped to the valid tick range.
func PriceToTick(price float64) (int32, error) {
	if !(price > 0) || math.IsInf(price, 1) {
		return 0, fmt.Errorf("price to tick %v: %w", price, ErrDomain)
	}
	raw := math.Log(price) / logTB
	raw = math.Max(MinTick, math.Min(MaxTick, raw))
	return int32(math.Floor(raw)), nil
}

// TickToPrice returns 1.0001^tick after clamping tick.
func TickToPrice(tick int64) float64 {
	return math.Pow(tickBase, float64(ClampTick(tick)))
}

// TickToHumanPrice is TickToPrice scaled to token1 per token0 in whole units.
func TickToHumanPrice(tick int64, decimals0, decimals1 uint8) float64 {
	return TickToPrice(tick) * decimalShift(decimals0, decimals1)
}

// SqrtPriceX96ToPrice converts a Q64.96 square-root price to token1 per token0
// in whole units: (sqrtP/2^96)^2 × 10^(d0-d1).
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	r := new(big.Float).SetInt(sqrtPriceX96)
	r.Quo(r, q96f)
	r.Mul(r, r)
	raw, _ := r.Float64()
	return raw * decimalShift(decimals0, decimals1)
}

// SqrtPriceX96ToFloat returns sqrtP/2^96 without decimal adjustment.
func SqrtPriceX96ToFloat(sqrtPriceX96 *big.Int) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	r := new(big.Float).SetInt(sqrtPriceX96)
	f, _ := r.Quo(r, q96f).Float64()
	return f
}

func decimalShift(decimals0, decimals1 uint8) float64 {
	return math.Pow10(int(decimals0) - int(decimals1))
}
