package clmath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Multipliers applied to the ratio for each set bit of |tick|, in bit order
// starting at bit 1. Bit 0 selects the initial ratio instead.
var sqrtRatioFactors = [19]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	ratioOdd   = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	ratioEven  = uint256.MustFromHex("0x100000000000000000000000000000000")
	uint256Max = new(uint256.Int).SetAllOne()
	q96u       = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
)

// MinSqrtRatio and MaxSqrtRatio are SqrtRatioAtTick(MinTick) and SqrtRatioAtTick(MaxTick).
var (
	MinSqrtRatio    = big.NewInt(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) × 2^96 rounded up, bit-exact with
// the on-chain TickMath library.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	r, err := sqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return r.ToBig(), nil
}

func sqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	abs := int64(tick)
	if abs < 0 {
		abs = -abs
	}
	if abs > MaxTick {
		return nil, fmt.Errorf("sqrt ratio at tick %d: %w", tick, ErrDomain)
	}

	ratio := new(uint256.Int)
	if abs&1 != 0 {
		ratio.Set(ratioOdd)
	} else {
		ratio.Set(ratioEven)
	}
	for i, factor := range sqrtRatioFactors {
		if abs&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(uint256Max, ratio)
	}

	// Q128.128 to Q64.96, rounding up.
	var rem uint256.Int
	rem.And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// ExactAmounts are token base-unit amounts computed in integer arithmetic.
type ExactAmounts struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// AmountsForLiquidity computes token amounts with the pool's integer rounding
// (round down). The regime is chosen by tick, like AmountsFromLiquidity.
func AmountsForLiquidity(liquidity, sqrtPriceX96 *big.Int, currentTick, tickLower, tickUpper int32) (ExactAmounts, error) {
	out := ExactAmounts{Amount0: new(big.Int), Amount1: new(big.Int)}
	if liquidity == nil || liquidity.Sign() == 0 || sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return out, nil
	}
	if tickLower >= tickUpper {
		return out, fmt.Errorf("amounts for liquidity [%d, %d): %w", tickLower, tickUpper, ErrDomain)
	}
	sqrtA, err := sqrtRatioAtTick(tickLower)
	if err != nil {
		return out, err
	}
	sqrtB, err := sqrtRatioAtTick(tickUpper)
	if err != nil {
		return out, err
	}
	liq, overflow := uint256.FromBig(liquidity)
	if overflow {
		return out, fmt.Errorf("liquidity %s: %w", liquidity, ErrDomain)
	}
	sqrtP, overflow := uint256.FromBig(sqrtPriceX96)
	if overflow {
		return out, fmt.Errorf("sqrt price %s: %w", sqrtPriceX96, ErrDomain)
	}

	switch {
	case currentTick < tickLower:
		out.Amount0 = amount0Delta(sqrtA, sqrtB, liq)
	case currentTick >= tickUpper:
		out.Amount1 = amount1Delta(sqrtA, sqrtB, liq)
	default:
		out.Amount0 = amount0Delta(sqrtP, sqrtB, liq)
		out.Amount1 = amount1Delta(sqrtA, sqrtP, liq)
	}
	return out, nil
}

// amount0Delta is L·2^96·(b-a)/b/a, rounded down.
func amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return new(big.Int)
	}
	num1 := new(big.Int).Lsh(liquidity.ToBig(), 96)
	num2 := new(uint256.Int).Sub(sqrtB, sqrtA).ToBig()
	r := num1.Mul(num1, num2)
	r.Quo(r, sqrtB.ToBig())
	return r.Quo(r, sqrtA.ToBig())
}

// amount1Delta is L·(b-a)/2^96, rounded down.
func amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	var diff uint256.Int
	diff.Sub(sqrtB, sqrtA)
	var out uint256.Int
	if _, overflow := out.MulDivOverflow(liquidity, &diff, q96u); overflow {
		r := new(big.Int).Mul(liquidity.ToBig(), diff.ToBig())
		return r.Quo(r, q96u.ToBig())
	}
	return out.ToBig()
}
