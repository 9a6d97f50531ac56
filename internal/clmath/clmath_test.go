package clmath

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func TestPriceTickRoundTrip(t *testing.T) {
	for exp := -4.0; exp <= 6.0; exp += 0.25 {
		p := math.Pow(10, exp)
		tick, err := PriceToTick(p)
		if err != nil {
			t.Fatalf("price %v: %v", p, err)
		}
		got := TickToPrice(int64(tick))
		if rel := math.Abs(got-p) / p; rel > 1e-4 {
			t.Fatalf("price %v: round trip %v (rel err %v)", p, got, rel)
		}
	}
}

func TestPriceToTickDomain(t *testing.T) {
	for _, p := range []float64{0, -1, math.NaN()} {
		if _, err := PriceToTick(p); !errors.Is(err, ErrDomain) {
			t.Fatalf("price %v: expected ErrDomain, got %v", p, err)
		}
	}
}

func TestTickClamp(t *testing.T) {
	tick, err := PriceToTick(1e300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick != MaxTick {
		t.Fatalf("expected clamp to %d, got %d", MaxTick, tick)
	}
	if TickToPrice(2_000_000) != TickToPrice(MaxTick) {
		t.Fatalf("tick above max not clamped")
	}
	if p := TickToPrice(MinTick - 1); math.IsInf(p, 0) || p <= 0 {
		t.Fatalf("unexpected price at min clamp: %v", p)
	}
}

func TestImpermanentLossSymmetry(t *testing.T) {
	for _, r := range []float64{0.1, 0.5, 0.9, 1.5, 2, 4, 10} {
		a := ImpermanentLossBaseline(1000, 1000*r)
		b := ImpermanentLossBaseline(1000, 1000/r)
		if math.Abs(a-b) > 1e-9 {
			t.Fatalf("r=%v: IL(r)=%v IL(1/r)=%v", r, a, b)
		}
		if a > 0 {
			t.Fatalf("r=%v: IL should not be positive, got %v", r, a)
		}
	}
	if got := ImpermanentLossBaseline(0, 10); got != 0 {
		t.Fatalf("non-positive initial price: got %v", got)
	}
	// r = 4 gives 2*2/5-1 = -20%.
	if got := ImpermanentLossBaseline(1, 4); math.Abs(got+20) > 1e-9 {
		t.Fatalf("r=4: got %v", got)
	}
}

func TestCapitalEfficiency(t *testing.T) {
	mid := 2000.0
	prev := 0.0
	for _, width := range []float64{0.9, 0.5, 0.2, 0.1, 0.05, 0.01} {
		ce := CapitalEfficiency(mid*(1-width), mid*(1+width))
		if ce < 1 {
			t.Fatalf("width %v: ce %v < 1", width, ce)
		}
		if ce <= prev {
			t.Fatalf("width %v: ce %v not larger than wider range %v", width, ce, prev)
		}
		prev = ce
	}
	for _, tc := range [][2]float64{{10, 10}, {10, 5}, {0, 5}, {-1, 5}} {
		if ce := CapitalEfficiency(tc[0], tc[1]); ce != 1 {
			t.Fatalf("degenerate %v: got %v", tc, ce)
		}
	}
}

func TestImpermanentLossAmplified(t *testing.T) {
	il := ImpermanentLossAmplified(2000, 2500, 1800, 2200)
	if il.CapitalEfficiency <= 1 {
		t.Fatalf("expected amplification, got ce %v", il.CapitalEfficiency)
	}
	if math.Abs(il.AmplifiedPct) < math.Abs(il.BaselinePct) {
		t.Fatalf("amplified %v smaller than baseline %v", il.AmplifiedPct, il.BaselinePct)
	}

	clamped := ImpermanentLossAmplified(1, 100, 0.999, 1.001)
	if clamped.AmplifiedPct != -100 {
		t.Fatalf("expected clamp at -100, got %v", clamped.AmplifiedPct)
	}

	degenerate := ImpermanentLossAmplified(1, 2, 3, 3)
	if degenerate.CapitalEfficiency != 1 || degenerate.AmplifiedPct != 0 {
		t.Fatalf("unexpected degenerate result %+v", degenerate)
	}
}

func TestLiquidityFromAmounts(t *testing.T) {
	if l := LiquidityFromAmounts(0, 0, 1, 0.5, 2); l != 0 {
		t.Fatalf("zero amounts: got %v", l)
	}
	below := LiquidityFromAmounts(10, 0, 0.25, 0.5, 2)
	if below <= 0 {
		t.Fatalf("below range: got %v", below)
	}
	above := LiquidityFromAmounts(0, 10, 4, 0.5, 2)
	if above <= 0 {
		t.Fatalf("above range: got %v", above)
	}
	in := LiquidityFromAmounts(10, 10, 1, 0.5, 2)
	l0 := 10 / (1 - 1/math.Sqrt(2))
	l1 := 10 / (1 - math.Sqrt(0.5))
	if math.Abs(in-math.Min(l0, l1)) > 1e-9 {
		t.Fatalf("in range: got %v want %v", in, math.Min(l0, l1))
	}
}

func TestAmountsRegimes(t *testing.T) {
	liquidity := 1e18
	sqrtAt := func(tick int32) float64 { return math.Pow(tickBase, float64(tick)/2) }

	in := AmountsFromLiquidity(liquidity, sqrtAt(0), 0, -1000, 1000)
	if in.Amount0 <= 0 || in.Amount1 <= 0 {
		t.Fatalf("in range amounts should be positive: %+v", in)
	}
	below := AmountsFromLiquidity(liquidity, sqrtAt(-1500), -1500, -1000, 1000)
	if below.Amount1 != 0 || below.Amount0 <= 0 {
		t.Fatalf("below range: %+v", below)
	}
	above := AmountsFromLiquidity(liquidity, sqrtAt(1500), 1500, -1000, 1000)
	if above.Amount0 != 0 || above.Amount1 <= 0 {
		t.Fatalf("above range: %+v", above)
	}
	if z := AmountsFromLiquidity(0, 1, 0, -1000, 1000); z.Amount0 != 0 || z.Amount1 != 0 {
		t.Fatalf("zero liquidity: %+v", z)
	}
}

func TestSqrtRatioAtTick(t *testing.T) {
	cases := map[int32]string{
		0:       "79228162514264337593543950336",
		1:       "79232123823359799118286999568",
		-1:      "79224201403219477170569942574",
		1000:    "83290069058676223003182343270",
		-1000:   "75364347830767020784054125655",
		MinTick: "4295128739",
		MaxTick: "1461446703485210103287273052203988822378723970342",
	}
	for tick, want := range cases {
		got, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if got.String() != want {
			t.Fatalf("tick %d: got %s want %s", tick, got, want)
		}
	}
	if _, err := SqrtRatioAtTick(MaxTick + 1); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected ErrDomain beyond max tick, got %v", err)
	}
}

func TestAmountsForLiquidity(t *testing.T) {
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	sqrtP, _ := SqrtRatioAtTick(0)

	in, err := AmountsForLiquidity(liquidity, sqrtP, 0, -1000, 1000)
	if err != nil {
		t.Fatalf("in range: %v", err)
	}
	want := "48768197581278888"
	if in.Amount0.String() != want || in.Amount1.String() != want {
		t.Fatalf("in range: got %s/%s want %s", in.Amount0, in.Amount1, want)
	}

	below, err := AmountsForLiquidity(liquidity, sqrtP, -1001, -1000, 1000)
	if err != nil {
		t.Fatalf("below: %v", err)
	}
	if below.Amount1.Sign() != 0 || below.Amount0.Sign() <= 0 {
		t.Fatalf("below: %s/%s", below.Amount0, below.Amount1)
	}

	above, err := AmountsForLiquidity(liquidity, sqrtP, 1000, -1000, 1000)
	if err != nil {
		t.Fatalf("above: %v", err)
	}
	if above.Amount0.Sign() != 0 || above.Amount1.Sign() <= 0 {
		t.Fatalf("above: %s/%s", above.Amount0, above.Amount1)
	}

	if _, err := AmountsForLiquidity(liquidity, sqrtP, 0, 10, 10); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected ErrDomain for empty range, got %v", err)
	}
}

func TestSqrtPriceX96ToPrice(t *testing.T) {
	// sqrtP = 2^96 means raw price 1.
	if p := SqrtPriceX96ToPrice(Q96, 18, 18); p != 1 {
		t.Fatalf("got %v", p)
	}
	// WETH(18)/USDC(6): raw 1e-9 → 1000 USDC per WETH.
	raw := new(big.Float).SetFloat64(math.Sqrt(1e-9))
	raw.Mul(raw, new(big.Float).SetInt(Q96))
	sqrtP, _ := raw.Int(nil)
	if p := SqrtPriceX96ToPrice(sqrtP, 18, 6); math.Abs(p-1000)/1000 > 1e-9 {
		t.Fatalf("got %v", p)
	}
	if p := SqrtPriceX96ToPrice(big.NewInt(0), 18, 6); p != 0 {
		t.Fatalf("zero sqrt price: got %v", p)
	}
}

func TestRangeHelpers(t *testing.T) {
	if w := RangeWidthPct(100, 95, 105); math.Abs(w-10) > 1e-9 {
		t.Fatalf("width: got %v", w)
	}
	if w := RangeWidthPct(0, 95, 105); w != 0 {
		t.Fatalf("width at zero price: got %v", w)
	}
	p := RangeProximity(100, 90, 110)
	if !p.InRange || math.Abs(p.DownsideBufferPct-10) > 1e-9 || math.Abs(p.UpsideBufferPct-10) > 1e-9 || math.Abs(p.PositionInRangePct-50) > 1e-9 {
		t.Fatalf("proximity: %+v", p)
	}
	if edge := RangeProximity(110, 90, 110); edge.InRange || edge.PositionInRangePct != 0 {
		t.Fatalf("upper edge is outside the range: %+v", edge)
	}
	if edge := RangeProximity(90, 90, 110); !edge.InRange || edge.PositionInRangePct != 0 {
		t.Fatalf("lower edge is inside the range: %+v", edge)
	}
	out := RangeProximity(120, 90, 110)
	if out.InRange || out.PositionInRangePct != 0 || out.UpsideBufferPct >= 0 {
		t.Fatalf("out of range proximity: %+v", out)
	}
	if s := PositionShare(25, 100); s != 25 {
		t.Fatalf("share: got %v", s)
	}
	est := EstimateFeeAPY(1_000_000, 0.003, 1, 100, 10_000)
	if math.Abs(est.DailyFeesUSD-30) > 1e-9 || math.Abs(est.APYPct-109.5) > 1e-9 {
		t.Fatalf("fee estimate: %+v", est)
	}
}
