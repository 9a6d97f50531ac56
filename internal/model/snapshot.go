package model

import (
	"time"

	"positionScope/internal/clmath"
)

// Quote sides reported in PositionSnapshot.QuoteSide.
const (
	QuoteToken0 = 0
	QuoteToken1 = 1
)

// PositionSnapshot is the reconstructed state of one position at one block.
// Human amounts are float64 in whole tokens; raw integers are decimal strings.
type PositionSnapshot struct {
	PositionID  uint64 `json:"position_id"`
	Network     string `json:"network"`
	Dex         string `json:"dex"`
	DexName     string `json:"dex_name"`
	PoolAddress string `json:"pool_address"`
	BlockNumber uint64 `json:"block_number"`

	Token0 TokenMeta `json:"token0"`
	Token1 TokenMeta `json:"token1"`

	FeeRaw   uint32  `json:"fee_raw"`
	FeeTier  float64 `json:"fee_tier"`
	FeeLabel string  `json:"fee_label"`

	TickLower    int32  `json:"tick_lower"`
	TickUpper    int32  `json:"tick_upper"`
	LiquidityRaw string `json:"liquidity_raw"`

	CurrentPrice float64 `json:"current_price"`
	PriceLower   float64 `json:"price_lower"`
	PriceUpper   float64 `json:"price_upper"`

	Amount0    float64 `json:"amount0"`
	Amount1    float64 `json:"amount1"`
	Amount0Raw string  `json:"amount0_raw"`
	Amount1Raw string  `json:"amount1_raw"`

	Token0ValueUSD float64 `json:"token0_value_usd"`
	Token1ValueUSD float64 `json:"token1_value_usd"`
	TotalValueUSD  float64 `json:"total_value_usd"`
	Token0Pct      float64 `json:"token0_pct"`
	Token1Pct      float64 `json:"token1_pct"`
	QuoteSide      int     `json:"quote_side"`
	QuoteAssumed   bool    `json:"quote_assumed"`

	Fees0        float64 `json:"fees0"`
	Fees1        float64 `json:"fees1"`
	Fees0Raw     string  `json:"fees0_raw"`
	Fees1Raw     string  `json:"fees1_raw"`
	Fee0ValueUSD float64 `json:"fee0_value_usd"`
	Fee1ValueUSD float64 `json:"fee1_value_usd"`
	TotalFeesUSD float64 `json:"total_fees_usd"`
	FeesFallback bool    `json:"fees_fallback"`

	PoolLiquidity    string  `json:"pool_liquidity"`
	PositionSharePct float64 `json:"position_share"`
	SqrtPriceX96     string  `json:"sqrt_price_x96"`
	PoolTick         int32   `json:"pool_tick"`

	InRange           bool                   `json:"in_range"`
	IsActive          bool                   `json:"is_active"`
	RangeWidthPct     float64                `json:"range_width_pct"`
	CapitalEfficiency float64                `json:"capital_efficiency"`
	InitialPrice      float64                `json:"initial_price"`
	ILAtLower         clmath.ImpermanentLoss `json:"il_at_lower"`
	ILAtUpper         clmath.ImpermanentLoss `json:"il_at_upper"`
	Proximity         clmath.Proximity       `json:"range_proximity"`

	ReadAt time.Time  `json:"read_at"`
	Audit  AuditTrail `json:"audit_trail"`
}
