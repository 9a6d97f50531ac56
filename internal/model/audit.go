package model

import (
	"fmt"
	"strconv"
)

// CallKind tags the decoded payload of a RawCall.
type CallKind string

const (
	CallPositions       CallKind = "positions"
	CallGetPool         CallKind = "getPool"
	CallSlot0           CallKind = "slot0"
	CallLiquidity       CallKind = "liquidity"
	CallFeeGrowthGlobal CallKind = "feeGrowthGlobal"
	CallDecimals        CallKind = "decimals"
	CallSymbol          CallKind = "symbol"
	CallTicks           CallKind = "ticks"
)

// Decoded is the typed payload of one call. Implementations are the *Call types below.
type Decoded interface {
	Kind() CallKind
}

// PositionsCall is the decoded positions(uint256) record. Integers are decimal strings.
type PositionsCall struct {
	TokenID                  uint64 `json:"token_id"`
	Token0                   string `json:"token0"`
	Token1                   string `json:"token1"`
	Fee                      uint32 `json:"fee"`
	TickLower                int32  `json:"tick_lower"`
	TickUpper                int32  `json:"tick_upper"`
	Liquidity                string `json:"liquidity"`
	FeeGrowthInside0LastX128 string `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 string `json:"fee_growth_inside1_last_x128"`
	TokensOwed0              string `json:"tokens_owed0"`
	TokensOwed1              string `json:"tokens_owed1"`
}

type GetPoolCall struct {
	Pool string `json:"pool"`
}

type Slot0Call struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

type LiquidityCall struct {
	Liquidity string `json:"liquidity"`
}

// FeeGrowthGlobalCall is feeGrowthGlobal0X128 or feeGrowthGlobal1X128; Token says which.
type FeeGrowthGlobalCall struct {
	Token int    `json:"token"`
	Value string `json:"value"`
}

// DecimalsCall and SymbolCall set Defaulted when the call failed and a
// placeholder was used instead.
type DecimalsCall struct {
	Token     string `json:"token"`
	Decimals  uint8  `json:"decimals"`
	Defaulted bool   `json:"defaulted,omitempty"`
}

type SymbolCall struct {
	Token     string `json:"token"`
	Raw       string `json:"raw"`
	Symbol    string `json:"symbol"`
	Defaulted bool   `json:"defaulted,omitempty"`
}

type TicksCall struct {
	Tick                  int32  `json:"tick"`
	FeeGrowthOutside0X128 string `json:"fee_growth_outside0_x128"`
	FeeGrowthOutside1X128 string `json:"fee_growth_outside1_x128"`
}

func (PositionsCall) Kind() CallKind       { return CallPositions }
func (GetPoolCall) Kind() CallKind         { return CallGetPool }
func (Slot0Call) Kind() CallKind           { return CallSlot0 }
func (LiquidityCall) Kind() CallKind       { return CallLiquidity }
func (FeeGrowthGlobalCall) Kind() CallKind { return CallFeeGrowthGlobal }
func (DecimalsCall) Kind() CallKind        { return CallDecimals }
func (SymbolCall) Kind() CallKind          { return CallSymbol }
func (TicksCall) Kind() CallKind           { return CallTicks }

// RawCall records one eth_call so it can be replayed by hand.
type RawCall struct {
	Label    string   `json:"label"`
	Kind     CallKind `json:"kind"`
	To       string   `json:"to"`
	Calldata string   `json:"calldata"`
	Result   string   `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`
	Decoded  Decoded  `json:"decoded,omitempty"`
}

// Formula is one applied formula with its inputs substituted and its result.
type Formula struct {
	Name       string  `json:"name"`
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
}

func (f Formula) String() string {
	return fmt.Sprintf("%s = %s = %s", f.Name, f.Expression, strconv.FormatFloat(f.Value, 'f', -1, 64))
}

// AuditContracts lists the contracts touched by a reconstruction.
type AuditContracts struct {
	PositionManager string `json:"position_manager"`
	Factory         string `json:"factory"`
	Pool            string `json:"pool"`
	Token0          string `json:"token0"`
	Token1          string `json:"token1"`
}

// AuditTrail is everything needed to reproduce a snapshot from the chain.
type AuditTrail struct {
	RunID       string         `json:"run_id"`
	BlockNumber uint64         `json:"block_number"`
	Endpoint    string         `json:"rpc_endpoint"`
	Network     string         `json:"network"`
	Dex         string         `json:"dex"`
	Contracts   AuditContracts `json:"contracts"`
	Calls       []RawCall      `json:"raw_calls"`
	Formulas    []Formula      `json:"formulas_applied"`
}

// Record appends a call. The kind is taken from the decoded payload when present.
func (a *AuditTrail) Record(call RawCall) {
	if call.Decoded != nil {
		call.Kind = call.Decoded.Kind()
	}
	a.Calls = append(a.Calls, call)
}

// Apply appends a formula and returns its value.
func (a *AuditTrail) Apply(name, expression string, value float64) float64 {
	a.Formulas = append(a.Formulas, Formula{Name: name, Expression: expression, Value: value})
	return value
}

// CallsOf returns the recorded calls of one kind, in order.
func (a *AuditTrail) CallsOf(kind CallKind) []RawCall {
	var out []RawCall
	for _, c := range a.Calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
