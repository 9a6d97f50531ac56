package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionRecord is the decoded positions(uint256) return value.
type PositionRecord struct {
	TokenID                  uint64
	Nonce                    *big.Int
	Operator                 string
	Token0                   string
	Token1                   string
	Fee                      uint32
	TickLower                int32
	TickUpper                int32
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

// Exists reports whether the record names a real token pair. Position managers
// return an all-zero record for unknown ids on some deployments.
func (p PositionRecord) Exists() bool {
	return p.Token0 != "" && common.HexToAddress(p.Token0) != (common.Address{})
}

// Active reports whether the position still holds liquidity.
func (p PositionRecord) Active() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0
}
