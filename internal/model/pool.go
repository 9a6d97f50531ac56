package model

import "math/big"

// PoolState is a pool's slot0, in-range liquidity and global fee growth at one block.
type PoolState struct {
	Address              string
	SqrtPriceX96         *big.Int
	Tick                 int32
	Liquidity            *big.Int
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
}

// TickBoundaryInfo holds the fee-growth-outside accumulators of one initialized tick.
type TickBoundaryInfo struct {
	Tick                  int32
	FeeGrowthOutside0X128 *big.Int
	FeeGrowthOutside1X128 *big.Int
}
