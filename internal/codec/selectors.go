package codec

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Function selectors consumed by the reader, as published by the target contract ABIs.
const (
	// NonfungiblePositionManager (ERC-721 enumerable).
	SelectorBalanceOf           = "0x70a08231" // balanceOf(address)
	SelectorTokenOfOwnerByIndex = "0x2f745c59" // tokenOfOwnerByIndex(address,uint256)
	SelectorPositions           = "0x99fbab88" // positions(uint256)

	// Pool.
	SelectorSlot0                = "0x3850c7bd" // slot0()
	SelectorLiquidity            = "0x1a686502" // liquidity()
	SelectorFeeGrowthGlobal0X128 = "0xf3058399" // feeGrowthGlobal0X128()
	SelectorFeeGrowthGlobal1X128 = "0x46141319" // feeGrowthGlobal1X128()
	SelectorTicks                = "0xf30dba93" // ticks(int24)

	// Factory.
	SelectorGetPool = "0x1698ee82" // getPool(address,address,uint24)

	// ERC-20 metadata.
	SelectorSymbol   = "0x95d89b41" // symbol()
	SelectorDecimals = "0x313ce567" // decimals()
)

// Selector derives the 4-byte selector of a canonical function signature.
func Selector(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

// Calldata joins a selector and encoded words into a 0x-prefixed payload.
func Calldata(selector string, words ...string) string {
	var b strings.Builder
	b.Grow(10 + len(words)*WordHex)
	b.WriteString("0x")
	b.WriteString(Strip0x(selector))
	for _, w := range words {
		b.WriteString(w)
	}
	return b.String()
}
