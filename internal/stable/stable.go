// Package stable classifies token symbols as stable assets and picks the
// USD-denominated side of a pair.
package stable

import "strings"

// Side is the stable side of a pair.
type Side int

const (
	Neither Side = -1
	Token0  Side = 0
	Token1  Side = 1
)

var symbols = map[string]struct{}{}

func init() {
	for _, s := range []string{
		// USD
		"USDC", "USDT", "DAI", "BUSD", "TUSD", "FRAX", "LUSD",
		"USDP", "GUSD", "SUSD", "CUSD", "USDD", "PYUSD", "GHO",
		"FDUSD", "CRVUSD", "MKUSD",
		// bridged
		"USDC.E", "USDT.E", "DAI.E", "USDBC", "USDCE", "AXLUSDC",
		// EUR / GBP
		"EURS", "EURT", "AGEUR", "CEUR", "EURC", "GBPT",
		// CDP and yield-bearing
		"MIM", "DOLA", "ALUSD", "USDS", "OUSD",
	} {
		symbols[s] = struct{}{}
	}
}

var aliases = map[string]string{
	"USD₮0": "USDT",
	"USD₮":  "USDT",
	"USDT0": "USDT",
}

// Normalize trims whitespace and NUL padding and maps known on-chain aliases.
func Normalize(symbol string) string {
	cleaned := strings.Trim(strings.TrimSpace(symbol), "\x00")
	cleaned = strings.TrimSpace(cleaned)
	if alias, ok := aliases[cleaned]; ok {
		return alias
	}
	return cleaned
}

// IsStable reports whether symbol is a known stablecoin, case-insensitively.
func IsStable(symbol string) bool {
	_, ok := symbols[strings.ToUpper(Normalize(symbol))]
	return ok
}

// Classifier implements the position reader's stable-side lookup.
type Classifier struct{}

// StableSide returns the side holding the only stablecoin of the pair, or
// Neither when none or both are stable.
func (Classifier) StableSide(symbol0, symbol1 string) Side {
	s0, s1 := IsStable(symbol0), IsStable(symbol1)
	switch {
	case s0 && !s1:
		return Token0
	case s1 && !s0:
		return Token1
	default:
		return Neither
	}
}

// PairClass is "stable-stable", "stable-volatile" or "volatile-volatile".
func PairClass(symbol0, symbol1 string) string {
	s0, s1 := IsStable(symbol0), IsStable(symbol1)
	switch {
	case s0 && s1:
		return "stable-stable"
	case s0 || s1:
		return "stable-volatile"
	default:
		return "volatile-volatile"
	}
}
