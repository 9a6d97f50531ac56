// Package codec encodes and decodes the 32-byte-word EVM ABI primitives used by
// the position reader: uint256, int24 sign-extended to int256, address and the
// dynamic string returned by ERC-20 metadata calls.
package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

const (
	WordBytes  = 32
	WordHex    = 64
	AddressHex = 40

	addressPadHex = WordHex - AddressHex
)

// UnknownString is returned by DecodeDynamicString when no layout matches.
const UnknownString = "UNK"

var (
	two256  = new(big.Int).Lsh(big.NewInt(1), 256)
	signBit = new(big.Int).Lsh(big.NewInt(1), 255)
)

// Strip0x removes an optional 0x/0X prefix.
func Strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// EncodeUint returns value as a left-zero-padded 64 hex char word.
// A positive widthBits below 256 additionally bounds the value (e.g. 24 for a fee tier).
func EncodeUint(value *big.Int, widthBits int) (string, error) {
	if value == nil {
		return "", &EncodingError{Kind: "uint", Input: "<nil>", Reason: "nil value"}
	}
	if value.Sign() < 0 {
		return "", &EncodingError{Kind: "uint", Input: value.String(), Reason: "negative value"}
	}
	limit := 256
	if widthBits > 0 && widthBits < 256 {
		limit = widthBits
	}
	if value.BitLen() > limit {
		return "", &EncodingError{Kind: "uint", Input: value.String(), Reason: fmt.Sprintf("exceeds %d bits", limit)}
	}
	return fmt.Sprintf("%064x", value), nil
}

// EncodeUint64 is EncodeUint for values that always fit.
func EncodeUint64(value uint64) string {
	return fmt.Sprintf("%064x", value)
}

// EncodeAddress right-aligns a 20-byte address in a word.
func EncodeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", &EncodingError{Kind: "address", Input: addr, Reason: "want 40 hex characters"}
	}
	return strings.Repeat("0", addressPadHex) + strings.ToLower(Strip0x(addr)), nil
}

// EncodeSignedTick encodes an int24 tick sign-extended to 256 bits.
// Range checks are left to the caller.
func EncodeSignedTick(tick int32) string {
	v := big.NewInt(int64(tick))
	if v.Sign() < 0 {
		v.Add(v, two256)
	}
	return fmt.Sprintf("%064x", v)
}

// WordCount returns how many complete words the payload holds.
func WordCount(data string) int {
	return len(Strip0x(data)) / WordHex
}

func word(data string, index int) (string, error) {
	if index < 0 {
		return "", &DecodingError{Word: index, Reason: "negative index"}
	}
	data = Strip0x(data)
	start := index * WordHex
	if start+WordHex > len(data) || start < 0 {
		return "", &DecodingError{Word: index, Reason: fmt.Sprintf("payload has %d words", len(data)/WordHex)}
	}
	return data[start : start+WordHex], nil
}

// DecodeUint reads the index-th word as an unsigned integer.
func DecodeUint(data string, index int) (*big.Int, error) {
	w, err := word(data, index)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(w, 16)
	if !ok {
		return nil, &DecodingError{Word: index, Reason: "invalid hex"}
	}
	return v, nil
}

// DecodeInt reads the index-th word as a two's-complement int256.
func DecodeInt(data string, index int) (*big.Int, error) {
	v, err := DecodeUint(data, index)
	if err != nil {
		return nil, err
	}
	if v.Cmp(signBit) >= 0 {
		v.Sub(v, two256)
	}
	return v, nil
}

// DecodeAddress reads the low 20 bytes of the index-th word, 0x-prefixed and lower case.
func DecodeAddress(data string, index int) (string, error) {
	w, err := word(data, index)
	if err != nil {
		return "", err
	}
	if _, err := hex.DecodeString(w); err != nil {
		return "", &DecodingError{Word: index, Reason: "invalid hex"}
	}
	return "0x" + strings.ToLower(w[addressPadHex:]), nil
}

// DecodeDynamicString decodes a string return value. Some tokens return a
// bytes32 instead of the dynamic layout; both are tried before giving up with
// UnknownString. It never fails.
func DecodeDynamicString(data string) string {
	if s, err := DecodeABIString(data); err == nil {
		return s
	}
	if s, err := DecodeFixedString(data); err == nil {
		return s
	}
	return UnknownString
}

// DecodeABIString follows the dynamic layout: offset word, length word, bytes.
func DecodeABIString(data string) (string, error) {
	offset, err := DecodeUint(data, 0)
	if err != nil {
		return "", err
	}
	if !offset.IsInt64() {
		return "", &DecodingError{Word: 0, Reason: "offset out of range"}
	}
	lenWord := int(offset.Int64() / WordBytes)
	length, err := DecodeUint(data, lenWord)
	if err != nil {
		return "", err
	}
	payload := Strip0x(data)
	start := (lenWord + 1) * WordHex
	if !length.IsInt64() || length.Int64() > int64(len(payload)) {
		return "", &DecodingError{Word: lenWord, Reason: "length out of range"}
	}
	end := start + int(length.Int64())*2
	if end > len(payload) {
		return "", &DecodingError{Word: lenWord + 1, Reason: "truncated string"}
	}
	raw, err := hex.DecodeString(payload[start:end])
	if err != nil {
		return "", &DecodingError{Word: lenWord + 1, Reason: "invalid hex"}
	}
	return textFromBytes(raw, lenWord+1)
}

// DecodeFixedString reads the first word as a NUL-padded text blob.
func DecodeFixedString(data string) (string, error) {
	w, err := word(data, 0)
	if err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(w)
	if err != nil {
		return "", &DecodingError{Word: 0, Reason: "invalid hex"}
	}
	s, err := textFromBytes(raw, 0)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &DecodingError{Word: 0, Reason: "empty text"}
	}
	return s, nil
}

func textFromBytes(raw []byte, index int) (string, error) {
	raw = bytes.Trim(raw, "\x00")
	if !utf8.Valid(raw) {
		return "", &DecodingError{Word: index, Reason: "invalid utf-8"}
	}
	return string(raw), nil
}
