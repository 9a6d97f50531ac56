package model

// TokenMeta captures the ERC20 metadata shown in a snapshot.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}
