// Package registry maps DEX and network identifiers to contract addresses and
// default RPC endpoints.
package registry

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultDex = "uniswap_v3"

// Contracts are the per-deployment addresses the position reader needs.
type Contracts struct {
	PositionManager common.Address
	Factory         common.Address
}

// Dex is one concentrated-liquidity deployment family.
type Dex struct {
	Slug     string
	Name     string
	Networks map[string]Contracts
}

var rpcURLs = map[string]string{
	"arbitrum": "https://1rpc.io/arb",
	"ethereum": "https://1rpc.io/eth",
	"polygon":  "https://1rpc.io/matic",
	"base":     "https://1rpc.io/base",
	"optimism": "https://1rpc.io/op",
	"bsc":      "https://1rpc.io/bnb",
}

func contracts(pm, factory string) Contracts {
	return Contracts{PositionManager: common.HexToAddress(pm), Factory: common.HexToAddress(factory)}
}

var dexes = map[string]Dex{
	"uniswap_v3": {
		Slug: "uniswap_v3",
		Name: "Uniswap V3",
		Networks: map[string]Contracts{
			"ethereum": contracts("0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			"arbitrum": contracts("0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			"polygon":  contracts("0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			"optimism": contracts("0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			"base":     contracts("0x03a520b32C04BF3bEEf7BEb72E919cf822Ed34f1", "0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
		},
	},
	"pancakeswap_v3": {
		Slug: "pancakeswap_v3",
		Name: "PancakeSwap V3",
		Networks: map[string]Contracts{
			"ethereum": contracts("0x46A15B0b27311cedF172AB29E4f4766fbE7F4364", "0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865"),
			"bsc":      contracts("0x46A15B0b27311cedF172AB29E4f4766fbE7F4364", "0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865"),
			"arbitrum": contracts("0x427bF5b37357632377eCbEC9de3626C71A5396c1", "0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865"),
			"base":     contracts("0x46A15B0b27311cedF172AB29E4f4766fbE7F4364", "0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865"),
		},
	},
	"sushiswap_v3": {
		Slug: "sushiswap_v3",
		Name: "SushiSwap V3",
		Networks: map[string]Contracts{
			"ethereum": contracts("0x2214A42d8e2A1d20635C2cb0664422c528b6A432", "0xbACEB8eC6b9355Dfc0269C18bac9d6E2Bdc29C4F"),
			"arbitrum": contracts("0xF0cBce1942a68BEB3d1b73F0dd86c8DCc363eF49", "0x1af415a1EbA07a4986a52B6f2e7dE7003D82231e"),
			"polygon":  contracts("0xb7402ee99F0A008e461098AC3a27F4957Df89a40", "0x917933899c6a5f8E37F31E19f92CdbFf7e8ff0e2"),
			"base":     contracts("0x80C7DD17B01855a6D2347444a0FCC36136a314de", "0xc35DADB65012eC5796536bD9864eD8773aBc74C4"),
			"optimism": contracts("0x1af415a1EbA07a4986a52B6f2e7dE7003D82231e", "0x9c6522117e2ed1fE5bdb72bb0eD5E3f2bdE7DBe0"),
		},
	},
}

// Registry resolves contracts and endpoints. RPC overrides take precedence over
// the built-in relays.
type Registry struct {
	rpcOverrides map[string]string
}

// New returns a registry with optional per-network RPC overrides.
func New(rpcOverrides map[string]string) *Registry {
	r := &Registry{rpcOverrides: make(map[string]string, len(rpcOverrides))}
	for k, v := range rpcOverrides {
		if v != "" {
			r.rpcOverrides[k] = v
		}
	}
	return r
}

// Contracts returns the position manager and factory for a DEX on a network.
func (r *Registry) Contracts(dex, network string) (Contracts, error) {
	d, ok := dexes[dex]
	if !ok {
		return Contracts{}, fmt.Errorf("unknown dex %q (available: %v)", dex, DexSlugs())
	}
	c, ok := d.Networks[network]
	if !ok {
		return Contracts{}, fmt.Errorf("dex %s is not deployed on %q (available: %v)", dex, network, sortedKeys(d.Networks))
	}
	return c, nil
}

// DexName returns the display name, or the slug for unknown DEXes.
func (r *Registry) DexName(dex string) string {
	if d, ok := dexes[dex]; ok {
		return d.Name
	}
	return dex
}

// RPCURL returns the endpoint for a network.
func (r *Registry) RPCURL(network string) (string, error) {
	if url, ok := r.rpcOverrides[network]; ok {
		return url, nil
	}
	url, ok := rpcURLs[network]
	if !ok {
		return "", fmt.Errorf("unsupported network %q (available: %v)", network, Networks())
	}
	return url, nil
}

// NetworksFor returns the networks a DEX is deployed on, sorted.
func (r *Registry) NetworksFor(dex string) []string {
	d, ok := dexes[dex]
	if !ok {
		return nil
	}
	return sortedKeys(d.Networks)
}

// Networks returns every network with a default endpoint, sorted.
func Networks() []string {
	return sortedKeys(rpcURLs)
}

// DexSlugs returns every known DEX slug, sorted.
func DexSlugs() []string {
	return sortedKeys(dexes)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
