package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// rpcEndpoints reads per-network RPC URLs, either as a config file table
// (rpc-urls: {base: https://...}) or as "network=url,network=url" from a flag
// or the environment. Network names are lowercased.
func rpcEndpoints(v *viper.Viper, key string) (map[string]string, error) {
	endpoints := map[string]string{}
	if !v.IsSet(key) {
		return endpoints, nil
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		for network, raw := range typed {
			if err := addEndpoint(endpoints, network, raw); err != nil {
				return nil, err
			}
		}
	case map[string]interface{}:
		for network, raw := range typed {
			if err := addEndpoint(endpoints, network, fmt.Sprint(raw)); err != nil {
				return nil, err
			}
		}
	case string:
		parsed, err := parseEndpoints(typed)
		if err != nil {
			return nil, err
		}
		endpoints = parsed
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", key, typed)
	}
	return endpoints, nil
}

func parseEndpoints(input string) (map[string]string, error) {
	endpoints := map[string]string{}
	for _, entry := range splitAndClean(input) {
		network, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("rpc-urls entry %q: want network=url", entry)
		}
		if err := addEndpoint(endpoints, network, raw); err != nil {
			return nil, err
		}
	}
	return endpoints, nil
}

func addEndpoint(endpoints map[string]string, network, raw string) error {
	network = strings.ToLower(strings.TrimSpace(network))
	raw = strings.TrimSpace(raw)
	if network == "" {
		return fmt.Errorf("rpc-urls entry %q: empty network", raw)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("rpc-urls %s: %q is not an http(s) URL", network, raw)
	}
	endpoints[network] = raw
	return nil
}
