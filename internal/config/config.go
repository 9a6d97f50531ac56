package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POSITIONSCOPE_RPC.
const EnvPrefix = "POSITIONSCOPE"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	RPCURLs           map[string]string
	Network           string
	Networks          []string
	Dex               string
	Position          uint64
	Pool              string
	Owner             string
	InitialPrice      float64
	RateLimit         float64
	RateBurst         int
	Timeout           time.Duration
	Out               string
	PGDSN             string
	SQLite            string
	Checkpoint        string
	CheckpointEnabled bool
	BatchSize         uint64
	Workers           int
	MaxRetries        int
	RetryBackoff      time.Duration
	Format            string
	LogLevel          string
}

// Load merges config file, .env, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("dex", "uniswap_v3")
	v.SetDefault("rate-limit", 10.0)
	v.SetDefault("rate-burst", 5)
	v.SetDefault("timeout", 20*time.Second)
	v.SetDefault("checkpoint", "./data/scan_checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("batch-size", uint64(20))
	v.SetDefault("workers", 4)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("format", "table")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	rpcURLs, err := rpcEndpoints(v, "rpc-urls")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		RPCURLs:           rpcURLs,
		Network:           strings.ToLower(v.GetString("network")),
		Networks:          lowerAll(getStringSlice(v, "networks")),
		Dex:               strings.ToLower(v.GetString("dex")),
		Position:          v.GetUint64("position"),
		Pool:              v.GetString("pool"),
		Owner:             v.GetString("owner"),
		InitialPrice:      v.GetFloat64("initial-price"),
		RateLimit:         v.GetFloat64("rate-limit"),
		RateBurst:         v.GetInt("rate-burst"),
		Timeout:           v.GetDuration("timeout"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		SQLite:            v.GetString("sqlite"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		BatchSize:         v.GetUint64("batch-size"),
		Workers:           v.GetInt("workers"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Format:            strings.ToLower(v.GetString("format")),
		LogLevel:          v.GetString("log-level"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no command can run with.
func (c Config) Validate() error {
	switch c.Format {
	case "table", "json":
	default:
		return fmt.Errorf("invalid format %q (want table or json)", c.Format)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if c.InitialPrice < 0 {
		return fmt.Errorf("initial-price must not be negative")
	}
	return nil
}

// RPCOverrides returns per-network endpoints with the single --rpc value
// applied to the selected network.
func (c Config) RPCOverrides() map[string]string {
	out := make(map[string]string, len(c.RPCURLs)+1)
	for k, v := range c.RPCURLs {
		out[strings.ToLower(k)] = v
	}
	if c.RPCURL != "" && c.Network != "" {
		out[c.Network] = c.RPCURL
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func lowerAll(items []string) []string {
	for i, item := range items {
		items[i] = strings.ToLower(item)
	}
	return items
}
