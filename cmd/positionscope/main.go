package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"positionScope/internal/chain"
	"positionScope/internal/config"
	"positionScope/internal/position"
	"positionScope/internal/registry"
	"positionScope/internal/scan"
	"positionScope/internal/storage"
	"positionScope/internal/storage/postgres"
	"positionScope/internal/storage/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:           "positionscope",
		Short:         "Concentrated-liquidity position reader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "", "RPC URL for the selected network")
	pf.String("rpc-urls", "", "per-network RPC URLs (comma-separated network=url)")
	pf.String("network", "", "network (ethereum, arbitrum, base, ...)")
	pf.StringSlice("networks", nil, "candidate networks for detection (comma-separated)")
	pf.String("dex", "uniswap_v3", "dex slug")
	pf.Float64("rate-limit", 10, "RPC calls per second, 0 disables limiting")
	pf.Int("rate-burst", 5, "RPC burst size")
	pf.Duration("timeout", 20*time.Second, "per-request RPC timeout")
	pf.String("format", "table", "output format (table, json)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Reconstruct one position",
		RunE:  runRead,
	}
	readCmd.Flags().Uint64("position", 0, "position NFT id")
	readCmd.Flags().String("pool", "", "pool address, skips the factory lookup")
	readCmd.Flags().Float64("initial-price", 0, "entry price for impermanent loss estimates")
	addSinkFlags(readCmd)
	root.AddCommand(readCmd)

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Find the network that holds a position",
		RunE:  runDetect,
	}
	detectCmd.Flags().Uint64("position", 0, "position NFT id")
	root.AddCommand(detectCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Snapshot every position held by a wallet",
		RunE:  runScan,
	}
	scanCmd.Flags().String("owner", "", "wallet address")
	scanCmd.Flags().Float64("initial-price", 0, "entry price for impermanent loss estimates")
	scanCmd.Flags().Uint64("batch-size", 20, "positions per batch")
	scanCmd.Flags().Int("workers", 4, "concurrent reconstructions per batch")
	scanCmd.Flags().Int("max-retries", 3, "maximum retry attempts per position")
	scanCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	scanCmd.Flags().String("checkpoint", "./data/scan_checkpoint.json", "checkpoint file path")
	scanCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	addSinkFlags(scanCmd)
	root.AddCommand(scanCmd)

	blockCmd := &cobra.Command{
		Use:   "block",
		Short: "Print the latest block height per network",
		RunE:  runBlock,
	}
	root.AddCommand(blockCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List stored snapshots of a position",
		RunE:  runHistory,
	}
	historyCmd.Flags().Uint64("position", 0, "position NFT id")
	historyCmd.Flags().String("sqlite", "", "sqlite database path")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSinkFlags(cmd *cobra.Command) {
	cmd.Flags().String("out", "", "append snapshots to this JSONL file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("sqlite", "", "sqlite database path")
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// userError keeps the raw error in the log and hands the plain-language
// message to the terminal.
func userError(logger *zap.Logger, action string, err error) error {
	logger.Error(action+" failed", zap.Error(err))
	return errors.New(position.UserMessage(err))
}

func newReader(cfg config.Config, reg *registry.Registry, network string, logger *zap.Logger) (*position.Reader, error) {
	contracts, err := reg.Contracts(cfg.Dex, network)
	if err != nil {
		return nil, err
	}
	rpcURL, err := reg.RPCURL(network)
	if err != nil {
		return nil, err
	}
	client := chain.NewClient(rpcURL, cfg.Timeout, chain.NewLimiter(cfg.RateLimit, cfg.RateBurst), logger)
	return position.NewReader(client, position.Deployment{
		Network:         network,
		Dex:             cfg.Dex,
		DexName:         reg.DexName(cfg.Dex),
		PositionManager: contracts.PositionManager.Hex(),
		Factory:         contracts.Factory.Hex(),
	}, nil, logger), nil
}

// candidateNetworks is --networks, else every network the DEX is deployed on.
func candidateNetworks(cfg config.Config, reg *registry.Registry) []string {
	if len(cfg.Networks) > 0 {
		return cfg.Networks
	}
	return reg.NetworksFor(cfg.Dex)
}

func newReaders(cfg config.Config, reg *registry.Registry, networks []string, logger *zap.Logger) ([]*position.Reader, error) {
	readers := make([]*position.Reader, 0, len(networks))
	for _, network := range networks {
		reader, err := newReader(cfg, reg, network, logger)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
	}
	if len(readers) == 0 {
		return nil, fmt.Errorf("no candidate networks for dex %s", cfg.Dex)
	}
	return readers, nil
}

// sinks are the configured snapshot stores. state is the first database store,
// used for scan checkpoints when one is configured.
type sinks struct {
	storage storage.Multi
	state   scan.StateStore
	closers []func()
}

func openSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sinks, error) {
	s := &sinks{}
	if cfg.Out != "" {
		s.storage = append(s.storage, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		s.storage = append(s.storage, pg)
		s.state = pg
	}
	if cfg.SQLite != "" {
		lite, err := sqlite.NewStore(cfg.SQLite)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := lite.Close(); err != nil {
				logger.Warn("close sqlite", zap.Error(err))
			}
		})
		s.storage = append(s.storage, lite)
		if s.state == nil {
			s.state = lite
		}
	}
	return s, nil
}

func (s *sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
