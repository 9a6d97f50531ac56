package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/position"
	"positionScope/internal/registry"
	"positionScope/internal/scan"
	"positionScope/internal/storage/sqlite"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Owner == "" {
		return fmt.Errorf("owner address is required")
	}
	if cfg.Network == "" {
		return fmt.Errorf("network is required for scan")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg.RPCOverrides())
	reader, err := newReader(cfg, reg, cfg.Network, logger)
	if err != nil {
		return err
	}

	out, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	var checkpoint scan.Checkpointer
	key := scan.Key(cfg.Network, cfg.Dex, cfg.Owner)
	switch {
	case !cfg.CheckpointEnabled:
	case out.state != nil:
		checkpoint = scan.NewStateCheckpoint(out.state, key)
	default:
		checkpoint = scan.NewCheckpointStore(cfg.Checkpoint, key, true)
	}

	runner := scan.NewRunner(scan.RunConfig{
		Owner:        cfg.Owner,
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Options:      position.Options{InitialPrice: cfg.InitialPrice},
	}, reader, out.storage, checkpoint, logger)

	logger.Info("scan start",
		zap.String("owner", cfg.Owner),
		zap.String("network", cfg.Network),
		zap.String("dex", cfg.Dex),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers),
		zap.Int("sinks", len(out.storage)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	summary, err := runner.Run(ctx)
	if err != nil {
		return userError(logger, "scan owner", err)
	}
	return renderSummary(cmd.OutOrStdout(), cfg.Format, summary)
}

func runBlock(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg.RPCOverrides())
	networks := candidateNetworks(cfg, reg)
	if cfg.Network != "" {
		networks = []string{cfg.Network}
	}
	readers, err := newReaders(cfg, reg, networks, logger)
	if err != nil {
		return err
	}

	heights := make([]blockHeight, len(readers))
	for i, reader := range readers {
		d := reader.Deployment()
		heights[i] = blockHeight{Network: d.Network, Block: reader.BlockNumber(ctx)}
	}
	return renderBlocks(cmd.OutOrStdout(), cfg.Format, heights)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SQLite == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if cfg.Network == "" || cfg.Position == 0 {
		return fmt.Errorf("network and position are required")
	}

	store, err := sqlite.NewStore(cfg.SQLite)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.History(cmd.Context(), cfg.Network, cfg.Dex, cfg.Position)
	if err != nil {
		return err
	}
	return renderHistory(cmd.OutOrStdout(), cfg.Format, rows)
}
