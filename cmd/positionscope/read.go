package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/position"
	"positionScope/internal/registry"
)

func runRead(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Position == 0 {
		return fmt.Errorf("position id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg.RPCOverrides())

	var reader *position.Reader
	if cfg.Network == "" {
		readers, err := newReaders(cfg, reg, candidateNetworks(cfg, reg), logger)
		if err != nil {
			return err
		}
		detection, err := position.Detect(ctx, readers, cfg.Position, logger)
		if err != nil {
			return userError(logger, "detect position", err)
		}
		reader = detection.Reader
	} else {
		reader, err = newReader(cfg, reg, cfg.Network, logger)
		if err != nil {
			return err
		}
	}

	out, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	logger.Info("read start",
		zap.Uint64("position", cfg.Position),
		zap.String("network", reader.Deployment().Network),
		zap.String("dex", cfg.Dex),
		zap.String("pool", cfg.Pool),
	)

	snap, err := reader.Reconstruct(ctx, cfg.Position, position.Options{
		Pool:         cfg.Pool,
		InitialPrice: cfg.InitialPrice,
	})
	if err != nil {
		return userError(logger, "read position", err)
	}

	if len(out.storage) > 0 {
		if err := out.storage.PutSnapshots(ctx, []model.PositionSnapshot{*snap}); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
	}

	return renderSnapshot(cmd.OutOrStdout(), cfg.Format, snap)
}

func runDetect(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Position == 0 {
		return fmt.Errorf("position id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg.RPCOverrides())
	networks := candidateNetworks(cfg, reg)
	readers, err := newReaders(cfg, reg, networks, logger)
	if err != nil {
		return err
	}

	logger.Info("detect start", zap.Uint64("position", cfg.Position), zap.Strings("networks", networks))

	detection, err := position.Detect(ctx, readers, cfg.Position, logger)
	if err != nil {
		return userError(logger, "detect position", err)
	}
	return renderDetection(cmd.OutOrStdout(), cfg.Format, detection)
}
