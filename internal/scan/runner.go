// Package scan reconstructs every position held by one owner, in checkpointed
// batches, and writes the snapshots to a storage sink.
package scan

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/position"
	"positionScope/internal/storage"
)

// Reconstructor is the part of position.Reader the runner drives.
type Reconstructor interface {
	TokenIDs(ctx context.Context, owner string) ([]uint64, error)
	Reconstruct(ctx context.Context, tokenID uint64, opts position.Options) (*model.PositionSnapshot, error)
}

// RunConfig holds runtime settings for an owner scan.
type RunConfig struct {
	Owner        string
	BatchSize    uint64
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	Options      position.Options
}

// Summary reports what a scan did. Snapshots are sorted active first.
type Summary struct {
	Owner     string
	Total     int
	Skipped   int
	Processed int
	Failed    []uint64
	Snapshots []model.PositionSnapshot
}

// Runner enumerates an owner's positions and snapshots them batch by batch.
type Runner struct {
	cfg        RunConfig
	reader     Reconstructor
	storage    storage.Storage
	checkpoint Checkpointer
	logger     *zap.Logger
}

// NewRunner builds a Runner with its dependencies. A nil checkpoint disables resuming.
func NewRunner(cfg RunConfig, reader Reconstructor, storageSink storage.Storage, checkpoint Checkpointer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Runner{
		cfg:        cfg,
		reader:     reader,
		storage:    storageSink,
		checkpoint: checkpoint,
		logger:     logger.With(zap.String("owner", cfg.Owner)),
	}
}

// Run executes the scan loop.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Owner: r.cfg.Owner}
	if r.reader == nil {
		return summary, fmt.Errorf("position reader is nil")
	}
	if r.storage == nil {
		return summary, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}
	if !common.IsHexAddress(r.cfg.Owner) {
		return summary, fmt.Errorf("invalid owner address: %s", r.cfg.Owner)
	}

	ids, err := r.reader.TokenIDs(ctx, r.cfg.Owner)
	if err != nil {
		return summary, fmt.Errorf("enumerate positions: %w", err)
	}
	summary.Total = len(ids)
	if len(ids) == 0 {
		r.logger.Info("owner holds no positions")
		return summary, nil
	}

	var from uint64
	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return summary, err
		}
		if ok {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}
	to := uint64(len(ids) - 1)
	if from > to {
		summary.Skipped = len(ids)
		r.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}
	summary.Skipped = int(from)

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	// Once a position fails the checkpoint stops advancing, so a resumed scan
	// retries it.
	held := false
	for _, indexRange := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		r.logger.Info("reconstruct batch", zap.Uint64("from", indexRange.From), zap.Uint64("to", indexRange.To))

		snaps, failed := r.reconstructAll(ctx, ids[indexRange.From:indexRange.To+1])
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		position.SortSnapshots(snaps)

		if err := r.storage.PutSnapshots(ctx, snaps); err != nil {
			return summary, fmt.Errorf("store snapshots: %w", err)
		}

		if r.checkpoint != nil && !held {
			last, complete := indexRange.To, true
			if idx, ok := firstFailedIndex(ids, indexRange, failed); ok {
				held, complete = true, false
				r.logger.Warn("checkpoint held before failed position",
					zap.Uint64("index", idx), zap.Uint64("position", ids[idx]))
				if idx > indexRange.From {
					last, complete = idx-1, true
				}
			}
			if complete {
				if err := r.checkpoint.Save(ctx, last); err != nil {
					return summary, err
				}
			}
		}

		summary.Processed += indexRange.Len()
		summary.Failed = append(summary.Failed, failed...)
		summary.Snapshots = append(summary.Snapshots, snaps...)
		r.logger.Info("batch complete", zap.Int("snapshots", len(snaps)), zap.Int("failed", len(failed)),
			zap.Uint64("from", indexRange.From), zap.Uint64("to", indexRange.To))
	}

	position.SortSnapshots(summary.Snapshots)
	return summary, nil
}

// reconstructAll fans a batch out to the worker pool. Positions that still fail
// after retries are reported and left out of the batch.
func (r *Runner) reconstructAll(ctx context.Context, ids []uint64) ([]model.PositionSnapshot, []uint64) {
	type result struct {
		id   uint64
		snap *model.PositionSnapshot
		err  error
	}

	workers := r.cfg.Workers
	if workers > len(ids) {
		workers = len(ids)
	}
	workCh := make(chan uint64, len(ids))
	resultCh := make(chan result, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range workCh {
				snap, err := r.reconstructWithRetry(ctx, id)
				resultCh <- result{id: id, snap: snap, err: err}
			}
		}()
	}

	for _, id := range ids {
		workCh <- id
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	snaps := make([]model.PositionSnapshot, 0, len(ids))
	var failed []uint64
	for res := range resultCh {
		if res.err != nil {
			r.logger.Warn("reconstruct failed", zap.Uint64("position", res.id), zap.Error(res.err))
			failed = append(failed, res.id)
			continue
		}
		snaps = append(snaps, *res.snap)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return snaps, failed
}

// firstFailedIndex returns the lowest index in indexRange whose id failed.
func firstFailedIndex(ids []uint64, indexRange IndexRange, failed []uint64) (uint64, bool) {
	if len(failed) == 0 {
		return 0, false
	}
	set := make(map[uint64]struct{}, len(failed))
	for _, id := range failed {
		set[id] = struct{}{}
	}
	for i := indexRange.From; i <= indexRange.To; i++ {
		if _, ok := set[ids[i]]; ok {
			return i, true
		}
	}
	return 0, false
}

func (r *Runner) reconstructWithRetry(ctx context.Context, tokenID uint64) (*model.PositionSnapshot, error) {
	var snap *model.PositionSnapshot
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		snap, err = r.reader.Reconstruct(ctx, tokenID, r.cfg.Options)
		if err != nil {
			r.logger.Debug("reconstruct attempt failed", zap.Uint64("position", tokenID), zap.Error(err))
		}
		return err
	})
	return snap, err
}
