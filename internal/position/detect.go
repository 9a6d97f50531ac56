package position

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"positionScope/internal/model"
)

// Detection is the network that holds a position.
type Detection struct {
	Network  string
	Reader   *Reader
	Position model.PositionRecord
}

// Detect asks every reader for the position in parallel and returns the first
// candidate, in reader order, whose record names a real token pair and whose
// pool resolves. It returns as soon as that candidate and every one before it
// have answered; slower attempts finish in the background.
func Detect(ctx context.Context, readers []*Reader, tokenID uint64, logger *zap.Logger) (Detection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	type attempt struct {
		index int
		pos   model.PositionRecord
		ok    bool
	}
	done := make(chan attempt, len(readers))
	for i, reader := range readers {
		go func(i int, reader *Reader) {
			pos, ok := reader.locate(ctx, tokenID)
			done <- attempt{index: i, pos: pos, ok: ok}
		}(i, reader)
	}

	answered := make([]*attempt, len(readers))
	next := 0
	for next < len(readers) {
		select {
		case <-ctx.Done():
			return Detection{}, fmt.Errorf("detect position %d: %w", tokenID, ctx.Err())
		case a := <-done:
			answered[a.index] = &a
		}
		for next < len(readers) && answered[next] != nil {
			if a := answered[next]; a.ok {
				d := readers[next].Deployment()
				logger.Info("position detected", zap.Uint64("position", tokenID), zap.String("network", d.Network))
				return Detection{Network: d.Network, Reader: readers[next], Position: a.pos}, nil
			}
			next++
		}
	}
	return Detection{}, fmt.Errorf("detect position %d: %w", tokenID, ErrNotDetected)
}

func (r *Reader) locate(ctx context.Context, tokenID uint64) (model.PositionRecord, bool) {
	var trail model.AuditTrail
	pos, err := r.readPosition(ctx, tokenID, &trail)
	if err != nil {
		r.logger.Debug("position lookup failed", zap.Uint64("position", tokenID), zap.Error(err))
		return model.PositionRecord{}, false
	}
	if !pos.Exists() {
		return model.PositionRecord{}, false
	}
	if _, err := r.resolvePool(ctx, pos, &trail); err != nil {
		var notFound *PoolNotFoundError
		if errors.As(err, &notFound) {
			r.logger.Debug("pool not on this network", zap.Uint64("position", tokenID), zap.Error(err))
		} else {
			r.logger.Debug("pool lookup failed", zap.Uint64("position", tokenID), zap.Error(err))
		}
		return model.PositionRecord{}, false
	}
	return pos, true
}
