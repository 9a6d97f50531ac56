package storage

import (
	"context"
	"errors"

	"positionScope/internal/model"
)

// Storage defines a sink for position snapshots.
type Storage interface {
	PutSnapshots(ctx context.Context, snaps []model.PositionSnapshot) error
}

// Multi writes every batch to all sinks and joins their errors.
type Multi []Storage

func (m Multi) PutSnapshots(ctx context.Context, snaps []model.PositionSnapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.PutSnapshots(ctx, snaps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
