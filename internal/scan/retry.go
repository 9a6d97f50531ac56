package scan

import (
	"context"
	"errors"
	"time"

	"positionScope/internal/codec"
	"positionScope/internal/position"
)

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// retryable is false for answers that will not change on a second read.
func retryable(err error) bool {
	var (
		poolErr *position.PoolNotFoundError
		encErr  *codec.EncodingError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, position.ErrPositionNotFound), errors.Is(err, position.ErrInvalidTicks):
		return false
	case errors.As(err, &poolErr), errors.As(err, &encErr):
		return false
	}
	return true
}
