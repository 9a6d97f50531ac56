package position

import (
	"context"
	"errors"
	"fmt"

	"positionScope/internal/chain"
	"positionScope/internal/clmath"
	"positionScope/internal/codec"
)

var (
	// ErrInvalidTicks means the position manager returned tickLower >= tickUpper.
	ErrInvalidTicks = errors.New("invalid tick range")
	// ErrPositionNotFound means positions() returned an all-zero record.
	ErrPositionNotFound = errors.New("position not found")
	// ErrNotDetected means no candidate network holds the position.
	ErrNotDetected = errors.New("position not found on any network")
)

// PoolNotFoundError is returned when the factory has no pool for the pair. It is
// expected during multi-network detection: the position lives elsewhere.
type PoolNotFoundError struct {
	Token0 string
	Token1 string
	Fee    uint32
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("pool not found for %s/%s fee=%d: the position may be on a different network", e.Token0, e.Token1, e.Fee)
}

// PoolStateError is a required pool read (slot0, liquidity or fee growth) that
// failed in the batch and again on its own.
type PoolStateError struct {
	Pool string
	Call string
	Err  error
}

func (e *PoolStateError) Error() string {
	return fmt.Sprintf("read %s on pool %s: %v", e.Call, e.Pool, e.Err)
}

func (e *PoolStateError) Unwrap() error { return e.Err }

// UserMessage renders err as plain language for the CLI. Raw error text stays
// in logs and the audit trail.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := knownMessage(err); ok {
		return msg
	}
	return "Could not read the position from the chain. Check the RPC endpoint and try again."
}

func knownMessage(err error) (string, bool) {
	var (
		poolErr    *PoolNotFoundError
		stateErr   *PoolStateError
		timeoutErr *chain.TimeoutError
		rpcErr     *chain.RPCError
		emptyErr   *chain.EmptyResultError
		encErr     *codec.EncodingError
	)
	switch {
	case errors.As(err, &poolErr):
		return "No pool exists for this token pair on the selected network. The position may be on a different network; try `detect`.", true
	case errors.As(err, &stateErr):
		return fmt.Sprintf("The pool did not return its current state (%s). The pool may be uninitialized or the RPC node is failing; try again.", stateErr.Call), true
	case errors.As(err, &timeoutErr):
		return "The RPC node did not answer in time. Try again, or use a faster endpoint with --rpc.", true
	case errors.Is(err, ErrPositionNotFound), errors.Is(err, ErrNotDetected):
		return "Position not found. Check the position id, network and DEX.", true
	case errors.Is(err, ErrInvalidTicks):
		return "The position data returned by the chain is inconsistent (lower tick is not below upper tick).", true
	case errors.As(err, &emptyErr):
		return "The contract returned no data. It may not be deployed at this address on the selected network.", true
	case errors.As(err, &rpcErr):
		return "The RPC node rejected the request. The position id may not exist, or the node may be rate limiting.", true
	case errors.As(err, &encErr):
		return "An address or number in the input is malformed.", true
	case errors.Is(err, clmath.ErrDomain):
		return "A price input is out of range; prices must be positive.", true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "The request timed out or was cancelled.", true
	default:
		return "", false
	}
}
