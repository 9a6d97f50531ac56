package chain

import (
	"errors"
	"fmt"
)

// ErrEmptyResult means the node answered with no data: usually no contract at the target.
var ErrEmptyResult = errors.New("empty result")

// ErrMissingResponse marks a batch entry whose id never came back.
var ErrMissingResponse = errors.New("missing response in batch")

// RPCError is a node-level JSON-RPC error envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// EmptyResultError wraps ErrEmptyResult with the call target.
type EmptyResultError struct {
	To string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("empty result from %s: contract may not exist at this address", e.To)
}

func (e *EmptyResultError) Unwrap() error { return ErrEmptyResult }

// TimeoutError is a request that got no answer within the client timeout.
type TimeoutError struct {
	Endpoint string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rpc timeout from %s: %v", e.Endpoint, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
