package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

var errBatchRejected = errors.New("batch rejected by endpoint")

// CallBatch sends all calls in one JSON-RPC array and returns one result per
// call, in request order. Per-entry failures are reported in Result.Err.
//
// If the batch itself fails at the transport level it is replayed as
// sequential calls. Entries the endpoint never answered, including all but one
// when it replies to a batch with a single object, are re-issued as single calls.
func (c *Client) CallBatch(ctx context.Context, calls []CallRequest) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	results, err := c.callBatch(ctx, calls)
	if err == nil {
		return c.backfill(ctx, calls, results)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c.logger.Warn("batch call failed, falling back to sequential",
		zap.String("endpoint", c.endpoint),
		zap.Int("calls", len(calls)),
		zap.Error(err),
	)
	return c.callSequential(ctx, calls)
}

func (c *Client) callBatch(ctx context.Context, calls []CallRequest) ([]Result, error) {
	payload := make([]request, len(calls))
	for i, call := range calls {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		payload[i] = newCallRequest(i+1, call.To, call.Data)
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var single response
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if single.Error != nil {
			return nil, fmt.Errorf("%w: %v", errBatchRejected, single.Error)
		}
		if single.ID < 1 || single.ID > len(calls) {
			single.ID = 1
		}
		return orderByID(calls, []response{single}), nil
	}

	var responses []response
	if err := json.Unmarshal(body, &responses); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return orderByID(calls, responses), nil
}

// orderByID maps responses back onto request slots using the correlation id.
func orderByID(calls []CallRequest, responses []response) []Result {
	sort.SliceStable(responses, func(i, j int) bool { return responses[i].ID < responses[j].ID })

	results := make([]Result, len(calls))
	seen := make([]bool, len(calls))
	for _, resp := range responses {
		idx := resp.ID - 1
		if idx < 0 || idx >= len(calls) || seen[idx] {
			continue
		}
		seen[idx] = true
		data, err := callResult(resp, calls[idx].To)
		results[idx] = Result{Data: data, Err: err}
	}
	for i := range results {
		if !seen[i] {
			results[i].Err = ErrMissingResponse
		}
	}
	return results
}

// backfill re-issues every entry marked ErrMissingResponse as a single call.
func (c *Client) backfill(ctx context.Context, calls []CallRequest, results []Result) ([]Result, error) {
	missing := 0
	for i := range results {
		if !errors.Is(results[i].Err, ErrMissingResponse) {
			continue
		}
		missing++
		data, err := c.Call(ctx, calls[i].To, calls[i].Data)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results[i] = Result{Data: data, Err: err}
	}
	if missing > 0 {
		c.logger.Debug("batch entries re-issued as single calls",
			zap.String("endpoint", c.endpoint),
			zap.Int("missing", missing),
			zap.Int("calls", len(calls)),
		)
	}
	return results, nil
}

func (c *Client) callSequential(ctx context.Context, calls []CallRequest) ([]Result, error) {
	results := make([]Result, len(calls))
	for i, call := range calls {
		data, err := c.Call(ctx, call.To, call.Data)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results[i] = Result{Data: data, Err: err}
	}
	return results, nil
}
