package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 20 * time.Second

	// minResultLen rejects "0x" and single-nibble payloads.
	minResultLen = 4
)

// CallRequest is one eth_call against the latest block.
type CallRequest struct {
	To   string
	Data string
}

// Result is one batch entry in request order. Data is the raw 0x-prefixed payload.
type Result struct {
	Data string
	Err  error
}

// OK reports whether the entry carries data.
func (r Result) OK() bool { return r.Err == nil && r.Data != "" }

// Client is a minimal JSON-RPC client for eth_call and eth_blockNumber.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     int       `json:"id"`
	Result string    `json:"result"`
	Error  *RPCError `json:"error"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// NewClient creates a client for the endpoint. The limiter gates every outbound
// call; nil means unlimited. A zero timeout uses DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration, limiter *rate.Limiter, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
		logger:   logger,
	}
}

// NewLimiter builds the transport token bucket from calls per second and burst.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Endpoint returns the RPC URL, recorded in audit trails.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call performs a single eth_call and returns the raw result.
func (c *Client) Call(ctx context.Context, to, data string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	body, err := c.post(ctx, newCallRequest(1, to, data))
	if err != nil {
		return "", err
	}
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return callResult(resp, to)
}

// BlockNumber returns the latest block height, or 0 when the node cannot be
// reached. The height is informational only.
func (c *Client) BlockNumber(ctx context.Context) uint64 {
	n, err := c.blockNumber(ctx)
	if err != nil {
		c.logger.Debug("block number unavailable", zap.String("endpoint", c.endpoint), zap.Error(err))
		return 0
	}
	return n
}

func (c *Client) blockNumber(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}
	body, err := c.post(ctx, request{JSONRPC: "2.0", ID: 1, Method: "eth_blockNumber", Params: []any{}})
	if err != nil {
		return 0, err
	}
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return 0, resp.Error
	}
	n, err := hexutil.DecodeUint64(resp.Result)
	if err != nil {
		return 0, fmt.Errorf("decode block number %q: %w", resp.Result, err)
	}
	return n, nil
}

func newCallRequest(id int, to, data string) request {
	return request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "eth_call",
		Params:  []any{callParams{To: to, Data: data}, "latest"},
	}
}

func callResult(resp response, to string) (string, error) {
	if resp.Error != nil {
		return "", resp.Error
	}
	if len(resp.Result) < minResultLen {
		return "", &EmptyResultError{To: to}
	}
	return resp.Result, nil
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &TimeoutError{Endpoint: c.endpoint, Err: err}
		}
		return nil, fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("post %s: http status %d", c.endpoint, resp.StatusCode)
	}
	return body, nil
}
