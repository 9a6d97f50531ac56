package position_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/chain"
	"positionScope/internal/clmath"
	"positionScope/internal/codec"
	"positionScope/internal/model"
	"positionScope/internal/position"
)

const (
	pm      = "0x00000000000000000000000000000000000000a1"
	factory = "0x00000000000000000000000000000000000000a2"
	pool    = "0x00000000000000000000000000000000000000a3"
	weth    = "0x00000000000000000000000000000000000000b1"
	usdc    = "0x00000000000000000000000000000000000000b2"
	owner   = "0x00000000000000000000000000000000000000c1"
)

var (
	oneE18   = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	q128     = new(big.Int).Lsh(big.NewInt(1), 128)
	q96      = new(big.Int).Lsh(big.NewInt(1), 96)
	zeroWord = strings.Repeat("0", 64)
)

// fakeChain answers eth_call from a table keyed by target and calldata.
// batchLimit truncates batch answers; batchErrs fails entries inside a batch
// only, so a single call for the same key still succeeds.
type fakeChain struct {
	results    map[string]string
	batchLimit int
	batchErrs  map[string]error
}

func key(to, data string) string { return strings.ToLower(to) + "|" + data }

func (f *fakeChain) set(to, data, result string) { f.results[key(to, data)] = result }
func (f *fakeChain) del(to, data string) { delete(f.results, key(to, data)) }

func (f *fakeChain) Call(_ context.Context, to, data string) (string, error) {
	if r, ok := f.results[key(to, data)]; ok {
		return r, nil
	}
	return "", &chain.EmptyResultError{To: to}
}

func (f *fakeChain) CallBatch(ctx context.Context, calls []chain.CallRequest) ([]chain.Result, error) {
	out := make([]chain.Result, 0, len(calls))
	for _, c := range calls {
		if f.batchLimit > 0 && len(out) == f.batchLimit {
			break
		}
		if err, ok := f.batchErrs[key(c.To, c.Data)]; ok {
			out = append(out, chain.Result{Err: err})
			continue
		}
		data, err := f.Call(ctx, c.To, c.Data)
		out = append(out, chain.Result{Data: data, Err: err})
	}
	return out, nil
}

func (f *fakeChain) BlockNumber(context.Context) uint64 { return 123 }
func (f *fakeChain) Endpoint() string { return "fake://chain" }

func u(v *big.Int) string {
	w, err := codec.EncodeUint(v, 0)
	if err != nil {
		panic(err)
	}
	return w
}

func addr(a string) string {
	w, err := codec.EncodeAddress(a)
	if err != nil {
		panic(err)
	}
	return w
}

func abiString(s string) string {
	data := hex.EncodeToString([]byte(s))
	if pad := len(data) % 64; pad != 0 || data == "" {
		data += strings.Repeat("0", 64-pad)
	}
	return "0x" + codec.EncodeUint64(32) + codec.EncodeUint64(uint64(len(s))) + data
}

func words(ws ...string) string { return "0x" + strings.Join(ws, "") }

type positionFixture struct {
	tokenID          uint64
	token0, token1   string
	fee              uint64
	lower, upper     int32
	liquidity        *big.Int
	owed0            *big.Int
	symbol0, symbol1 string
}

func defaultFixture() positionFixture {
	return positionFixture{
		tokenID:   7,
		token0:    weth,
		token1:    usdc,
		fee:       500,
		lower:     -1000,
		upper:     1000,
		liquidity: oneE18,
		owed0:     big.NewInt(5),
		symbol0:   "WETH",
		symbol1:   "USDC",
	}
}

func positionsCalldata(id uint64) string {
	return codec.Calldata(codec.SelectorPositions, codec.EncodeUint64(id))
}

func ticksCalldata(tick int32) string {
	return codec.Calldata(codec.SelectorTicks, codec.EncodeSignedTick(tick))
}

func getPoolCalldata(t0, t1 string, fee uint64) string {
	return codec.Calldata(codec.SelectorGetPool, addr(t0), addr(t1), codec.EncodeUint64(fee))
}

// newChain serves one in-range WETH/USDC position: L=1e18 over [-1000, 1000)
// at tick 0, pool liquidity 4e18, one unit of fee growth inside for token0
// and 5 wei owed.
func newChain(p positionFixture) *fakeChain {
	f := &fakeChain{results: map[string]string{}}
	f.set(pm, positionsCalldata(p.tokenID), words(
		zeroWord, addr("0x0000000000000000000000000000000000000000"),
		addr(p.token0), addr(p.token1),
		codec.EncodeUint64(p.fee),
		codec.EncodeSignedTick(p.lower), codec.EncodeSignedTick(p.upper),
		u(p.liquidity),
		zeroWord, zeroWord,
		u(p.owed0), zeroWord,
	))
	f.set(factory, getPoolCalldata(p.token0, p.token1, p.fee), words(addr(pool)))

	f.set(pool, codec.Calldata(codec.SelectorSlot0), words(u(q96), codec.EncodeSignedTick(0), zeroWord, zeroWord, zeroWord, zeroWord, zeroWord))
	f.set(pool, codec.Calldata(codec.SelectorLiquidity), words(u(new(big.Int).Mul(big.NewInt(4), oneE18))))
	f.set(pool, codec.Calldata(codec.SelectorFeeGrowthGlobal0X128), words(u(new(big.Int).Mul(big.NewInt(3), q128))))
	f.set(pool, codec.Calldata(codec.SelectorFeeGrowthGlobal1X128), words(zeroWord))

	f.set(p.token0, codec.Calldata(codec.SelectorDecimals), words(codec.EncodeUint64(18)))
	f.set(p.token1, codec.Calldata(codec.SelectorDecimals), words(codec.EncodeUint64(18)))
	f.set(p.token0, codec.Calldata(codec.SelectorSymbol), abiString(p.symbol0))
	f.set(p.token1, codec.Calldata(codec.SelectorSymbol), abiString(p.symbol1))

	tickWords := func() string {
		return words(zeroWord, zeroWord, u(q128), zeroWord, zeroWord, zeroWord, zeroWord, codec.EncodeUint64(1))
	}
	f.set(pool, ticksCalldata(p.lower), tickWords())
	f.set(pool, ticksCalldata(p.upper), tickWords())
	return f
}

func deployment(network string) position.Deployment {
	return position.Deployment{
		Network:         network,
		Dex:             "uniswap_v3",
		DexName:         "Uniswap V3",
		PositionManager: pm,
		Factory:         factory,
	}
}

func newReader(c position.Caller) *position.Reader {
	return position.NewReader(c, deployment("base"), nil, nil)
}

func TestReconstruct_InRangePosition(t *testing.T) {
	snap, err := newReader(newChain(defaultFixture())).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)

	assert.Equal(t, uint64(7), snap.PositionID)
	assert.Equal(t, pool, snap.PoolAddress)
	assert.Equal(t, uint64(123), snap.BlockNumber)
	assert.Equal(t, "WETH", snap.Token0.Symbol)
	assert.Equal(t, "USDC", snap.Token1.Symbol)
	assert.Equal(t, "0.05%", snap.FeeLabel)
	assert.InDelta(t, 0.0005, snap.FeeTier, 1e-12)

	assert.InDelta(t, 1.0, snap.CurrentPrice, 1e-12)
	assert.InDelta(t, clmath.TickToPrice(-1000), snap.PriceLower, 1e-12)
	assert.InDelta(t, clmath.TickToPrice(1000), snap.PriceUpper, 1e-12)
	assert.True(t, snap.InRange)
	assert.True(t, snap.IsActive)

	assert.Equal(t, "48768197581278888", snap.Amount0Raw)
	assert.Equal(t, "48768197581278888", snap.Amount1Raw)
	assert.InDelta(t, 0.048768197581278888, snap.Amount0, 1e-15)

	assert.Equal(t, "1000000000000000005", snap.Fees0Raw)
	assert.Equal(t, "0", snap.Fees1Raw)
	assert.False(t, snap.FeesFallback)
	assert.InDelta(t, 1.0, snap.Fee0ValueUSD, 1e-12)

	assert.Equal(t, model.QuoteToken1, snap.QuoteSide)
	assert.False(t, snap.QuoteAssumed)
	assert.InDelta(t, 50.0, snap.Token0Pct, 1e-9)
	assert.InDelta(t, snap.Token0ValueUSD+snap.Token1ValueUSD, snap.TotalValueUSD, 1e-12)

	assert.InDelta(t, 25.0, snap.PositionSharePct, 1e-9)
	assert.Greater(t, snap.CapitalEfficiency, 1.0)
	assert.InDelta(t, 1.0, snap.InitialPrice, 1e-12)
	assert.Less(t, snap.ILAtLower.AmplifiedPct, 0.0)
	assert.Less(t, snap.ILAtUpper.AmplifiedPct, 0.0)
	assert.True(t, snap.Proximity.InRange)
}

func TestReconstruct_AuditTrail(t *testing.T) {
	snap, err := newReader(newChain(defaultFixture())).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)

	audit := snap.Audit
	assert.NotEmpty(t, audit.RunID)
	assert.Equal(t, uint64(123), audit.BlockNumber)
	assert.Equal(t, "fake://chain", audit.Endpoint)
	assert.Equal(t, pool, audit.Contracts.Pool)
	assert.Equal(t, weth, audit.Contracts.Token0)
	require.Len(t, audit.Calls, 12)

	for _, c := range audit.Calls {
		assert.Empty(t, c.Error, c.Label)
		assert.NotNil(t, c.Decoded, c.Label)
		assert.NotEmpty(t, c.Calldata, c.Label)
	}
	assert.Len(t, audit.CallsOf(model.CallTicks), 2)
	assert.Len(t, audit.CallsOf(model.CallFeeGrowthGlobal), 2)

	slot0 := audit.CallsOf(model.CallSlot0)
	require.Len(t, slot0, 1)
	assert.Equal(t, model.Slot0Call{SqrtPriceX96: q96.String(), Tick: 0}, slot0[0].Decoded)

	names := make([]string, 0, len(audit.Formulas))
	for _, f := range audit.Formulas {
		names = append(names, f.Name)
	}
	assert.Subset(t, names, []string{"current_price", "price_lower", "price_upper", "token0_amount", "token1_amount", "fees0", "fees1", "position_share"})
}

func TestReconstruct_PoolNotFound(t *testing.T) {
	f := newChain(defaultFixture())
	f.set(factory, getPoolCalldata(weth, usdc, 500), words(zeroWord))

	_, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	var notFound *position.PoolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, uint32(500), notFound.Fee)
	assert.Contains(t, position.UserMessage(err), "different network")
}

func TestReconstruct_ExplicitPoolSkipsFactory(t *testing.T) {
	f := newChain(defaultFixture())
	f.del(factory, getPoolCalldata(weth, usdc, 500))

	snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{Pool: strings.ToUpper(pool[:2]) + pool[2:], InitialPrice: 2})
	require.NoError(t, err)
	assert.Empty(t, snap.Audit.CallsOf(model.CallGetPool))
	assert.Equal(t, pool, snap.PoolAddress)
	assert.InDelta(t, 2.0, snap.InitialPrice, 1e-12)
}

func TestReconstruct_InvalidPoolAddress(t *testing.T) {
	_, err := newReader(newChain(defaultFixture())).Reconstruct(context.Background(), 7, position.Options{Pool: "0x1234"})
	var encErr *codec.EncodingError
	require.True(t, errors.As(err, &encErr))
}

func TestReconstruct_FeesFallBackWithoutTickData(t *testing.T) {
	p := defaultFixture()
	f := newChain(p)
	f.del(pool, ticksCalldata(p.lower))

	snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assert.True(t, snap.FeesFallback)
	assert.Equal(t, "5", snap.Fees0Raw)
	assert.Equal(t, "0", snap.Fees1Raw)

	ticks := snap.Audit.CallsOf(model.CallTicks)
	require.Len(t, ticks, 2)
	assert.NotEmpty(t, ticks[0].Error)
	assert.Empty(t, ticks[1].Error)
}

func TestReconstruct_MetadataDefaults(t *testing.T) {
	p := defaultFixture()
	f := newChain(p)
	f.del(usdc, codec.Calldata(codec.SelectorDecimals))
	f.del(usdc, codec.Calldata(codec.SelectorSymbol))

	snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assert.Equal(t, uint8(6), snap.Token1.Decimals)
	assert.Equal(t, "TOKEN1", snap.Token1.Symbol)
	assert.True(t, snap.QuoteAssumed)

	decimals := snap.Audit.CallsOf(model.CallDecimals)
	require.Len(t, decimals, 2)
	assert.True(t, decimals[1].Decoded.(model.DecimalsCall).Defaulted)
	assert.False(t, decimals[0].Decoded.(model.DecimalsCall).Defaulted)
}

// assertTrueSnapshot checks the values newChain(defaultFixture()) must produce.
func assertTrueSnapshot(t *testing.T, snap *model.PositionSnapshot) {
	t.Helper()
	assert.InDelta(t, 1.0, snap.CurrentPrice, 1e-12)
	assert.Equal(t, "WETH", snap.Token0.Symbol)
	assert.Equal(t, "USDC", snap.Token1.Symbol)
	assert.Equal(t, uint8(18), snap.Token1.Decimals)
	assert.Equal(t, "4000000000000000000", snap.PoolLiquidity)
	assert.Equal(t, "1000000000000000005", snap.Fees0Raw)
	assert.False(t, snap.FeesFallback)
	assert.InDelta(t, 25.0, snap.PositionSharePct, 1e-9)
}

func TestReconstruct_ShortBatchIsCompleted(t *testing.T) {
	f := newChain(defaultFixture())
	f.batchLimit = 1

	snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assertTrueSnapshot(t, snap)
	for _, c := range snap.Audit.Calls {
		assert.Empty(t, c.Error, c.Label)
	}
}

func TestReconstruct_PoolStateReReadAfterBatchFailure(t *testing.T) {
	f := newChain(defaultFixture())
	f.batchErrs = map[string]error{
		key(pool, codec.Calldata(codec.SelectorSlot0)):                &chain.RPCError{Code: -32000, Message: "header not found"},
		key(pool, codec.Calldata(codec.SelectorFeeGrowthGlobal0X128)): &chain.RPCError{Code: -32000, Message: "header not found"},
	}

	snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assertTrueSnapshot(t, snap)
	assert.Empty(t, snap.Audit.CallsOf(model.CallSlot0)[0].Error)
}

func TestReconstruct_MissingPoolStateFails(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		call     string
		result   string
	}{
		{name: "slot0", selector: codec.SelectorSlot0, call: "slot0()"},
		{name: "liquidity", selector: codec.SelectorLiquidity, call: "liquidity()"},
		{name: "fee growth 0", selector: codec.SelectorFeeGrowthGlobal0X128, call: "feeGrowthGlobal0X128()"},
		{name: "fee growth 1", selector: codec.SelectorFeeGrowthGlobal1X128, call: "feeGrowthGlobal1X128()"},
		{
			name:     "uninitialized slot0",
			selector: codec.SelectorSlot0,
			call:     "slot0()",
			result:   words(zeroWord, zeroWord, zeroWord, zeroWord, zeroWord, zeroWord, zeroWord),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChain(defaultFixture())
			if tt.result != "" {
				f.set(pool, codec.Calldata(tt.selector), tt.result)
			} else {
				f.del(pool, codec.Calldata(tt.selector))
			}

			snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
			require.Error(t, err)
			assert.Nil(t, snap)
			var stateErr *position.PoolStateError
			require.True(t, errors.As(err, &stateErr), "got %v", err)
			assert.Equal(t, tt.call, stateErr.Call)
			assert.Equal(t, pool, stateErr.Pool)
			assert.Contains(t, position.UserMessage(err), "did not return its current state")
		})
	}
}

func TestReconstruct_TickAtUpperIsOutOfRange(t *testing.T) {
	p := defaultFixture()
	f := newChain(p)
	sqrtP, err := clmath.SqrtRatioAtTick(p.upper)
	require.NoError(t, err)
	f.set(pool, codec.Calldata(codec.SelectorSlot0), words(u(sqrtP), codec.EncodeSignedTick(p.upper), zeroWord, zeroWord, zeroWord, zeroWord, zeroWord))

	snap, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assert.False(t, snap.InRange)
	assert.False(t, snap.Proximity.InRange)
	assert.Zero(t, snap.Proximity.PositionInRangePct)
	assert.Equal(t, "0", snap.Amount0Raw)
}

func TestReconstruct_PositionNotFound(t *testing.T) {
	f := newChain(defaultFixture())
	f.set(pm, positionsCalldata(7), "0x"+strings.Repeat(zeroWord, 12))

	_, err := newReader(f).Reconstruct(context.Background(), 7, position.Options{})
	require.ErrorIs(t, err, position.ErrPositionNotFound)
}

func TestReconstruct_InvalidTicks(t *testing.T) {
	p := defaultFixture()
	p.lower, p.upper = 1000, -1000

	_, err := newReader(newChain(p)).Reconstruct(context.Background(), 7, position.Options{})
	require.ErrorIs(t, err, position.ErrInvalidTicks)
}

func TestReconstruct_QuoteSide(t *testing.T) {
	p := defaultFixture()
	p.symbol0, p.symbol1 = "USD₮0", "WETH"
	snap, err := newReader(newChain(p)).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assert.Equal(t, "USDT", snap.Token0.Symbol)
	assert.Equal(t, model.QuoteToken0, snap.QuoteSide)
	assert.False(t, snap.QuoteAssumed)
	assert.InDelta(t, snap.Amount1/snap.CurrentPrice, snap.Token1ValueUSD, 1e-12)

	p.symbol0, p.symbol1 = "WETH", "WBTC"
	snap, err = newReader(newChain(p)).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assert.Equal(t, model.QuoteToken1, snap.QuoteSide)
	assert.True(t, snap.QuoteAssumed)
}

type rpcReq struct {
	ID     int               `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer serves f over HTTP JSON-RPC. Batches are answered in reverse
// order, or, with batching off, by a bare object for the first request only.
func newRPCServer(t *testing.T, f *fakeChain, batching bool) *httptest.Server {
	answer := func(req rpcReq) map[string]any {
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "eth_blockNumber" {
			resp["result"] = "0x7b"
			return resp
		}
		var p struct{ To, Data string }
		require.NoError(t, json.Unmarshal(req.Params[0], &p))
		if r, ok := f.results[key(p.To, p.Data)]; ok {
			resp["result"] = r
		} else {
			resp["result"] = "0x"
		}
		return resp
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			var reqs []rpcReq
			require.NoError(t, json.Unmarshal(raw, &reqs))
			if !batching {
				require.NoError(t, json.NewEncoder(w).Encode(answer(reqs[0])))
				return
			}
			out := make([]map[string]any, 0, len(reqs))
			for i := len(reqs) - 1; i >= 0; i-- {
				out = append(out, answer(reqs[i]))
			}
			require.NoError(t, json.NewEncoder(w).Encode(out))
			return
		}
		var req rpcReq
		require.NoError(t, json.Unmarshal(raw, &req))
		require.NoError(t, json.NewEncoder(w).Encode(answer(req)))
	}))
}

func TestReconstruct_OverJSONRPC(t *testing.T) {
	srv := newRPCServer(t, newChain(defaultFixture()), true)
	defer srv.Close()

	client := chain.NewClient(srv.URL, 2*time.Second, nil, nil)
	snap, err := newReader(client).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(123), snap.BlockNumber)
	assert.Equal(t, srv.URL, snap.Audit.Endpoint)
	assertTrueSnapshot(t, snap)
}

func TestReconstruct_OverNonBatchingEndpoint(t *testing.T) {
	srv := newRPCServer(t, newChain(defaultFixture()), false)
	defer srv.Close()

	client := chain.NewClient(srv.URL, 2*time.Second, nil, nil)
	snap, err := newReader(client).Reconstruct(context.Background(), 7, position.Options{})
	require.NoError(t, err)
	assertTrueSnapshot(t, snap)
	require.Len(t, snap.Audit.Calls, 12)
	for _, c := range snap.Audit.Calls {
		assert.Empty(t, c.Error, c.Label)
	}
}

func TestUserMessage_Timeout(t *testing.T) {
	err := fmt.Errorf("read position 7: %w", &chain.TimeoutError{Endpoint: "http://node", Err: context.DeadlineExceeded})
	assert.Contains(t, position.UserMessage(err), "did not answer in time")
}

func TestDetect(t *testing.T) {
	empty := newChain(defaultFixture())
	empty.set(pm, positionsCalldata(7), "0x"+strings.Repeat(zeroWord, 12))
	noPool := newChain(defaultFixture())
	noPool.set(factory, getPoolCalldata(weth, usdc, 500), words(zeroWord))

	readers := []*position.Reader{
		position.NewReader(empty, deployment("arbitrum"), nil, nil),
		position.NewReader(noPool, deployment("ethereum"), nil, nil),
		position.NewReader(newChain(defaultFixture()), deployment("base"), nil, nil),
		position.NewReader(newChain(defaultFixture()), deployment("optimism"), nil, nil),
	}
	got, err := position.Detect(context.Background(), readers, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, "base", got.Network)
	assert.Equal(t, weth, got.Position.Token0)
	assert.Same(t, readers[2], got.Reader)

	_, err = position.Detect(context.Background(), readers[:2], 7, nil)
	require.ErrorIs(t, err, position.ErrNotDetected)
}

// gatedChain holds every call until release is closed.
type gatedChain struct {
	*fakeChain
	release chan struct{}
}

func (g gatedChain) Call(ctx context.Context, to, data string) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.fakeChain.Call(ctx, to, data)
}

func TestDetect_DoesNotWaitForLaterCandidates(t *testing.T) {
	slow := gatedChain{fakeChain: newChain(defaultFixture()), release: make(chan struct{})}
	defer close(slow.release)

	readers := []*position.Reader{
		position.NewReader(newChain(defaultFixture()), deployment("base"), nil, nil),
		position.NewReader(slow, deployment("optimism"), nil, nil),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := position.Detect(ctx, readers, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, "base", got.Network)
}

func TestDetect_PrefersEarlierCandidate(t *testing.T) {
	slow := gatedChain{fakeChain: newChain(defaultFixture()), release: make(chan struct{})}
	readers := []*position.Reader{
		position.NewReader(slow, deployment("arbitrum"), nil, nil),
		position.NewReader(newChain(defaultFixture()), deployment("base"), nil, nil),
	}

	type outcome struct {
		d   position.Detection
		err error
	}
	result := make(chan outcome, 1)
	go func() {
		d, err := position.Detect(context.Background(), readers, 7, nil)
		result <- outcome{d, err}
	}()

	select {
	case out := <-result:
		t.Fatalf("returned before the earlier candidate answered: %+v", out)
	case <-time.After(50 * time.Millisecond):
	}
	close(slow.release)

	out := <-result
	require.NoError(t, out.err)
	assert.Equal(t, "arbitrum", out.d.Network)
}

func TestTokenIDs(t *testing.T) {
	f := newChain(defaultFixture())
	f.set(pm, codec.Calldata(codec.SelectorBalanceOf, addr(owner)), words(codec.EncodeUint64(3)))
	for i, id := range map[uint64]uint64{0: 11, 2: 33} {
		f.set(pm, codec.Calldata(codec.SelectorTokenOfOwnerByIndex, addr(owner), codec.EncodeUint64(i)), words(codec.EncodeUint64(id)))
	}

	ids, err := newReader(f).TokenIDs(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 33}, ids)

	_, err = newReader(f).TokenIDs(context.Background(), "not-an-address")
	var encErr *codec.EncodingError
	require.True(t, errors.As(err, &encErr))
}

func TestTokenIDs_EmptyWallet(t *testing.T) {
	f := newChain(defaultFixture())
	f.set(pm, codec.Calldata(codec.SelectorBalanceOf, addr(owner)), words(zeroWord))

	ids, err := newReader(f).TokenIDs(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSortSnapshots(t *testing.T) {
	snaps := []model.PositionSnapshot{
		{PositionID: 1, IsActive: true},
		{PositionID: 9},
		{PositionID: 5, IsActive: true},
		{PositionID: 3},
	}
	position.SortSnapshots(snaps)
	got := make([]string, len(snaps))
	for i, s := range snaps {
		got[i] = fmt.Sprint(s.PositionID)
	}
	assert.Equal(t, "5,1,9,3", strings.Join(got, ","))
}

func TestFeeLabel(t *testing.T) {
	for fee, want := range map[uint32]string{100: "0.01%", 500: "0.05%", 3000: "0.30%", 10000: "1.00%"} {
		assert.Equal(t, want, position.FeeLabel(fee))
	}
}
