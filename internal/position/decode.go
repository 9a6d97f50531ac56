package position

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/codec"
	"positionScope/internal/model"
	"positionScope/internal/stable"
)

// positions(uint256) return words.
const (
	wordNonce = iota
	wordOperator
	wordToken0
	wordToken1
	wordFee
	wordTickLower
	wordTickUpper
	wordLiquidity
	wordFeeGrowthInside0
	wordFeeGrowthInside1
	wordTokensOwed0
	wordTokensOwed1
)

// ticks(int24) return words holding feeGrowthOutside{0,1}X128.
const (
	wordTickOutside0 = 2
	wordTickOutside1 = 3
)

const (
	defaultDecimals0 = 18
	defaultDecimals1 = 6
	defaultSymbol0   = "TOKEN0"
	defaultSymbol1   = "TOKEN1"
)

var maxUint24 = big.NewInt(1<<24 - 1)

func decodePosition(tokenID uint64, raw string) (model.PositionRecord, error) {
	d := decoder{data: raw}
	pos := model.PositionRecord{
		TokenID:                  tokenID,
		Nonce:                    d.uint(wordNonce),
		Operator:                 d.address(wordOperator),
		Token0:                   d.address(wordToken0),
		Token1:                   d.address(wordToken1),
		TickLower:                d.int24(wordTickLower),
		TickUpper:                d.int24(wordTickUpper),
		Liquidity:                d.uint(wordLiquidity),
		FeeGrowthInside0LastX128: d.uint(wordFeeGrowthInside0),
		FeeGrowthInside1LastX128: d.uint(wordFeeGrowthInside1),
		TokensOwed0:              d.uint(wordTokensOwed0),
		TokensOwed1:              d.uint(wordTokensOwed1),
	}
	fee := d.uint(wordFee)
	if d.err != nil {
		return model.PositionRecord{}, d.err
	}
	if fee.Cmp(maxUint24) > 0 {
		return model.PositionRecord{}, fmt.Errorf("fee %s exceeds uint24", fee)
	}
	pos.Fee = uint32(fee.Uint64())
	return pos, nil
}

// decoder keeps the first error so a record can be decoded field by field.
type decoder struct {
	data string
	err  error
}

func (d *decoder) uint(word int) *big.Int {
	if d.err != nil {
		return new(big.Int)
	}
	v, err := codec.DecodeUint(d.data, word)
	if err != nil {
		d.err = err
		return new(big.Int)
	}
	return v
}

func (d *decoder) int24(word int) int32 {
	if d.err != nil {
		return 0
	}
	v, err := codec.DecodeInt(d.data, word)
	if err != nil {
		d.err = err
		return 0
	}
	if !v.IsInt64() || v.Int64() < -(1<<23) || v.Int64() >= 1<<23 {
		d.err = fmt.Errorf("word %d: %s is not an int24", word, v)
		return 0
	}
	return int32(v.Int64())
}

func (d *decoder) address(word int) string {
	if d.err != nil {
		return ""
	}
	v, err := codec.DecodeAddress(d.data, word)
	if err != nil {
		d.err = err
		return ""
	}
	return v
}

// batch indexes of the pool and token metadata batch.
const (
	batchSlot0 = iota
	batchLiquidity
	batchFeeGrowth0
	batchFeeGrowth1
	batchDecimals0
	batchDecimals1
	batchSymbol0
	batchSymbol1
)

func (r *Reader) readPoolAndTokens(
	ctx context.Context,
	pool string,
	pos model.PositionRecord,
	trail *model.AuditTrail,
) (model.PoolState, model.TokenMeta, model.TokenMeta, error) {
	calls := []chain.CallRequest{
		batchSlot0:      {To: pool, Data: codec.Calldata(codec.SelectorSlot0)},
		batchLiquidity:  {To: pool, Data: codec.Calldata(codec.SelectorLiquidity)},
		batchFeeGrowth0: {To: pool, Data: codec.Calldata(codec.SelectorFeeGrowthGlobal0X128)},
		batchFeeGrowth1: {To: pool, Data: codec.Calldata(codec.SelectorFeeGrowthGlobal1X128)},
		batchDecimals0:  {To: pos.Token0, Data: codec.Calldata(codec.SelectorDecimals)},
		batchDecimals1:  {To: pos.Token1, Data: codec.Calldata(codec.SelectorDecimals)},
		batchSymbol0:    {To: pos.Token0, Data: codec.Calldata(codec.SelectorSymbol)},
		batchSymbol1:    {To: pos.Token1, Data: codec.Calldata(codec.SelectorSymbol)},
	}
	results, err := r.batch(ctx, calls)
	if err != nil {
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, fmt.Errorf("read pool state: %w", err)
	}
	record := func(i int, label string, kind model.CallKind, res chain.Result, decoded model.Decoded, decodeErr error) {
		call := model.RawCall{Label: label, Kind: kind, To: calls[i].To, Calldata: calls[i].Data, Result: res.Data, Decoded: decoded}
		if res.Err != nil {
			call.Error = res.Err.Error()
		} else if decodeErr != nil {
			call.Error = decodeErr.Error()
		}
		trail.Record(call)
	}
	fail := func(i int, label string, kind model.CallKind, res chain.Result, err error) (model.PoolState, model.TokenMeta, model.TokenMeta, error) {
		record(i, label, kind, res, nil, err)
		return model.PoolState{}, model.TokenMeta{}, model.TokenMeta{}, &PoolStateError{Pool: pool, Call: label, Err: err}
	}

	state := model.PoolState{Address: pool}

	// Pool state has no safe default: a zero price or fee growth would be
	// reported as real data.
	var sqrtP *big.Int
	var tick int32
	res, err := r.required(ctx, calls[batchSlot0], results[batchSlot0], func(res chain.Result) (err error) {
		sqrtP, tick, err = decodeSlot0(res)
		if err == nil && sqrtP.Sign() == 0 {
			err = errPoolUninitialized
		}
		return err
	})
	if err != nil {
		return fail(batchSlot0, "slot0()", model.CallSlot0, res, err)
	}
	state.SqrtPriceX96, state.Tick = sqrtP, tick
	record(batchSlot0, "slot0()", model.CallSlot0, res, model.Slot0Call{SqrtPriceX96: sqrtP.String(), Tick: tick}, nil)

	res, err = r.required(ctx, calls[batchLiquidity], results[batchLiquidity], func(res chain.Result) (err error) {
		state.Liquidity, err = decodeWord(res)
		return err
	})
	if err != nil {
		return fail(batchLiquidity, "liquidity()", model.CallLiquidity, res, err)
	}
	record(batchLiquidity, "liquidity()", model.CallLiquidity, res, model.LiquidityCall{Liquidity: state.Liquidity.String()}, nil)

	res, err = r.required(ctx, calls[batchFeeGrowth0], results[batchFeeGrowth0], func(res chain.Result) (err error) {
		state.FeeGrowthGlobal0X128, err = decodeWord(res)
		return err
	})
	if err != nil {
		return fail(batchFeeGrowth0, "feeGrowthGlobal0X128()", model.CallFeeGrowthGlobal, res, err)
	}
	record(batchFeeGrowth0, "feeGrowthGlobal0X128()", model.CallFeeGrowthGlobal, res,
		model.FeeGrowthGlobalCall{Token: 0, Value: state.FeeGrowthGlobal0X128.String()}, nil)

	res, err = r.required(ctx, calls[batchFeeGrowth1], results[batchFeeGrowth1], func(res chain.Result) (err error) {
		state.FeeGrowthGlobal1X128, err = decodeWord(res)
		return err
	})
	if err != nil {
		return fail(batchFeeGrowth1, "feeGrowthGlobal1X128()", model.CallFeeGrowthGlobal, res, err)
	}
	record(batchFeeGrowth1, "feeGrowthGlobal1X128()", model.CallFeeGrowthGlobal, res,
		model.FeeGrowthGlobalCall{Token: 1, Value: state.FeeGrowthGlobal1X128.String()}, nil)

	token0 := model.TokenMeta{Address: pos.Token0}
	token1 := model.TokenMeta{Address: pos.Token1}

	var defaulted bool
	res = results[batchDecimals0]
	token0.Decimals, defaulted = decodeDecimals(res, defaultDecimals0)
	record(batchDecimals0, "decimals()", model.CallDecimals, res, model.DecimalsCall{Token: pos.Token0, Decimals: token0.Decimals, Defaulted: defaulted}, nil)

	res = results[batchDecimals1]
	token1.Decimals, defaulted = decodeDecimals(res, defaultDecimals1)
	record(batchDecimals1, "decimals()", model.CallDecimals, res, model.DecimalsCall{Token: pos.Token1, Decimals: token1.Decimals, Defaulted: defaulted}, nil)

	res = results[batchSymbol0]
	token0.Symbol, defaulted = decodeSymbol(res, defaultSymbol0)
	record(batchSymbol0, "symbol()", model.CallSymbol, res, model.SymbolCall{Token: pos.Token0, Raw: res.Data, Symbol: token0.Symbol, Defaulted: defaulted}, nil)

	res = results[batchSymbol1]
	token1.Symbol, defaulted = decodeSymbol(res, defaultSymbol1)
	record(batchSymbol1, "symbol()", model.CallSymbol, res, model.SymbolCall{Token: pos.Token1, Raw: res.Data, Symbol: token1.Symbol, Defaulted: defaulted}, nil)

	return state, token0, token1, nil
}

func (r *Reader) readBoundaries(
	ctx context.Context,
	pool string,
	pos model.PositionRecord,
	trail *model.AuditTrail,
) (*model.TickBoundaryInfo, *model.TickBoundaryInfo, error) {
	ticks := []int32{pos.TickLower, pos.TickUpper}
	calls := make([]chain.CallRequest, len(ticks))
	for i, tick := range ticks {
		calls[i] = chain.CallRequest{To: pool, Data: codec.Calldata(codec.SelectorTicks, codec.EncodeSignedTick(tick))}
	}
	results, err := r.batch(ctx, calls)
	if err != nil {
		return nil, nil, fmt.Errorf("read tick boundaries: %w", err)
	}

	out := make([]*model.TickBoundaryInfo, len(ticks))
	for i, tick := range ticks {
		res := results[i]
		call := model.RawCall{Label: "ticks(int24)", Kind: model.CallTicks, To: pool, Calldata: calls[i].Data, Result: res.Data}
		info, err := decodeTick(tick, res)
		if err != nil {
			call.Error = err.Error()
			r.logger.Warn("tick boundary unavailable", zap.Int32("tick", tick), zap.Error(err))
		} else {
			out[i] = info
			call.Decoded = model.TicksCall{
				Tick:                  tick,
				FeeGrowthOutside0X128: info.FeeGrowthOutside0X128.String(),
				FeeGrowthOutside1X128: info.FeeGrowthOutside1X128.String(),
			}
		}
		trail.Record(call)
	}
	return out[0], out[1], nil
}

// batch runs calls as one CallBatch and re-issues as single calls any entry the
// endpoint left unanswered. The result always has one entry per call.
func (r *Reader) batch(ctx context.Context, calls []chain.CallRequest) ([]chain.Result, error) {
	results, err := r.rpc.CallBatch(ctx, calls)
	if err != nil {
		return nil, err
	}
	out := make([]chain.Result, len(calls))
	copy(out, results)
	missing := 0
	for i := range out {
		if i < len(results) && !errors.Is(results[i].Err, chain.ErrMissingResponse) {
			continue
		}
		missing++
		out[i] = r.call(ctx, calls[i])
	}
	if missing > 0 {
		r.logger.Debug("short batch completed with single calls",
			zap.Int("calls", len(calls)),
			zap.Int("missing", missing),
		)
	}
	return out, ctx.Err()
}

func (r *Reader) call(ctx context.Context, c chain.CallRequest) chain.Result {
	data, err := r.rpc.Call(ctx, c.To, c.Data)
	return chain.Result{Data: data, Err: err}
}

// required decodes a batch entry and, if that fails, reads it once more on its
// own before giving up.
func (r *Reader) required(ctx context.Context, c chain.CallRequest, res chain.Result, decode func(chain.Result) error) (chain.Result, error) {
	err := decode(res)
	if err == nil {
		return res, nil
	}
	r.logger.Warn("pool state entry failed, re-reading",
		zap.String("to", c.To),
		zap.String("calldata", c.Data),
		zap.Error(err),
	)
	res = r.call(ctx, c)
	return res, decode(res)
}

func decodeSlot0(res chain.Result) (*big.Int, int32, error) {
	if res.Err != nil {
		return new(big.Int), 0, res.Err
	}
	d := decoder{data: res.Data}
	sqrtP := d.uint(0)
	tick := d.int24(1)
	if d.err != nil {
		return new(big.Int), 0, d.err
	}
	return sqrtP, tick, nil
}

func decodeWord(res chain.Result) (*big.Int, error) {
	if res.Err != nil {
		return new(big.Int), res.Err
	}
	v, err := codec.DecodeUint(res.Data, 0)
	if err != nil {
		return new(big.Int), err
	}
	return v, nil
}

func decodeTick(tick int32, res chain.Result) (*model.TickBoundaryInfo, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	d := decoder{data: res.Data}
	info := &model.TickBoundaryInfo{
		Tick:                  tick,
		FeeGrowthOutside0X128: d.uint(wordTickOutside0),
		FeeGrowthOutside1X128: d.uint(wordTickOutside1),
	}
	if d.err != nil {
		return nil, d.err
	}
	return info, nil
}

var (
	errDecimalsRange     = errors.New("decimals out of range")
	errPoolUninitialized = errors.New("pool is not initialized (sqrtPriceX96 is zero)")
)

func decodeDecimals(res chain.Result, fallback uint8) (uint8, bool) {
	v, err := decodeWord(res)
	if err == nil && v.BitLen() > 8 {
		err = errDecimalsRange
	}
	if err != nil {
		return fallback, true
	}
	return uint8(v.Uint64()), false
}

// decodeSymbol tries the strict string layout and falls back to a placeholder
// only when the call itself produced nothing.
func decodeSymbol(res chain.Result, fallback string) (string, bool) {
	if !res.OK() {
		return fallback, true
	}
	return stable.Normalize(codec.DecodeDynamicString(res.Data)), false
}
