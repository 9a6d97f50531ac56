// Package position reconstructs concentrated-liquidity positions from raw
// eth_call results: position record, pool state, tick boundaries and token
// metadata, combined into a snapshot with a replayable audit trail.
package position

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/codec"
	"positionScope/internal/model"
	"positionScope/internal/stable"
)

// Caller is the RPC transport the reader depends on.
type Caller interface {
	Call(ctx context.Context, to, data string) (string, error)
	CallBatch(ctx context.Context, calls []chain.CallRequest) ([]chain.Result, error)
	BlockNumber(ctx context.Context) uint64
	Endpoint() string
}

// StableClassifier picks the USD-denominated side of a pair.
type StableClassifier interface {
	StableSide(symbol0, symbol1 string) stable.Side
}

// Deployment identifies the contracts of one DEX on one network.
type Deployment struct {
	Network         string
	Dex             string
	DexName         string
	PositionManager string
	Factory         string
}

// Options tune a single reconstruction.
type Options struct {
	// Pool skips the factory lookup when set.
	Pool string
	// InitialPrice is the entry price for IL estimates; zero uses the current price.
	InitialPrice float64
}

// Reader reads positions from one deployment.
type Reader struct {
	rpc        Caller
	deployment Deployment
	classifier StableClassifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewReader creates a reader. A nil classifier uses stable.Classifier.
func NewReader(rpc Caller, deployment Deployment, classifier StableClassifier, logger *zap.Logger) *Reader {
	if classifier == nil {
		classifier = stable.Classifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deployment.DexName == "" {
		deployment.DexName = deployment.Dex
	}
	return &Reader{
		rpc:        rpc,
		deployment: deployment,
		classifier: classifier,
		logger:     logger.With(zap.String("network", deployment.Network), zap.String("dex", deployment.Dex)),
		now:        time.Now,
	}
}

// Deployment returns the reader's deployment.
func (r *Reader) Deployment() Deployment {
	return r.deployment
}

// BlockNumber returns the chain head, zero when the node cannot say.
func (r *Reader) BlockNumber(ctx context.Context) uint64 {
	return r.rpc.BlockNumber(ctx)
}

// Reconstruct reads a position and assembles its snapshot. Failure to read the
// position record aborts; metadata and boundary failures degrade to defaults.
func (r *Reader) Reconstruct(ctx context.Context, tokenID uint64, opts Options) (*model.PositionSnapshot, error) {
	if opts.Pool != "" && !common.IsHexAddress(opts.Pool) {
		return nil, &codec.EncodingError{Kind: "address", Input: opts.Pool, Reason: "invalid pool address"}
	}

	trail := model.AuditTrail{
		RunID:    uuid.New().String(),
		Endpoint: r.rpc.Endpoint(),
		Network:  r.deployment.Network,
		Dex:      r.deployment.DexName,
		Contracts: model.AuditContracts{
			PositionManager: r.deployment.PositionManager,
			Factory:         r.deployment.Factory,
		},
	}
	trail.BlockNumber = r.rpc.BlockNumber(ctx)

	pos, err := r.readPosition(ctx, tokenID, &trail)
	if err != nil {
		return nil, err
	}
	if !pos.Exists() {
		return nil, fmt.Errorf("read position %d: %w", tokenID, ErrPositionNotFound)
	}
	if pos.TickLower >= pos.TickUpper {
		return nil, fmt.Errorf("read position %d [%d, %d): %w", tokenID, pos.TickLower, pos.TickUpper, ErrInvalidTicks)
	}

	pool := opts.Pool
	if pool == "" {
		pool, err = r.resolvePool(ctx, pos, &trail)
		if err != nil {
			return nil, err
		}
	}
	pool = normalizeAddress(pool)
	trail.Contracts.Pool = pool
	trail.Contracts.Token0 = pos.Token0
	trail.Contracts.Token1 = pos.Token1

	if !pos.Active() {
		r.logger.Info("position has zero liquidity", zap.Uint64("position", tokenID))
	}

	state, token0, token1, err := r.readPoolAndTokens(ctx, pool, pos, &trail)
	if err != nil {
		return nil, err
	}
	lower, upper, err := r.readBoundaries(ctx, pool, pos, &trail)
	if err != nil {
		return nil, err
	}

	snap := r.assemble(pos, state, token0, token1, lower, upper, opts)
	snap.BlockNumber = trail.BlockNumber
	snap.Audit = trail
	r.addFormulas(snap)
	return snap, nil
}

// ReadPosition performs only the positions(uint256) call.
func (r *Reader) ReadPosition(ctx context.Context, tokenID uint64) (model.PositionRecord, error) {
	var trail model.AuditTrail
	return r.readPosition(ctx, tokenID, &trail)
}

func (r *Reader) readPosition(ctx context.Context, tokenID uint64, trail *model.AuditTrail) (model.PositionRecord, error) {
	calldata := codec.Calldata(codec.SelectorPositions, codec.EncodeUint64(tokenID))
	call := model.RawCall{Label: "positions(uint256)", Kind: model.CallPositions, To: r.deployment.PositionManager, Calldata: calldata}

	raw, err := r.rpc.Call(ctx, r.deployment.PositionManager, calldata)
	if err != nil {
		call.Error = err.Error()
		trail.Record(call)
		return model.PositionRecord{}, fmt.Errorf("read position %d: %w", tokenID, err)
	}
	call.Result = raw

	pos, err := decodePosition(tokenID, raw)
	if err != nil {
		call.Error = err.Error()
		trail.Record(call)
		return model.PositionRecord{}, fmt.Errorf("decode position %d: %w", tokenID, err)
	}
	call.Decoded = model.PositionsCall{
		TokenID:                  tokenID,
		Token0:                   pos.Token0,
		Token1:                   pos.Token1,
		Fee:                      pos.Fee,
		TickLower:                pos.TickLower,
		TickUpper:                pos.TickUpper,
		Liquidity:                pos.Liquidity.String(),
		FeeGrowthInside0LastX128: pos.FeeGrowthInside0LastX128.String(),
		FeeGrowthInside1LastX128: pos.FeeGrowthInside1LastX128.String(),
		TokensOwed0:              pos.TokensOwed0.String(),
		TokensOwed1:              pos.TokensOwed1.String(),
	}
	trail.Record(call)
	return pos, nil
}

func (r *Reader) resolvePool(ctx context.Context, pos model.PositionRecord, trail *model.AuditTrail) (string, error) {
	w0, err := codec.EncodeAddress(pos.Token0)
	if err != nil {
		return "", err
	}
	w1, err := codec.EncodeAddress(pos.Token1)
	if err != nil {
		return "", err
	}
	fee, err := codec.EncodeUint(new(big.Int).SetUint64(uint64(pos.Fee)), 24)
	if err != nil {
		return "", err
	}
	calldata := codec.Calldata(codec.SelectorGetPool, w0, w1, fee)
	call := model.RawCall{Label: "getPool(address,address,uint24)", Kind: model.CallGetPool, To: r.deployment.Factory, Calldata: calldata}

	raw, err := r.rpc.Call(ctx, r.deployment.Factory, calldata)
	if err != nil {
		call.Error = err.Error()
		trail.Record(call)
		return "", fmt.Errorf("resolve pool: %w", err)
	}
	call.Result = raw
	pool, err := codec.DecodeAddress(raw, 0)
	if err != nil {
		call.Error = err.Error()
		trail.Record(call)
		return "", fmt.Errorf("decode pool address: %w", err)
	}
	call.Decoded = model.GetPoolCall{Pool: pool}
	trail.Record(call)

	if common.HexToAddress(pool) == (common.Address{}) {
		return "", &PoolNotFoundError{Token0: pos.Token0, Token1: pos.Token1, Fee: pos.Fee}
	}
	return pool, nil
}

func normalizeAddress(addr string) string {
	return "0x" + common.Bytes2Hex(common.HexToAddress(addr).Bytes())
}
