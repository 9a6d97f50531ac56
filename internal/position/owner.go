package position

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/codec"
	"positionScope/internal/model"
)

// TokenIDs lists the position NFTs held by owner: balanceOf, then one batched
// tokenOfOwnerByIndex for every index. Indexes whose call fails are skipped.
func (r *Reader) TokenIDs(ctx context.Context, owner string) ([]uint64, error) {
	ownerWord, err := codec.EncodeAddress(owner)
	if err != nil {
		return nil, err
	}
	pm := r.deployment.PositionManager

	raw, err := r.rpc.Call(ctx, pm, codec.Calldata(codec.SelectorBalanceOf, ownerWord))
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", owner, err)
	}
	balance, err := codec.DecodeUint(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("decode balance of %s: %w", owner, err)
	}
	if !balance.IsInt64() || balance.Int64() > maxOwnedPositions {
		return nil, fmt.Errorf("balance of %s: %s positions exceeds %d", owner, balance, maxOwnedPositions)
	}
	count := int(balance.Int64())
	if count == 0 {
		return nil, nil
	}

	calls := make([]chain.CallRequest, count)
	for i := range calls {
		calls[i] = chain.CallRequest{
			To:   pm,
			Data: codec.Calldata(codec.SelectorTokenOfOwnerByIndex, ownerWord, codec.EncodeUint64(uint64(i))),
		}
	}
	results, err := r.batch(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("enumerate positions of %s: %w", owner, err)
	}

	ids := make([]uint64, 0, count)
	for i, res := range results {
		if !res.OK() {
			r.logger.Warn("tokenOfOwnerByIndex failed", zap.String("owner", owner), zap.Int("index", i), zap.Error(res.Err))
			continue
		}
		id, err := codec.DecodeUint(res.Data, 0)
		if err != nil || !id.IsUint64() {
			r.logger.Warn("tokenOfOwnerByIndex undecodable", zap.String("owner", owner), zap.Int("index", i), zap.String("result", res.Data))
			continue
		}
		ids = append(ids, id.Uint64())
	}
	return ids, nil
}

const maxOwnedPositions = 10_000

// SortSnapshots orders active positions first, then by descending id.
func SortSnapshots(snaps []model.PositionSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].IsActive != snaps[j].IsActive {
			return snaps[i].IsActive
		}
		return snaps[i].PositionID > snaps[j].PositionID
	})
}
