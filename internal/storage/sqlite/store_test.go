package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
	"positionScope/internal/storage/sqlite"
)

func snapshot(id, block uint64, value float64) model.PositionSnapshot {
	return model.PositionSnapshot{
		PositionID:    id,
		Network:       "base",
		Dex:           "uniswap_v3",
		PoolAddress:   "0xpool",
		BlockNumber:   block,
		Token0:        model.TokenMeta{Symbol: "WETH", Decimals: 18},
		Token1:        model.TokenMeta{Symbol: "USDC", Decimals: 6},
		FeeRaw:        500,
		LiquidityRaw:  "1000000000000000000",
		TotalValueUSD: value,
		InRange:       true,
		ReadAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Audit:         model.AuditTrail{RunID: "run-1"},
	}
}

func TestStore_PutAndHistory(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.PutSnapshots(ctx, []model.PositionSnapshot{
		snapshot(7, 100, 10),
		snapshot(7, 200, 20),
		snapshot(8, 200, 99),
	}))

	rows, err := s.History(ctx, "base", "uniswap_v3", 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(200), rows[0].BlockNumber)
	assert.InDelta(t, 20.0, rows[0].TotalValueUSD, 1e-9)
	assert.Equal(t, uint32(500), rows[0].Fee)
	assert.True(t, rows[0].InRange)
	assert.Equal(t, "WETH", rows[0].Symbol0)
	assert.Equal(t, 2026, rows[0].ReadAt.Year())
}

func TestStore_UpsertSameBlock(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.PutSnapshots(ctx, []model.PositionSnapshot{snapshot(7, 100, 10)}))
	require.NoError(t, s.PutSnapshots(ctx, []model.PositionSnapshot{snapshot(7, 100, 15)}))

	rows, err := s.History(ctx, "base", "uniswap_v3", 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 15.0, rows[0].TotalValueUSD, 1e-9)
}

func TestStore_EmptyBatch(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.PutSnapshots(context.Background(), nil))
}

func TestStore_State(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, ok, err := s.LoadState(ctx, "scan:base:0xowner")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveState(ctx, "scan:base:0xowner", 4))
	require.NoError(t, s.SaveState(ctx, "scan:base:0xowner", 9))
	last, ok, err := s.LoadState(ctx, "scan:base:0xowner")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), last)

	assert.Error(t, s.SaveState(ctx, "", 1))
}
