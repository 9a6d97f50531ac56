package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
	"positionScope/internal/scan"
)

func sampleSnapshot() *model.PositionSnapshot {
	snap := &model.PositionSnapshot{
		PositionID:    42,
		Network:       "arbitrum",
		Dex:           "uniswap_v3",
		DexName:       "Uniswap V3",
		Token0:        model.TokenMeta{Symbol: "WETH", Decimals: 18},
		Token1:        model.TokenMeta{Symbol: "USDC", Decimals: 6},
		FeeLabel:      "0.05%",
		CurrentPrice:  3000,
		InRange:       true,
		IsActive:      true,
		TotalValueUSD: 1234.5,
	}
	snap.Audit.RunID = "run-1"
	snap.Audit.Apply("current_price", "(x / 2^96)^2", 3000)
	return snap
}

func TestRenderSnapshotTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderSnapshot(&buf, "table", sampleSnapshot()))

	out := buf.String()
	assert.Contains(t, out, "WETH/USDC 0.05%")
	assert.Contains(t, out, "in range")
	assert.Contains(t, out, "$1234.50")
	assert.Contains(t, out, "current_price")
	assert.NotContains(t, out, "note:")
}

func TestRenderSnapshotQuoteAssumedNote(t *testing.T) {
	snap := sampleSnapshot()
	snap.QuoteAssumed = true

	var buf bytes.Buffer
	require.NoError(t, renderSnapshot(&buf, "table", snap))
	assert.Contains(t, buf.String(), "USD values assume USDC is the quote asset")
}

func TestRenderSnapshotJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderSnapshot(&buf, "json", sampleSnapshot()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(42), got["position_id"])
	assert.Equal(t, "arbitrum", got["network"])
	assert.Equal(t, true, got["in_range"])
}

func TestSnapshotRowsClosedPosition(t *testing.T) {
	snap := sampleSnapshot()
	snap.IsActive = false

	rows := snapshotRows(snap)
	var status string
	for _, row := range rows {
		if row[0] == "Status" {
			status = row[1]
		}
	}
	assert.Equal(t, "closed (zero liquidity)", status)
}

func TestRenderSummary(t *testing.T) {
	summary := scan.Summary{
		Owner:     "0xabc",
		Total:     3,
		Processed: 2,
		Skipped:   1,
		Failed:    []uint64{7},
		Snapshots: []model.PositionSnapshot{*sampleSnapshot()},
	}

	var buf bytes.Buffer
	require.NoError(t, renderSummary(&buf, "table", summary))

	out := buf.String()
	assert.Contains(t, out, "WETH/USDC")
	assert.Contains(t, out, "owner 0xabc: 3 positions, 2 processed, 1 skipped (checkpoint), 1 failed")
	assert.Contains(t, out, "failed ids: [7]")
}

func TestRenderBlocks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderBlocks(&buf, "table", []blockHeight{
		{Network: "base", Block: 100},
		{Network: "polygon"},
	}))

	out := buf.String()
	assert.Contains(t, out, "100")
	assert.Contains(t, out, "unavailable")

	buf.Reset()
	require.NoError(t, renderBlocks(&buf, "json", []blockHeight{{Network: "base", Block: 100}}))
	assert.JSONEq(t, `[{"network":"base","block":100}]`, buf.String())
}
