package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"positionScope/internal/model"
	"positionScope/internal/position"
	"positionScope/internal/scan"
	"positionScope/internal/storage/sqlite"
)

type blockHeight struct {
	Network string `json:"network"`
	Block   uint64 `json:"block"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSnapshot(w io.Writer, format string, snap *model.PositionSnapshot) error {
	if format == "json" {
		return writeJSON(w, snap)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	for _, row := range snapshotRows(snap) {
		table.Append(row[0], row[1])
	}
	table.Render()

	if len(snap.Audit.Formulas) > 0 {
		formulas := tablewriter.NewWriter(w)
		formulas.Header("Formula", "Expression", "Result")
		for _, f := range snap.Audit.Formulas {
			formulas.Append(f.Name, f.Expression, fmtFloat(f.Value))
		}
		formulas.Render()
	}
	if snap.QuoteAssumed {
		fmt.Fprintf(w, "note: neither %s nor %s is a known stablecoin; USD values assume %s is the quote asset\n",
			snap.Token0.Symbol, snap.Token1.Symbol, snap.Token1.Symbol)
	}
	return nil
}

func snapshotRows(snap *model.PositionSnapshot) [][2]string {
	pair := snap.Token0.Symbol + "/" + snap.Token1.Symbol
	status := "out of range"
	if snap.InRange {
		status = "in range"
	}
	if !snap.IsActive {
		status = "closed (zero liquidity)"
	}
	return [][2]string{
		{"Position", strconv.FormatUint(snap.PositionID, 10)},
		{"Network", snap.Network},
		{"DEX", snap.DexName},
		{"Block", strconv.FormatUint(snap.BlockNumber, 10)},
		{"Pool", snap.PoolAddress},
		{"Pair", pair + " " + snap.FeeLabel},
		{"Status", status},
		{"Current price", fmtFloat(snap.CurrentPrice)},
		{"Range", fmt.Sprintf("%s - %s (ticks %d to %d)", fmtFloat(snap.PriceLower), fmtFloat(snap.PriceUpper), snap.TickLower, snap.TickUpper)},
		{"Range width", fmt.Sprintf("%.2f%%", snap.RangeWidthPct)},
		{snap.Token0.Symbol, fmt.Sprintf("%s ($%.2f, %.1f%%)", fmtFloat(snap.Amount0), snap.Token0ValueUSD, snap.Token0Pct)},
		{snap.Token1.Symbol, fmt.Sprintf("%s ($%.2f, %.1f%%)", fmtFloat(snap.Amount1), snap.Token1ValueUSD, snap.Token1Pct)},
		{"Total value", fmt.Sprintf("$%.2f", snap.TotalValueUSD)},
		{"Uncollected fees", fmt.Sprintf("%s %s + %s %s ($%.2f)", fmtFloat(snap.Fees0), snap.Token0.Symbol, fmtFloat(snap.Fees1), snap.Token1.Symbol, snap.TotalFeesUSD)},
		{"Pool share", fmt.Sprintf("%.4f%%", snap.PositionSharePct)},
		{"Capital efficiency", fmt.Sprintf("%.2fx", snap.CapitalEfficiency)},
		{"IL at lower", fmt.Sprintf("%.2f%% (full range %.2f%%)", snap.ILAtLower.AmplifiedPct, snap.ILAtLower.BaselinePct)},
		{"IL at upper", fmt.Sprintf("%.2f%% (full range %.2f%%)", snap.ILAtUpper.AmplifiedPct, snap.ILAtUpper.BaselinePct)},
		{"Audit run", snap.Audit.RunID},
	}
}

func renderDetection(w io.Writer, format string, d position.Detection) error {
	dep := d.Reader.Deployment()
	if format == "json" {
		return writeJSON(w, map[string]any{
			"position":         d.Position.TokenID,
			"network":          d.Network,
			"dex":              dep.Dex,
			"position_manager": dep.PositionManager,
			"token0":           d.Position.Token0,
			"token1":           d.Position.Token1,
			"fee":              d.Position.Fee,
			"tick_lower":       d.Position.TickLower,
			"tick_upper":       d.Position.TickUpper,
			"liquidity":        d.Position.Liquidity.String(),
		})
	}
	table := tablewriter.NewWriter(w)
	table.Header("Position", "Network", "DEX", "Token0", "Token1", "Fee", "Ticks", "Liquidity")
	table.Append(
		strconv.FormatUint(d.Position.TokenID, 10),
		d.Network,
		dep.DexName,
		d.Position.Token0,
		d.Position.Token1,
		position.FeeLabel(d.Position.Fee),
		fmt.Sprintf("[%d, %d)", d.Position.TickLower, d.Position.TickUpper),
		d.Position.Liquidity.String(),
	)
	table.Render()
	return nil
}

func renderSummary(w io.Writer, format string, s scan.Summary) error {
	if format == "json" {
		return writeJSON(w, s)
	}
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Pair", "Fee", "Status", "Value $", "Fees $", "Share %")
	for _, snap := range s.Snapshots {
		status := "out"
		switch {
		case !snap.IsActive:
			status = "closed"
		case snap.InRange:
			status = "in"
		}
		table.Append(
			strconv.FormatUint(snap.PositionID, 10),
			snap.Token0.Symbol+"/"+snap.Token1.Symbol,
			snap.FeeLabel,
			status,
			fmt.Sprintf("%.2f", snap.TotalValueUSD),
			fmt.Sprintf("%.2f", snap.TotalFeesUSD),
			fmt.Sprintf("%.4f", snap.PositionSharePct),
		)
	}
	table.Render()
	fmt.Fprintf(w, "owner %s: %d positions, %d processed, %d skipped (checkpoint), %d failed\n",
		s.Owner, s.Total, s.Processed, s.Skipped, len(s.Failed))
	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "failed ids: %v\n", s.Failed)
	}
	return nil
}

func renderBlocks(w io.Writer, format string, heights []blockHeight) error {
	if format == "json" {
		return writeJSON(w, heights)
	}
	table := tablewriter.NewWriter(w)
	table.Header("Network", "Block")
	for _, h := range heights {
		block := "unavailable"
		if h.Block > 0 {
			block = strconv.FormatUint(h.Block, 10)
		}
		table.Append(h.Network, block)
	}
	table.Render()
	return nil
}

func renderHistory(w io.Writer, format string, rows []sqlite.Row) error {
	if format == "json" {
		return writeJSON(w, rows)
	}
	table := tablewriter.NewWriter(w)
	table.Header("Block", "Read at", "Pair", "In range", "Value $", "Fees $", "Run")
	for _, r := range rows {
		table.Append(
			strconv.FormatUint(r.BlockNumber, 10),
			r.ReadAt.Format("2006-01-02 15:04:05"),
			r.Symbol0+"/"+r.Symbol1,
			strconv.FormatBool(r.InRange),
			fmt.Sprintf("%.2f", r.TotalValueUSD),
			fmt.Sprintf("%.2f", r.TotalFeesUSD),
			r.RunID,
		)
	}
	table.Render()
	return nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}
