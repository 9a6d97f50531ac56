// Package sqlite is an embedded snapshot sink for single-machine runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"positionScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS position_snapshots (
    network         TEXT    NOT NULL,
    dex             TEXT    NOT NULL,
    position_id     INTEGER NOT NULL,
    block_number    INTEGER NOT NULL,
    run_id          TEXT    NOT NULL,
    pool_address    TEXT    NOT NULL,
    symbol0         TEXT    NOT NULL,
    symbol1         TEXT    NOT NULL,
    fee             INTEGER NOT NULL,
    liquidity       TEXT    NOT NULL,
    total_value_usd REAL    NOT NULL DEFAULT 0,
    total_fees_usd  REAL    NOT NULL DEFAULT 0,
    in_range        INTEGER NOT NULL DEFAULT 0,
    read_at         TEXT    NOT NULL,
    snapshot        TEXT    NOT NULL,
    PRIMARY KEY (network, dex, position_id, block_number)
);

CREATE TABLE IF NOT EXISTS scan_state (
    name           TEXT PRIMARY KEY,
    last_processed INTEGER NOT NULL,
    updated_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_position ON position_snapshots(network, dex, position_id, block_number DESC);
`

// Row is the summary of one stored snapshot.
type Row struct {
	Network       string
	Dex           string
	PositionID    uint64
	BlockNumber   uint64
	RunID         string
	PoolAddress   string
	Symbol0       string
	Symbol1       string
	Fee           uint32
	Liquidity     string
	TotalValueUSD float64
	TotalFeesUSD  float64
	InRange       bool
	ReadAt        time.Time
}

// Store persists snapshots in a sqlite file.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and applies the schema.
// ":memory:" gives a throwaway database.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutSnapshots upserts snapshots in one transaction.
func (s *Store) PutSnapshots(ctx context.Context, snaps []model.PositionSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO position_snapshots
			(network, dex, position_id, block_number, run_id, pool_address, symbol0, symbol1,
			 fee, liquidity, total_value_usd, total_fees_usd, in_range, read_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network, dex, position_id, block_number) DO UPDATE SET
			run_id          = excluded.run_id,
			liquidity       = excluded.liquidity,
			total_value_usd = excluded.total_value_usd,
			total_fees_usd  = excluded.total_fees_usd,
			in_range        = excluded.in_range,
			read_at         = excluded.read_at,
			snapshot        = excluded.snapshot
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snaps {
		doc, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot %d: %w", snap.PositionID, err)
		}
		inRange := 0
		if snap.InRange {
			inRange = 1
		}
		if _, err := stmt.ExecContext(ctx,
			snap.Network,
			snap.Dex,
			int64(snap.PositionID),
			int64(snap.BlockNumber),
			snap.Audit.RunID,
			snap.PoolAddress,
			snap.Token0.Symbol,
			snap.Token1.Symbol,
			int64(snap.FeeRaw),
			snap.LiquidityRaw,
			snap.TotalValueUSD,
			snap.TotalFeesUSD,
			inRange,
			snap.ReadAt.UTC().Format(time.RFC3339Nano),
			string(doc),
		); err != nil {
			return fmt.Errorf("upsert snapshot %d: %w", snap.PositionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// History returns the stored snapshots of one position, newest block first.
func (s *Store) History(ctx context.Context, network, dex string, positionID uint64) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT network, dex, position_id, block_number, run_id, pool_address, symbol0, symbol1,
		       fee, liquidity, total_value_usd, total_fees_usd, in_range, read_at
		FROM position_snapshots
		WHERE network = ? AND dex = ? AND position_id = ?
		ORDER BY block_number DESC
	`, network, dex, int64(positionID))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r              Row
			id, block, fee int64
			inRange        int
			readAt         string
		)
		if err := rows.Scan(
			&r.Network, &r.Dex, &id, &block, &r.RunID, &r.PoolAddress, &r.Symbol0, &r.Symbol1,
			&fee, &r.Liquidity, &r.TotalValueUSD, &r.TotalFeesUSD, &inRange, &readAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.PositionID, r.BlockNumber, r.Fee = uint64(id), uint64(block), uint32(fee)
		r.InRange = inRange == 1
		r.ReadAt, _ = time.Parse(time.RFC3339Nano, readAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadState returns the last processed owner index for a scan name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT last_processed FROM scan_state WHERE name = ?`, name).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts the last processed owner index for a scan name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_state (name, last_processed, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_processed = excluded.last_processed,
			updated_at     = excluded.updated_at
	`, name, int64(last), time.Now().UTC().Format(time.RFC3339))
	return err
}
