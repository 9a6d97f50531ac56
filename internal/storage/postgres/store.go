package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS position_snapshots (
	network          TEXT        NOT NULL,
	dex              TEXT        NOT NULL,
	position_id      BIGINT      NOT NULL,
	block_number     BIGINT      NOT NULL,
	run_id           TEXT        NOT NULL,
	pool_address     TEXT        NOT NULL,
	token0           TEXT        NOT NULL,
	token1           TEXT        NOT NULL,
	symbol0          TEXT        NOT NULL,
	symbol1          TEXT        NOT NULL,
	fee              INTEGER     NOT NULL,
	tick_lower       INTEGER     NOT NULL,
	tick_upper       INTEGER     NOT NULL,
	liquidity        NUMERIC     NOT NULL,
	amount0          DOUBLE PRECISION NOT NULL,
	amount1          DOUBLE PRECISION NOT NULL,
	total_value_usd  DOUBLE PRECISION NOT NULL,
	total_fees_usd   DOUBLE PRECISION NOT NULL,
	in_range         BOOLEAN     NOT NULL,
	read_at          TIMESTAMPTZ NOT NULL,
	snapshot         JSONB       NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (network, dex, position_id, block_number)
);

CREATE TABLE IF NOT EXISTS scan_state (
	name           TEXT PRIMARY KEY,
	last_processed BIGINT      NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for position snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot and scan state tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutSnapshots inserts or updates snapshots keyed by network, dex, position and block.
func (s *Store) PutSnapshots(ctx context.Context, snaps []model.PositionSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		doc, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot %d: %w", snap.PositionID, err)
		}
		batch.Queue(`
			INSERT INTO position_snapshots (
				network, dex, position_id, block_number, run_id, pool_address,
				token0, token1, symbol0, symbol1, fee, tick_lower, tick_upper, liquidity,
				amount0, amount1, total_value_usd, total_fees_usd, in_range, read_at, snapshot,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
			ON CONFLICT (network, dex, position_id, block_number)
			DO UPDATE SET
				run_id = EXCLUDED.run_id,
				liquidity = EXCLUDED.liquidity,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				total_value_usd = EXCLUDED.total_value_usd,
				total_fees_usd = EXCLUDED.total_fees_usd,
				in_range = EXCLUDED.in_range,
				read_at = EXCLUDED.read_at,
				snapshot = EXCLUDED.snapshot,
				updated_at = now()
		`,
			snap.Network,
			snap.Dex,
			int64(snap.PositionID),
			int64(snap.BlockNumber),
			snap.Audit.RunID,
			snap.PoolAddress,
			snap.Token0.Address,
			snap.Token1.Address,
			snap.Token0.Symbol,
			snap.Token1.Symbol,
			int32(snap.FeeRaw),
			snap.TickLower,
			snap.TickUpper,
			snap.LiquidityRaw,
			snap.Amount0,
			snap.Amount1,
			snap.TotalValueUSD,
			snap.TotalFeesUSD,
			snap.InRange,
			snap.ReadAt,
			doc,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, snap := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert snapshot %d: %w", snap.PositionID, err)
		}
	}
	return nil
}

// LoadState returns the last processed owner index for a scan name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM scan_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts the last processed owner index for a scan name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(last))
	return err
}
