// Package snapshotstore persists and retrieves cap table snapshots
// from Postgres.
package snapshotstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// Config holds the store's connection settings. The caller decides
// where the DSN comes from (env, scenario file, flags); the store does
// not read the environment itself.
type Config struct {
	DSN string
}

// Schema assumption, applied out-of-band via migrations:
//
// CREATE TABLE IF NOT EXISTS cap_table_snapshots (
//   id TEXT PRIMARY KEY,
//   common_shares NUMERIC NOT NULL,
//   created_at TIMESTAMPTZ NOT NULL
// );
// CREATE TABLE IF NOT EXISTS preferred_series (
//   snapshot_id TEXT REFERENCES cap_table_snapshots(id),
//   name TEXT NOT NULL,
//   shares NUMERIC NOT NULL,
//   price_per_share NUMERIC NOT NULL,
//   liquidation_multiple NUMERIC NOT NULL,
//   seniority_rank INT NOT NULL,
//   pref_type TEXT NOT NULL,
//   participation_cap NUMERIC,
//   conversion_ratio NUMERIC
// );
// CREATE TABLE IF NOT EXISTS option_grants (
//   snapshot_id TEXT REFERENCES cap_table_snapshots(id),
//   pool_name TEXT NOT NULL,
//   options NUMERIC NOT NULL,
//   strike_price NUMERIC NOT NULL,
//   vested NUMERIC NOT NULL
// );

// SnapshotLoader materializes a cap table snapshot from storage. The
// analysis core never touches storage itself; callers hand it a
// snapshot a loader produced.
type SnapshotLoader interface {
	Load(ctx context.Context, id string) (captable.CapTableSnapshot, error)
}

// SnapshotStore persists cap table snapshots for later retrieval. Each
// store owns its own connection pool; there is no package-level pool,
// so independent valuations can open and close stores without sharing
// state.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ SnapshotLoader = (*SnapshotStore)(nil)

// Open connects to Postgres and returns a store owning the resulting
// pool. Callers must Close the store when done.
func Open(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("snapshotstore: no DSN configured")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: invalid DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: failed to connect: %w", err)
	}
	return &SnapshotStore{pool: pool}, nil
}

// Close releases the store's connection pool.
func (s *SnapshotStore) Close() {
	s.pool.Close()
}

// Save upserts a snapshot and replaces its child rows.
func (s *SnapshotStore) Save(ctx context.Context, snap captable.CapTableSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cap_table_snapshots (id, common_shares, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET common_shares = EXCLUDED.common_shares, created_at = EXCLUDED.created_at
	`, snap.ID, snap.Common.Shares.String(), ts)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM preferred_series WHERE snapshot_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("failed to clear preferred series: %w", err)
	}
	for _, series := range snap.Preferred {
		_, err = tx.Exec(ctx, `
			INSERT INTO preferred_series
				(snapshot_id, name, shares, price_per_share, liquidation_multiple, seniority_rank, pref_type, participation_cap, conversion_ratio)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, snap.ID, series.Name, series.Shares.String(), series.PricePerShare.String(), series.LiquidationMultiple.String(),
			series.SeniorityRank, string(series.Type), series.ParticipationCap.String(), series.ConversionRatio.String())
		if err != nil {
			return fmt.Errorf("failed to save preferred series %s: %w", series.Name, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM option_grants WHERE snapshot_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("failed to clear option grants: %w", err)
	}
	for _, grant := range snap.Options {
		_, err = tx.Exec(ctx, `
			INSERT INTO option_grants (snapshot_id, pool_name, options, strike_price, vested)
			VALUES ($1, $2, $3, $4, $5)
		`, snap.ID, grant.PoolName, grant.Options.String(), grant.StrikePrice.String(), grant.Vested.String())
		if err != nil {
			return fmt.Errorf("failed to save option grant %s: %w", grant.PoolName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot and its preferred series and option grants.
func (s *SnapshotStore) Load(ctx context.Context, id string) (captable.CapTableSnapshot, error) {
	var snap captable.CapTableSnapshot
	var commonShares string
	err := s.pool.QueryRow(ctx, `SELECT id, common_shares, created_at FROM cap_table_snapshots WHERE id = $1`, id).
		Scan(&snap.ID, &commonShares, &snap.Timestamp)
	if err != nil {
		if err == pgx.ErrNoRows {
			return captable.CapTableSnapshot{}, fmt.Errorf("no snapshot found for id %s", id)
		}
		return captable.CapTableSnapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.Common.Shares, err = decimal.NewFromString(commonShares)
	if err != nil {
		return captable.CapTableSnapshot{}, fmt.Errorf("failed to parse common shares: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, shares, price_per_share, liquidation_multiple, seniority_rank, pref_type, participation_cap, conversion_ratio
		FROM preferred_series WHERE snapshot_id = $1 ORDER BY seniority_rank
	`, id)
	if err != nil {
		return captable.CapTableSnapshot{}, fmt.Errorf("failed to load preferred series: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var series captable.PreferredShareClass
		var shares, price, multiple, cap, ratio string
		var prefType string
		if err := rows.Scan(&series.Name, &shares, &price, &multiple, &series.SeniorityRank, &prefType, &cap, &ratio); err != nil {
			return captable.CapTableSnapshot{}, fmt.Errorf("failed to scan preferred series: %w", err)
		}
		series.Type = captable.PreferenceType(prefType)
		series.Shares = mustDecimal(shares)
		series.PricePerShare = mustDecimal(price)
		series.LiquidationMultiple = mustDecimal(multiple)
		series.ParticipationCap = mustDecimal(cap)
		series.ConversionRatio = mustDecimal(ratio)
		snap.Preferred = append(snap.Preferred, series)
	}
	if err := rows.Err(); err != nil {
		return captable.CapTableSnapshot{}, fmt.Errorf("failed reading preferred series rows: %w", err)
	}

	optRows, err := s.pool.Query(ctx, `
		SELECT pool_name, options, strike_price, vested FROM option_grants WHERE snapshot_id = $1
	`, id)
	if err != nil {
		return captable.CapTableSnapshot{}, fmt.Errorf("failed to load option grants: %w", err)
	}
	defer optRows.Close()
	for optRows.Next() {
		var grant captable.OptionGrant
		var options, strike, vested string
		if err := optRows.Scan(&grant.PoolName, &options, &strike, &vested); err != nil {
			return captable.CapTableSnapshot{}, fmt.Errorf("failed to scan option grant: %w", err)
		}
		grant.Options = mustDecimal(options)
		grant.StrikePrice = mustDecimal(strike)
		grant.Vested = mustDecimal(vested)
		snap.Options = append(snap.Options, grant)
	}
	if err := optRows.Err(); err != nil {
		return captable.CapTableSnapshot{}, fmt.Errorf("failed reading option grant rows: %w", err)
	}

	return snap, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
