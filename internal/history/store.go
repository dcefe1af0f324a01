package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"momentumwatch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sightings (
    symbol       TEXT PRIMARY KEY,
    first_seen   TIMESTAMPTZ NOT NULL,
    last_seen    TIMESTAMPTZ NOT NULL,
    scanners     TEXT NOT NULL DEFAULT '',
    hit_count    INTEGER NOT NULL DEFAULT 0,
    last_price   DOUBLE PRECISION,
    change_pct   DOUBLE PRECISION,
    rvol         DOUBLE PRECISION,
    float_shares DOUBLE PRECISION,
    catalyst     TEXT,
    name         TEXT,
    sector       TEXT
);
CREATE INDEX IF NOT EXISTS idx_sightings_last_seen ON sightings (last_seen DESC);
`

// The conflict branch accumulates hit_count, refreshes last_seen, and merges
// the scanner sets while first_seen keeps its original value. Market fields
// only move forward: a NULL in the new row never clobbers a known value.
const upsertSQL = `
INSERT INTO sightings (symbol, first_seen, last_seen, scanners, hit_count,
    last_price, change_pct, rvol, float_shares, catalyst, name, sector)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (symbol) DO UPDATE SET
    last_seen    = EXCLUDED.last_seen,
    hit_count    = sightings.hit_count + EXCLUDED.hit_count,
    scanners     = (
        SELECT COALESCE(string_agg(DISTINCT s, ',' ORDER BY s), '')
        FROM unnest(string_to_array(sightings.scanners || ',' || EXCLUDED.scanners, ',')) AS s
        WHERE s <> ''
    ),
    last_price   = COALESCE(EXCLUDED.last_price, sightings.last_price),
    change_pct   = COALESCE(EXCLUDED.change_pct, sightings.change_pct),
    rvol         = COALESCE(EXCLUDED.rvol, sightings.rvol),
    float_shares = COALESCE(EXCLUDED.float_shares, sightings.float_shares),
    catalyst     = COALESCE(EXCLUDED.catalyst, sightings.catalyst),
    name         = COALESCE(EXCLUDED.name, sightings.name),
    sector       = COALESCE(EXCLUDED.sector, sightings.sector)
`

const selectCols = `symbol, first_seen, last_seen, scanners, hit_count,
    last_price, change_pct, rvol, float_shares, catalyst, name, sector`

// Stats tracks store counters.
type Stats struct {
	Upserts int64
	Errors  int64
}

// Store persists sightings to the sightings relation.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	upserts atomic.Int64
	errors  atomic.Int64
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: logger.With("component", "history"),
	}
}

// EnsureSchema creates the sightings relation if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Record upserts one sighting.
func (s *Store) Record(ctx context.Context, sighting model.Sighting) error {
	_, err := s.pool.Exec(ctx, upsertSQL, upsertArgs(sighting)...)
	if err != nil {
		s.errors.Add(1)
		return fmt.Errorf("upsert sighting %s: %w", sighting.Symbol, err)
	}
	s.upserts.Add(1)
	return nil
}

// RecordBatch upserts sightings in a single round trip.
func (s *Store) RecordBatch(ctx context.Context, sightings []model.Sighting) error {
	if len(sightings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sighting := range sightings {
		batch.Queue(upsertSQL, upsertArgs(sighting)...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range sightings {
		if _, err := results.Exec(); err != nil {
			s.errors.Add(1)
			return fmt.Errorf("upsert sighting %s: %w", sightings[i].Symbol, err)
		}
	}
	s.upserts.Add(int64(len(sightings)))

	s.logger.Debug("sightings recorded", "count", len(sightings))
	return nil
}

// Alert records a confirmed candidate, satisfying the confirmation
// pipeline's sink interface.
func (s *Store) Alert(ctx context.Context, a model.Alert) error {
	return s.Record(ctx, SightingFromAlert(a))
}

// Recent returns the most recently seen sightings, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.Sighting, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		"SELECT %s FROM sightings ORDER BY last_seen DESC LIMIT $1", selectCols)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sightings: %w", err)
	}
	defer rows.Close()
	return scanSightings(rows)
}

// Today returns sightings last seen since local midnight, newest first.
func (s *Store) Today(ctx context.Context) ([]model.Sighting, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM sightings WHERE last_seen >= $1 ORDER BY last_seen DESC",
		selectCols)

	midnight := startOfDay(time.Now())
	rows, err := s.pool.Query(ctx, query, midnight)
	if err != nil {
		return nil, fmt.Errorf("query today's sightings: %w", err)
	}
	defer rows.Close()
	return scanSightings(rows)
}

// Stats returns a snapshot of store counters.
func (s *Store) Stats() Stats {
	return Stats{
		Upserts: s.upserts.Load(),
		Errors:  s.errors.Load(),
	}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SightingFromCandidate converts one poll-window candidate into a sighting
// row counting a single hit. The scanner set is normalized so the stored
// string stays a sorted set.
func SightingFromCandidate(cand model.Candidate) model.Sighting {
	return model.Sighting{
		Symbol:      cand.Symbol,
		FirstSeen:   cand.FirstSeen,
		LastSeen:    cand.LastSeen,
		Scanners:    normalizeScanners(strings.Join(cand.Scanners, ",")),
		HitCount:    1,
		LastPrice:   cand.LastPrice,
		ChangePct:   cand.ChangePct,
		RVol:        cand.RVol,
		FloatShares: cand.FloatShares,
	}
}

// SightingFromAlert converts a confirmed alert into a sighting row carrying
// its catalyst label.
func SightingFromAlert(a model.Alert) model.Sighting {
	sighting := SightingFromCandidate(a.Candidate)
	if a.Catalyst != "" {
		catalyst := a.Catalyst
		sighting.Catalyst = &catalyst
	}
	return sighting
}

func upsertArgs(s model.Sighting) []any {
	return []any{
		s.Symbol,
		s.FirstSeen,
		s.LastSeen,
		normalizeScanners(s.Scanners),
		s.HitCount,
		s.LastPrice,
		s.ChangePct,
		s.RVol,
		s.FloatShares,
		s.Catalyst,
		s.Name,
		s.Sector,
	}
}

// normalizeScanners dedups and sorts a comma-joined scanner set, dropping
// empty elements.
func normalizeScanners(s string) string {
	parts := lo.Filter(strings.Split(s, ","), func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	parts = lo.Uniq(parts)
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func scanSightings(rows pgx.Rows) ([]model.Sighting, error) {
	var out []model.Sighting
	for rows.Next() {
		var s model.Sighting
		err := rows.Scan(
			&s.Symbol, &s.FirstSeen, &s.LastSeen, &s.Scanners, &s.HitCount,
			&s.LastPrice, &s.ChangePct, &s.RVol, &s.FloatShares,
			&s.Catalyst, &s.Name, &s.Sector,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sightings: %w", err)
	}
	return out, nil
}
