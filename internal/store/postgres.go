package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	pgSchema = `
        CREATE TABLE IF NOT EXISTS price_observations (
            id UUID PRIMARY KEY,
            url TEXT NOT NULL,
            price DOUBLE PRECISION NOT NULL,
            currency TEXT NOT NULL,
            strategy TEXT NOT NULL,
            observed_at TIMESTAMPTZ NOT NULL,
            alerted BOOLEAN NOT NULL DEFAULT FALSE
        );
        ALTER TABLE price_observations ADD COLUMN IF NOT EXISTS alerted BOOLEAN NOT NULL DEFAULT FALSE;
        CREATE INDEX IF NOT EXISTS price_observations_url_idx ON price_observations (url, observed_at DESC);
        CREATE TABLE IF NOT EXISTS price_latest (
            url TEXT PRIMARY KEY,
            observation_id UUID NOT NULL REFERENCES price_observations (id),
            observed_at TIMESTAMPTZ NOT NULL
        );
    `
	pgInsertObservation = `
        INSERT INTO price_observations (id, url, price, currency, strategy, observed_at, alerted)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	pgUpsertLatest = `
        INSERT INTO price_latest (url, observation_id, observed_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (url) DO UPDATE SET
            observation_id = EXCLUDED.observation_id,
            observed_at = EXCLUDED.observed_at
        WHERE price_latest.observed_at <= EXCLUDED.observed_at;
    `
	pgSelectLast = `
        SELECT o.id, o.url, o.price, o.currency, o.strategy, o.observed_at, o.alerted
        FROM price_latest l
        JOIN price_observations o ON o.id = l.observation_id
        WHERE l.url = $1;
    `
	pgSelectHistory = `
        SELECT id, url, price, currency, strategy, observed_at, alerted
        FROM price_observations
        WHERE url = $1
        ORDER BY observed_at DESC
        LIMIT $2;
    `
)

// Store provides a PostgreSQL implementation of PriceStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ PriceStore = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record inserts the observation and advances the latest pointer for its
// url in one transaction.
func (s *Store) Record(ctx context.Context, o Observation) error {
	o = prepare(o)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, pgInsertObservation, o.ID, o.URL, o.Price, o.Currency, o.Strategy, o.ObservedAt, o.Alerted); err != nil {
		return fmt.Errorf("failed to insert observation for %s: %w", o.URL, err)
	}
	if _, err := tx.Exec(ctx, pgUpsertLatest, o.URL, o.ID, o.ObservedAt); err != nil {
		return fmt.Errorf("failed to update latest observation for %s: %w", o.URL, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Last(ctx context.Context, url string) (Observation, bool, error) {
	var o Observation
	err := s.pool.QueryRow(ctx, pgSelectLast, url).
		Scan(&o.ID, &o.URL, &o.Price, &o.Currency, &o.Strategy, &o.ObservedAt, &o.Alerted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Observation{}, false, nil
	}
	if err != nil {
		return Observation{}, false, fmt.Errorf("failed to query latest observation: %w", err)
	}
	return o, true, nil
}

func (s *Store) History(ctx context.Context, url string, limit int) ([]Observation, error) {
	rows, err := s.pool.Query(ctx, pgSelectHistory, url, pgLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.URL, &o.Price, &o.Currency, &o.Strategy, &o.ObservedAt, &o.Alerted); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// pgLimit maps a non-positive limit to NULL, which Postgres reads as LIMIT ALL.
func pgLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
