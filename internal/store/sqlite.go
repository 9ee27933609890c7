package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteSchema = `
        CREATE TABLE IF NOT EXISTS price_observations (
            id TEXT PRIMARY KEY,
            url TEXT NOT NULL,
            price REAL NOT NULL,
            currency TEXT NOT NULL,
            strategy TEXT NOT NULL,
            observed_at INTEGER NOT NULL,
            alerted INTEGER NOT NULL DEFAULT 0
        );
        CREATE INDEX IF NOT EXISTS price_observations_url_idx ON price_observations (url, observed_at DESC);
    `
	sqliteInsert = `
        INSERT INTO price_observations (id, url, price, currency, strategy, observed_at, alerted)
        VALUES (?, ?, ?, ?, ?, ?, ?);
    `
	sqliteSelect = `
        SELECT id, url, price, currency, strategy, observed_at, alerted
        FROM price_observations
        WHERE url = ?
        ORDER BY observed_at DESC, rowid DESC
        LIMIT ?;
    `
)

// SQLiteStore keeps price history in a local SQLite database. Timestamps
// are stored as Unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ PriceStore = (*SQLiteStore)(nil)

// NewSQLite creates the schema on db and returns a store over it.
func NewSQLite(ctx context.Context, db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	// A single connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, log: logger.Named("store")}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, o Observation) error {
	o = prepare(o)
	_, err := s.db.ExecContext(ctx, sqliteInsert,
		o.ID.String(), o.URL, o.Price, o.Currency, o.Strategy, o.ObservedAt.UnixMilli(), o.Alerted)
	if err != nil {
		return fmt.Errorf("failed to insert observation for %s: %w", o.URL, err)
	}
	return nil
}

func (s *SQLiteStore) Last(ctx context.Context, url string) (Observation, bool, error) {
	obs, err := s.History(ctx, url, 1)
	if err != nil {
		return Observation{}, false, err
	}
	if len(obs) == 0 {
		return Observation{}, false, nil
	}
	return obs[0], true, nil
}

func (s *SQLiteStore) History(ctx context.Context, url string, limit int) ([]Observation, error) {
	if limit <= 0 {
		// SQLite treats a negative limit as no limit.
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelect, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			o      Observation
			id     string
			millis int64
		)
		if err := rows.Scan(&id, &o.URL, &o.Price, &o.Currency, &o.Strategy, &millis, &o.Alerted); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		if o.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt observation id %q: %w", id, err)
		}
		o.ObservedAt = time.UnixMilli(millis).UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
