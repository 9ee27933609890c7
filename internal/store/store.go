// Package store keeps the price history observed by the price monitor.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Observation is one price reading for a product page.
type Observation struct {
	ID         uuid.UUID
	URL        string
	Price      float64
	Currency   string
	Strategy   string
	ObservedAt time.Time
	// Alerted is set when a price alert for this reading was delivered.
	Alerted bool
}

// PriceStore records observations and answers "what did we see last".
type PriceStore interface {
	Record(ctx context.Context, o Observation) error
	// Last returns the most recent observation for url, or false when the
	// url has never been observed.
	Last(ctx context.Context, url string) (Observation, bool, error)
	// History returns up to limit observations for url, newest first. A
	// non-positive limit returns all of them.
	History(ctx context.Context, url string, limit int) ([]Observation, error)
}

func prepare(o Observation) Observation {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = time.Now()
	}
	o.ObservedAt = o.ObservedAt.UTC()
	return o
}

// Open selects a backend from the store URL: empty keeps history in memory,
// postgres:// and postgresql:// use Postgres, and sqlite: or a path ending
// in .db uses a local SQLite file. The returned function releases the
// backend.
func Open(ctx context.Context, url string, logger *zap.Logger) (PriceStore, func(), error) {
	noop := func() {}
	switch {
	case url == "":
		logger.Info("No store URL configured, keeping price history in memory.")
		return NewMemory(), noop, nil

	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create connection pool: %w", err)
		}
		s, err := New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, pool.Close, nil

	case strings.HasPrefix(url, "sqlite:"), strings.HasSuffix(url, ".db"):
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite:"), "//")
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
		}
		s, err := NewSQLite(ctx, db, logger)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return s, func() { db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unsupported store url %q", url)
}
