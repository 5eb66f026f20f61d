// Package database implements the repository contracts on PostgreSQL.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// Connect opens a PostgreSQL connection pool and verifies it.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("connected to postgres",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database))
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS broadcasters (
	canonical_name TEXT PRIMARY KEY,
	known_aliases  TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deal_records (
	id                         UUID PRIMARY KEY,
	broadcaster_canonical_name TEXT NOT NULL REFERENCES broadcasters(canonical_name),
	show_title                 TEXT NOT NULL DEFAULT '',
	deal_type                  TEXT NOT NULL,
	genre                      TEXT NOT NULL DEFAULT '',
	region                     TEXT NOT NULL DEFAULT '',
	deal_date                  TIMESTAMPTZ NOT NULL,
	source_article_id          TEXT NOT NULL,
	extraction_confidence      DOUBLE PRECISION NOT NULL,
	flagged_for_audit          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at                 TIMESTAMPTZ NOT NULL,
	updated_at                 TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deal_records_dedup
	ON deal_records (broadcaster_canonical_name, lower(show_title), deal_type, deal_date);

CREATE INDEX IF NOT EXISTS idx_deal_records_window
	ON deal_records (broadcaster_canonical_name, deal_date);

CREATE TABLE IF NOT EXISTS score_snapshots (
	id                         UUID PRIMARY KEY,
	broadcaster_canonical_name TEXT NOT NULL,
	computed_at                TIMESTAMPTZ NOT NULL,
	window_start               TIMESTAMPTZ NOT NULL,
	window_end                 TIMESTAMPTZ NOT NULL,
	raw_score                  DOUBLE PRECISION NOT NULL,
	grade                      TEXT NOT NULL,
	deal_count_in_window       INTEGER NOT NULL,
	deal_types                 TEXT[] NOT NULL DEFAULT '{}',
	shows                      TEXT[] NOT NULL DEFAULT '{}',
	genres                     TEXT[] NOT NULL DEFAULT '{}',
	regions                    TEXT[] NOT NULL DEFAULT '{}',
	last_activity_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_score_snapshots_broadcaster
	ON score_snapshots (broadcaster_canonical_name, computed_at DESC);
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// storeErr tags a database failure with the repository-unavailable
// sentinel so callers can branch without depending on driver errors.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrRepositoryUnavailable, err)
}
