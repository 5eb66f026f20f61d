package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// BroadcasterStore implements domain.BroadcasterRepository.
type BroadcasterStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewBroadcasterStore creates a BroadcasterStore.
func NewBroadcasterStore(db *sqlx.DB, log logger.Logger) *BroadcasterStore {
	return &BroadcasterStore{db: db, log: log}
}

type broadcasterRow struct {
	CanonicalName string         `db:"canonical_name"`
	KnownAliases  pq.StringArray `db:"known_aliases"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r broadcasterRow) toDomain() domain.Broadcaster {
	return domain.Broadcaster{
		CanonicalName: r.CanonicalName,
		KnownAliases:  []string(r.KnownAliases),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// FindBroadcaster looks a broadcaster up by canonical name or any alias.
func (s *BroadcasterStore) FindBroadcaster(ctx context.Context, canonicalOrAlias string) (*domain.Broadcaster, error) {
	const query = `
		SELECT canonical_name, known_aliases, created_at, updated_at
		FROM broadcasters
		WHERE canonical_name = $1 OR $1 = ANY(known_aliases)
		LIMIT 1`

	var row broadcasterRow
	if err := s.db.GetContext(ctx, &row, query, canonicalOrAlias); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBroadcasterNotFound
		}
		return nil, storeErr("find broadcaster", err)
	}
	b := row.toDomain()
	return &b, nil
}

// SaveBroadcaster inserts or replaces the broadcaster's alias set.
func (s *BroadcasterStore) SaveBroadcaster(ctx context.Context, b *domain.Broadcaster) error {
	const query = `
		INSERT INTO broadcasters (canonical_name, known_aliases, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (canonical_name) DO UPDATE
		SET known_aliases = EXCLUDED.known_aliases,
		    updated_at    = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		b.CanonicalName, pq.StringArray(b.KnownAliases), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return storeErr("save broadcaster", err)
	}
	return nil
}

// ListBroadcasters returns the whole registry, ordered by canonical name.
func (s *BroadcasterStore) ListBroadcasters(ctx context.Context) ([]domain.Broadcaster, error) {
	const query = `
		SELECT canonical_name, known_aliases, created_at, updated_at
		FROM broadcasters
		ORDER BY canonical_name`

	var rows []broadcasterRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, storeErr("list broadcasters", err)
	}

	out := make([]domain.Broadcaster, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
