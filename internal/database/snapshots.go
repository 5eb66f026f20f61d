package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// SnapshotStore implements domain.SnapshotRepository. Snapshots are
// append-only; there is no update path.
type SnapshotStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewSnapshotStore creates a SnapshotStore.
func NewSnapshotStore(db *sqlx.DB, log logger.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, log: log}
}

type snapshotRow struct {
	ID                       string         `db:"id"`
	BroadcasterCanonicalName string         `db:"broadcaster_canonical_name"`
	ComputedAt               time.Time      `db:"computed_at"`
	WindowStart              time.Time      `db:"window_start"`
	WindowEnd                time.Time      `db:"window_end"`
	RawScore                 float64        `db:"raw_score"`
	Grade                    string         `db:"grade"`
	DealCountInWindow        int            `db:"deal_count_in_window"`
	DealTypes                pq.StringArray `db:"deal_types"`
	Shows                    pq.StringArray `db:"shows"`
	Genres                   pq.StringArray `db:"genres"`
	Regions                  pq.StringArray `db:"regions"`
	LastActivityAt           *time.Time     `db:"last_activity_at"`
}

func (r snapshotRow) toDomain() domain.ScoreSnapshot {
	return domain.ScoreSnapshot{
		ID:                       r.ID,
		BroadcasterCanonicalName: r.BroadcasterCanonicalName,
		ComputedAt:               r.ComputedAt,
		WindowStart:              r.WindowStart,
		WindowEnd:                r.WindowEnd,
		RawScore:                 r.RawScore,
		Grade:                    domain.Grade(r.Grade),
		DealCountInWindow:        r.DealCountInWindow,
		DealTypes:                []string(r.DealTypes),
		Shows:                    []string(r.Shows),
		Genres:                   []string(r.Genres),
		Regions:                  []string(r.Regions),
		LastActivityAt:           r.LastActivityAt,
	}
}

// AppendScoreSnapshot persists one grading result.
func (s *SnapshotStore) AppendScoreSnapshot(ctx context.Context, snapshot *domain.ScoreSnapshot) error {
	const query = `
		INSERT INTO score_snapshots (
			id, broadcaster_canonical_name, computed_at, window_start, window_end,
			raw_score, grade, deal_count_in_window,
			deal_types, shows, genres, regions, last_activity_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.BroadcasterCanonicalName,
		snapshot.ComputedAt,
		snapshot.WindowStart,
		snapshot.WindowEnd,
		snapshot.RawScore,
		string(snapshot.Grade),
		snapshot.DealCountInWindow,
		pq.StringArray(snapshot.DealTypes),
		pq.StringArray(snapshot.Shows),
		pq.StringArray(snapshot.Genres),
		pq.StringArray(snapshot.Regions),
		snapshot.LastActivityAt,
	)
	if err != nil {
		return storeErr("append snapshot", err)
	}
	return nil
}

// QueryScoreSnapshots returns a broadcaster's snapshots computed within
// [from, to], most recent first.
func (s *SnapshotStore) QueryScoreSnapshots(ctx context.Context, broadcaster string, from, to time.Time) ([]domain.ScoreSnapshot, error) {
	const query = `
		SELECT id, broadcaster_canonical_name, computed_at, window_start, window_end,
		       raw_score, grade, deal_count_in_window,
		       deal_types, shows, genres, regions, last_activity_at
		FROM score_snapshots
		WHERE broadcaster_canonical_name = $1
		  AND computed_at BETWEEN $2 AND $3
		ORDER BY computed_at DESC`

	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, query, broadcaster, from, to); err != nil {
		return nil, storeErr("query snapshots", err)
	}

	out := make([]domain.ScoreSnapshot, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
