package domain

import (
	"context"
	"time"
)

// BroadcasterRepository is the persistence contract for the broadcaster
// registry. FindBroadcaster matches canonical names and aliases.
type BroadcasterRepository interface {
	FindBroadcaster(ctx context.Context, canonicalOrAlias string) (*Broadcaster, error)
	SaveBroadcaster(ctx context.Context, b *Broadcaster) error
	ListBroadcasters(ctx context.Context) ([]Broadcaster, error)
}

// DealRepository is the persistence contract for canonical deal records.
//
// UpsertDealRecord treats an existing record with the same (broadcaster,
// show_title, deal_type) whose deal_date lies within dateTolerance of the
// candidate as the same record: the call is idempotent and reports whether
// it created, updated, or left the record unchanged. Attributes only update
// when the candidate's extraction confidence strictly improves.
type DealRepository interface {
	UpsertDealRecord(ctx context.Context, record *DealRecord, dateTolerance time.Duration) (UpsertResult, error)
	QueryDealRecords(ctx context.Context, broadcaster string, from, to time.Time) ([]DealRecord, error)
}

// SnapshotRepository is the append-only store of grading results; the
// dashboard reads it through the query side.
type SnapshotRepository interface {
	AppendScoreSnapshot(ctx context.Context, snapshot *ScoreSnapshot) error
	QueryScoreSnapshots(ctx context.Context, broadcaster string, from, to time.Time) ([]ScoreSnapshot, error)
}
