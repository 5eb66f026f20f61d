package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// DealStore implements domain.DealRepository.
type DealStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewDealStore creates a DealStore.
func NewDealStore(db *sqlx.DB, log logger.Logger) *DealStore {
	return &DealStore{db: db, log: log}
}

// UpsertDealRecord persists a record idempotently. A row with the same
// broadcaster, show title (case-insensitive), and deal type whose deal_date
// lies within the tolerance window counts as the same deal; its attributes
// only change when the candidate is strictly more confident. The row is
// locked for the duration so concurrent workers serialize per deal.
func (s *DealStore) UpsertDealRecord(ctx context.Context, record *domain.DealRecord, dateTolerance time.Duration) (domain.UpsertResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", storeErr("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := s.upsertInTx(ctx, tx, record, dateTolerance)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", storeErr("commit upsert", err)
	}
	return result, nil
}

func (s *DealStore) upsertInTx(ctx context.Context, tx *sqlx.Tx, record *domain.DealRecord, dateTolerance time.Duration) (domain.UpsertResult, error) {
	const matchQuery = `
		SELECT id, broadcaster_canonical_name, show_title, deal_type, genre, region,
		       deal_date, source_article_id, extraction_confidence, flagged_for_audit,
		       created_at, updated_at
		FROM deal_records
		WHERE broadcaster_canonical_name = $1
		  AND lower(show_title) = lower($2)
		  AND deal_type = $3
		  AND deal_date BETWEEN $4 AND $5
		ORDER BY deal_date, id
		LIMIT 1
		FOR UPDATE`

	var existing domain.DealRecord
	err := tx.GetContext(ctx, &existing, matchQuery,
		record.BroadcasterCanonicalName,
		record.ShowTitle,
		record.DealType,
		record.DealDate.Add(-dateTolerance),
		record.DealDate.Add(dateTolerance),
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.insert(ctx, tx, record)
	case err != nil:
		return "", storeErr("match deal record", err)
	}

	// Report the surviving row back to the caller.
	defer func() { *record = existing }()

	if record.ExtractionConfidence <= existing.ExtractionConfidence {
		return domain.UpsertUnchanged, nil
	}

	const update = `
		UPDATE deal_records
		SET genre = $2, region = $3, deal_date = $4, source_article_id = $5,
		    extraction_confidence = $6, flagged_for_audit = $7, updated_at = $8
		WHERE id = $1`

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, update,
		existing.ID, record.Genre, record.Region, record.DealDate,
		record.SourceArticleID, record.ExtractionConfidence, record.FlaggedForAudit, now,
	); err != nil {
		return "", storeErr("update deal record", err)
	}

	existing.Genre = record.Genre
	existing.Region = record.Region
	existing.DealDate = record.DealDate
	existing.SourceArticleID = record.SourceArticleID
	existing.ExtractionConfidence = record.ExtractionConfidence
	existing.FlaggedForAudit = record.FlaggedForAudit
	existing.UpdatedAt = now

	s.log.Debug("deal record improved",
		logger.String("id", existing.ID),
		logger.String("key", existing.Key().String()),
		logger.Float64("confidence", existing.ExtractionConfidence))
	return domain.UpsertUpdated, nil
}

func (s *DealStore) insert(ctx context.Context, tx *sqlx.Tx, record *domain.DealRecord) (domain.UpsertResult, error) {
	const query = `
		INSERT INTO deal_records (
			id, broadcaster_canonical_name, show_title, deal_type, genre, region,
			deal_date, source_article_id, extraction_confidence, flagged_for_audit,
			created_at, updated_at
		) VALUES (
			:id, :broadcaster_canonical_name, :show_title, :deal_type, :genre, :region,
			:deal_date, :source_article_id, :extraction_confidence, :flagged_for_audit,
			:created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
		return "", storeErr("insert deal record", err)
	}
	return domain.UpsertCreated, nil
}

// QueryDealRecords returns a broadcaster's deals with deal_date in
// [from, to], ordered for deterministic scoring.
func (s *DealStore) QueryDealRecords(ctx context.Context, broadcaster string, from, to time.Time) ([]domain.DealRecord, error) {
	const query = `
		SELECT id, broadcaster_canonical_name, show_title, deal_type, genre, region,
		       deal_date, source_article_id, extraction_confidence, flagged_for_audit,
		       created_at, updated_at
		FROM deal_records
		WHERE broadcaster_canonical_name = $1
		  AND deal_date BETWEEN $2 AND $3
		ORDER BY deal_date, id`

	var out []domain.DealRecord
	if err := s.db.SelectContext(ctx, &out, query, broadcaster, from, to); err != nil {
		return nil, storeErr(fmt.Sprintf("query deals for %q", broadcaster), err)
	}
	return out, nil
}
