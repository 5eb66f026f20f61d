package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

type memDeals struct {
	mu      sync.Mutex
	records []domain.DealRecord
}

func (d *memDeals) UpsertDealRecord(_ context.Context, rec *domain.DealRecord, tolerance time.Duration) (domain.UpsertResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.records {
		e := &d.records[i]
		if e.BroadcasterCanonicalName != rec.BroadcasterCanonicalName ||
			e.DealType != rec.DealType ||
			NormalizeName(e.ShowTitle) != NormalizeName(rec.ShowTitle) {
			continue
		}
		gap := rec.DealDate.Sub(e.DealDate)
		if gap < 0 {
			gap = -gap
		}
		if gap > tolerance {
			continue
		}
		if rec.ExtractionConfidence > e.ExtractionConfidence {
			e.ExtractionConfidence = rec.ExtractionConfidence
			e.Genre = rec.Genre
			e.Region = rec.Region
			e.UpdatedAt = time.Now().UTC()
			return domain.UpsertUpdated, nil
		}
		return domain.UpsertUnchanged, nil
	}
	d.records = append(d.records, *rec)
	return domain.UpsertCreated, nil
}

func (d *memDeals) QueryDealRecords(_ context.Context, broadcaster string, from, to time.Time) ([]domain.DealRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DealRecord
	for _, r := range d.records {
		if r.BroadcasterCanonicalName == broadcaster && !r.DealDate.Before(from) && !r.DealDate.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type resolverStats struct {
	registered, aliases, audits int
	upserts                     map[string]int
}

func newResolverStats() *resolverStats { return &resolverStats{upserts: map[string]int{}} }

func (s *resolverStats) BroadcasterRegistered()     { s.registered++ }
func (s *resolverStats) AliasLearned()              { s.aliases++ }
func (s *resolverStats) AuditFlagged()              { s.audits++ }
func (s *resolverStats) DealUpserted(result string) { s.upserts[result]++ }

func newTestResolver(t *testing.T, deals domain.DealRepository, stats StatsRecorder) *Resolver {
	t.Helper()
	repo := newMemBroadcasters(seedNetflix())
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(reg, deals, testResolutionConfig(), logger.Nop(), stats)
}

func mention(broadcaster, show string, dealType domain.DealType, date time.Time, conf float64) domain.DealMention {
	return domain.DealMention{
		BroadcasterNameRaw: broadcaster,
		ShowTitle:          show,
		DealType:           dealType,
		DealDate:           date,
		Confidence:         conf,
		Fields: domain.FieldConfidence{
			Broadcaster: conf,
			ShowTitle:   conf,
			DealType:    conf,
			Date:        conf,
		},
		SourceArticleID:    "art-" + show,
		ArticlePublishedAt: date,
	}
}

func TestResolveMergesMentionsWithinDateTolerance(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day4 := day1.AddDate(0, 0, 3)

	m1 := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day1, 0.9)
	m1.SourceArticleID = "art-1"
	m2 := mention("netflix", "Paper Skies", domain.DealTypeRenewal, day4, 0.7)
	m2.SourceArticleID = "art-2"

	deals := &memDeals{}
	stats := newResolverStats()
	r := newTestResolver(t, deals, stats)

	outcomes, err := r.Resolve(context.Background(), []domain.DealMention{m2, m1})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d records, want 1 merged", len(outcomes))
	}

	rec := outcomes[0].Record
	if rec.BroadcasterCanonicalName != "Netflix" {
		t.Errorf("broadcaster = %q, want Netflix", rec.BroadcasterCanonicalName)
	}
	// art-1's date carries the higher confidence.
	if !rec.DealDate.Equal(day1) {
		t.Errorf("deal date = %v, want %v", rec.DealDate, day1)
	}
	if rec.SourceArticleID != "art-1" {
		t.Errorf("source article = %q, want the more confident art-1", rec.SourceArticleID)
	}
	if stats.upserts[string(domain.UpsertCreated)] != 1 {
		t.Errorf("upserts = %v, want one created", stats.upserts)
	}
}

func TestResolveKeepsDistinctDealsApart(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	batch := []domain.DealMention{
		mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.9),
		mention("Netflix", "Iron Coast", domain.DealTypeRenewal, day, 0.9),
		mention("Netflix", "Paper Skies", domain.DealTypeAcquisition, day, 0.9),
		mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day.AddDate(0, 0, 30), 0.9),
	}

	deals := &memDeals{}
	r := newTestResolver(t, deals, newResolverStats())

	outcomes, err := r.Resolve(context.Background(), batch)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) != 4 {
		t.Fatalf("got %d records, want 4 distinct deals", len(outcomes))
	}
}

func TestResolveFlagsConflictWithinAuditMargin(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	m1 := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.9)
	m1.Genre = "drama"
	m1.Fields.Genre = 0.8
	m2 := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.85)
	m2.Genre = "thriller"
	m2.Fields.Genre = 0.75

	deals := &memDeals{}
	stats := newResolverStats()
	r := newTestResolver(t, deals, stats)

	outcomes, err := r.Resolve(context.Background(), []domain.DealMention{m1, m2})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d records, want 1", len(outcomes))
	}
	rec := outcomes[0].Record
	if rec.Genre != "drama" {
		t.Errorf("genre = %q, want the more confident drama", rec.Genre)
	}
	if !rec.FlaggedForAudit {
		t.Error("close conflicting genres must flag the record for audit")
	}
	if stats.audits != 1 {
		t.Errorf("audits = %d, want 1", stats.audits)
	}
}

func TestResolveClearWinnerDoesNotFlag(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	m1 := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.9)
	m1.Genre = "drama"
	m1.Fields.Genre = 0.9
	m2 := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.6)
	m2.Genre = "thriller"
	m2.Fields.Genre = 0.3

	r := newTestResolver(t, &memDeals{}, newResolverStats())
	outcomes, err := r.Resolve(context.Background(), []domain.DealMention{m1, m2})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if outcomes[0].Record.FlaggedForAudit {
		t.Error("a clear winner should not flag the record")
	}
}

func TestResolveAppliesDateFallbackPenalty(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	m := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.8)
	m.DateFromFallback = true

	r := newTestResolver(t, &memDeals{}, newResolverStats())
	outcomes, err := r.Resolve(context.Background(), []domain.DealMention{m})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	got := outcomes[0].Record.ExtractionConfidence
	want := 0.8 - testResolutionConfig().DateFallbackPenalty
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v after fallback penalty", got, want)
	}
}

func TestResolveIsIdempotentAcrossBatches(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	m := mention("Netflix", "Paper Skies", domain.DealTypeRenewal, day, 0.9)

	deals := &memDeals{}
	stats := newResolverStats()
	r := newTestResolver(t, deals, stats)

	if _, err := r.Resolve(context.Background(), []domain.DealMention{m}); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	// Same deal re-reported two days later.
	m2 := m
	m2.DealDate = day.AddDate(0, 0, 2)
	m2.SourceArticleID = "art-later"
	if _, err := r.Resolve(context.Background(), []domain.DealMention{m2}); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if len(deals.records) != 1 {
		t.Fatalf("got %d persisted records, want 1", len(deals.records))
	}
	if stats.upserts[string(domain.UpsertUnchanged)] != 1 {
		t.Errorf("upserts = %v, want one unchanged on the re-report", stats.upserts)
	}
}
