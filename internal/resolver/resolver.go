package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// StatsRecorder receives resolution outcome counts.
type StatsRecorder interface {
	BroadcasterRegistered()
	AliasLearned()
	AuditFlagged()
	DealUpserted(result string)
}

// NopStats discards all stats.
type NopStats struct{}

func (NopStats) BroadcasterRegistered() {}
func (NopStats) AliasLearned()          {}
func (NopStats) AuditFlagged()          {}
func (NopStats) DealUpserted(string)    {}

// Resolver resolves batches of mentions into canonical deal records.
type Resolver struct {
	registry *Registry
	deals    domain.DealRepository
	cfg      config.ResolutionConfig
	log      logger.Logger
	stats    StatsRecorder
}

// New creates a Resolver.
func New(registry *Registry, deals domain.DealRepository, cfg config.ResolutionConfig, log logger.Logger, stats StatsRecorder) *Resolver {
	if stats == nil {
		stats = NopStats{}
	}
	return &Resolver{registry: registry, deals: deals, cfg: cfg, log: log, stats: stats}
}

// Resolve canonicalizes, clusters, merges, and persists a batch of
// mentions. Mentions from different articles describing the same deal
// (same broadcaster, show, and type, dates within tolerance) collapse into
// one record, inside the batch via clustering and across batches via the
// repository's tolerance-window upsert.
func (r *Resolver) Resolve(ctx context.Context, mentions []domain.DealMention) ([]domain.UpsertOutcome, error) {
	if len(mentions) == 0 {
		return []domain.UpsertOutcome{}, nil
	}

	canonical := make([]resolvedMention, 0, len(mentions))
	for _, m := range mentions {
		if m.DateFromFallback {
			m.Confidence -= r.cfg.DateFallbackPenalty
			if m.Confidence < 0 {
				m.Confidence = 0
			}
		}

		res, err := r.registry.Resolve(ctx, m.BroadcasterNameRaw)
		if err != nil {
			return nil, fmt.Errorf("resolve broadcaster for mention from article %s: %w", m.SourceArticleID, err)
		}
		if res.Created {
			r.stats.BroadcasterRegistered()
		}
		if res.AliasAdded {
			r.stats.AliasLearned()
		}
		canonical = append(canonical, resolvedMention{mention: m, canonicalName: res.CanonicalName})
	}

	tolerance := time.Duration(r.cfg.DateToleranceDays) * 24 * time.Hour
	clusters := cluster(canonical, tolerance)

	outcomes := make([]domain.UpsertOutcome, 0, len(clusters))
	for _, c := range clusters {
		record, flagged := r.merge(c)
		if flagged {
			r.stats.AuditFlagged()
		}

		result, err := r.deals.UpsertDealRecord(ctx, &record, tolerance)
		if err != nil {
			return nil, fmt.Errorf("upsert deal %s: %w", record.Key(), err)
		}
		r.stats.DealUpserted(string(result))
		outcomes = append(outcomes, domain.UpsertOutcome{Record: record, Result: result})
	}
	return outcomes, nil
}

type resolvedMention struct {
	mention       domain.DealMention
	canonicalName string
}

// cluster groups mentions that describe the same deal: identical
// broadcaster, show title, and deal type, with deal dates within tolerance
// of the cluster's earliest date. Input order does not affect the result;
// mentions are sorted before grouping.
func cluster(ms []resolvedMention, tolerance time.Duration) [][]resolvedMention {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.canonicalName != b.canonicalName {
			return a.canonicalName < b.canonicalName
		}
		if a.mention.DealType != b.mention.DealType {
			return a.mention.DealType < b.mention.DealType
		}
		if ta, tb := titleKey(a.mention.ShowTitle), titleKey(b.mention.ShowTitle); ta != tb {
			return ta < tb
		}
		if !a.mention.DealDate.Equal(b.mention.DealDate) {
			return a.mention.DealDate.Before(b.mention.DealDate)
		}
		return a.mention.ArticlePublishedAt.Before(b.mention.ArticlePublishedAt)
	})

	var clusters [][]resolvedMention
	for _, m := range ms {
		n := len(clusters)
		if n > 0 && sameDeal(clusters[n-1][0], m, tolerance) {
			clusters[n-1] = append(clusters[n-1], m)
			continue
		}
		clusters = append(clusters, []resolvedMention{m})
	}
	return clusters
}

func sameDeal(seed, m resolvedMention, tolerance time.Duration) bool {
	if seed.canonicalName != m.canonicalName ||
		seed.mention.DealType != m.mention.DealType ||
		titleKey(seed.mention.ShowTitle) != titleKey(m.mention.ShowTitle) {
		return false
	}
	gap := m.mention.DealDate.Sub(seed.mention.DealDate)
	if gap < 0 {
		gap = -gap
	}
	return gap <= tolerance
}

func titleKey(title string) string {
	return NormalizeName(title)
}

// merge combines a cluster field by field: each attribute comes from the
// mention most confident about that attribute. When a losing value differs
// from the winner and its confidence sits within the audit margin, the
// record is flagged for review instead of silently picking a side.
func (r *Resolver) merge(cluster []resolvedMention) (domain.DealRecord, bool) {
	seed := cluster[0]
	now := time.Now().UTC()
	record := domain.DealRecord{
		ID:                       uuid.NewString(),
		BroadcasterCanonicalName: seed.canonicalName,
		DealType:                 seed.mention.DealType,
		SourceArticleID:          seed.mention.SourceArticleID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	flagged := false
	pick := func(value func(domain.DealMention) string, conf func(domain.DealMention) float64) string {
		winner, winnerConf := "", -1.0
		for _, c := range cluster {
			v := value(c.mention)
			if v == "" {
				continue
			}
			if conf(c.mention) > winnerConf {
				winner, winnerConf = v, conf(c.mention)
			}
		}
		for _, c := range cluster {
			v := value(c.mention)
			if v == "" || v == winner {
				continue
			}
			if winnerConf-conf(c.mention) <= r.cfg.AuditMargin {
				flagged = true
				r.log.Warn("conflicting attribute within audit margin",
					logger.String("broadcaster", seed.canonicalName),
					logger.String("kept", winner),
					logger.String("dropped", v))
			}
		}
		return winner
	}

	record.ShowTitle = pick(
		func(m domain.DealMention) string { return m.ShowTitle },
		func(m domain.DealMention) float64 { return m.Fields.ShowTitle })
	record.Genre = pick(
		func(m domain.DealMention) string { return m.Genre },
		func(m domain.DealMention) float64 { return m.Fields.Genre })
	record.Region = pick(
		func(m domain.DealMention) string { return m.Region },
		func(m domain.DealMention) float64 { return m.Fields.Region })

	// Date: most confident wins, which prefers parsed DATE spans over
	// published_at fallbacks. Ties go to the earliest article.
	bestDate, bestConf := seed.mention.DealDate, seed.mention.Fields.Date
	bestPublished := seed.mention.ArticlePublishedAt
	source, sourceConf := seed.mention.SourceArticleID, seed.mention.Confidence
	for _, c := range cluster[1:] {
		m := c.mention
		if m.Fields.Date > bestConf ||
			(m.Fields.Date == bestConf && m.ArticlePublishedAt.Before(bestPublished)) {
			bestDate, bestConf, bestPublished = m.DealDate, m.Fields.Date, m.ArticlePublishedAt
		}
		if m.Confidence > sourceConf {
			source, sourceConf = m.SourceArticleID, m.Confidence
		}
	}
	record.DealDate = bestDate
	record.SourceArticleID = source
	record.ExtractionConfidence = sourceConf
	record.FlaggedForAudit = flagged
	return record, flagged
}
