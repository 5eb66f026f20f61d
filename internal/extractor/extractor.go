// Package extractor turns raw article text into deal mentions. It combines
// two signal sources: a named-entity recognizer for organizations, titles,
// and dates, and the keyword lexicon for deal types, genres, and regions.
// When the recognizer is down the extractor degrades to lexicon-only
// tagging instead of failing the batch.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/lexicon"
	"github.com/screenwire/bars/internal/logger"
	"github.com/screenwire/bars/internal/nerclient"
)

// Discard reasons reported to the stats recorder.
const (
	DiscardStoplisted    = "stoplisted_org"
	DiscardNotRecognized = "org_not_in_lexicon"
	DiscardNoDealContext = "no_deal_context"
	DiscardLowConfidence = "low_confidence"
)

// StatsRecorder receives extraction outcome counts. The telemetry provider
// implements it; tests pass a stub.
type StatsRecorder interface {
	MentionExtracted(dealType string)
	MentionDiscarded(reason string)
	RecognizerFallback()
}

// NopStats discards all stats.
type NopStats struct{}

func (NopStats) MentionExtracted(string) {}
func (NopStats) MentionDiscarded(string) {}
func (NopStats) RecognizerFallback()     {}

// Extractor extracts deal mentions from articles. Safe for concurrent use.
type Extractor struct {
	cfg    config.ExtractionConfig
	lex    *lexicon.Lexicon
	tagger nerclient.Tagger // nil when the recognizer is disabled
	log    logger.Logger
	stats  StatsRecorder
}

// New creates an Extractor. tagger may be nil to run lexicon-only.
func New(cfg config.ExtractionConfig, lex *lexicon.Lexicon, tagger nerclient.Tagger, log logger.Logger, stats StatsRecorder) *Extractor {
	if stats == nil {
		stats = NopStats{}
	}
	return &Extractor{cfg: cfg, lex: lex, tagger: tagger, log: log, stats: stats}
}

// orgCandidate is a broadcaster-ish span plus the probability the tagger
// (or the lexicon fallback) assigned to it.
type orgCandidate struct {
	name        string
	start, end  int
	probability float64
	fromLexicon bool
}

// Extract returns all deal mentions found in the article, weakest already
// filtered out. An article with no mentions returns an empty slice and no
// error; only malformed input is an error.
func (e *Extractor) Extract(ctx context.Context, article *domain.Article) ([]domain.DealMention, error) {
	if article == nil || strings.TrimSpace(article.BodyText) == "" && strings.TrimSpace(article.Title) == "" {
		return nil, fmt.Errorf("article %q has no text", articleID(article))
	}

	// Title and body share one coordinate space so recognizer offsets and
	// lexicon offsets line up.
	text := article.Title + "\n\n" + article.BodyText
	norm := lexicon.NormalizeAligned(text)

	spans, usedRecognizer := e.tag(ctx, text)
	orgs := e.collectOrgs(spans, norm, usedRecognizer)
	if len(orgs) == 0 {
		return []domain.DealMention{}, nil
	}

	dealHits := e.lex.FindDealKeywords(norm)
	genreHits := e.lex.FindGenres(norm)
	regionHits := e.lex.FindRegions(norm)

	var mentions []domain.DealMention
	for _, org := range orgs {
		m, ok := e.buildMention(article, text, org, spans, dealHits, genreHits, regionHits)
		if !ok {
			continue
		}
		mentions = append(mentions, m)
	}

	mentions = dedupeMentions(mentions)
	for _, m := range mentions {
		e.stats.MentionExtracted(string(m.DealType))
	}
	if mentions == nil {
		mentions = []domain.DealMention{}
	}
	return mentions, nil
}

// tag runs the recognizer, falling back to nothing when it is disabled or
// unavailable. The bool reports whether recognizer output is in play.
func (e *Extractor) tag(ctx context.Context, text string) ([]nerclient.Span, bool) {
	if e.tagger == nil {
		return nil, false
	}
	spans, err := e.tagger.Tag(ctx, text)
	if err != nil {
		if !errors.Is(err, nerclient.ErrUnavailable) {
			e.log.Warn("recognizer error, using lexicon fallback", logger.Error(err))
		}
		e.stats.RecognizerFallback()
		return nil, false
	}
	return spans, true
}

// collectOrgs merges recognizer ORG spans with lexicon broadcaster hits.
// Recognizer spans are trusted unless stoplisted, so unseen broadcasters
// still surface; lexicon-only candidates must be known broadcasters.
func (e *Extractor) collectOrgs(spans []nerclient.Span, norm string, usedRecognizer bool) []orgCandidate {
	var out []orgCandidate
	covered := make([][2]int, 0, 8)

	if usedRecognizer {
		for _, s := range spans {
			if s.Label != nerclient.LabelOrg {
				continue
			}
			if e.lex.IsNonBroadcaster(s.Text) {
				e.stats.MentionDiscarded(DiscardStoplisted)
				continue
			}
			// Counterparties (studios, producers) are ORGs too; only
			// names the broadcaster lexicon recognizes, exactly or
			// within the fuzzy threshold, become mentions.
			if !e.lex.MatchesBroadcaster(s.Text) &&
				!e.lex.FuzzyMatchesBroadcaster(s.Text, e.cfg.AliasFuzzyThreshold) {
				e.stats.MentionDiscarded(DiscardNotRecognized)
				continue
			}
			out = append(out, orgCandidate{name: s.Text, start: s.Start, end: s.End, probability: s.Probability})
			covered = append(covered, [2]int{s.Start, s.End})
		}
	}

	// Lexicon pass: primary source in fallback mode, recall supplement
	// otherwise. Matches come sorted longest-first per position, so the
	// covered check keeps "hbo max" and drops the nested "hbo" and "max".
	for _, m := range e.lex.FindBroadcasters(norm) {
		if overlapsAny(m.Start, m.End, covered) {
			continue
		}
		if e.lex.IsNonBroadcaster(m.Phrase) {
			e.stats.MentionDiscarded(DiscardStoplisted)
			continue
		}
		out = append(out, orgCandidate{
			name:        m.Phrase,
			start:       m.Start,
			end:         m.End,
			probability: e.cfg.LexiconOnlyProbability,
			fromLexicon: true,
		})
		covered = append(covered, [2]int{m.Start, m.End})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// buildMention assembles a mention around one organization span, or reports
// false when the candidate is discarded.
func (e *Extractor) buildMention(
	article *domain.Article,
	text string,
	org orgCandidate,
	spans []nerclient.Span,
	dealHits []lexicon.DealMatch,
	genreHits, regionHits []lexicon.LabelMatch,
) (domain.DealMention, bool) {
	winStart := max(0, org.start-e.cfg.WindowChars)
	winEnd := min(len(text), org.end+e.cfg.WindowChars)

	deal, dealOK := nearestDeal(dealHits, org.start, org.end, winStart, winEnd)
	if !dealOK {
		e.stats.MentionDiscarded(DiscardNoDealContext)
		return domain.DealMention{}, false
	}

	proximity := proximityScore(spanDistance(org.start, org.end, deal.Start, deal.End), e.cfg.WindowChars)
	confidence := e.cfg.NERWeight*org.probability +
		e.cfg.KeywordWeight*deal.Strength +
		e.cfg.ProximityWeight*proximity
	if confidence < e.cfg.MinMentionConfidence {
		e.stats.MentionDiscarded(DiscardLowConfidence)
		return domain.DealMention{}, false
	}

	m := domain.DealMention{
		BroadcasterNameRaw: strings.TrimSpace(org.name),
		DealType:           deal.Type,
		Confidence:         confidence,
		SpanStart:          org.start,
		SpanEnd:            org.end,
		SourceArticleID:    article.ID,
		ArticlePublishedAt: article.PublishedAt,
		Fields: domain.FieldConfidence{
			Broadcaster: org.probability,
			DealType:    deal.Strength,
		},
	}

	if g, ok := nearestLabel(genreHits, org.start, org.end, winStart, winEnd); ok {
		m.Genre = g.Label
		m.Fields.Genre = labelConfidence(spanDistance(org.start, org.end, g.Start, g.End), e.cfg.WindowChars)
	}
	if r, ok := nearestLabel(regionHits, org.start, org.end, winStart, winEnd); ok {
		m.Region = r.Label
		conf := labelConfidence(spanDistance(org.start, org.end, r.Start, r.End), e.cfg.WindowChars)
		// A GPE span over the same phrase means the recognizer read it as a
		// place too, not as part of a title or name.
		if prob, ok := regionAgreement(spans, r); ok && prob > conf {
			conf = prob
		}
		m.Fields.Region = conf
	}

	if title, conf, ok := findShowTitle(text, spans, org, winStart, winEnd); ok {
		m.ShowTitle = title
		m.Fields.ShowTitle = conf
	}

	date, conf, fallback := resolveDealDate(article, spans, org, winStart, winEnd)
	m.DealDate = date
	m.DateFromFallback = fallback
	m.Fields.Date = conf

	return m, true
}

// nearestDeal picks the deal trigger closest to the organization span;
// distance ties go to the stronger phrase. This is what maps "Netflix
// renews its output deal" to renewal rather than output-deal.
func nearestDeal(hits []lexicon.DealMatch, orgStart, orgEnd, winStart, winEnd int) (lexicon.DealMatch, bool) {
	var best lexicon.DealMatch
	bestDist := -1
	for _, h := range hits {
		if h.Start < winStart || h.End > winEnd {
			continue
		}
		d := spanDistance(orgStart, orgEnd, h.Start, h.End)
		switch {
		case bestDist < 0 || d < bestDist:
			best, bestDist = h, d
		case d == bestDist && h.Strength > best.Strength:
			best = h
		}
	}
	return best, bestDist >= 0
}

func nearestLabel(hits []lexicon.LabelMatch, orgStart, orgEnd, winStart, winEnd int) (lexicon.LabelMatch, bool) {
	var best lexicon.LabelMatch
	bestDist := -1
	for _, h := range hits {
		if h.Start < winStart || h.End > winEnd {
			continue
		}
		d := spanDistance(orgStart, orgEnd, h.Start, h.End)
		if bestDist < 0 || d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, bestDist >= 0
}

// dedupeMentions collapses mentions describing the same deal within one
// article, keeping the most confident. The key mirrors the resolver's
// cluster key (broadcaster, show, type, date) so two distinct deals of the
// same type survive to resolution.
func dedupeMentions(ms []domain.DealMention) []domain.DealMention {
	if len(ms) < 2 {
		return ms
	}
	type key struct {
		name  string
		title string
		typ   domain.DealType
		date  string
	}
	best := make(map[key]int, len(ms))
	var out []domain.DealMention
	for _, m := range ms {
		k := key{
			name:  lexicon.Normalize(m.BroadcasterNameRaw),
			title: lexicon.Normalize(m.ShowTitle),
			typ:   m.DealType,
			date:  m.DealDate.Format("2006-01-02"),
		}
		if i, ok := best[k]; ok {
			if m.Confidence > out[i].Confidence {
				out[i] = m
			}
			continue
		}
		best[k] = len(out)
		out = append(out, m)
	}
	return out
}

func spanDistance(aStart, aEnd, bStart, bEnd int) int {
	if bStart >= aEnd {
		return bStart - aEnd
	}
	if aStart >= bEnd {
		return aStart - bEnd
	}
	return 0 // overlapping
}

func proximityScore(dist, window int) float64 {
	if window <= 0 {
		return 0
	}
	s := 1 - float64(dist)/float64(window)
	if s < 0 {
		return 0
	}
	return s
}

// labelConfidence scores genre/region hits: 0.5 floor for being in the
// window at all, scaled up to 1.0 right next to the organization.
func labelConfidence(dist, window int) float64 {
	return 0.5 + 0.5*proximityScore(dist, window)
}

func overlapsAny(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

func articleID(a *domain.Article) string {
	if a == nil {
		return "<nil>"
	}
	return a.ID
}
