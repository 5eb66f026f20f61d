package extractor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/lexicon"
	"github.com/screenwire/bars/internal/logger"
	"github.com/screenwire/bars/internal/nerclient"
)

type fakeTagger struct {
	spans []nerclient.Span
	err   error
}

func (f *fakeTagger) Tag(context.Context, string) ([]nerclient.Span, error) {
	return f.spans, f.err
}

func (f *fakeTagger) Health(context.Context) error { return nil }

type countingStats struct {
	extracted map[string]int
	discarded map[string]int
	fallbacks int
}

func newCountingStats() *countingStats {
	return &countingStats{extracted: map[string]int{}, discarded: map[string]int{}}
}

func (s *countingStats) MentionExtracted(dealType string) { s.extracted[dealType]++ }
func (s *countingStats) MentionDiscarded(reason string)   { s.discarded[reason]++ }
func (s *countingStats) RecognizerFallback()              { s.fallbacks++ }

func testConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		WindowChars:            300,
		MinMentionConfidence:   0.25,
		NERWeight:              0.5,
		KeywordWeight:          0.3,
		ProximityWeight:        0.2,
		LexiconOnlyProbability: 0.6,
	}
}

// span builds a recognizer span by locating the phrase in the combined
// title+body text the extractor submits.
func span(t *testing.T, article *domain.Article, phrase, label string, prob float64) nerclient.Span {
	t.Helper()
	combined := article.Title + "\n\n" + article.BodyText
	start := strings.Index(combined, phrase)
	if start < 0 {
		t.Fatalf("phrase %q not in article text", phrase)
	}
	return nerclient.Span{Text: phrase, Label: label, Start: start, End: start + len(phrase), Probability: prob}
}

func testArticle(body string) *domain.Article {
	return &domain.Article{
		ID:          "art-1",
		Title:       "Industry roundup",
		BodyText:    body,
		PublishedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExtractRenewalScenario(t *testing.T) {
	article := testArticle(`Netflix renews its output deal with Studio X for the animated series "Paper Skies" across Latin America, starting March 3, 2025.`)
	tagger := &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
		span(t, article, "Studio X", nerclient.LabelOrg, 0.9),
		span(t, article, "Paper Skies", nerclient.LabelWorkOfArt, 0.9),
		span(t, article, "March 3, 2025", nerclient.LabelDate, 0.85),
	}}

	stats := newCountingStats()
	ex := New(testConfig(), lexicon.Default(), tagger, logger.Nop(), stats)

	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1: %+v", len(mentions), mentions)
	}

	m := mentions[0]
	if m.BroadcasterNameRaw != "Netflix" {
		t.Errorf("broadcaster = %q, want Netflix", m.BroadcasterNameRaw)
	}
	// "renews" sits closer to Netflix than "output deal" does.
	if m.DealType != domain.DealTypeRenewal {
		t.Errorf("deal type = %q, want renewal", m.DealType)
	}
	if m.Genre != "animation" {
		t.Errorf("genre = %q, want animation", m.Genre)
	}
	if m.Region != "Latin America" {
		t.Errorf("region = %q, want Latin America", m.Region)
	}
	if m.ShowTitle != "Paper Skies" {
		t.Errorf("show title = %q, want Paper Skies", m.ShowTitle)
	}
	want := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if !m.DealDate.Equal(want) {
		t.Errorf("deal date = %v, want %v", m.DealDate, want)
	}
	if m.DateFromFallback {
		t.Error("date should come from the DATE span, not fallback")
	}
	if m.Confidence < 0.8 {
		t.Errorf("confidence = %v, want strong signal", m.Confidence)
	}

	// Studio X is an ORG but not a broadcaster.
	if stats.discarded[DiscardNotRecognized] != 1 {
		t.Errorf("discards = %v, want one %s", stats.discarded, DiscardNotRecognized)
	}
}

func TestExtractFallsBackWhenRecognizerDown(t *testing.T) {
	article := testArticle("Netflix renews its output deal with Studio X for more animated features.")
	tagger := &fakeTagger{err: nerclient.ErrUnavailable}

	stats := newCountingStats()
	ex := New(testConfig(), lexicon.Default(), tagger, logger.Nop(), stats)

	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if stats.fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", stats.fallbacks)
	}
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1", len(mentions))
	}

	m := mentions[0]
	if lexicon.Normalize(m.BroadcasterNameRaw) != "netflix" {
		t.Errorf("broadcaster = %q, want netflix", m.BroadcasterNameRaw)
	}
	if !m.DateFromFallback {
		t.Error("lexicon-only extraction must fall back to published_at")
	}
	if !m.DealDate.Equal(article.PublishedAt.Truncate(24 * time.Hour)) {
		t.Errorf("deal date = %v, want published_at day", m.DealDate)
	}
	if m.Fields.Broadcaster != testConfig().LexiconOnlyProbability {
		t.Errorf("broadcaster confidence = %v, want lexicon-only probability", m.Fields.Broadcaster)
	}
}

func TestExtractNilTaggerRunsLexiconOnly(t *testing.T) {
	article := testArticle("HBO Max acquired the crime drama slate from a European distributor.")
	ex := New(testConfig(), lexicon.Default(), nil, logger.Nop(), nil)

	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1", len(mentions))
	}
	if mentions[0].DealType != domain.DealTypeAcquisition {
		t.Errorf("deal type = %q, want acquisition", mentions[0].DealType)
	}
}

func TestExtractSkipsStoplistedOrgs(t *testing.T) {
	article := testArticle("Variety reports that Netflix renews the unscripted series for another run.")
	tagger := &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Variety", nerclient.LabelOrg, 0.9),
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
	}}

	stats := newCountingStats()
	ex := New(testConfig(), lexicon.Default(), tagger, logger.Nop(), stats)

	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1", len(mentions))
	}
	if mentions[0].BroadcasterNameRaw != "Netflix" {
		t.Errorf("broadcaster = %q, want Netflix", mentions[0].BroadcasterNameRaw)
	}
	if stats.discarded[DiscardStoplisted] != 1 {
		t.Errorf("discards = %v, want one %s", stats.discarded, DiscardStoplisted)
	}
}

func TestExtractNoDealContextYieldsNothing(t *testing.T) {
	article := testArticle("Netflix opened a new office in Madrid this week.")
	tagger := &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
	}}

	stats := newCountingStats()
	ex := New(testConfig(), lexicon.Default(), tagger, logger.Nop(), stats)

	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 0 {
		t.Fatalf("got %d mentions, want 0", len(mentions))
	}
	if stats.discarded[DiscardNoDealContext] == 0 {
		t.Errorf("discards = %v, want %s", stats.discarded, DiscardNoDealContext)
	}
}

func TestExtractDedupesSameBroadcasterAndType(t *testing.T) {
	article := testArticle("Netflix renews the hit drama. Later in the upfront, Netflix renewed two more titles.")
	tagger := &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
		{Text: "Netflix", Label: nerclient.LabelOrg, Start: strings.LastIndex(article.Title+"\n\n"+article.BodyText, "Netflix"), End: strings.LastIndex(article.Title+"\n\n"+article.BodyText, "Netflix") + len("Netflix"), Probability: 0.9},
	}}

	ex := New(testConfig(), lexicon.Default(), tagger, logger.Nop(), nil)
	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1 after dedupe", len(mentions))
	}
}

func TestExtractKeepsDistinctDealsOfSameType(t *testing.T) {
	article := testArticle(`Netflix renews "Paper Skies" for a third season. At the same upfront, Netflix renewed "Iron Coast" through next year.`)
	combined := article.Title + "\n\n" + article.BodyText
	second := strings.LastIndex(combined, "Netflix")
	tagger := &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
		{Text: "Netflix", Label: nerclient.LabelOrg, Start: second, End: second + len("Netflix"), Probability: 0.9},
	}}

	ex := New(testConfig(), lexicon.Default(), tagger, logger.Nop(), nil)
	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 2 {
		t.Fatalf("got %d mentions, want 2 distinct renewals: %+v", len(mentions), mentions)
	}

	titles := map[string]bool{}
	for _, m := range mentions {
		if m.DealType != domain.DealTypeRenewal {
			t.Errorf("deal type = %q, want renewal", m.DealType)
		}
		titles[m.ShowTitle] = true
	}
	if !titles["Paper Skies"] || !titles["Iron Coast"] {
		t.Errorf("show titles = %v, want Paper Skies and Iron Coast", titles)
	}
}

func TestExtractRegionConfidenceBoostedByRecognizer(t *testing.T) {
	article := testArticle(`Netflix renews the animated series "Paper Skies" across Latin America.`)
	ex := New(testConfig(), lexicon.Default(), &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
	}}, logger.Nop(), nil)

	mentions, err := ex.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1", len(mentions))
	}
	base := mentions[0].Fields.Region

	boosted := New(testConfig(), lexicon.Default(), &fakeTagger{spans: []nerclient.Span{
		span(t, article, "Netflix", nerclient.LabelOrg, 0.95),
		span(t, article, "Latin America", nerclient.LabelGPE, 0.97),
	}}, logger.Nop(), nil)

	mentions, err = boosted.Extract(context.Background(), article)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	m := mentions[0]
	if m.Region != "Latin America" {
		t.Fatalf("region = %q, want Latin America", m.Region)
	}
	if m.Fields.Region != 0.97 {
		t.Errorf("region confidence = %v, want the recognizer's 0.97", m.Fields.Region)
	}
	if m.Fields.Region <= base {
		t.Errorf("boosted confidence %v not above distance-only %v", m.Fields.Region, base)
	}
}

func TestExtractRejectsEmptyArticle(t *testing.T) {
	ex := New(testConfig(), lexicon.Default(), nil, logger.Nop(), nil)
	if _, err := ex.Extract(context.Background(), &domain.Article{ID: "empty"}); err == nil {
		t.Error("expected error for empty article")
	}
}
