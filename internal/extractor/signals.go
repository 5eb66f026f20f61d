package extractor

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/lexicon"
	"github.com/screenwire/bars/internal/nerclient"
)

const (
	quotedTitleConfidence = 0.5
	fallbackDateConf      = 0.4
	parsedDateConfScale   = 0.9
	maxTitleLen           = 80
)

// findShowTitle picks the show title for a mention: the nearest recognizer
// WORK_OF_ART span inside the window, else the nearest quoted phrase.
func findShowTitle(text string, spans []nerclient.Span, org orgCandidate, winStart, winEnd int) (string, float64, bool) {
	var best *nerclient.Span
	bestDist := -1
	for i := range spans {
		s := &spans[i]
		if s.Label != nerclient.LabelWorkOfArt || s.Start < winStart || s.End > winEnd {
			continue
		}
		d := spanDistance(org.start, org.end, s.Start, s.End)
		if bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	if best != nil {
		title := strings.TrimSpace(best.Text)
		if title != "" && len(title) <= maxTitleLen {
			return title, best.Probability, true
		}
	}

	if title, ok := nearestQuoted(text, org, winStart, winEnd); ok {
		return title, quotedTitleConfidence, true
	}
	return "", 0, false
}

// nearestQuoted scans the window for a double-quoted phrase, preferring the
// one closest to the organization span. Straight and curly quotes both count.
func nearestQuoted(text string, org orgCandidate, winStart, winEnd int) (string, bool) {
	window := text[winStart:winEnd]
	var bestTitle string
	bestDist := -1

	for from := 0; from < len(window); {
		open, openLen := nextQuote(window[from:])
		if open < 0 {
			break
		}
		open += from
		closing, closingLen := nextQuote(window[open+openLen:])
		if closing < 0 {
			break
		}
		closing += open + openLen

		title := strings.TrimSpace(window[open+openLen : closing])
		from = closing + closingLen

		if title == "" || len(title) > maxTitleLen {
			continue
		}
		absStart := winStart + open
		absEnd := winStart + closing + closingLen
		d := spanDistance(org.start, org.end, absStart, absEnd)
		if bestDist < 0 || d < bestDist {
			bestTitle, bestDist = title, d
		}
	}
	return bestTitle, bestDist >= 0
}

// nextQuote returns the byte offset and encoded length of the next double
// quote character, straight or curly, or -1.
func nextQuote(s string) (int, int) {
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			return i, 1
		}
	}
	for _, q := range []string{"“", "”"} {
		if i := strings.Index(s, q); i >= 0 {
			return i, len(q)
		}
	}
	return -1, 0
}

// regionAgreement returns the probability of a GPE span overlapping the
// matched region phrase.
func regionAgreement(spans []nerclient.Span, m lexicon.LabelMatch) (float64, bool) {
	for _, s := range spans {
		if s.Label != nerclient.LabelGPE {
			continue
		}
		if s.Start < m.End && m.Start < s.End {
			return s.Probability, true
		}
	}
	return 0, false
}

// resolveDealDate parses the DATE span nearest to the organization. When no
// span in the window parses to a plausible date, the article's published_at
// stands in and the mention is flagged so the resolver can penalize it.
func resolveDealDate(article *domain.Article, spans []nerclient.Span, org orgCandidate, winStart, winEnd int) (time.Time, float64, bool) {
	var bestDate time.Time
	var bestProb float64
	bestDist := -1

	for _, s := range spans {
		if s.Label != nerclient.LabelDate || s.Start < winStart || s.End > winEnd {
			continue
		}
		parsed, err := dateparse.ParseIn(strings.TrimSpace(s.Text), time.UTC)
		if err != nil || !plausibleDealDate(parsed, article.PublishedAt) {
			continue
		}
		d := spanDistance(org.start, org.end, s.Start, s.End)
		if bestDist < 0 || d < bestDist {
			bestDate, bestProb, bestDist = parsed, s.Probability, d
		}
	}

	if bestDist >= 0 {
		return bestDate.UTC().Truncate(24 * time.Hour), bestProb * parsedDateConfScale, false
	}
	return article.PublishedAt.UTC().Truncate(24 * time.Hour), fallbackDateConf, true
}

// plausibleDealDate rejects parser artifacts: dates before the modern
// streaming era or far past the article itself.
func plausibleDealDate(d, published time.Time) bool {
	if d.Year() < 1990 {
		return false
	}
	if !published.IsZero() && d.After(published.AddDate(2, 0, 0)) {
		return false
	}
	return true
}
