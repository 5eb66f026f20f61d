// Package lexicon provides the keyword knowledge base used by the
// extraction pipeline: broadcaster names, deal-type phrases with per-phrase
// signal strengths, genre and region vocabularies, and a stoplist of
// organizations that are never broadcasters.
//
// A Lexicon is immutable after construction and safe for concurrent use.
package lexicon

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/cloudflare/ahocorasick"

	"github.com/screenwire/bars/internal/domain"
)

// Lists is the raw vocabulary a Lexicon is built from. Empty fields fall
// back to the built-in defaults.
type Lists struct {
	// Broadcasters are known broadcaster/platform names.
	Broadcasters []string
	// NonBroadcasterOrgs are organizations NER tags as ORG but which are
	// never deal parties (trade outlets, wire services, markets).
	NonBroadcasterOrgs []string
	// DealKeywords maps a deal type to its trigger phrases.
	DealKeywords map[domain.DealType][]DealPhrase
	// GenreKeywords maps a display label to its trigger phrases.
	GenreKeywords map[string][]string
	// RegionKeywords maps a display label to its trigger phrases.
	RegionKeywords map[string][]string
}

// DealPhrase is one deal-type trigger with its signal strength (0..1).
// Stronger phrases ("output deal") contribute more keyword confidence than
// weak ones ("partnership").
type DealPhrase struct {
	Phrase   string
	Strength float64
}

// Match is one located vocabulary hit in normalized text. Offsets index the
// normalized text, which is byte-aligned with the original.
type Match struct {
	Phrase string
	Start  int
	End    int
}

// DealMatch is a located deal-type trigger.
type DealMatch struct {
	Match
	Type     domain.DealType
	Strength float64
}

// LabelMatch is a located genre or region trigger together with the
// display label it maps to ("latam" maps to "Latin America").
type LabelMatch struct {
	Match
	Label string
}

type dealEntry struct {
	phrase   string // normalized
	dealType domain.DealType
	strength float64
}

type labelEntry struct {
	phrase string // normalized
	label  string
}

// Lexicon holds the compiled vocabularies. The Aho-Corasick matchers only
// report which patterns occur; positions are recovered by a boundary-checked
// scan over the few patterns that actually hit.
type Lexicon struct {
	broadcasterMatcher *ahocorasick.Matcher
	broadcasters       []string // normalized, index-aligned with matcher

	dealMatcher *ahocorasick.Matcher
	deals       []dealEntry

	genreMatcher *ahocorasick.Matcher
	genres       []labelEntry

	regionMatcher *ahocorasick.Matcher
	regions       []labelEntry

	stoplist map[string]struct{} // normalized non-broadcaster orgs
}

// New compiles a Lexicon from the given lists, falling back to the built-in
// defaults for any empty field. Duplicate or empty phrases are rejected so a
// bad config surfaces at startup rather than as silent mismatches.
func New(lists Lists) (*Lexicon, error) {
	if len(lists.Broadcasters) == 0 {
		lists.Broadcasters = DefaultBroadcasters()
	}
	if len(lists.NonBroadcasterOrgs) == 0 {
		lists.NonBroadcasterOrgs = DefaultNonBroadcasterOrgs()
	}
	if len(lists.DealKeywords) == 0 {
		lists.DealKeywords = DefaultDealKeywords()
	}
	if len(lists.GenreKeywords) == 0 {
		lists.GenreKeywords = DefaultGenreKeywords()
	}
	if len(lists.RegionKeywords) == 0 {
		lists.RegionKeywords = DefaultRegionKeywords()
	}

	lex := &Lexicon{stoplist: make(map[string]struct{}, len(lists.NonBroadcasterOrgs))}

	seen := make(map[string]struct{})
	for _, name := range lists.Broadcasters {
		norm := Normalize(name)
		if norm == "" {
			return nil, fmt.Errorf("empty broadcaster name %q", name)
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		lex.broadcasters = append(lex.broadcasters, norm)
	}
	lex.broadcasterMatcher = ahocorasick.NewStringMatcher(lex.broadcasters)

	for _, org := range lists.NonBroadcasterOrgs {
		lex.stoplist[Normalize(org)] = struct{}{}
	}

	// Sort deal types so matcher pattern order is deterministic.
	types := make([]string, 0, len(lists.DealKeywords))
	for t := range lists.DealKeywords {
		types = append(types, string(t))
	}
	sort.Strings(types)
	dealPhrases := make(map[string]struct{})
	for _, t := range types {
		dt := domain.DealType(t)
		if domain.NormalizeDealType(t) != dt {
			return nil, fmt.Errorf("unknown deal type %q in lexicon", t)
		}
		for _, p := range lists.DealKeywords[dt] {
			norm := Normalize(p.Phrase)
			if norm == "" {
				return nil, fmt.Errorf("empty deal phrase for type %q", t)
			}
			if _, dup := dealPhrases[norm]; dup {
				return nil, fmt.Errorf("deal phrase %q listed twice", p.Phrase)
			}
			if p.Strength <= 0 || p.Strength > 1 {
				return nil, fmt.Errorf("deal phrase %q has strength %v, want (0,1]", p.Phrase, p.Strength)
			}
			dealPhrases[norm] = struct{}{}
			lex.deals = append(lex.deals, dealEntry{phrase: norm, dealType: dt, strength: p.Strength})
		}
	}
	lex.dealMatcher = ahocorasick.NewStringMatcher(dealPatterns(lex.deals))

	var err error
	lex.genres, err = compileLabels(lists.GenreKeywords, "genre")
	if err != nil {
		return nil, err
	}
	lex.genreMatcher = ahocorasick.NewStringMatcher(labelPatterns(lex.genres))

	lex.regions, err = compileLabels(lists.RegionKeywords, "region")
	if err != nil {
		return nil, err
	}
	lex.regionMatcher = ahocorasick.NewStringMatcher(labelPatterns(lex.regions))

	return lex, nil
}

// Default builds a Lexicon from the built-in vocabularies. Panics on error;
// the defaults are covered by tests.
func Default() *Lexicon {
	lex, err := New(Lists{})
	if err != nil {
		panic(err)
	}
	return lex
}

func compileLabels(m map[string][]string, kind string) ([]labelEntry, error) {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var entries []labelEntry
	seen := make(map[string]struct{})
	for _, label := range labels {
		for _, phrase := range m[label] {
			norm := Normalize(phrase)
			if norm == "" {
				return nil, fmt.Errorf("empty %s phrase for label %q", kind, label)
			}
			if _, dup := seen[norm]; dup {
				return nil, fmt.Errorf("%s phrase %q listed twice", kind, phrase)
			}
			seen[norm] = struct{}{}
			entries = append(entries, labelEntry{phrase: norm, label: label})
		}
	}
	return entries, nil
}

func dealPatterns(entries []dealEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.phrase
	}
	return out
}

func labelPatterns(entries []labelEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.phrase
	}
	return out
}

// Normalize lowercases text and maps every byte that is not an ASCII letter
// or digit to a single space. The result has the same length as the input,
// so offsets into normalized text are valid offsets into the original.
// Vocabulary phrases go through the same mapping, which is how hyphenated
// triggers like "co-production" match.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b.WriteByte(c)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeAligned is Normalize without trimming, preserving 1:1 byte
// alignment with the input for position recovery.
func NormalizeAligned(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b.WriteByte(c)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// FindBroadcasters locates every known broadcaster name in text. The text
// must already be normalized with NormalizeAligned.
func (l *Lexicon) FindBroadcasters(norm string) []Match {
	hits := l.broadcasterMatcher.Match([]byte(norm))
	var out []Match
	for _, idx := range hits {
		out = append(out, locate(norm, l.broadcasters[idx])...)
	}
	sortMatches(out)
	return out
}

// FindDealKeywords locates every deal-type trigger in normalized text.
func (l *Lexicon) FindDealKeywords(norm string) []DealMatch {
	hits := l.dealMatcher.Match([]byte(norm))
	var out []DealMatch
	for _, idx := range hits {
		e := l.deals[idx]
		for _, m := range locate(norm, e.phrase) {
			out = append(out, DealMatch{Match: m, Type: e.dealType, Strength: e.strength})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

// FindGenres locates genre triggers in normalized text.
func (l *Lexicon) FindGenres(norm string) []LabelMatch {
	return findLabels(norm, l.genreMatcher, l.genres)
}

// FindRegions locates region triggers in normalized text.
func (l *Lexicon) FindRegions(norm string) []LabelMatch {
	return findLabels(norm, l.regionMatcher, l.regions)
}

// IsNonBroadcaster reports whether an organization name is on the stoplist.
func (l *Lexicon) IsNonBroadcaster(name string) bool {
	_, ok := l.stoplist[Normalize(name)]
	return ok
}

// IsKnownBroadcaster reports whether the name matches a known broadcaster
// exactly after normalization.
func (l *Lexicon) IsKnownBroadcaster(name string) bool {
	norm := Normalize(name)
	for _, b := range l.broadcasters {
		if b == norm {
			return true
		}
	}
	return false
}

// MatchesBroadcaster reports whether the name contains a known broadcaster
// on word boundaries. "Netflix Inc." matches via "netflix"; "Foxtel" does
// not match "fox".
func (l *Lexicon) MatchesBroadcaster(name string) bool {
	return len(l.FindBroadcasters(NormalizeAligned(name))) > 0
}

// FuzzyMatchesBroadcaster reports whether the name is within threshold
// similarity of any known broadcaster. Catches spelling variants the exact
// pass misses ("Netflx"); the registry does the authoritative aliasing.
func (l *Lexicon) FuzzyMatchesBroadcaster(name string, threshold float64) bool {
	norm := Normalize(name)
	if norm == "" {
		return false
	}
	for _, b := range l.broadcasters {
		if levenshtein.Similarity(norm, b, nil) >= threshold {
			return true
		}
	}
	return false
}

func findLabels(norm string, matcher *ahocorasick.Matcher, entries []labelEntry) []LabelMatch {
	hits := matcher.Match([]byte(norm))
	var out []LabelMatch
	for _, idx := range hits {
		e := entries[idx]
		for _, m := range locate(norm, e.phrase) {
			out = append(out, LabelMatch{Match: m, Label: e.label})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

// locate finds every word-boundary occurrence of phrase in norm. Because
// normalization maps all punctuation to spaces, a boundary is simply the
// string edge or a space byte.
func locate(norm, phrase string) []Match {
	var out []Match
	for from := 0; ; {
		i := strings.Index(norm[from:], phrase)
		if i < 0 {
			return out
		}
		start := from + i
		end := start + len(phrase)
		from = start + 1
		if start > 0 && norm[start-1] != ' ' {
			continue
		}
		if end < len(norm) && norm[end] != ' ' {
			continue
		}
		out = append(out, Match{Phrase: phrase, Start: start, End: end})
	}
}

func sortMatches(ms []Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Start != ms[j].Start {
			return ms[i].Start < ms[j].Start
		}
		return ms[i].End > ms[j].End
	})
}
