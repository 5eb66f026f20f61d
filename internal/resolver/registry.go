// Package resolver turns per-article deal mentions into canonical deal
// records: it maps raw broadcaster names onto the registry, clusters
// mentions that describe the same deal, merges them field by field, and
// upserts the result.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/lexicon"
	"github.com/screenwire/bars/internal/logger"
)

// stripMarks removes diacritics so "Telefónica" and "Telefonica" index to
// the same alias key.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName is the registry's alias key: diacritics stripped, then
// lowercased with punctuation collapsed to spaces.
func NormalizeName(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	return lexicon.Normalize(s)
}

// Registry resolves raw broadcaster names to canonical ones, growing the
// alias set as new spellings show up. Lookups hit an in-memory index; the
// repository is only written when an alias or broadcaster is new.
type Registry struct {
	repo domain.BroadcasterRepository
	cfg  config.ResolutionConfig
	log  logger.Logger

	mu      sync.RWMutex
	byAlias map[string]string // normalized alias -> canonical name
	aliases []string          // sorted normalized aliases, for deterministic fuzzy scans

	locks keyedLocks
}

// Resolution describes how a raw name was resolved.
type Resolution struct {
	CanonicalName string
	Created       bool // a new broadcaster entry was registered
	AliasAdded    bool // the raw name became a new alias of an existing entry
}

// NewRegistry builds a registry and loads the alias index from the
// repository.
func NewRegistry(ctx context.Context, repo domain.BroadcasterRepository, cfg config.ResolutionConfig, log logger.Logger) (*Registry, error) {
	r := &Registry{
		repo:    repo,
		cfg:     cfg,
		log:     log,
		byAlias: make(map[string]string),
	}
	if err := r.reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload(ctx context.Context) error {
	broadcasters, err := r.repo.ListBroadcasters(ctx)
	if err != nil {
		return fmt.Errorf("load broadcaster registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAlias = make(map[string]string, len(broadcasters)*2)
	r.aliases = r.aliases[:0]
	for _, b := range broadcasters {
		r.indexLocked(NormalizeName(b.CanonicalName), b.CanonicalName)
		for _, a := range b.KnownAliases {
			r.indexLocked(NormalizeName(a), b.CanonicalName)
		}
	}
	sort.Strings(r.aliases)
	r.log.Info("broadcaster registry loaded",
		logger.Int("broadcasters", len(broadcasters)),
		logger.Int("aliases", len(r.aliases)))
	return nil
}

// indexLocked registers one alias key. Callers hold r.mu.
func (r *Registry) indexLocked(key, canonical string) {
	if key == "" {
		return
	}
	if _, exists := r.byAlias[key]; exists {
		return
	}
	r.byAlias[key] = canonical
	r.aliases = append(r.aliases, key)
}

// Resolve maps a raw broadcaster name to its canonical form. Exact alias
// hits are free; misses fall through to a bounded fuzzy scan, and names
// nothing matches register a new broadcaster. Resolution of a given key is
// serialized so concurrent workers cannot double-register.
func (r *Registry) Resolve(ctx context.Context, rawName string) (Resolution, error) {
	raw := strings.TrimSpace(rawName)
	key := NormalizeName(raw)
	if key == "" {
		return Resolution{}, fmt.Errorf("unresolvable broadcaster name %q", rawName)
	}

	if canonical, ok := r.lookup(key); ok {
		return Resolution{CanonicalName: canonical}, nil
	}

	unlock := r.locks.lock(key)
	defer unlock()

	// Re-check under the key lock; another worker may have just won.
	if canonical, ok := r.lookup(key); ok {
		return Resolution{CanonicalName: canonical}, nil
	}

	if canonical, ok := r.fuzzyMatch(key); ok {
		if err := r.addAlias(ctx, canonical, raw, key); err != nil {
			return Resolution{}, err
		}
		r.log.Debug("alias learned",
			logger.String("alias", raw),
			logger.String("canonical", canonical))
		return Resolution{CanonicalName: canonical, AliasAdded: true}, nil
	}

	if err := r.register(ctx, raw, key); err != nil {
		return Resolution{}, err
	}
	r.log.Info("broadcaster registered", logger.String("canonical", raw))
	return Resolution{CanonicalName: raw, Created: true}, nil
}

func (r *Registry) lookup(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, ok := r.byAlias[key]
	return canonical, ok
}

// fuzzyMatch scans the sorted alias list for the closest match above the
// similarity threshold. The sorted order plus the strict-improvement rule
// makes the winner deterministic regardless of insertion order.
func (r *Registry) fuzzyMatch(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bestScore := r.cfg.AliasFuzzyThreshold
	best := ""
	compared := 0
	for _, alias := range r.aliases {
		if compared >= r.cfg.MaxFuzzyCandidates {
			break
		}
		compared++
		if score := levenshtein.Similarity(key, alias, nil); score > bestScore {
			bestScore = score
			best = r.byAlias[alias]
		}
	}
	return best, best != ""
}

func (r *Registry) addAlias(ctx context.Context, canonical, raw, key string) error {
	b, err := r.repo.FindBroadcaster(ctx, canonical)
	if err != nil {
		return fmt.Errorf("find broadcaster %q: %w", canonical, err)
	}
	if !b.HasAlias(raw) {
		b.KnownAliases = append(b.KnownAliases, raw)
		b.UpdatedAt = time.Now().UTC()
		if err := r.repo.SaveBroadcaster(ctx, b); err != nil {
			return fmt.Errorf("save alias %q for %q: %w", raw, canonical, err)
		}
	}

	r.mu.Lock()
	r.indexLocked(key, canonical)
	sort.Strings(r.aliases)
	r.mu.Unlock()
	return nil
}

func (r *Registry) register(ctx context.Context, raw, key string) error {
	now := time.Now().UTC()
	b := &domain.Broadcaster{
		CanonicalName: raw,
		KnownAliases:  []string{raw},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.repo.SaveBroadcaster(ctx, b); err != nil {
		return fmt.Errorf("register broadcaster %q: %w", raw, err)
	}

	r.mu.Lock()
	r.indexLocked(key, raw)
	sort.Strings(r.aliases)
	r.mu.Unlock()
	return nil
}

// keyedLocks hands out one mutex per key so unrelated names resolve
// concurrently. Mutexes are never reclaimed; the key space is the set of
// broadcaster names, which stays small.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
