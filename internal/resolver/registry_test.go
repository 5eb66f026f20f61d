package resolver

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

type memBroadcasters struct {
	mu    sync.Mutex
	items map[string]*domain.Broadcaster
	saves int
}

func newMemBroadcasters(seed ...domain.Broadcaster) *memBroadcasters {
	m := &memBroadcasters{items: make(map[string]*domain.Broadcaster)}
	for i := range seed {
		b := seed[i]
		m.items[b.CanonicalName] = &b
	}
	return m
}

func (m *memBroadcasters) FindBroadcaster(_ context.Context, name string) (*domain.Broadcaster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.items[name]; ok {
		cp := *b
		return &cp, nil
	}
	for _, b := range m.items {
		for _, a := range b.KnownAliases {
			if strings.EqualFold(a, name) {
				cp := *b
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrBroadcasterNotFound
}

func (m *memBroadcasters) SaveBroadcaster(_ context.Context, b *domain.Broadcaster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.items[b.CanonicalName] = &cp
	m.saves++
	return nil
}

func (m *memBroadcasters) ListBroadcasters(context.Context) ([]domain.Broadcaster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Broadcaster, 0, len(m.items))
	for _, b := range m.items {
		out = append(out, *b)
	}
	return out, nil
}

func testResolutionConfig() config.ResolutionConfig {
	return config.ResolutionConfig{
		DateToleranceDays:   3,
		DateFallbackPenalty: 0.15,
		AuditMargin:         0.1,
		AliasFuzzyThreshold: 0.82,
		MaxFuzzyCandidates:  256,
	}
}

func seedNetflix() domain.Broadcaster {
	now := time.Now().UTC()
	return domain.Broadcaster{
		CanonicalName: "Netflix",
		KnownAliases:  []string{"Netflix", "Netflix Inc"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRegistryExactResolve(t *testing.T) {
	repo := newMemBroadcasters(seedNetflix())
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, raw := range []string{"Netflix", "netflix", "NETFLIX", "Netflix Inc."} {
		res, err := reg.Resolve(context.Background(), raw)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", raw, err)
		}
		if res.CanonicalName != "Netflix" {
			t.Errorf("Resolve(%q) = %q, want Netflix", raw, res.CanonicalName)
		}
		if res.Created || res.AliasAdded {
			t.Errorf("Resolve(%q) should be an exact hit, got %+v", raw, res)
		}
	}
}

func TestRegistryFuzzyLearnsAlias(t *testing.T) {
	repo := newMemBroadcasters(seedNetflix())
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	res, err := reg.Resolve(context.Background(), "Netflx")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.CanonicalName != "Netflix" {
		t.Fatalf("fuzzy resolve = %q, want Netflix", res.CanonicalName)
	}
	if !res.AliasAdded {
		t.Error("fuzzy hit should learn the new alias")
	}

	// Second time around the alias is indexed; no repository write.
	savesBefore := repo.saves
	res, err = reg.Resolve(context.Background(), "Netflx")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.AliasAdded || res.Created {
		t.Errorf("second resolve should be exact, got %+v", res)
	}
	if repo.saves != savesBefore {
		t.Error("second resolve should not write to the repository")
	}
}

func TestRegistryRegistersUnknownName(t *testing.T) {
	repo := newMemBroadcasters(seedNetflix())
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	res, err := reg.Resolve(context.Background(), "Kanal D")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Created {
		t.Error("unknown name should register a new broadcaster")
	}
	if res.CanonicalName != "Kanal D" {
		t.Errorf("canonical = %q, want Kanal D", res.CanonicalName)
	}
	if _, err := repo.FindBroadcaster(context.Background(), "Kanal D"); err != nil {
		t.Errorf("new broadcaster not persisted: %v", err)
	}
}

func TestRegistryStripsDiacritics(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemBroadcasters(domain.Broadcaster{
		CanonicalName: "Telefonica",
		KnownAliases:  []string{"Telefonica"},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	res, err := reg.Resolve(context.Background(), "Telefónica")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.CanonicalName != "Telefonica" {
		t.Errorf("canonical = %q, want Telefonica", res.CanonicalName)
	}
	if res.Created {
		t.Error("accented spelling must not register a duplicate")
	}
}

func TestRegistryConcurrentResolveRegistersOnce(t *testing.T) {
	repo := newMemBroadcasters()
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var wg sync.WaitGroup
	created := make([]bool, 16)
	for i := range created {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := reg.Resolve(context.Background(), "RTP")
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			created[i] = res.Created
		}(i)
	}
	wg.Wait()

	registrations := 0
	for _, c := range created {
		if c {
			registrations++
		}
	}
	if registrations != 1 {
		t.Errorf("got %d registrations, want exactly 1", registrations)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	repo := newMemBroadcasters()
	reg, err := NewRegistry(context.Background(), repo, testResolutionConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := reg.Resolve(context.Background(), "  !! "); err == nil {
		t.Error("expected error for name with no alphanumeric content")
	}
}
