// Package grading computes broadcaster activity scores and letter grades
// from canonical deal records. Each grading run is a pure function of the
// records in the window plus the configuration; results are persisted as
// append-only snapshots.
package grading

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// gradeOrder is the banding scan order, best grade first.
var gradeOrder = []domain.Grade{domain.GradeA, domain.GradeB, domain.GradeC, domain.GradeD}

// StatsRecorder receives grading outcome observations.
type StatsRecorder interface {
	SnapshotComputed(grade string, took time.Duration)
}

// NopStats discards all stats.
type NopStats struct{}

func (NopStats) SnapshotComputed(string, time.Duration) {}

// Tracer starts trace spans around grading runs. The telemetry provider
// implements it; nil disables tracing.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

type nopTracer struct{ tracer trace.Tracer }

func newNopTracer() nopTracer {
	return nopTracer{tracer: noop.NewTracerProvider().Tracer("")}
}

func (n nopTracer) StartSpan(ctx context.Context, name string, _ ...attribute.KeyValue) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, name)
}

// Engine grades broadcasters. Safe for concurrent use.
type Engine struct {
	broadcasters domain.BroadcasterRepository
	deals        domain.DealRepository
	snapshots    domain.SnapshotRepository
	cfg          config.GradingConfig
	decay        DecayFunc
	log          logger.Logger
	stats        StatsRecorder
	tracer       Tracer
}

// NewEngine validates the configuration and builds an Engine.
func NewEngine(
	broadcasters domain.BroadcasterRepository,
	deals domain.DealRepository,
	snapshots domain.SnapshotRepository,
	cfg config.GradingConfig,
	log logger.Logger,
	stats StatsRecorder,
	tracer Tracer,
) (*Engine, error) {
	decay, err := NewDecay(cfg.DecayKind, cfg.DecayHalfLife, cfg.DecayHorizon)
	if err != nil {
		return nil, err
	}
	for t, w := range cfg.TypeWeights {
		if w <= 0 {
			return nil, fmt.Errorf("type weight for %q must be positive, got %v", t, w)
		}
	}
	for g, threshold := range cfg.Bands {
		if !validGrade(g) {
			return nil, fmt.Errorf("unknown grade %q in bands", g)
		}
		if threshold < 0 {
			return nil, fmt.Errorf("band threshold for %q must be non-negative, got %v", g, threshold)
		}
	}
	if stats == nil {
		stats = NopStats{}
	}
	if tracer == nil {
		tracer = newNopTracer()
	}
	return &Engine{
		broadcasters: broadcasters,
		deals:        deals,
		snapshots:    snapshots,
		cfg:          cfg,
		decay:        decay,
		log:          log,
		stats:        stats,
		tracer:       tracer,
	}, nil
}

// Grade scores a broadcaster as of now and persists the snapshot.
func (e *Engine) Grade(ctx context.Context, broadcaster string) (*domain.ScoreSnapshot, error) {
	return e.GradeAt(ctx, broadcaster, time.Now().UTC())
}

// GradeAt scores a broadcaster as of the given instant. Unknown
// broadcasters return ErrBroadcasterNotFound rather than a zero score; a
// known broadcaster with no deals in the window grades F.
func (e *Engine) GradeAt(ctx context.Context, broadcaster string, asOf time.Time) (*domain.ScoreSnapshot, error) {
	started := time.Now()

	ctx, span := e.tracer.StartSpan(ctx, "grading.grade",
		attribute.String("broadcaster", broadcaster))
	defer span.End()

	b, err := e.broadcasters.FindBroadcaster(ctx, broadcaster)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("grade %q: %w", broadcaster, err)
	}

	windowStart := asOf.AddDate(0, 0, -e.cfg.WindowDays)
	records, err := e.deals.QueryDealRecords(ctx, b.CanonicalName, windowStart, asOf)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query deals for %q: %w", b.CanonicalName, err)
	}

	snapshot := e.compute(b.CanonicalName, records, windowStart, asOf)
	if err := e.snapshots.AppendScoreSnapshot(ctx, snapshot); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist snapshot for %q: %w", b.CanonicalName, err)
	}
	span.SetAttributes(
		attribute.Float64("raw_score", snapshot.RawScore),
		attribute.String("grade", string(snapshot.Grade)),
		attribute.Int("deals", snapshot.DealCountInWindow),
	)

	took := time.Since(started)
	e.stats.SnapshotComputed(string(snapshot.Grade), took)
	e.log.Info("broadcaster graded",
		logger.String("broadcaster", b.CanonicalName),
		logger.Float64("raw_score", snapshot.RawScore),
		logger.String("grade", string(snapshot.Grade)),
		logger.Int("deals", snapshot.DealCountInWindow),
		logger.Duration("took", took))
	return snapshot, nil
}

// compute builds the snapshot. Records are summed in (deal_date, id) order
// so repeated runs over the same data produce bit-identical scores.
func (e *Engine) compute(broadcaster string, records []domain.DealRecord, windowStart, asOf time.Time) *domain.ScoreSnapshot {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].DealDate.Equal(records[j].DealDate) {
			return records[i].DealDate.Before(records[j].DealDate)
		}
		return records[i].ID < records[j].ID
	})

	var (
		score          float64
		lastActivity   time.Time
		types, shows   = newRollup(), newRollup()
		genres, places = newRollup(), newRollup()
	)
	for _, r := range records {
		age := asOf.Sub(r.DealDate)
		score += e.typeWeight(r.DealType) * e.decay(age)

		types.add(string(r.DealType))
		shows.add(r.ShowTitle)
		genres.add(r.Genre)
		places.add(r.Region)
		if r.DealDate.After(lastActivity) {
			lastActivity = r.DealDate
		}
	}

	snapshot := &domain.ScoreSnapshot{
		ID:                       uuid.NewString(),
		BroadcasterCanonicalName: broadcaster,
		ComputedAt:               time.Now().UTC(),
		WindowStart:              windowStart,
		WindowEnd:                asOf,
		RawScore:                 score,
		Grade:                    e.band(score),
		DealCountInWindow:        len(records),
		DealTypes:                types.sorted(),
		Shows:                    shows.sorted(),
		Genres:                   genres.sorted(),
		Regions:                  places.sorted(),
	}
	if !lastActivity.IsZero() {
		snapshot.LastActivityAt = &lastActivity
	}
	return snapshot
}

func (e *Engine) typeWeight(t domain.DealType) float64 {
	if w, ok := e.cfg.TypeWeights[string(t)]; ok {
		return w
	}
	return e.cfg.MinTypeWeight
}

// band maps a raw score onto the best grade whose threshold it meets.
func (e *Engine) band(score float64) domain.Grade {
	for _, g := range gradeOrder {
		threshold, ok := e.cfg.Bands[string(g)]
		if ok && score >= threshold {
			return g
		}
	}
	return domain.GradeF
}

func validGrade(g string) bool {
	switch domain.Grade(g) {
	case domain.GradeA, domain.GradeB, domain.GradeC, domain.GradeD, domain.GradeF:
		return true
	}
	return false
}

type rollup struct {
	seen map[string]struct{}
}

func newRollup() *rollup { return &rollup{seen: make(map[string]struct{})} }

func (r *rollup) add(v string) {
	if v != "" {
		r.seen[v] = struct{}{}
	}
}

func (r *rollup) sorted() []string {
	if len(r.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.seen))
	for v := range r.seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
