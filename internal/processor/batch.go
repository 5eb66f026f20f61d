// Package processor drives the extraction pipeline: it pulls pending
// articles from the store, fans them out to extraction workers, feeds the
// mentions through the resolver, and regrades the broadcasters the batch
// touched.
package processor

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// Extractor is the slice of the extraction engine the processor needs.
type Extractor interface {
	Extract(ctx context.Context, article *domain.Article) ([]domain.DealMention, error)
}

// MentionResolver turns a batch of mentions into persisted deal records.
type MentionResolver interface {
	Resolve(ctx context.Context, mentions []domain.DealMention) ([]domain.UpsertOutcome, error)
}

// Tracer starts trace spans around pipeline stages. The telemetry provider
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

// BatchResult summarizes one processed batch.
type BatchResult struct {
	Extracted     int
	Failed        int
	Mentions      int
	Outcomes      []domain.UpsertOutcome
	ArticleStatus map[string]string // article ID -> extraction status
}

// Broadcasters returns the sorted set of broadcasters the batch touched.
func (r BatchResult) Broadcasters() []string {
	seen := make(map[string]struct{}, len(r.Outcomes))
	for _, o := range r.Outcomes {
		seen[o.Record.BroadcasterCanonicalName] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// BatchProcessor runs extraction with a bounded worker pool. One failing
// article marks itself failed and the batch keeps going.
type BatchProcessor struct {
	extractor   Extractor
	resolver    MentionResolver
	limiter     *RateLimiter
	tracer      Tracer
	concurrency int
	log         logger.Logger
}

// NewBatchProcessor creates a BatchProcessor. limiter and tracer may be nil.
func NewBatchProcessor(extractor Extractor, resolver MentionResolver, limiter *RateLimiter, tracer Tracer, concurrency int, log logger.Logger) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	if tracer == nil {
		tracer = newNopTracer()
	}
	return &BatchProcessor{
		extractor:   extractor,
		resolver:    resolver,
		limiter:     limiter,
		tracer:      tracer,
		concurrency: concurrency,
		log:         log,
	}
}

type extractionOutput struct {
	articleID string
	mentions  []domain.DealMention
	err       error
}

// ProcessBatch extracts all articles concurrently, then resolves the
// combined mentions in one pass so cross-article duplicates collapse. The
// returned error is only non-nil for batch-level failures (resolver or
// context); per-article failures are reported in ArticleStatus.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, batch []domain.Article) (BatchResult, error) {
	ctx, span := p.tracer.StartSpan(ctx, "processor.process_batch",
		attribute.Int("batch.articles", len(batch)))
	defer span.End()

	result := BatchResult{ArticleStatus: make(map[string]string, len(batch))}
	if len(batch) == 0 {
		result.Outcomes = []domain.UpsertOutcome{}
		return result, nil
	}

	jobs := make(chan *domain.Article)
	outputs := make(chan extractionOutput, len(batch))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, outputs)
		}()
	}

	go func() {
		defer close(jobs)
		for i := range batch {
			select {
			case jobs <- &batch[i]:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outputs)
	}()

	var mentions []domain.DealMention
	for out := range outputs {
		if out.err != nil {
			result.Failed++
			result.ArticleStatus[out.articleID] = domain.StatusFailed
			p.log.Error("article extraction failed",
				logger.String("article_id", out.articleID),
				logger.Error(out.err))
			continue
		}
		result.Extracted++
		result.ArticleStatus[out.articleID] = domain.StatusExtracted
		mentions = append(mentions, out.mentions...)
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Mentions = len(mentions)

	outcomes, err := p.resolver.Resolve(ctx, mentions)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Outcomes = outcomes
	span.SetAttributes(
		attribute.Int("batch.extracted", result.Extracted),
		attribute.Int("batch.failed", result.Failed),
		attribute.Int("batch.mentions", result.Mentions),
		attribute.Int("batch.records", len(outcomes)),
	)

	p.log.Info("batch processed",
		logger.Int("articles", len(batch)),
		logger.Int("extracted", result.Extracted),
		logger.Int("failed", result.Failed),
		logger.Int("mentions", result.Mentions),
		logger.Int("records", len(outcomes)))
	return result, nil
}

func (p *BatchProcessor) worker(ctx context.Context, jobs <-chan *domain.Article, outputs chan<- extractionOutput) {
	for article := range jobs {
		if err := p.limiter.Wait(ctx); err != nil {
			outputs <- extractionOutput{articleID: article.ID, err: err}
			continue
		}
		mentions, err := p.extractor.Extract(ctx, article)
		outputs <- extractionOutput{articleID: article.ID, mentions: mentions, err: err}
	}
}
