package processor

import (
	"context"
	"time"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// ArticleSource is the slice of the article store the poller needs.
type ArticleSource interface {
	QueryPendingArticles(ctx context.Context, limit int) ([]domain.Article, error)
	MarkArticleStatus(ctx context.Context, articleID, status string, at time.Time) error
}

// Grader regrades one broadcaster after its deal set changed.
type Grader interface {
	Grade(ctx context.Context, broadcaster string) (*domain.ScoreSnapshot, error)
}

// Poller repeatedly drains the pending-article backlog. Each cycle pulls a
// batch, processes it, records article statuses, and regrades every
// broadcaster the batch touched.
type Poller struct {
	source    ArticleSource
	batch     *BatchProcessor
	grader    Grader
	interval  time.Duration
	batchSize int
	log       logger.Logger
}

// NewPoller creates a Poller.
func NewPoller(source ArticleSource, batch *BatchProcessor, grader Grader, interval time.Duration, batchSize int, log logger.Logger) *Poller {
	return &Poller{
		source:    source,
		batch:     batch,
		grader:    grader,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Run polls until ctx is cancelled. A failing cycle is logged and retried
// on the next tick; only context cancellation stops the loop.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("poller started",
		logger.Duration("interval", p.interval),
		logger.Int("batch_size", p.batchSize))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Error("poll cycle failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single poll cycle and reports what it did.
func (p *Poller) RunOnce(ctx context.Context) (BatchResult, error) {
	pending, err := p.source.QueryPendingArticles(ctx, p.batchSize)
	if err != nil {
		return BatchResult{}, err
	}
	if len(pending) == 0 {
		return BatchResult{ArticleStatus: map[string]string{}, Outcomes: []domain.UpsertOutcome{}}, nil
	}

	result, err := p.batch.ProcessBatch(ctx, pending)
	if err != nil {
		return result, err
	}

	now := time.Now().UTC()
	for id, status := range result.ArticleStatus {
		if err := p.source.MarkArticleStatus(ctx, id, status, now); err != nil {
			p.log.Error("failed to mark article status",
				logger.String("article_id", id),
				logger.String("status", status),
				logger.Error(err))
		}
	}

	for _, broadcaster := range result.Broadcasters() {
		if _, err := p.grader.Grade(ctx, broadcaster); err != nil {
			p.log.Error("regrade failed",
				logger.String("broadcaster", broadcaster),
				logger.Error(err))
		}
	}
	return result, nil
}
