// Package articles reads and updates the scraped-article store in
// Elasticsearch. The scraper side owns ingestion of raw pages; this side
// pulls pending articles for extraction and writes status transitions back.
package articles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

// Store is the Elasticsearch-backed article store.
type Store struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

// NewStore creates a Store from configuration.
func NewStore(cfg config.ElasticsearchConfig, log logger.Logger) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Store{client: client, index: cfg.ArticleIndex, log: log}, nil
}

// Health pings the cluster.
func (s *Store) Health(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// IndexArticle stores an article, keyed by its ID. Used by the ingest API;
// newly indexed articles start in pending status unless the caller says
// otherwise.
func (s *Store) IndexArticle(ctx context.Context, article *domain.Article) error {
	if article.ExtractionStatus == "" {
		article.ExtractionStatus = domain.StatusPending
	}

	body, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal article %s: %w", article.ID, err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: article.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index article %s: %w", article.ID, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("index article %s: %s", article.ID, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// QueryPendingArticles returns up to limit articles awaiting extraction,
// oldest published first so backlog drains in order.
func (s *Store) QueryPendingArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"term": map[string]any{
				"extraction_status": domain.StatusPending,
			},
		},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "asc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal pending query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search pending articles: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, fmt.Errorf("search pending articles: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	articles := make([]domain.Article, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var a domain.Article
		if err := json.Unmarshal(hit.Source, &a); err != nil {
			s.log.Warn("skipping malformed article document",
				logger.String("id", hit.ID), logger.Error(err))
			continue
		}
		if a.ID == "" {
			a.ID = hit.ID
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// MarkArticleStatus records the outcome of an extraction attempt.
func (s *Store) MarkArticleStatus(ctx context.Context, articleID, status string, at time.Time) error {
	update := map[string]any{
		"doc": map[string]any{
			"extraction_status": status,
			"extracted_at":      at,
		},
	}
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal status update: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      s.index,
		DocumentID: articleID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("mark article %s %s: %w", articleID, status, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("mark article %s %s: %s", articleID, status, res.Status())
	}
	return nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
