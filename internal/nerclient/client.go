// Package nerclient talks to the named-entity recognizer sidecar over HTTP.
// The recognizer is an optional dependency: callers treat ErrUnavailable as
// a signal to degrade to lexicon-only extraction, not as a pipeline failure.
package nerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/screenwire/bars/internal/logger"
)

// Entity labels the recognizer emits that the extractor consumes.
const (
	LabelOrg        = "ORG"
	LabelDate       = "DATE"
	LabelWorkOfArt  = "WORK_OF_ART"
	LabelGPE        = "GPE"
	healthyStatus   = "healthy"
	maxResponseSize = 4 << 20
)

// ErrUnavailable indicates the recognizer could not be reached or returned
// a non-200 response. The extractor falls back to the lexicon on this error.
var ErrUnavailable = errors.New("ner service unavailable")

// Span is one tagged entity in the submitted text. Start and End are byte
// offsets into the text as submitted.
type Span struct {
	Text        string  `json:"text"`
	Label       string  `json:"label"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Probability float64 `json:"probability"`
}

// Tagger is the recognizer contract the extractor depends on.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Span, error)
	Health(ctx context.Context) error
}

// Client is an HTTP Tagger implementation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a recognizer client.
func New(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type tagRequest struct {
	Text string `json:"text"`
}

type tagResponse struct {
	Spans []Span `json:"spans"`
}

// Tag submits text for entity tagging. Transport and server-side failures
// are wrapped in ErrUnavailable so callers can branch on it.
func (c *Client) Tag(ctx context.Context, text string) ([]Span, error) {
	body, err := json.Marshal(tagRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal tag request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tag", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tag request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ner request failed", logger.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ner returned non-200", logger.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out tagResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return out.Spans, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health probes the recognizer's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.Status != healthyStatus {
		return fmt.Errorf("%w: status %q", ErrUnavailable, out.Status)
	}
	return nil
}
