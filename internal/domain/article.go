package domain

import "time"

// Article is one fetched news article as delivered by the scraper layer.
// The extraction pipeline only reads it; it is never mutated here.
type Article struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	BodyText    string    `json:"body_text"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`

	// ExtractionStatus tracks pipeline progress in the article store.
	ExtractionStatus string     `json:"extraction_status"`
	ExtractedAt      *time.Time `json:"extracted_at,omitempty"`
}

// ExtractionStatus constants.
const (
	StatusPending   = "pending"
	StatusExtracted = "extracted"
	StatusFailed    = "failed"
)
