package domain

import (
	"fmt"
	"strings"
	"time"
)

// DealType classifies the kind of deal an article describes.
type DealType string

// Recognized deal types. Anything else normalizes to DealTypeOther at the
// boundary; free-form strings never propagate past extraction.
const (
	DealTypeAcquisition  DealType = "acquisition"
	DealTypeRenewal      DealType = "renewal"
	DealTypeCoProduction DealType = "co-production"
	DealTypeLicensing    DealType = "licensing"
	DealTypeOutputDeal   DealType = "output-deal"
	DealTypeOther        DealType = "other"
)

// NormalizeDealType maps a raw type string onto the fixed enum.
func NormalizeDealType(s string) DealType {
	switch DealType(strings.ToLower(strings.TrimSpace(s))) {
	case DealTypeAcquisition, DealTypeRenewal, DealTypeCoProduction,
		DealTypeLicensing, DealTypeOutputDeal:
		return DealType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return DealTypeOther
	}
}

// FieldConfidence carries per-field confidence so the resolver can merge
// mentions field-by-field rather than winner-take-all.
type FieldConfidence struct {
	Broadcaster float64 `json:"broadcaster"`
	ShowTitle   float64 `json:"show_title"`
	DealType    float64 `json:"deal_type"`
	Genre       float64 `json:"genre"`
	Region      float64 `json:"region"`
	Date        float64 `json:"date"`
}

// DealMention is one candidate extraction from a single article. Mentions
// are ephemeral: they exist between the extractor and the resolver and are
// never persisted. Several mentions may describe the same real deal.
type DealMention struct {
	BroadcasterNameRaw string          `json:"broadcaster_name_raw"`
	ShowTitle          string          `json:"show_title,omitempty"`
	DealType           DealType        `json:"deal_type"`
	Genre              string          `json:"genre,omitempty"`
	Region             string          `json:"region,omitempty"`
	Confidence         float64         `json:"confidence"`
	Fields             FieldConfidence `json:"field_confidence"`
	SpanStart          int             `json:"span_start"`
	SpanEnd            int             `json:"span_end"`
	DealDate           time.Time       `json:"deal_date,omitempty"`
	DateFromFallback   bool            `json:"date_from_fallback,omitempty"`
	SourceArticleID    string          `json:"source_article_id"`
	ArticlePublishedAt time.Time       `json:"article_published_at"`
}

// DealRecord is the canonical, persisted form of a deal. Created by the
// resolver; immutable afterwards except for canonicalization corrections
// when a strictly better alias match is discovered.
type DealRecord struct {
	ID                       string    `db:"id"                         json:"id"`
	BroadcasterCanonicalName string    `db:"broadcaster_canonical_name" json:"broadcaster_canonical_name"`
	ShowTitle                string    `db:"show_title"                 json:"show_title"`
	DealType                 DealType  `db:"deal_type"                  json:"deal_type"`
	Genre                    string    `db:"genre"                      json:"genre,omitempty"`
	Region                   string    `db:"region"                     json:"region,omitempty"`
	DealDate                 time.Time `db:"deal_date"                  json:"deal_date"`
	SourceArticleID          string    `db:"source_article_id"          json:"source_article_id"`
	ExtractionConfidence     float64   `db:"extraction_confidence"      json:"extraction_confidence"`
	FlaggedForAudit          bool      `db:"flagged_for_audit"          json:"flagged_for_audit"`
	CreatedAt                time.Time `db:"created_at"                 json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at"                 json:"updated_at"`
}

// DedupKey identifies a deal record uniquely. Two mentions mapping to the
// same key are the same deal.
type DedupKey struct {
	Broadcaster string
	ShowTitle   string
	DealType    DealType
	DealDate    time.Time
}

// Key returns the record's dedup key.
func (r *DealRecord) Key() DedupKey {
	return DedupKey{
		Broadcaster: r.BroadcasterCanonicalName,
		ShowTitle:   r.ShowTitle,
		DealType:    r.DealType,
		DealDate:    r.DealDate,
	}
}

// String renders the key in a stable, loggable form.
func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Broadcaster, k.ShowTitle, k.DealType, k.DealDate.Format("2006-01-02"))
}
