package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
)

const defaultQueryWindowDays = 365

type extractRequest struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	BodyText    string    `json:"body_text" binding:"required"`
	PublishedAt time.Time `json:"published_at"`
}

func (r *extractRequest) toArticle() *domain.Article {
	a := &domain.Article{
		ID:          r.ID,
		Source:      r.Source,
		URL:         r.URL,
		Title:       r.Title,
		BodyText:    r.BodyText,
		PublishedAt: r.PublishedAt,
		FetchedAt:   time.Now().UTC(),
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = time.Now().UTC()
	}
	return a
}

// handleExtract runs extraction synchronously and returns the mentions
// without persisting anything. Useful for lexicon tuning and debugging.
func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	article := req.toArticle()
	mentions, err := s.deps.Extractor.Extract(c.Request.Context(), article)
	if err != nil {
		s.log.Error("extract request failed", logger.String("article_id", article.ID), logger.Error(err))
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id": article.ID,
		"mentions":   mentions,
		"count":      len(mentions),
	})
}

type ingestRequest struct {
	Articles []extractRequest `json:"articles" binding:"required"`
}

// handleIngest runs the full pipeline synchronously over a batch of
// articles: store, extract, resolve, regrade the broadcasters touched, and
// report the upsert tally.
func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(req.Articles) == 0 {
		respondError(c, http.StatusBadRequest, "no articles supplied")
		return
	}

	ctx := c.Request.Context()
	batch := make([]domain.Article, 0, len(req.Articles))
	for i := range req.Articles {
		if req.Articles[i].BodyText == "" {
			respondError(c, http.StatusBadRequest, "article body_text is required")
			return
		}
		article := req.Articles[i].toArticle()
		article.ExtractionStatus = domain.StatusPending
		if err := s.deps.Articles.IndexArticle(ctx, article); err != nil {
			s.log.Error("ingest store failed", logger.String("article_id", article.ID), logger.Error(err))
			respondError(c, http.StatusBadGateway, "failed to store article")
			return
		}
		batch = append(batch, *article)
	}

	result, err := s.deps.Pipeline.ProcessBatch(ctx, batch)
	if err != nil {
		s.log.Error("ingest pipeline failed", logger.Error(err))
		respondError(c, http.StatusInternalServerError, "pipeline failed")
		return
	}

	now := time.Now().UTC()
	for id, status := range result.ArticleStatus {
		if err := s.deps.Articles.MarkArticleStatus(ctx, id, status, now); err != nil {
			s.log.Error("ingest status update failed",
				logger.String("article_id", id), logger.Error(err))
		}
	}

	broadcasters := result.Broadcasters()
	for _, b := range broadcasters {
		if _, err := s.deps.Grader.Grade(ctx, b); err != nil {
			s.log.Error("ingest regrade failed",
				logger.String("broadcaster", b), logger.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"articles":     len(batch),
		"extracted":    result.Extracted,
		"failed":       result.Failed,
		"mentions":     result.Mentions,
		"records":      result.Outcomes,
		"broadcasters": broadcasters,
	})
}

// handleGetBroadcaster returns one registry entry by name or alias.
func (s *Server) handleGetBroadcaster(c *gin.Context) {
	name := c.Param("broadcaster")

	b, err := s.deps.Broadcasters.FindBroadcaster(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrBroadcasterNotFound) {
			respondError(c, http.StatusNotFound, "unknown broadcaster")
			return
		}
		s.log.Error("get broadcaster failed", logger.String("broadcaster", name), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to load broadcaster")
		return
	}
	c.JSON(http.StatusOK, b)
}

// handleGrade grades a broadcaster on demand and returns the snapshot.
func (s *Server) handleGrade(c *gin.Context) {
	broadcaster := c.Param("broadcaster")

	snapshot, err := s.deps.Grader.Grade(c.Request.Context(), broadcaster)
	if err != nil {
		if errors.Is(err, domain.ErrBroadcasterNotFound) {
			respondError(c, http.StatusNotFound, "unknown broadcaster")
			return
		}
		s.log.Error("grade request failed", logger.String("broadcaster", broadcaster), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "grading failed")
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleListBroadcasters(c *gin.Context) {
	broadcasters, err := s.deps.Broadcasters.ListBroadcasters(c.Request.Context())
	if err != nil {
		s.log.Error("list broadcasters failed", logger.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to list broadcasters")
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcasters": broadcasters, "count": len(broadcasters)})
}

func (s *Server) handleListDeals(c *gin.Context) {
	broadcaster := c.Param("broadcaster")
	from, to, err := timeRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	deals, err := s.deps.Deals.QueryDealRecords(c.Request.Context(), broadcaster, from, to)
	if err != nil {
		s.log.Error("list deals failed", logger.String("broadcaster", broadcaster), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to query deals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals, "count": len(deals)})
}

func (s *Server) handleListSnapshots(c *gin.Context) {
	broadcaster := c.Param("broadcaster")
	from, to, err := timeRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	snapshots, err := s.deps.Snapshots.QueryScoreSnapshots(c.Request.Context(), broadcaster, from, to)
	if err != nil {
		s.log.Error("list snapshots failed", logger.String("broadcaster", broadcaster), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to query snapshots")
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "count": len(snapshots)})
}

// timeRange reads optional from/to query parameters (RFC 3339 or
// YYYY-MM-DD), defaulting to the trailing year.
func timeRange(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid 'to' parameter")
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -defaultQueryWindowDays)
	if raw := c.Query("from"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid 'from' parameter")
		}
		from = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must not be after 'to'")
	}
	return from, to, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
