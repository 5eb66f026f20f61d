// Package api exposes the extraction and grading engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
	"github.com/screenwire/bars/internal/processor"
	"github.com/screenwire/bars/internal/telemetry"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Extractor runs synchronous extraction for the extract endpoint.
type Extractor interface {
	Extract(ctx context.Context, article *domain.Article) ([]domain.DealMention, error)
}

// ArticleStore persists ingested articles and their extraction status.
type ArticleStore interface {
	IndexArticle(ctx context.Context, article *domain.Article) error
	MarkArticleStatus(ctx context.Context, articleID, status string, at time.Time) error
}

// Pipeline runs extraction and resolution over a batch of articles.
type Pipeline interface {
	ProcessBatch(ctx context.Context, batch []domain.Article) (processor.BatchResult, error)
}

// Grader grades one broadcaster on demand.
type Grader interface {
	Grade(ctx context.Context, broadcaster string) (*domain.ScoreSnapshot, error)
}

// HealthCheck probes one dependency; the ready endpoint aggregates them.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps bundles everything the server serves.
type Deps struct {
	Extractor    Extractor
	Articles     ArticleStore
	Pipeline     Pipeline
	Grader       Grader
	Broadcasters domain.BroadcasterRepository
	Deals        domain.DealRepository
	Snapshots    domain.SnapshotRepository
	Telemetry    *telemetry.Provider
	Checks       []HealthCheck
}

// Server is the HTTP front of the service.
type Server struct {
	cfg    config.Config
	deps   Deps
	log    logger.Logger
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the router and the underlying http.Server.
func NewServer(cfg config.Config, deps Deps, log logger.Logger) *Server {
	if !cfg.Service.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    log,
		engine: engine,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
			Handler:      engine,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(s.requestLogger())

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	if s.deps.Telemetry != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Telemetry.MetricsHandler()))
	}

	v1 := s.engine.Group("/api/v1")
	if secret := s.cfg.Auth.JWTSecret; secret != "" {
		v1.Use(jwtAuth(secret, s.log))
	}

	v1.POST("/extract", s.handleExtract)
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/grade/:broadcaster", s.handleGrade)
	v1.GET("/broadcasters", s.handleListBroadcasters)
	v1.GET("/broadcasters/:broadcaster", s.handleGetBroadcaster)
	v1.GET("/broadcasters/:broadcaster/deals", s.handleListDeals)
	v1.GET("/broadcasters/:broadcaster/snapshots", s.handleListSnapshots)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if s.deps.Telemetry != nil {
			s.deps.Telemetry.HTTPRequest(c.Request.Method, path, fmt.Sprintf("%d", status))
		}
		s.log.Debug("request served",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Duration("took", time.Since(started)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.cfg.Service.Name,
		"version": s.cfg.Service.Version,
	})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for _, check := range s.deps.Checks {
		if err := check.Check(ctx); err != nil {
			checks[check.Name] = err.Error()
			ready = false
			continue
		}
		checks[check.Name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
