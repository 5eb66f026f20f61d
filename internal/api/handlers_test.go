package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/domain"
	"github.com/screenwire/bars/internal/logger"
	"github.com/screenwire/bars/internal/processor"
)

type stubExtractor struct {
	mentions []domain.DealMention
	err      error
}

func (s *stubExtractor) Extract(context.Context, *domain.Article) ([]domain.DealMention, error) {
	return s.mentions, s.err
}

type stubArticles struct {
	indexed []*domain.Article
	marked  map[string]string
	err     error
}

func (s *stubArticles) IndexArticle(_ context.Context, a *domain.Article) error {
	s.indexed = append(s.indexed, a)
	return s.err
}

func (s *stubArticles) MarkArticleStatus(_ context.Context, articleID, status string, _ time.Time) error {
	if s.marked == nil {
		s.marked = map[string]string{}
	}
	s.marked[articleID] = status
	return nil
}

type stubPipeline struct {
	result processor.BatchResult
	err    error
	got    []domain.Article
}

func (s *stubPipeline) ProcessBatch(_ context.Context, batch []domain.Article) (processor.BatchResult, error) {
	s.got = batch
	return s.result, s.err
}

type stubGrader struct {
	snapshot *domain.ScoreSnapshot
	err      error
}

func (s *stubGrader) Grade(context.Context, string) (*domain.ScoreSnapshot, error) {
	return s.snapshot, s.err
}

type stubBroadcasters []domain.Broadcaster

func (s stubBroadcasters) FindBroadcaster(_ context.Context, name string) (*domain.Broadcaster, error) {
	for i := range s {
		if s[i].CanonicalName == name {
			return &s[i], nil
		}
	}
	return nil, domain.ErrBroadcasterNotFound
}
func (s stubBroadcasters) SaveBroadcaster(context.Context, *domain.Broadcaster) error { return nil }
func (s stubBroadcasters) ListBroadcasters(context.Context) ([]domain.Broadcaster, error) {
	return s, nil
}

type stubDeals []domain.DealRecord

func (s stubDeals) UpsertDealRecord(context.Context, *domain.DealRecord, time.Duration) (domain.UpsertResult, error) {
	return domain.UpsertCreated, nil
}
func (s stubDeals) QueryDealRecords(context.Context, string, time.Time, time.Time) ([]domain.DealRecord, error) {
	return s, nil
}

type stubSnapshots []domain.ScoreSnapshot

func (s stubSnapshots) AppendScoreSnapshot(context.Context, *domain.ScoreSnapshot) error { return nil }
func (s stubSnapshots) QueryScoreSnapshots(context.Context, string, time.Time, time.Time) ([]domain.ScoreSnapshot, error) {
	return s, nil
}

func testServer(t *testing.T, deps Deps, jwtSecret string) *Server {
	t.Helper()
	cfg := config.Config{}
	cfg.Service.Name = "bars"
	cfg.Service.Port = 0
	cfg.Auth.JWTSecret = jwtSecret
	if deps.Grader == nil {
		deps.Grader = &stubGrader{snapshot: &domain.ScoreSnapshot{Grade: domain.GradeB}}
	}
	if deps.Extractor == nil {
		deps.Extractor = &stubExtractor{}
	}
	if deps.Articles == nil {
		deps.Articles = &stubArticles{}
	}
	if deps.Pipeline == nil {
		deps.Pipeline = &stubPipeline{}
	}
	if deps.Broadcasters == nil {
		deps.Broadcasters = stubBroadcasters{}
	}
	if deps.Deals == nil {
		deps.Deals = stubDeals{}
	}
	if deps.Snapshots == nil {
		deps.Snapshots = stubSnapshots{}
	}
	return NewServer(cfg, deps, logger.Nop())
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleExtract(t *testing.T) {
	mentions := []domain.DealMention{{
		BroadcasterNameRaw: "Netflix",
		DealType:           domain.DealTypeRenewal,
		Confidence:         0.9,
	}}
	s := testServer(t, Deps{Extractor: &stubExtractor{mentions: mentions}}, "")

	w := doRequest(s, http.MethodPost, "/api/v1/extract",
		`{"title":"t","body_text":"Netflix renews something"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count    int                  `json:"count"`
		Mentions []domain.DealMention `json:"mentions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Mentions[0].BroadcasterNameRaw != "Netflix" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleExtractRequiresBody(t *testing.T) {
	s := testServer(t, Deps{}, "")
	w := doRequest(s, http.MethodPost, "/api/v1/extract", `{"title":"no body text"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleIngest(t *testing.T) {
	store := &stubArticles{}
	pipe := &stubPipeline{result: processor.BatchResult{
		Extracted: 2,
		Mentions:  3,
		Outcomes: []domain.UpsertOutcome{
			{Record: domain.DealRecord{BroadcasterCanonicalName: "Netflix"}, Result: domain.UpsertCreated},
			{Record: domain.DealRecord{BroadcasterCanonicalName: "HBO Max"}, Result: domain.UpsertUpdated},
		},
		ArticleStatus: map[string]string{"a1": domain.StatusExtracted, "a2": domain.StatusExtracted},
	}}
	grader := &stubGrader{snapshot: &domain.ScoreSnapshot{Grade: domain.GradeB}}
	s := testServer(t, Deps{Articles: store, Pipeline: pipe, Grader: grader}, "")

	body := `{"articles":[
		{"id":"a1","source":"variety","title":"t1","body_text":"Netflix renews something"},
		{"id":"a2","source":"deadline","title":"t2","body_text":"HBO Max acquires something"}
	]}`
	w := doRequest(s, http.MethodPost, "/api/v1/ingest", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	if len(store.indexed) != 2 {
		t.Fatalf("indexed %d articles, want 2", len(store.indexed))
	}
	for _, a := range store.indexed {
		if a.ExtractionStatus != domain.StatusPending {
			t.Errorf("article %s status = %q, want pending", a.ID, a.ExtractionStatus)
		}
	}
	if len(pipe.got) != 2 {
		t.Fatalf("pipeline saw %d articles, want 2", len(pipe.got))
	}
	if store.marked["a1"] != domain.StatusExtracted || store.marked["a2"] != domain.StatusExtracted {
		t.Errorf("marked statuses = %v, want both extracted", store.marked)
	}

	var resp struct {
		Articles     int                    `json:"articles"`
		Extracted    int                    `json:"extracted"`
		Mentions     int                    `json:"mentions"`
		Records      []domain.UpsertOutcome `json:"records"`
		Broadcasters []string               `json:"broadcasters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Articles != 2 || resp.Extracted != 2 || resp.Mentions != 3 {
		t.Errorf("tally = %+v, want 2 articles, 2 extracted, 3 mentions", resp)
	}
	if len(resp.Records) != 2 {
		t.Errorf("records = %d, want 2", len(resp.Records))
	}
	if len(resp.Broadcasters) != 2 || resp.Broadcasters[0] != "HBO Max" || resp.Broadcasters[1] != "Netflix" {
		t.Errorf("broadcasters = %v, want sorted [HBO Max Netflix]", resp.Broadcasters)
	}
}

func TestHandleIngestRejectsEmptyBatch(t *testing.T) {
	s := testServer(t, Deps{}, "")
	w := doRequest(s, http.MethodPost, "/api/v1/ingest", `{"articles":[]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty batch", w.Code)
	}
}

func TestHandleGetBroadcaster(t *testing.T) {
	known := stubBroadcasters{{CanonicalName: "Netflix", KnownAliases: []string{"netflix"}}}
	s := testServer(t, Deps{Broadcasters: known}, "")

	w := doRequest(s, http.MethodGet, "/api/v1/broadcasters/Netflix", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var got domain.Broadcaster
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.CanonicalName != "Netflix" {
		t.Errorf("canonical name = %q, want Netflix", got.CanonicalName)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/broadcasters/Nobody", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown broadcaster", w.Code)
	}
}

func TestHandleGradeUnknownBroadcaster(t *testing.T) {
	s := testServer(t, Deps{Grader: &stubGrader{err: domain.ErrBroadcasterNotFound}}, "")
	w := doRequest(s, http.MethodPost, "/api/v1/grade/Nobody", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleGrade(t *testing.T) {
	snap := &domain.ScoreSnapshot{
		BroadcasterCanonicalName: "Netflix",
		RawScore:                 10,
		Grade:                    domain.GradeB,
	}
	s := testServer(t, Deps{Grader: &stubGrader{snapshot: snap}}, "")

	w := doRequest(s, http.MethodPost, "/api/v1/grade/Netflix", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got domain.ScoreSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Grade != domain.GradeB || got.RawScore != 10 {
		t.Errorf("snapshot = %+v, want grade B score 10", got)
	}
}

func TestHandleListDealsBadRange(t *testing.T) {
	s := testServer(t, Deps{}, "")
	w := doRequest(s, http.MethodGet, "/api/v1/broadcasters/Netflix/deals?from=2025-06-01&to=2025-01-01", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for inverted range", w.Code)
	}
}

func TestHandleListDeals(t *testing.T) {
	deals := stubDeals{{ID: "d1", BroadcasterCanonicalName: "Netflix", DealType: domain.DealTypeRenewal}}
	s := testServer(t, Deps{Deals: deals}, "")

	w := doRequest(s, http.MethodGet, "/api/v1/broadcasters/Netflix/deals", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	s := testServer(t, Deps{}, secret)

	// No token.
	w := doRequest(s, http.MethodGet, "/api/v1/broadcasters", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without token", w.Code)
	}

	// Bad token.
	w = doRequest(s, http.MethodGet, "/api/v1/broadcasters", "",
		map[string]string{"Authorization": "Bearer not-a-token"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 with bad token", w.Code)
	}

	// Valid token.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	w = doRequest(s, http.MethodGet, "/api/v1/broadcasters", "",
		map[string]string{"Authorization": "Bearer " + signed})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with valid token: %s", w.Code, w.Body.String())
	}

	// Health stays open.
	w = doRequest(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", w.Code)
	}
}
