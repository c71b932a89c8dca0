package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/database"
	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
	"github.com/rishabhpatre/ai-news-agent/app/tasks"
)

type fakeStore struct {
	digests   map[string]*pipeline.Digest
	perDigest map[string][]item.Failure
	latest    *pipeline.Digest
	failures  []database.SourceFailures
	err       error
	lastLimit int
	lastRange int
}

func (f *fakeStore) SaveDigest(ctx context.Context, d *pipeline.Digest) error {
	return f.err
}

func (f *fakeStore) GetDigest(ctx context.Context, id string) (*pipeline.Digest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.digests[id], nil
}

func (f *fakeStore) LatestDigest(ctx context.Context) (*pipeline.Digest, error) {
	return f.latest, f.err
}

func (f *fakeStore) ListDigests(ctx context.Context, limit int) ([]database.DigestSummary, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []database.DigestSummary
	for _, d := range f.digests {
		out = append(out, database.DigestSummary{ID: d.ID, GeneratedAt: d.GeneratedAt, Stats: d.Stats})
	}
	return out, nil
}

func (f *fakeStore) SourceFailureCounts(ctx context.Context, digests int) ([]database.SourceFailures, error) {
	f.lastRange = digests
	return f.failures, f.err
}

func (f *fakeStore) DigestFailures(ctx context.Context, digestID string) ([]item.Failure, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.perDigest[digestID], nil
}

type fakeTrigger struct {
	err     error
	calls   int
	running bool
}

func (f *fakeTrigger) TriggerRun(trigger string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "task-1", nil
}

func (f *fakeTrigger) Running() bool {
	return f.running
}

func testDigest() *pipeline.Digest {
	return &pipeline.Digest{
		ID:          "d-1",
		GeneratedAt: time.Date(2024, 5, 10, 7, 0, 0, 0, time.UTC),
		Stats:       pipeline.Stats{Sources: 3, Selected: 2},
	}
}

func newTestServer(store *fakeStore, trigger RunTrigger, key string) (http.Handler, *metrics.Collector) {
	m := metrics.NewCollector()
	return NewServer(NewHandler(store, trigger, m, 3, "test"), key), m
}

func do(t *testing.T, h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetLatestDigest(t *testing.T) {
	store := &fakeStore{latest: testDigest()}
	srv, _ := newTestServer(store, nil, "")

	w := do(t, srv, http.MethodGet, "/digests/latest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Digest-ID") != "d-1" {
		t.Errorf("Expected X-Digest-ID header, got '%s'", w.Header().Get("X-Digest-ID"))
	}

	var got pipeline.Digest
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "d-1" || got.Stats.Selected != 2 {
		t.Errorf("Unexpected digest payload: %+v", got)
	}
}

func TestGetLatestDigestEmptyArchive(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, nil, "")

	if w := do(t, srv, http.MethodGet, "/digests/latest", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestGetDigestByID(t *testing.T) {
	store := &fakeStore{digests: map[string]*pipeline.Digest{"d-1": testDigest()}}
	srv, _ := newTestServer(store, nil, "")

	if w := do(t, srv, http.MethodGet, "/digests/d-1", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/digests/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown digest, got %d", w.Code)
	}
}

func TestDatabaseErrors(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{err: errors.New("disk I/O error")}, nil, "")

	for _, path := range []string{"/digests/latest", "/digests/d-1", "/digests/d-1/failures", "/digests", "/sources/failures"} {
		w := do(t, srv, http.MethodGet, path, nil)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", path, w.Code)
		}
		if strings.Contains(w.Body.String(), "disk I/O") {
			t.Errorf("%s: expected database error details to stay internal", path)
		}
	}
}

func TestListDigestsLimit(t *testing.T) {
	store := &fakeStore{digests: map[string]*pipeline.Digest{"d-1": testDigest()}}
	srv, _ := newTestServer(store, nil, "")

	w := do(t, srv, http.MethodGet, "/digests", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if store.lastLimit != defaultListLimit {
		t.Errorf("Expected default limit %d, got %d", defaultListLimit, store.lastLimit)
	}

	var body struct {
		Digests []database.DigestSummary `json:"digests"`
		Total   int                      `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || body.Digests[0].ID != "d-1" {
		t.Errorf("Unexpected list payload: %+v", body)
	}

	do(t, srv, http.MethodGet, "/digests?limit=1000", nil)
	if store.lastLimit != maxListLimit {
		t.Errorf("Expected limit capped at %d, got %d", maxListLimit, store.lastLimit)
	}

	if w := do(t, srv, http.MethodGet, "/digests?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", w.Code)
	}
}

func TestListDigestsEmpty(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, nil, "")

	w := do(t, srv, http.MethodGet, "/digests", nil)
	if !strings.Contains(w.Body.String(), `"digests":[]`) {
		t.Errorf("Expected empty array, got %s", w.Body.String())
	}
}

func TestSourceFailures(t *testing.T) {
	store := &fakeStore{failures: []database.SourceFailures{{Source: "reddit", Failures: 2, LastReason: "HTTP 429"}}}
	srv, _ := newTestServer(store, nil, "")

	w := do(t, srv, http.MethodGet, "/sources/failures?digests=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if store.lastRange != 3 {
		t.Errorf("Expected range 3, got %d", store.lastRange)
	}
	if !strings.Contains(w.Body.String(), `"last_reason":"HTTP 429"`) {
		t.Errorf("Expected failure reason in body, got %s", w.Body.String())
	}

	if w := do(t, srv, http.MethodGet, "/sources/failures?digests=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-positive range, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	store := &fakeStore{latest: testDigest()}
	srv, _ := newTestServer(store, &fakeTrigger{running: true}, "")

	w := do(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["sources"] != float64(3) {
		t.Errorf("Expected 3 sources, got %v", body["sources"])
	}
	if body["run_in_progress"] != true {
		t.Errorf("Expected run in progress, got %v", body["run_in_progress"])
	}
	latest, ok := body["latest_digest"].(map[string]interface{})
	if !ok || latest["id"] != "d-1" {
		t.Errorf("Expected latest digest summary, got %v", body["latest_digest"])
	}
}

func TestTriggerRunAuth(t *testing.T) {
	trigger := &fakeTrigger{}
	srv, _ := newTestServer(&fakeStore{}, trigger, "secret")

	if w := do(t, srv, http.MethodPost, "/api/runs", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodPost, "/api/runs", map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
	if trigger.calls != 0 {
		t.Errorf("Expected no runs triggered, got %d", trigger.calls)
	}

	w := do(t, srv, http.MethodPost, "/api/runs", map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":"task-1"`) {
		t.Errorf("Expected task id in body, got %s", w.Body.String())
	}
}

func TestTriggerRunConflict(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakeTrigger{err: tasks.ErrRunInProgress}, "secret")

	w := do(t, srv, http.MethodPost, "/api/runs", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakeTrigger{}, "")

	if w := do(t, srv, http.MethodPost, "/api/runs", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	store := &fakeStore{latest: testDigest()}
	srv, _ := newTestServer(store, nil, "")

	do(t, srv, http.MethodGet, "/digests/d-1", nil)

	w := do(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `ai_news_http_requests_total{method="GET",route="/digests/:id",status="404"} 1`) {
		t.Errorf("Expected request counter by route template, got:\n%s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, nil, "")

	w := do(t, srv, http.MethodOptions, "/digests/latest", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestGetDigestFailures(t *testing.T) {
	store := &fakeStore{
		digests: map[string]*pipeline.Digest{"d-1": testDigest(), "d-2": {ID: "d-2"}},
		perDigest: map[string][]item.Failure{
			"d-1": {{SourceID: "reddit", Reason: "HTTP error: 429 Too Many Requests"}},
		},
	}
	srv, _ := newTestServer(store, nil, "")

	w := do(t, srv, http.MethodGet, "/digests/d-1/failures", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Digest   string         `json:"digest"`
		Failures []item.Failure `json:"failures"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Digest != "d-1" || len(body.Failures) != 1 || body.Failures[0].SourceID != "reddit" {
		t.Errorf("Unexpected failures payload: %+v", body)
	}

	w = do(t, srv, http.MethodGet, "/digests/d-2/failures", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for a digest without failures, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"failures":[]`) {
		t.Errorf("Expected empty failure list, got %s", w.Body.String())
	}

	if w := do(t, srv, http.MethodGet, "/digests/missing/failures", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown digest, got %d", w.Code)
	}
}
