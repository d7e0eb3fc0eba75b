package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JPisOP007/jeevo/internal/api"
	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/log"
	"github.com/JPisOP007/jeevo/internal/rag"
	"github.com/JPisOP007/jeevo/internal/testutil"
)

// stubSearcher serves canned results without a database.
type stubSearcher struct {
	results []knowledge.Result
	err     error
	calls   int
}

func (s *stubSearcher) Search(context.Context, string, ...knowledge.SearchOption) ([]knowledge.Result, error) {
	s.calls++
	return s.results, s.err
}

func malariaResults() []knowledge.Result {
	return []knowledge.Result{
		{
			Chunk: knowledge.Chunk{
				ID:      "chunk_1",
				Content: "Malaria is prevented with insecticide-treated bed nets.",
				Source:  "WHO malaria guidelines",
			},
			Similarity: 0.8,
		},
		{
			Chunk: knowledge.Chunk{
				ID:      "chunk_2",
				Content: "Artemisinin combination therapy treats uncomplicated malaria.",
				Source:  "WHO malaria guidelines",
			},
			Similarity: 0.6,
		},
	}
}

func newTestServer(t *testing.T, searcher rag.Searcher, opts ...func(*api.ServerConfig)) *api.Server {
	t.Helper()

	mock := testutil.NewMockAI(t, 8, "Artemisinin combination therapy treats malaria effectively")
	generator := rag.NewGenerator(mock.Genkit, testutil.ModelName, log.NewNop())
	service := rag.NewService(searcher, generator, rag.NewScorer(0.5, 0.3), rag.NewClassifier(nil), 3, log.NewNop())

	cfg := api.ServerConfig{
		Logger:         log.NewNop(),
		RAG:            service,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := api.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, srv http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestQueryReturnsAnswer(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{results: malariaResults()})

	rec := postJSON(t, srv, "/api/query", `{"question": "How do I prevent malaria?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var answer rag.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if answer.Answer == "" {
		t.Error("empty answer")
	}
	if answer.Confidence != rag.ConfidenceHigh {
		t.Errorf("confidence = %q, want high", answer.Confidence)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "WHO malaria guidelines" {
		t.Errorf("sources = %v", answer.Sources)
	}
}

func TestQueryMissingQuestion(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	rec := postJSON(t, srv, "/api/query", `{"question": "  "}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQueryNonMedicalQuestion(t *testing.T) {
	searcher := &stubSearcher{results: malariaResults()}
	srv := newTestServer(t, searcher)

	rec := postJSON(t, srv, "/api/query", `{"question": "How do I replace a bicycle tire?"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if searcher.calls != 0 {
		t.Errorf("retrieval ran %d times for a non-medical question, want 0", searcher.calls)
	}
}

func TestQueryMalformedBody(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	for _, body := range []string{"", "{", `{"unknown_field": true}`} {
		rec := postJSON(t, srv, "/api/query", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestQueryServiceUnavailable(t *testing.T) {
	service := rag.NewService(nil, nil, nil, nil, 3, log.NewNop())
	srv, err := api.NewServer(api.ServerConfig{RAG: service})
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}

	rec := postJSON(t, srv, "/api/query", `{"question": "How do I prevent malaria?"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestValidateReturnsValidation(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{results: malariaResults()})

	rec := postJSON(t, srv, "/api/validate",
		`{"question": "How is malaria treated?", "answer": "Artemisinin combination therapy treats malaria."}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var validation rag.Validation
	if err := json.Unmarshal(rec.Body.Bytes(), &validation); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if validation.Inconclusive {
		t.Error("validation inconclusive with evidence present")
	}
	if validation.Accuracy <= 0 {
		t.Errorf("accuracy = %v, want > 0", validation.Accuracy)
	}
}

func TestValidateMissingFields(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	tests := map[string]string{
		"missing answer":   `{"question": "How is malaria treated?"}`,
		"missing question": `{"answer": "Use bed nets."}`,
	}
	for name, body := range tests {
		rec := postJSON(t, srv, "/api/validate", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestRateLimitExceeded(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{}, func(cfg *api.ServerConfig) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 1
	})

	first := postJSON(t, srv, "/api/query", `{"question": "q"}`)
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first request must not be rate limited")
	}

	second := postJSON(t, srv, "/api/query", `{"question": "q"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", second.Code)
	}

	// Health checks bypass the limiter.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRunGracefulShutdown(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0")
	}()

	// Let the listener come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
