package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/log"
	"github.com/JPisOP007/jeevo/internal/testutil"
)

// stubSearcher is a canned Searcher implementation.
type stubSearcher struct {
	results   []knowledge.Result
	err       error
	lastQuery string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	s.lastQuery = query
	return s.results, s.err
}

func newTestService(t *testing.T, searcher Searcher) (*Service, *testutil.MockAI) {
	t.Helper()
	mock := testutil.NewMockAI(t, knowledge.VectorDimension, "fallback answer")
	gen := NewGenerator(mock.Genkit, testutil.ModelName, log.NewNop())
	svc := NewService(searcher, gen, NewScorer(0.5, 0.3), NewClassifier(nil), 3, log.NewNop())
	return svc, mock
}

func TestQueryUnavailable(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, 3, log.NewNop())

	_, err := svc.Query(context.Background(), "malaria treatment", 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Query() error = %v, want ErrUnavailable", err)
	}

	if _, err := svc.Validate(context.Background(), "q", "a"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Validate() error = %v, want ErrUnavailable", err)
	}
}

func TestQueryNoEvidenceReturnsCannedAnswer(t *testing.T) {
	searcher := &stubSearcher{}
	svc, mock := newTestService(t, searcher)

	got, err := svc.Query(context.Background(), "what is the treatment for kala-azar", 3)
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if got.Answer != NoEvidenceAnswer {
		t.Errorf("answer = %q, want canned no-evidence answer", got.Answer)
	}
	if got.Confidence != ConfidenceLow {
		t.Errorf("confidence = %q, want low", got.Confidence)
	}
	if len(got.Sources) != 0 {
		t.Errorf("sources = %v, want empty", got.Sources)
	}
	if calls := mock.LLM.Calls(); len(calls) != 0 {
		t.Errorf("model called %d times for empty retrieval, want 0", len(calls))
	}
}

func TestQueryGroundedAnswer(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	svc, mock := newTestService(t, searcher)
	mock.LLM.AddResponse("malaria", "Artemisinin-based combination therapy is first-line (WHO). Consult a healthcare professional.")

	got, err := svc.Query(context.Background(), "What is the first-line treatment for malaria?", 3)
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}

	if !strings.Contains(got.Answer, "Artemisinin") {
		t.Errorf("answer = %q", got.Answer)
	}
	if got.RetrievedChunks != 3 {
		t.Errorf("retrieved chunks = %d, want 3", got.RetrievedChunks)
	}
	// Mean of 0.8, 0.6, 0.5 is above the high threshold.
	if got.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %q, want high", got.Confidence)
	}
	wantSources := []string{"WHO malaria guidelines", "malaria prevention"}
	if len(got.Sources) != 2 || got.Sources[0] != wantSources[0] || got.Sources[1] != wantSources[1] {
		t.Errorf("sources = %v, want %v", got.Sources, wantSources)
	}
	if got.ContextLength == 0 {
		t.Error("context length should be recorded")
	}
	if searcher.lastQuery != "What is the first-line treatment for malaria?" {
		t.Errorf("search query = %q", searcher.lastQuery)
	}
}

func TestQueryRetrievalError(t *testing.T) {
	searcher := &stubSearcher{err: knowledge.ErrEmbedding}
	svc, _ := newTestService(t, searcher)

	_, err := svc.Query(context.Background(), "fever in children", 3)
	if !errors.Is(err, knowledge.ErrEmbedding) {
		t.Errorf("Query() error = %v, want wrapped ErrEmbedding", err)
	}
}

func TestQueryGenerationError(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	svc, mock := newTestService(t, searcher)
	mock.LLM.FailWith(errors.New("model down"))

	_, err := svc.Query(context.Background(), "malaria treatment", 3)
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("Query() error = %v, want ErrGeneration", err)
	}
}

func TestIsMedicalQuery(t *testing.T) {
	svc, _ := newTestService(t, &stubSearcher{})

	if !svc.IsMedicalQuery("I have a headache") {
		t.Error("headache should classify as medical")
	}
	if svc.IsMedicalQuery("book a taxi") {
		t.Error("taxi booking should not classify as medical")
	}
}

func TestValidateOverlap(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	svc, mock := newTestService(t, searcher)
	mock.LLM.AddResponse("malaria", "Artemisinin combination therapy treats malaria according to guidelines")

	got, err := svc.Validate(context.Background(),
		"What treats malaria?",
		"Doctors recommend artemisinin combination products against malaria")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if got.Inconclusive {
		t.Fatal("validation should be conclusive with evidence present")
	}
	// Reference terms (>4 chars): artemisinin, combination, therapy,
	// treats, malaria, according, guidelines. Shared: artemisinin,
	// combination, malaria.
	want := 3.0 / 7.0
	if got.Accuracy < want-0.001 || got.Accuracy > want+0.001 {
		t.Errorf("accuracy = %v, want %v", got.Accuracy, want)
	}
	for _, term := range []string{"artemisinin", "combination", "malaria"} {
		found := false
		for _, m := range got.MatchingTerms {
			if m == term {
				found = true
			}
		}
		if !found {
			t.Errorf("matching terms %v missing %q", got.MatchingTerms, term)
		}
	}
}

func TestValidateInconclusiveWithoutEvidence(t *testing.T) {
	svc, mock := newTestService(t, &stubSearcher{})

	got, err := svc.Validate(context.Background(), "unknown topic", "some answer")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if !got.Inconclusive {
		t.Error("empty evidence should be inconclusive, not an error")
	}
	if calls := mock.LLM.Calls(); len(calls) != 0 {
		t.Errorf("model called %d times without evidence, want 0", len(calls))
	}
}

func TestSummaryQueriesBroadly(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	svc, mock := newTestService(t, searcher)
	mock.LLM.AddResponse("complete information", "Summary of malaria (WHO).")

	got, err := svc.Summary(context.Background(), "malaria")
	if err != nil {
		t.Fatalf("Summary() unexpected error: %v", err)
	}
	if !strings.Contains(searcher.lastQuery, "Complete information about malaria") {
		t.Errorf("summary query = %q", searcher.lastQuery)
	}
	if !strings.Contains(got.Answer, "Summary") {
		t.Errorf("answer = %q", got.Answer)
	}
}
