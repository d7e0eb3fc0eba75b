package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/log"
	"github.com/JPisOP007/jeevo/internal/testutil"
)

func sampleResults() []knowledge.Result {
	return []knowledge.Result{
		{Chunk: knowledge.Chunk{Content: "Artemisinin-based combination therapy is first-line.", Source: "WHO malaria guidelines"}, Similarity: 0.8},
		{Chunk: knowledge.Chunk{Content: "Use insecticide-treated bed nets.", Source: "malaria prevention"}, Similarity: 0.6},
		{Chunk: knowledge.Chunk{Content: "Seek care for fever in endemic areas.", Source: "WHO malaria guidelines"}, Similarity: 0.5},
	}
}

func TestBuildContextFormat(t *testing.T) {
	g := NewGenerator(nil, "unused", log.NewNop())

	got := g.BuildContext(sampleResults())

	if !strings.Contains(got, "[Source 1: WHO malaria guidelines]\nArtemisinin-based combination therapy is first-line.") {
		t.Errorf("missing first block, got:\n%s", got)
	}
	if !strings.Contains(got, "[Source 2: malaria prevention]") {
		t.Errorf("missing second block, got:\n%s", got)
	}
	// Rank numbering, not per-source numbering.
	if !strings.Contains(got, "[Source 3: WHO malaria guidelines]") {
		t.Errorf("missing third block, got:\n%s", got)
	}
}

func TestBuildContextUnknownSource(t *testing.T) {
	g := NewGenerator(nil, "unused", log.NewNop())

	got := g.BuildContext([]knowledge.Result{
		{Chunk: knowledge.Chunk{Content: "text"}, Similarity: 0.5},
	})
	if !strings.Contains(got, "[Source 1: Unknown]") {
		t.Errorf("missing Unknown label, got:\n%s", got)
	}
}

func TestBuildContextBudgetDropsLowestRanked(t *testing.T) {
	g := NewGenerator(nil, "unused", log.NewNop(), WithMaxContextChars(120))

	results := []knowledge.Result{
		{Chunk: knowledge.Chunk{Content: strings.Repeat("a", 80), Source: "first"}, Similarity: 0.9},
		{Chunk: knowledge.Chunk{Content: strings.Repeat("b", 80), Source: "second"}, Similarity: 0.5},
	}

	got := g.BuildContext(results)
	if !strings.Contains(got, "first") {
		t.Error("highest-ranked chunk must survive the budget")
	}
	if strings.Contains(got, "second") {
		t.Error("lowest-ranked chunk should be dropped when over budget")
	}
}

func TestBuildContextKeepsFirstEvenOverBudget(t *testing.T) {
	g := NewGenerator(nil, "unused", log.NewNop(), WithMaxContextChars(10))

	got := g.BuildContext(sampleResults()[:1])
	if got == "" {
		t.Error("the top-ranked chunk is always included")
	}
}

func TestSourcesSortedUnique(t *testing.T) {
	got := Sources(sampleResults())
	want := []string{"WHO malaria guidelines", "malaria prevention"}

	if len(got) != len(want) {
		t.Fatalf("Sources() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sources() = %v, want %v", got, want)
		}
	}
}

func TestGenerateGroundedAnswer(t *testing.T) {
	mock := testutil.NewMockAI(t, knowledge.VectorDimension, "fallback answer")
	mock.LLM.AddResponse("malaria", "Artemisinin-based combination therapy (WHO). Consult a doctor.")

	g := NewGenerator(mock.Genkit, testutil.ModelName, log.NewNop())

	contextBlock := g.BuildContext(sampleResults())
	answer, err := g.Generate(context.Background(), "What treats malaria?", contextBlock)
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if !strings.Contains(answer, "Artemisinin") {
		t.Errorf("answer = %q, want the registered grounded response", answer)
	}

	calls := mock.LLM.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].System, "CRITICAL RULES") {
		t.Error("system prompt missing grounding rules")
	}
	if !strings.Contains(calls[0].UserMessage, "[Source 1: WHO malaria guidelines]") {
		t.Error("user prompt missing assembled context")
	}
	if !strings.Contains(calls[0].UserMessage, "User Question: What treats malaria?") {
		t.Error("user prompt missing the question")
	}
}

func TestGenerateModelFailure(t *testing.T) {
	mock := testutil.NewMockAI(t, knowledge.VectorDimension, "fallback")
	mock.LLM.FailWith(errors.New("quota exceeded"))

	g := NewGenerator(mock.Genkit, testutil.ModelName, log.NewNop())

	_, err := g.Generate(context.Background(), "question", "context")
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("Generate() error = %v, want ErrGeneration", err)
	}
}

func TestGenerateTimeoutBounded(t *testing.T) {
	g := genkit.Init(context.Background())
	genkit.DefineModel(g, "mock/slow-model", &ai.ModelOptions{
		Supports: &ai.ModelSupports{SystemRole: true},
	}, func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, fmt.Errorf("should have been cancelled")
		}
	})

	gen := NewGenerator(g, "mock/slow-model", log.NewNop(), WithGenerateTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := gen.Generate(context.Background(), "question", "context")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrGeneration) {
		t.Errorf("Generate() error = %v, want ErrGeneration", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Generate() took %s, deadline was 100ms", elapsed)
	}
}
