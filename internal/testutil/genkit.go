package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockAI bundles a Genkit instance with a registered mock model and
// embedder, ready to drive the RAG pipeline in tests.
type MockAI struct {
	Genkit   *genkit.Genkit
	LLM      *MockLLM
	Embedder *MockEmbedder

	// EmbedderRef is the embedder as registered with Genkit.
	EmbedderRef ai.Embedder
}

// NewMockAI initializes Genkit with no external plugins and registers the
// mock model and a mock embedder of the given dimension.
func NewMockAI(t *testing.T, dim int, fallback string) *MockAI {
	t.Helper()

	g := genkit.Init(context.Background())

	llm := NewMockLLM(fallback)
	llm.RegisterModel(g)

	embedder := NewMockEmbedder(dim)
	ref := embedder.RegisterEmbedder(g)

	return &MockAI{
		Genkit:      g,
		LLM:         llm,
		Embedder:    embedder,
		EmbedderRef: ref,
	}
}
