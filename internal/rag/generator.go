package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/log"
)

// systemPrompt grounds the model in the retrieved excerpts. Rule 7 is the
// load-bearing one: the model must not answer from its own knowledge.
const systemPrompt = `You are a medical assistant providing information based ONLY on official medical guidelines.

CRITICAL RULES:
1. Answer ONLY using information from the provided guideline excerpts
2. If guidelines don't contain the answer, say "This information is not available in the current guidelines"
3. ALWAYS cite which source you're using (WHO, ICMR, NIH, etc.)
4. Include medical disclaimers for serious conditions
5. Recommend consulting healthcare professionals
6. For emergencies, suggest calling emergency services (108 in India)
7. Never make up information or use knowledge outside the provided context
8. Be clear, empathetic, and use simple language

FORMAT:
- Start with direct answer
- Cite source in parentheses
- Include relevant details from guidelines
- End with appropriate recommendation/disclaimer`

// userPromptFormat wraps the assembled context and the question.
const userPromptFormat = `Official Medical Guidelines:

%s

---

User Question: %s

Based ONLY on the above official guidelines, provide a clear, accurate answer. Always cite which guideline you're using.`

// Defaults for answer generation.
const (
	DefaultTemperature       float32 = 0.3
	DefaultMaxOutputTokens           = 600
	DefaultMaxContextChars           = 12000
	DefaultGenerateTimeout           = 45 * time.Second
	unknownSource                    = "Unknown"
)

// Generator produces grounded answers with a single model call per question.
// Retry policy belongs to the caller.
type Generator struct {
	genkit          *genkit.Genkit
	modelName       string
	temperature     float32
	maxTokens       int
	maxContextChars int
	timeout         time.Duration
	logger          log.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeneratorOption {
	return func(g *Generator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// WithMaxTokens bounds the answer length.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithMaxContextChars bounds the assembled context size. Lowest-ranked
// excerpts are dropped first when the budget is exceeded.
func WithMaxContextChars(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxContextChars = n
		}
	}
}

// WithGenerateTimeout bounds a single model call.
func WithGenerateTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGenerator creates a Generator for the given model.
func NewGenerator(g *genkit.Genkit, modelName string, logger log.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = log.NewNop()
	}
	gen := &Generator{
		genkit:          g,
		modelName:       modelName,
		temperature:     DefaultTemperature,
		maxTokens:       DefaultMaxOutputTokens,
		maxContextChars: DefaultMaxContextChars,
		timeout:         DefaultGenerateTimeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen
}

// BuildContext assembles retrieval results into numbered source blocks:
//
//	[Source 1: malaria prevention]
//	<chunk text>
//
// Blocks beyond the context budget are dropped, lowest-ranked first. A
// block is numbered by its rank, not by its source, so two chunks of one
// document keep distinct numbers.
func (g *Generator) BuildContext(results []knowledge.Result) string {
	var (
		parts []string
		total int
	)
	for i, r := range results {
		source := r.Chunk.Source
		if source == "" {
			source = unknownSource
		}
		block := fmt.Sprintf("[Source %d: %s]\n%s\n", i+1, source, r.Chunk.Content)
		if total+len(block) > g.maxContextChars && len(parts) > 0 {
			g.logger.Debug("context budget reached, dropping lower-ranked chunks",
				"kept", len(parts),
				"dropped", len(results)-len(parts))
			break
		}
		parts = append(parts, block)
		total += len(block)
	}
	return strings.Join(parts, "\n")
}

// Sources returns the sorted unique source labels of a result set.
func Sources(results []knowledge.Result) []string {
	seen := make(map[string]struct{})
	for _, r := range results {
		source := r.Chunk.Source
		if source == "" {
			source = unknownSource
		}
		seen[source] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Generate produces a grounded answer from the question and the assembled
// context. Failures and timeouts surface as ErrGeneration.
func (g *Generator) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := genkit.Generate(genCtx, g.genkit,
		ai.WithModelName(g.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(userPromptFormat, contextBlock, question),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(g.temperature),
			MaxOutputTokens: g.maxTokens,
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s: %w", ErrGeneration, g.timeout, err)
		}
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("%w: model returned empty answer", ErrGeneration)
	}

	g.logger.Debug("generated answer",
		"model", g.modelName,
		"answer_length", len(answer))
	return answer, nil
}
