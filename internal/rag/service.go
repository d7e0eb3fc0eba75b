package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/log"
)

// NoEvidenceAnswer is returned without a model call when retrieval finds
// nothing to ground an answer on.
const NoEvidenceAnswer = "I don't have sufficient verified medical guidelines to answer this question. Please consult a healthcare professional."

// validateTopK is the retrieval depth used when validating an external
// answer against the knowledge base.
const validateTopK = 2

// summaryTopK is the retrieval depth for condition summaries, which span
// symptoms, diagnosis, treatment and prevention at once.
const summaryTopK = 10

// minValidationTermLength filters trivial words out of the overlap check;
// only terms longer than this count.
const minValidationTermLength = 4

// Searcher is the retrieval dependency of the Service, satisfied by
// *knowledge.Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Answer is the result of one grounded query.
type Answer struct {
	Answer          string     `json:"answer"`
	Sources         []string   `json:"sources"`
	Confidence      Confidence `json:"confidence"`
	MeanSimilarity  float64    `json:"mean_similarity"`
	RetrievedChunks int        `json:"retrieved_chunks"`
	ContextLength   int        `json:"context_length"`
}

// Validation is the result of checking an externally produced answer
// against the knowledge base.
type Validation struct {
	// Accuracy is the fraction of the reference answer's key terms that
	// appear in the checked answer. Zero when nothing matches.
	Accuracy float64 `json:"accuracy"`

	// Confidence and Sources describe the grounding retrieval, not the
	// checked answer.
	Confidence Confidence `json:"confidence"`
	Sources    []string   `json:"sources"`

	// MatchingTerms lists up to ten shared key terms.
	MatchingTerms []string `json:"matching_terms"`

	// Inconclusive is true when the knowledge base held no evidence for
	// the question. That is a result, not an error.
	Inconclusive bool   `json:"inconclusive"`
	Reason       string `json:"reason"`
}

// Service is the question-answering facade: classify, retrieve, generate,
// score. It is safe for concurrent use.
type Service struct {
	store      Searcher
	generator  *Generator
	scorer     *Scorer
	classifier *Classifier
	topK       int
	logger     log.Logger
}

// NewService composes the RAG pipeline. A nil store marks the service
// unavailable: every Query and Validate returns ErrUnavailable.
func NewService(store Searcher, generator *Generator, scorer *Scorer, classifier *Classifier, topK int, logger log.Logger) *Service {
	if scorer == nil {
		scorer = NewScorer(DefaultHighConfidence, DefaultMediumConfidence)
	}
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		store:      store,
		generator:  generator,
		scorer:     scorer,
		classifier: classifier,
		topK:       topK,
		logger:     logger,
	}
}

// Available reports whether the knowledge base can serve queries.
func (s *Service) Available() bool {
	return s.store != nil && s.generator != nil
}

// IsMedicalQuery reports whether the text looks like a medical question.
func (s *Service) IsMedicalQuery(text string) bool {
	return s.classifier.IsMedical(text)
}

// Query retrieves evidence for the question and generates a grounded
// answer. topK <= 0 uses the configured default. When retrieval finds
// nothing, the canned NoEvidenceAnswer comes back with low confidence and
// no model call is made.
func (s *Service) Query(ctx context.Context, question string, topK int, opts ...knowledge.SearchOption) (Answer, error) {
	if !s.Available() {
		return Answer{}, ErrUnavailable
	}
	if topK <= 0 {
		topK = s.topK
	}

	s.logger.Info("retrieving guidelines", "question", question, "top_k", topK)

	searchOpts := append([]knowledge.SearchOption{knowledge.WithTopK(topK)}, opts...)
	results, err := s.store.Search(ctx, question, searchOpts...)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving evidence: %w", err)
	}

	if len(results) == 0 {
		s.logger.Info("no evidence retrieved, returning canned answer", "question", question)
		return Answer{
			Answer:     NoEvidenceAnswer,
			Sources:    []string{},
			Confidence: ConfidenceLow,
		}, nil
	}

	contextBlock := s.generator.BuildContext(results)
	answer, err := s.generator.Generate(ctx, question, contextBlock)
	if err != nil {
		return Answer{}, err
	}

	confidence, mean := s.scorer.Score(results)

	return Answer{
		Answer:          answer,
		Sources:         Sources(results),
		Confidence:      confidence,
		MeanSimilarity:  mean,
		RetrievedChunks: len(results),
		ContextLength:   len(contextBlock),
	}, nil
}

// Summary answers a broad "everything about this condition" query.
func (s *Service) Summary(ctx context.Context, condition string) (Answer, error) {
	question := fmt.Sprintf("Complete information about %s: symptoms, diagnosis, treatment, prevention", condition)
	return s.Query(ctx, question, summaryTopK)
}

// Validate checks an externally produced answer against what the knowledge
// base would have said. The score is coarse word overlap between key terms
// of the grounded reference answer and the checked answer. An empty
// knowledge base yields an inconclusive result, not an error.
func (s *Service) Validate(ctx context.Context, question, answer string) (Validation, error) {
	if !s.Available() {
		return Validation{}, ErrUnavailable
	}

	reference, err := s.Query(ctx, question, validateTopK)
	if err != nil {
		return Validation{}, fmt.Errorf("generating reference answer: %w", err)
	}

	if reference.RetrievedChunks == 0 {
		return Validation{
			Inconclusive: true,
			Confidence:   ConfidenceLow,
			Sources:      []string{},
			Reason:       "no grounding evidence in knowledge base",
		}, nil
	}

	refTerms := keyTerms(reference.Answer)
	checkedTerms := keyTerms(answer)

	var matching []string
	for term := range refTerms {
		if _, ok := checkedTerms[term]; ok {
			matching = append(matching, term)
		}
	}
	sort.Strings(matching)

	accuracy := 0.0
	if len(refTerms) > 0 {
		accuracy = float64(len(matching)) / float64(len(refTerms))
	}
	if len(matching) > 10 {
		matching = matching[:10]
	}

	return Validation{
		Accuracy:      accuracy,
		Confidence:    reference.Confidence,
		Sources:       reference.Sources,
		MatchingTerms: matching,
		Reason:        fmt.Sprintf("validated against %d sources", len(reference.Sources)),
	}, nil
}

// keyTerms extracts the set of lowercased words longer than
// minValidationTermLength characters.
func keyTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) > minValidationTermLength {
			terms[word] = struct{}{}
		}
	}
	return terms
}
