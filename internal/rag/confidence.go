package rag

import "github.com/JPisOP007/jeevo/internal/knowledge"

// Confidence buckets describe how well the retrieved evidence matched the
// question. They are derived from retrieval similarity only, never from the
// generated text.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Default similarity thresholds for the confidence buckets. Cosine
// similarity of 0.5 and above is a strong match for the embedding models
// in use; below 0.3 the evidence is barely related.
const (
	DefaultHighConfidence   = 0.5
	DefaultMediumConfidence = 0.3
)

// Scorer buckets mean retrieval similarity into confidence levels.
type Scorer struct {
	high   float64
	medium float64
}

// NewScorer creates a Scorer with the given thresholds. Out-of-order or
// out-of-range thresholds fall back to the defaults.
func NewScorer(high, medium float64) *Scorer {
	if high <= 0 || high > 1 || medium < 0 || medium > high {
		high = DefaultHighConfidence
		medium = DefaultMediumConfidence
	}
	return &Scorer{high: high, medium: medium}
}

// Score returns the confidence bucket and the mean similarity for a
// retrieval result set. Empty retrieval is always low confidence.
// Higher mean similarity never yields a lower bucket.
func (s *Scorer) Score(results []knowledge.Result) (Confidence, float64) {
	if len(results) == 0 {
		return ConfidenceLow, 0
	}

	var sum float64
	for _, r := range results {
		sum += float64(r.Similarity)
	}
	mean := sum / float64(len(results))

	switch {
	case mean >= s.high:
		return ConfidenceHigh, mean
	case mean >= s.medium:
		return ConfidenceMedium, mean
	default:
		return ConfidenceLow, mean
	}
}
