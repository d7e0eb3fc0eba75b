package rag

import (
	"testing"

	"github.com/JPisOP007/jeevo/internal/knowledge"
)

func resultsWithSimilarities(sims ...float32) []knowledge.Result {
	out := make([]knowledge.Result, len(sims))
	for i, s := range sims {
		out[i] = knowledge.Result{Similarity: s}
	}
	return out
}

func TestScoreEmptyIsLow(t *testing.T) {
	s := NewScorer(DefaultHighConfidence, DefaultMediumConfidence)

	conf, mean := s.Score(nil)
	if conf != ConfidenceLow {
		t.Errorf("Score(nil) confidence = %q, want low", conf)
	}
	if mean != 0 {
		t.Errorf("Score(nil) mean = %v, want 0", mean)
	}
}

func TestScoreBuckets(t *testing.T) {
	s := NewScorer(0.5, 0.3)

	tests := []struct {
		name string
		sims []float32
		want Confidence
	}{
		{"high at threshold", []float32{0.5, 0.5}, ConfidenceHigh},
		{"high above threshold", []float32{0.9, 0.7}, ConfidenceHigh},
		{"medium at threshold", []float32{0.3}, ConfidenceMedium},
		{"medium between thresholds", []float32{0.4, 0.45}, ConfidenceMedium},
		{"low below medium", []float32{0.1, 0.2}, ConfidenceLow},
		{"mean decides, not max", []float32{0.9, 0.1, 0.1}, ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, _ := s.Score(resultsWithSimilarities(tt.sims...))
			if conf != tt.want {
				t.Errorf("Score(%v) = %q, want %q", tt.sims, conf, tt.want)
			}
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	s := NewScorer(0.5, 0.3)

	rank := map[Confidence]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}

	prevRank := -1
	for sim := float32(0.0); sim <= 1.0; sim += 0.05 {
		conf, _ := s.Score(resultsWithSimilarities(sim))
		if rank[conf] < prevRank {
			t.Fatalf("confidence decreased as similarity rose: %q at similarity %v", conf, sim)
		}
		prevRank = rank[conf]
	}
}

func TestNewScorerFallsBackOnBadThresholds(t *testing.T) {
	s := NewScorer(0.2, 0.8) // medium above high

	if s.high != DefaultHighConfidence || s.medium != DefaultMediumConfidence {
		t.Errorf("bad thresholds should fall back to defaults, got high=%v medium=%v", s.high, s.medium)
	}
}
