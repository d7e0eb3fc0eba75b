package rag

import "strings"

// DefaultMedicalKeywords is the built-in term list for medical query
// detection. Matching is case-insensitive substring containment, so
// "feverish" matches "fever".
var DefaultMedicalKeywords = []string{
	"fever", "pain", "headache", "cough", "cold", "flu",
	"diabetes", "blood pressure", "hypertension", "malaria",
	"diarrhea", "vomiting", "nausea", "infection", "disease",
	"medicine", "medication", "treatment", "doctor", "hospital",
	"symptoms", "diagnosis", "illness", "sick", "health",
	"pregnant", "pregnancy", "baby", "child", "vaccine",
	"injury", "wound", "bleeding", "allergy", "asthma",
}

// Classifier decides whether a query is medical via keyword membership.
// It is deterministic: the same input always yields the same answer.
type Classifier struct {
	keywords []string
}

// NewClassifier creates a Classifier with the given keyword list.
// An empty list falls back to DefaultMedicalKeywords.
func NewClassifier(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultMedicalKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &Classifier{keywords: lowered}
}

// IsMedical reports whether the text contains any configured medical term.
func (c *Classifier) IsMedical(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
