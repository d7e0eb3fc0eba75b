package rag

import "errors"

var (
	// ErrUnavailable indicates the knowledge base is not ready to answer.
	// Callers check it with errors.Is and degrade gracefully instead of
	// mistaking absence for an empty answer.
	ErrUnavailable = errors.New("knowledge base unavailable")

	// ErrGeneration indicates the language model call failed or timed out.
	ErrGeneration = errors.New("answer generation failed")
)
