// Package rag implements grounded medical question answering: retrieval
// over the knowledge store, context-bounded answer generation, confidence
// scoring and answer validation.
//
// The Service facade composes the parts; everything underneath is a small
// component with its own consumer-defined dependencies so each piece tests
// in isolation.
package rag
