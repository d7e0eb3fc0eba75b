package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JPisOP007/jeevo/internal/knowledge"
	"github.com/JPisOP007/jeevo/internal/loader"
	"github.com/JPisOP007/jeevo/internal/log"
)

// IndexerStore defines the storage operations the Indexer needs,
// satisfied by *knowledge.Store. Consumer-defined interface, as with
// io.Reader or http.RoundTripper.
type IndexerStore interface {
	// Index embeds and upserts chunks into a staged revision
	Index(ctx context.Context, revision knowledge.Revision, chunks []knowledge.Chunk) error

	// Activate swaps searches over to the staged revision
	Activate(ctx context.Context, revision knowledge.Revision) error
}

// DocumentLoader loads source documents from a directory, satisfied by
// *loader.Loader.
type DocumentLoader interface {
	LoadDir(ctx context.Context, dir string) ([]loader.Document, error)
}

// IndexResult summarizes one knowledge base rebuild.
type IndexResult struct {
	DocumentsLoaded int
	DocumentsFailed int
	Chunks          int
	Revision        knowledge.Revision
	Duration        time.Duration
}

// Indexer rebuilds the knowledge base from a document directory:
// load, chunk, embed into a staged revision, then atomically activate.
type Indexer struct {
	store   IndexerStore
	loader  DocumentLoader
	chunker *loader.Chunker
	logger  log.Logger
}

// NewIndexer creates an Indexer. A nil chunker uses the default window.
func NewIndexer(store IndexerStore, docLoader DocumentLoader, chunker *loader.Chunker, logger log.Logger) *Indexer {
	if chunker == nil {
		chunker = loader.NewChunker(loader.DefaultChunkSize, loader.DefaultChunkOverlap)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{
		store:   store,
		loader:  docLoader,
		chunker: chunker,
		logger:  logger,
	}
}

// Rebuild loads every document under dir and replaces the active index
// with a freshly built one. Queries running concurrently keep seeing the
// old index until the new revision activates. Per-document load failures
// are counted, not fatal; a directory that yields no documents at all is.
func (ix *Indexer) Rebuild(ctx context.Context, dir string) (IndexResult, error) {
	start := time.Now()

	docs, loadErr := ix.loader.LoadDir(ctx, dir)
	failed := countLoadErrors(loadErr)
	if loadErr != nil && len(docs) == 0 && failed == 0 {
		// Not per-file errors but a walk or context failure.
		return IndexResult{}, fmt.Errorf("loading documents: %w", loadErr)
	}
	if len(docs) == 0 {
		return IndexResult{DocumentsFailed: failed}, fmt.Errorf("no documents loaded from %s", dir)
	}

	var chunks []knowledge.Chunk
	now := time.Now()
	for _, doc := range docs {
		for i, span := range ix.chunker.Chunk(doc.Content) {
			metadata := make(map[string]string, len(doc.Metadata)+2)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["chunk"] = strconv.Itoa(i)
			metadata["path"] = doc.Path

			chunks = append(chunks, knowledge.Chunk{
				ID:       knowledge.ChunkID(doc.Path, i, span.Text),
				Content:  span.Text,
				Source:   doc.Source,
				Metadata: metadata,
				CreateAt: now,
			})
		}
	}

	revision := knowledge.NewRevision()
	ix.logger.Info("staging index revision",
		"revision", revision,
		"documents", len(docs),
		"chunks", len(chunks))

	if err := ix.store.Index(ctx, revision, chunks); err != nil {
		return IndexResult{}, fmt.Errorf("building revision %s: %w", revision, err)
	}
	if err := ix.store.Activate(ctx, revision); err != nil {
		return IndexResult{}, fmt.Errorf("activating revision %s: %w", revision, err)
	}

	return IndexResult{
		DocumentsLoaded: len(docs),
		DocumentsFailed: failed,
		Chunks:          len(chunks),
		Revision:        revision,
		Duration:        time.Since(start),
	}, nil
}

// countLoadErrors counts per-file *loader.LoadError values inside a joined
// load error.
func countLoadErrors(err error) int {
	if err == nil {
		return 0
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		count := 0
		for _, e := range joined.Unwrap() {
			var le *loader.LoadError
			if errors.As(e, &le) {
				count++
			}
		}
		return count
	}
	var le *loader.LoadError
	if errors.As(err, &le) {
		return 1
	}
	return 0
}
