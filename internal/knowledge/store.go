// Package knowledge stores embedded document chunks in PostgreSQL and
// serves cosine-similarity search over them via pgvector.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/JPisOP007/jeevo/internal/log"
)

// ErrEmbedding indicates the embedder failed or returned an empty vector.
var ErrEmbedding = errors.New("embedding failed")

// embedTimeout bounds a single embedding call during indexing.
const embedTimeout = 30 * time.Second

// UpsertChunkParams carries one chunk row for insert-or-update.
type UpsertChunkParams struct {
	ID        string
	Revision  uuid.UUID
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// SearchChunksParams carries a filtered vector search over the active revision.
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector
	FilterMetadata []byte
	ResultLimit    int32
}

// SearchChunksAllParams carries an unfiltered vector search over the active revision.
type SearchChunksAllParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

// SearchChunksRow is one vector search result row.
type SearchChunksRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float64
}

// Querier defines the database operations the Store needs. The interface is
// defined by the consumer, not the provider (like http.RoundTripper or
// io.Reader), so tests can substitute a mock and production wires Queries
// from pgstore.go.
type Querier interface {
	// UpsertChunk inserts or updates a chunk row in the given revision
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error

	// SearchChunks performs filtered vector search over the active revision
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)

	// SearchChunksAll performs unfiltered vector search over the active revision
	SearchChunksAll(ctx context.Context, arg SearchChunksAllParams) ([]SearchChunksRow, error)

	// CountChunks counts chunks in the active revision
	CountChunks(ctx context.Context) (int64, error)

	// ActiveRevision returns the currently active index revision
	ActiveRevision(ctx context.Context) (uuid.UUID, error)

	// SetActiveRevision points the index at a new revision
	SetActiveRevision(ctx context.Context, revision uuid.UUID) error

	// DeleteInactiveChunks removes chunks from superseded revisions
	DeleteInactiveChunks(ctx context.Context) (int64, error)
}

// Store manages embedded knowledge chunks with vector search.
// It is safe for concurrent use by multiple goroutines; searches always see
// one consistent revision, even while a rebuild is staging the next one.
type Store struct {
	queries   Querier
	embedder  ai.Embedder
	logger    log.Logger
	workers   int
	embedOpts any
	dimension int
}

// Option configures a Store.
type Option func(*Store)

// WithIndexWorkers bounds the number of concurrent embedding calls during
// Index. Default is 4.
func WithIndexWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithEmbedOptions sets provider-specific options passed on every embed
// call, such as the Gemini output dimensionality.
func WithEmbedOptions(opts any) Option {
	return func(s *Store) {
		s.embedOpts = opts
	}
}

// WithDimension enforces the vector width handed to storage. Vectors wider
// than n are truncated to their leading n values and renormalized; narrower
// vectors are rejected. Zero disables the check.
func WithDimension(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.dimension = n
		}
	}
}

// New creates a Store over the given querier and embedder.
// A nil logger falls back to a no-op logger.
func New(querier Querier, embedder ai.Embedder, logger log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
		workers:  4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add embeds one chunk and upserts it into the given revision.
func (s *Store) Add(ctx context.Context, revision Revision, chunk Chunk) error {
	vec, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("chunk %q: %w", chunk.ID, err)
	}

	metadataJSON, err := json.Marshal(chunkMetadata(chunk))
	if err != nil {
		return fmt.Errorf("marshaling metadata for chunk %q: %w", chunk.ID, err)
	}

	createdAt := pgtype.Timestamptz{
		Time:  chunk.CreateAt,
		Valid: !chunk.CreateAt.IsZero(),
	}

	embedding := pgvector.NewVector(vec)
	err = s.queries.UpsertChunk(ctx, UpsertChunkParams{
		ID:        chunk.ID,
		Revision:  revision,
		Content:   chunk.Content,
		Embedding: &embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
	}

	s.logger.Debug("added chunk",
		"id", chunk.ID,
		"revision", revision,
		"content_length", len(chunk.Content))
	return nil
}

// Index embeds and upserts a batch of chunks into the given revision.
// Embedding calls run with bounded parallelism; the first failure cancels
// the remaining work.
func (s *Store) Index(ctx context.Context, revision Revision, chunks []Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, chunk := range chunks {
		g.Go(func() error {
			return s.Add(gctx, revision, chunk)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing revision %s: %w", revision, err)
	}

	s.logger.Info("indexed chunks", "revision", revision, "count", len(chunks))
	return nil
}

// Activate makes revision the one searches see, then deletes the rows of
// every superseded revision. The pointer swap is a single UPDATE, so
// concurrent searches observe either the old complete index or the new
// complete index, never a mix.
func (s *Store) Activate(ctx context.Context, revision Revision) error {
	if err := s.queries.SetActiveRevision(ctx, revision); err != nil {
		return fmt.Errorf("activating revision %s: %w", revision, err)
	}

	deleted, err := s.queries.DeleteInactiveChunks(ctx)
	if err != nil {
		// The new revision is already live, stale rows are only a space
		// cost. Surface the error for the caller to retry a cleanup.
		return fmt.Errorf("deleting superseded chunks: %w", err)
	}

	s.logger.Info("activated revision", "revision", revision, "superseded_chunks_deleted", deleted)
	return nil
}

// Clear removes all chunks by activating a fresh empty revision.
func (s *Store) Clear(ctx context.Context) error {
	return s.Activate(ctx, NewRevision())
}

// Search embeds the query with the same embedder used at index time and
// returns the most similar chunks from the active revision, best first.
// An empty index yields an empty slice and no error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("query: %w", err)
	}
	queryEmbedding := pgvector.NewVector(vec)

	// The filter is always produced by json.Marshal and compared with the
	// parameterized JSONB @> operator, never interpolated into SQL.
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, searchErr := s.queries.SearchChunks(queryCtx, SearchChunksParams{
			QueryEmbedding: &queryEmbedding,
			FilterMetadata: filterJSON,
			ResultLimit:    int32(cfg.topK),
		})
		if searchErr != nil {
			if errors.Is(searchErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("search query timeout: %w", searchErr)
			}
			return nil, fmt.Errorf("search failed: %w", searchErr)
		}
		return s.rowsToResults(rows), nil
	}

	rows, err := s.queries.SearchChunksAll(queryCtx, SearchChunksAllParams{
		QueryEmbedding: &queryEmbedding,
		ResultLimit:    int32(cfg.topK),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return s.rowsToResults(rows), nil
}

// Count returns the number of chunks in the active revision.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	// Overflow protection for 32-bit platforms.
	if count > math.MaxInt {
		return 0, fmt.Errorf("chunk count %d exceeds platform int capacity", count)
	}

	return int(count), nil
}

// embed generates the embedding vector for one text.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{
				Content: []*ai.Part{ai.NewTextPart(text)},
			},
		},
		Options: s.embedOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrEmbedding)
	}

	vec := resp.Embeddings[0].Embedding
	if s.dimension > 0 {
		vec, err = fitDimension(vec, s.dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
		}
	}
	return vec, nil
}

// fitDimension adapts an embedding to the storage width. Models trained for
// Matryoshka truncation keep their leading values meaningful, so a wider
// vector is cut to width and renormalized to unit length. A narrower vector
// cannot be padded meaningfully and is rejected.
func fitDimension(vec []float32, width int) ([]float32, error) {
	if len(vec) == width {
		return vec, nil
	}
	if len(vec) < width {
		return nil, fmt.Errorf("embedding has %d dimensions, storage needs %d", len(vec), width)
	}

	var sumSquares float64
	for _, v := range vec[:width] {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return nil, fmt.Errorf("embedding truncated to %d dimensions is all zeros", width)
	}

	scale := float32(1 / math.Sqrt(sumSquares))
	out := make([]float32, width)
	for i, v := range vec[:width] {
		out[i] = v * scale
	}
	return out, nil
}

// rowsToResults converts search rows to Results.
func (s *Store) rowsToResults(rows []SearchChunksRow) []Result {
	results := make([]Result, 0, len(rows))

	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}

		var createAt time.Time
		if row.CreatedAt.Valid {
			createAt = row.CreatedAt.Time
		}

		results = append(results, Result{
			Chunk: Chunk{
				ID:       row.ID,
				Content:  row.Content,
				Source:   metadata["source"],
				Metadata: metadata,
				CreateAt: createAt,
			},
			Similarity: float32(row.Similarity),
		})
	}

	return results
}

// chunkMetadata merges the chunk's metadata with its source label so the
// label round-trips through the JSONB column.
func chunkMetadata(chunk Chunk) map[string]string {
	metadata := make(map[string]string, len(chunk.Metadata)+1)
	for k, v := range chunk.Metadata {
		metadata[k] = v
	}
	if chunk.Source != "" {
		metadata["source"] = chunk.Source
	}
	return metadata
}

// ChunkID derives a deterministic chunk identifier from the source path,
// the chunk ordinal and the content. Re-ingesting unchanged files produces
// the same IDs, so upserts stay idempotent.
func ChunkID(sourcePath string, ordinal int, content string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", sourcePath, ordinal, content))
	return "chunk_" + hex.EncodeToString(h[:])[:32]
}
