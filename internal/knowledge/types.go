package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding width stored in the chunks table.
// gemini-embedding-001 is truncated to this width via OutputDimensionality;
// the pgvector column is declared vector(768) to match.
const VectorDimension = 768

// Chunk is one embeddable unit of knowledge: a slice of a source document
// together with the metadata needed to cite it.
type Chunk struct {
	ID       string            // Deterministic identifier, see ChunkID
	Content  string            // Chunk text content
	Source   string            // Citation label ("malaria prevention")
	Metadata map[string]string // Optional metadata (kind, file, question, ...)
	CreateAt time.Time         // Creation timestamp
}

// Result is a single search result with its similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity score (0-1)
}

// Revision identifies one complete build of the index. Searches only ever
// see the active revision; rebuilds stage a new one and swap the pointer.
type Revision = uuid.UUID

// NewRevision allocates an identifier for a fresh index build.
func NewRevision() Revision {
	return uuid.New()
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// defaultSearchTimeout bounds a single vector search, embedding included.
const defaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return.
// Default is 5 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithSource restricts results to chunks from one source label.
func WithSource(label string) SearchOption {
	return WithFilter("source", label)
}

// WithTimeout overrides the default search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
