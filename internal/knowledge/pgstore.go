package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx a Queries needs. Both *pgxpool.Pool and pgx.Tx
// satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implements Querier on PostgreSQL with pgvector.
// The connection must have pgvector types registered; see app.Setup.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries over the given connection or pool.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const upsertChunkSQL = `
INSERT INTO chunks (id, revision, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
ON CONFLICT (id, revision) DO UPDATE SET
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// UpsertChunk inserts or updates a chunk row in the given revision.
func (q *Queries) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	_, err := q.db.Exec(ctx, upsertChunkSQL,
		arg.ID,
		arg.Revision,
		arg.Content,
		arg.Embedding,
		arg.Metadata,
		arg.CreatedAt,
	)
	return err
}

const searchChunksSQL = `
SELECT id, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity
FROM chunks
WHERE revision = (SELECT active_revision FROM index_state)
  AND metadata @> $2::jsonb
ORDER BY embedding <=> $1
LIMIT $3`

// SearchChunks performs filtered cosine search over the active revision.
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL,
		arg.QueryEmbedding,
		arg.FilterMetadata,
		arg.ResultLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSearchRows(rows)
}

const searchChunksAllSQL = `
SELECT id, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity
FROM chunks
WHERE revision = (SELECT active_revision FROM index_state)
ORDER BY embedding <=> $1
LIMIT $2`

// SearchChunksAll performs unfiltered cosine search over the active revision.
func (q *Queries) SearchChunksAll(ctx context.Context, arg SearchChunksAllParams) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunksAllSQL,
		arg.QueryEmbedding,
		arg.ResultLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSearchRows(rows)
}

func scanSearchRows(rows pgx.Rows) ([]SearchChunksRow, error) {
	var out []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const countChunksSQL = `
SELECT count(*)
FROM chunks
WHERE revision = (SELECT active_revision FROM index_state)`

// CountChunks counts chunks in the active revision.
func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, countChunksSQL).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const activeRevisionSQL = `SELECT active_revision FROM index_state`

// ActiveRevision returns the currently active index revision.
func (q *Queries) ActiveRevision(ctx context.Context) (uuid.UUID, error) {
	var revision uuid.UUID
	if err := q.db.QueryRow(ctx, activeRevisionSQL).Scan(&revision); err != nil {
		return uuid.Nil, err
	}
	return revision, nil
}

const setActiveRevisionSQL = `
UPDATE index_state SET active_revision = $1, updated_at = now()`

// SetActiveRevision points the index at a new revision in one UPDATE.
func (q *Queries) SetActiveRevision(ctx context.Context, revision uuid.UUID) error {
	_, err := q.db.Exec(ctx, setActiveRevisionSQL, revision)
	return err
}

const deleteInactiveChunksSQL = `
DELETE FROM chunks
WHERE revision <> (SELECT active_revision FROM index_state)`

// DeleteInactiveChunks removes chunks from superseded revisions and reports
// how many rows were deleted.
func (q *Queries) DeleteInactiveChunks(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteInactiveChunksSQL)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
