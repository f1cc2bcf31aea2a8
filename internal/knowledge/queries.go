package knowledge

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// UpsertDocumentParams are the parameters for UpsertDocument.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt time.Time
}

// SearchDocumentsParams are the parameters for vector search.
// FilterMetadata is a JSON object matched with the @> containment
// operator; nil means no filter.
type SearchDocumentsParams struct {
	Embedding      pgvector.Vector
	FilterMetadata []byte
	Limit          int32
}

// SearchDocumentsRow is one vector search hit.
type SearchDocumentsRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float32
}

// SearchDocumentsWithEmbeddingsRow is a search hit including the stored vector.
type SearchDocumentsWithEmbeddingsRow struct {
	SearchDocumentsRow
	Embedding pgvector.Vector
}

// Queries is the pgx-backed implementation of Querier.
// All statements are parameterized; vector similarity uses the cosine
// distance operator (<=>), converted to similarity as 1 - distance.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries instance over the given pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// UpsertDocument inserts or updates a document.
func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.pool.Exec(ctx, upsertDocumentSQL,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	return err
}

const searchDocumentsSQL = `
SELECT id, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity
FROM documents
WHERE ($2::jsonb IS NULL OR metadata @> $2)
ORDER BY embedding <=> $1
LIMIT $3`

// SearchDocuments performs vector search with optional metadata filter.
func (q *Queries) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL, arg.Embedding, arg.FilterMetadata, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchDocumentsRow
	for rows.Next() {
		var r SearchDocumentsRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const searchDocumentsWithEmbeddingsSQL = `
SELECT id, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity, embedding
FROM documents
WHERE ($2::jsonb IS NULL OR metadata @> $2)
ORDER BY embedding <=> $1
LIMIT $3`

// SearchDocumentsWithEmbeddings performs vector search returning stored vectors.
func (q *Queries) SearchDocumentsWithEmbeddings(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsWithEmbeddingsRow, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsWithEmbeddingsSQL, arg.Embedding, arg.FilterMetadata, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchDocumentsWithEmbeddingsRow
	for rows.Next() {
		var r SearchDocumentsWithEmbeddingsRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity, &r.Embedding); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountDocuments counts all stored chunks.
func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	return n, err
}

// CountSources counts distinct source filenames.
func (q *Queries) CountSources(ctx context.Context) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx,
		`SELECT count(DISTINCT metadata->>'filename') FROM documents`).Scan(&n)
	return n, err
}

// DeleteDocument deletes a document by ID.
func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	tag, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteDocumentsBySource deletes all chunks of one source file.
func (q *Queries) DeleteDocumentsBySource(ctx context.Context, filename string) (int64, error) {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM documents WHERE metadata->>'filename' = $1`, filename)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAllDocuments wipes the knowledge base.
func (q *Queries) DeleteAllDocuments(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM documents`)
	return err
}
