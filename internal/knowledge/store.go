package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds vector search queries to prevent blocking on a
// cold HNSW index.
const searchTimeout = 10 * time.Second

// Querier defines the interface for database operations on knowledge documents.
// Following Go best practices: interfaces are defined by the consumer, not the
// provider (similar to http.RoundTripper, sql.Driver, io.Reader).
//
// Implemented by Queries (pgx) in production and by mocks in tests.
type Querier interface {
	// UpsertDocument inserts or updates a document
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error

	// SearchDocuments performs vector search; FilterMetadata nil means unfiltered
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)

	// SearchDocumentsWithEmbeddings is SearchDocuments plus stored vectors (for MMR)
	SearchDocumentsWithEmbeddings(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsWithEmbeddingsRow, error)

	// CountDocuments counts all stored chunks
	CountDocuments(ctx context.Context) (int64, error)

	// CountSources counts distinct source filenames
	CountSources(ctx context.Context) (int64, error)

	// DeleteDocument deletes a document by ID
	DeleteDocument(ctx context.Context, id string) error

	// DeleteDocumentsBySource deletes all chunks of one source file
	DeleteDocumentsBySource(ctx context.Context, filename string) (int64, error)

	// DeleteAllDocuments wipes the knowledge base
	DeleteAllDocuments(ctx context.Context) error
}

// Store manages knowledge documents with vector search capabilities.
// It handles embedding generation and vector similarity search using
// PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a new Store instance.
//
// Parameters:
//   - querier: Database querier implementing Querier interface
//   - embedder: AI embedder for generating vector embeddings
//   - logger: Logger for debugging (nil = use default)
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add adds a single document chunk to the knowledge store.
// The document's content is embedded using the configured embedder.
// Uses UPSERT (ON CONFLICT DO UPDATE) so re-ingesting a file is idempotent.
func (s *Store) Add(ctx context.Context, doc Document) error {
	vecs, err := s.embed(ctx, []string{doc.Content})
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}
	return s.upsert(ctx, doc, vecs[0])
}

// AddAll adds a batch of document chunks, embedding all contents in a
// single embedder call. Returns the number of chunks stored.
func (s *Store) AddAll(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.Content
	}

	vecs, err := s.embed(ctx, contents)
	if err != nil {
		return 0, fmt.Errorf("embedding batch of %d documents: %w", len(docs), err)
	}

	for i, doc := range docs {
		if err := s.upsert(ctx, doc, vecs[i]); err != nil {
			return i, err
		}
	}

	s.logger.Debug("added documents", "count", len(docs))
	return len(docs), nil
}

// Search performs semantic search on the knowledge store.
// It returns the most similar documents to the query, ordered by cosine
// similarity (highest first). A 10-second timeout is applied to the
// vector search query.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	arg, err := s.searchParams(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.queries.SearchDocuments(searchCtx, arg)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		doc, err := rowToDocument(row.ID, row.Content, row.Metadata, row.CreatedAt)
		if err != nil {
			s.logger.Warn("skipping malformed document", "id", row.ID, "error", err)
			continue
		}
		results = append(results, Result{Document: doc, Similarity: row.Similarity})
	}

	return results, nil
}

// SearchWithEmbeddings is Search plus the stored vector of each hit and
// the query vector. The MMR retrieval strategy uses the vectors to
// re-rank a candidate pool for diversity.
func (s *Store) SearchWithEmbeddings(ctx context.Context, query string, opts ...SearchOption) ([]float32, []VectorResult, error) {
	cfg := buildSearchConfig(opts)

	arg, err := s.searchParams(ctx, query, cfg)
	if err != nil {
		return nil, nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.queries.SearchDocumentsWithEmbeddings(searchCtx, arg)
	if err != nil {
		return nil, nil, fmt.Errorf("searching documents with embeddings: %w", err)
	}

	results := make([]VectorResult, 0, len(rows))
	for _, row := range rows {
		doc, err := rowToDocument(row.ID, row.Content, row.Metadata, row.CreatedAt)
		if err != nil {
			s.logger.Warn("skipping malformed document", "id", row.ID, "error", err)
			continue
		}
		results = append(results, VectorResult{
			Result:    Result{Document: doc, Similarity: row.Similarity},
			Embedding: row.Embedding.Slice(),
		})
	}

	return arg.Embedding.Slice(), results, nil
}

// Stats returns chunk and source counts for the knowledge base.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	chunks, err := s.queries.CountDocuments(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	sources, err := s.queries.CountSources(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting sources: %w", err)
	}
	return Stats{Chunks: chunks, Sources: sources}, nil
}

// Delete removes a document chunk by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	return nil
}

// DeleteSource removes all chunks belonging to one source file.
// Returns the number of chunks removed.
func (s *Store) DeleteSource(ctx context.Context, filename string) (int64, error) {
	n, err := s.queries.DeleteDocumentsBySource(ctx, filename)
	if err != nil {
		return 0, fmt.Errorf("deleting source %q: %w", filename, err)
	}
	s.logger.Debug("deleted source", "filename", filename, "chunks", n)
	return n, nil
}

// Reset wipes the entire knowledge base.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.queries.DeleteAllDocuments(ctx); err != nil {
		return fmt.Errorf("resetting knowledge base: %w", err)
	}
	s.logger.Info("knowledge base reset")
	return nil
}

// embed generates embeddings for the given texts in one embedder call.
func (s *Store) embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	input := make([]*ai.Document, len(texts))
	for i, text := range texts {
		input[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([]pgvector.Vector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
		vecs[i] = pgvector.NewVector(emb.Embedding)
	}
	return vecs, nil
}

// upsert writes a single document with its embedding.
func (s *Store) upsert(ctx context.Context, doc Document, embedding pgvector.Vector) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	createdAt := doc.CreateAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err = s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}
	return nil
}

// searchParams embeds the query and assembles search parameters.
func (s *Store) searchParams(ctx context.Context, query string, cfg *searchConfig) (SearchDocumentsParams, error) {
	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		return SearchDocumentsParams{}, fmt.Errorf("embedding query: %w", err)
	}

	arg := SearchDocumentsParams{
		Embedding: vecs[0],
		Limit:     int32(cfg.topK),
	}

	if len(cfg.filter) > 0 {
		filterJSON, err := json.Marshal(cfg.filter)
		if err != nil {
			return SearchDocumentsParams{}, fmt.Errorf("marshaling filter: %w", err)
		}
		arg.FilterMetadata = filterJSON
	}

	return arg, nil
}

// rowToDocument converts raw row fields into a Document.
func rowToDocument(id, content string, metadataJSON []byte, createdAt time.Time) (Document, error) {
	var metadata map[string]string
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return Document{}, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
		CreateAt: createdAt,
	}, nil
}
