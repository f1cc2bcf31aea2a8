package knowledge

import "time"

// VectorDimension is the embedding dimension of the documents table.
// nomic-embed-text outputs 768-dimensional vectors; the pgvector column
// is declared vector(768) in db/migrations.
const VectorDimension = 768

// Metadata keys attached to document chunks during ingestion.
const (
	// MetaFilename is the base name of the source file.
	MetaFilename = "filename"

	// MetaSource is the full path of the source file.
	MetaSource = "source"

	// MetaChunk is the zero-based chunk index within the source file.
	MetaChunk = "chunk"
)

// Document represents a knowledge document chunk.
type Document struct {
	ID       string            // Unique identifier (derived from source path + chunk index)
	Content  string            // Chunk text content
	Metadata map[string]string // Source metadata (filename, source, chunk)
	CreateAt time.Time         // Creation timestamp
}

// Result represents a single search result with similarity score.
type Result struct {
	Document   Document
	Similarity float32 // Cosine similarity score (0-1, higher is more similar)
}

// VectorResult is a search result that also carries the stored embedding.
// Used by the MMR retrieval strategy, which re-ranks candidates by
// pairwise similarity.
type VectorResult struct {
	Result
	Embedding []float32
}

// Stats summarizes the state of the knowledge base.
type Stats struct {
	Chunks  int64 // Total number of stored chunks
	Sources int64 // Number of distinct source files
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return.
// Default is 5 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls to WithFilter add additional filters (AND logic).
// Example: WithFilter("filename", "report.pdf")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:   5, // Default
		filter: nil,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
