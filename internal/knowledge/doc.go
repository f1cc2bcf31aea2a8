// Package knowledge implements the vector knowledge base for docuchat.
//
// It manages document chunks with vector embeddings stored in PostgreSQL
// with the pgvector extension.
//
// # Architecture
//
//	ingest.Pipeline (chunked documents)
//	     |
//	     v
//	knowledge.Store
//	     +-- Embedding generation (via ai.Embedder, Ollama-backed)
//	     +-- Vector storage (PostgreSQL + pgvector, cosine distance)
//	     |
//	     v
//	retriever.Retriever (search strategies)
//	     |
//	     v
//	chat.Agent (augmented prompt)
//
// # Key Components
//
// Store: embed-and-upsert writes, similarity search with optional
// metadata filtering, knowledge base statistics and reset.
//
// Querier: consumer-defined interface over the database layer,
// implemented by Queries (pgx) in production and by mocks in tests.
//
// # Thread Safety
//
// Store is safe for concurrent use by multiple goroutines.
package knowledge
