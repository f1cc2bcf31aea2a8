package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/pgvector/pgvector-go"

	"github.com/docuchat/docuchat/internal/log"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error     // Error to return
	returnEmpty bool      // Return empty embeddings
	embedding   []float32 // Embedding returned for every input
	callCount   int       // Number of Embed calls
	lastInputs  []string  // Texts from the last Embed call
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastInputs = nil
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.lastInputs = append(m.lastInputs, doc.Content[0].Text)
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}

	resp := &ai.EmbedResponse{}
	for range req.Input {
		emb := m.embedding
		if m.returnEmpty {
			emb = []float32{}
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: emb})
	}
	return resp, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	upserted    []UpsertDocumentParams
	upsertErr   error
	searchRows  []SearchDocumentsRow
	searchErr   error
	vectorRows  []SearchDocumentsWithEmbeddingsRow
	lastSearch  SearchDocumentsParams
	docCount    int64
	sourceCount int64
	deletedIDs  []string
	deleteErr   error
	resetCalled bool
}

func (m *mockQuerier) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, arg)
	return nil
}

func (m *mockQuerier) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	m.lastSearch = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchRows, nil
}

func (m *mockQuerier) SearchDocumentsWithEmbeddings(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsWithEmbeddingsRow, error) {
	m.lastSearch = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.vectorRows, nil
}

func (m *mockQuerier) CountDocuments(ctx context.Context) (int64, error) {
	return m.docCount, nil
}

func (m *mockQuerier) CountSources(ctx context.Context) (int64, error) {
	return m.sourceCount, nil
}

func (m *mockQuerier) DeleteDocument(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

func (m *mockQuerier) DeleteDocumentsBySource(ctx context.Context, filename string) (int64, error) {
	return 3, nil
}

func (m *mockQuerier) DeleteAllDocuments(ctx context.Context) error {
	m.resetCalled = true
	return nil
}

func testEmbedding() []float32 {
	v := make([]float32, VectorDimension)
	v[0] = 1
	return v
}

// ============================================================================
// Tests
// ============================================================================

func TestStore_Add(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{embedding: testEmbedding()}
	store := New(querier, embedder, log.NewNop())

	doc := Document{
		ID:      "data/raw/report.txt#0",
		Content: "Python was created by Guido van Rossum.",
		Metadata: map[string]string{
			MetaFilename: "report.txt",
			MetaChunk:    "0",
		},
	}

	if err := store.Add(context.Background(), doc); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(querier.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(querier.upserted))
	}
	got := querier.upserted[0]
	if got.ID != doc.ID {
		t.Errorf("expected ID %q, got %q", doc.ID, got.ID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to default to now, got zero value")
	}

	var metadata map[string]string
	if err := json.Unmarshal(got.Metadata, &metadata); err != nil {
		t.Fatalf("unmarshaling stored metadata: %v", err)
	}
	if metadata[MetaFilename] != "report.txt" {
		t.Errorf("expected filename metadata, got %v", metadata)
	}
}

func TestStore_Add_EmbedderError(t *testing.T) {
	wantErr := errors.New("connection refused")
	store := New(&mockQuerier{}, &mockEmbedder{embedErr: wantErr}, log.NewNop())

	err := store.Add(context.Background(), Document{ID: "x", Content: "text"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected embedder error to propagate, got %v", err)
	}
}

func TestStore_Add_EmptyEmbedding(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{returnEmpty: true}, log.NewNop())

	err := store.Add(context.Background(), Document{ID: "x", Content: "text"})
	if err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestStore_AddAll_SingleEmbedCall(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{embedding: testEmbedding()}
	store := New(querier, embedder, log.NewNop())

	docs := []Document{
		{ID: "a#0", Content: "first chunk"},
		{ID: "a#1", Content: "second chunk"},
		{ID: "a#2", Content: "third chunk"},
	}

	n, err := store.AddAll(context.Background(), docs)
	if err != nil {
		t.Fatalf("AddAll failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 stored, got %d", n)
	}
	if embedder.callCount != 1 {
		t.Errorf("expected batch embedding in one call, got %d calls", embedder.callCount)
	}
	if len(querier.upserted) != 3 {
		t.Errorf("expected 3 upserts, got %d", len(querier.upserted))
	}
}

func TestStore_AddAll_Empty(t *testing.T) {
	embedder := &mockEmbedder{embedding: testEmbedding()}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	n, err := store.AddAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("AddAll(nil) failed: %v", err)
	}
	if n != 0 || embedder.callCount != 0 {
		t.Errorf("expected no-op for empty batch, stored=%d embedCalls=%d", n, embedder.callCount)
	}
}

func TestStore_Search(t *testing.T) {
	metadata, _ := json.Marshal(map[string]string{MetaFilename: "doc.pdf"})
	querier := &mockQuerier{
		searchRows: []SearchDocumentsRow{
			{ID: "doc.pdf#0", Content: "relevant text", Metadata: metadata, CreatedAt: time.Now(), Similarity: 0.91},
			{ID: "doc.pdf#4", Content: "less relevant", Metadata: metadata, CreatedAt: time.Now(), Similarity: 0.62},
		},
	}
	store := New(querier, &mockEmbedder{embedding: testEmbedding()}, log.NewNop())

	results, err := store.Search(context.Background(), "what is this about?", WithTopK(2))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Similarity != 0.91 {
		t.Errorf("expected similarity 0.91, got %f", results[0].Similarity)
	}
	if results[0].Document.Metadata[MetaFilename] != "doc.pdf" {
		t.Errorf("expected metadata to round-trip, got %v", results[0].Document.Metadata)
	}
	if querier.lastSearch.Limit != 2 {
		t.Errorf("expected limit 2, got %d", querier.lastSearch.Limit)
	}
}

func TestStore_Search_DefaultTopK(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, &mockEmbedder{embedding: testEmbedding()}, log.NewNop())

	if _, err := store.Search(context.Background(), "query"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if querier.lastSearch.Limit != 5 {
		t.Errorf("expected default top-k 5, got %d", querier.lastSearch.Limit)
	}
}

func TestStore_Search_WithFilter(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, &mockEmbedder{embedding: testEmbedding()}, log.NewNop())

	_, err := store.Search(context.Background(), "query", WithFilter(MetaFilename, "notes.md"))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	var filter map[string]string
	if err := json.Unmarshal(querier.lastSearch.FilterMetadata, &filter); err != nil {
		t.Fatalf("unmarshaling filter: %v", err)
	}
	if filter[MetaFilename] != "notes.md" {
		t.Errorf("expected filename filter, got %v", filter)
	}
}

func TestStore_SearchWithEmbeddings(t *testing.T) {
	storedVec := pgvector.NewVector(testEmbedding())
	querier := &mockQuerier{
		vectorRows: []SearchDocumentsWithEmbeddingsRow{
			{
				SearchDocumentsRow: SearchDocumentsRow{ID: "a#0", Content: "text", Similarity: 0.8},
				Embedding:          storedVec,
			},
		},
	}
	store := New(querier, &mockEmbedder{embedding: testEmbedding()}, log.NewNop())

	queryVec, results, err := store.SearchWithEmbeddings(context.Background(), "query", WithTopK(12))
	if err != nil {
		t.Fatalf("SearchWithEmbeddings failed: %v", err)
	}
	if len(queryVec) != VectorDimension {
		t.Errorf("expected query vector of dimension %d, got %d", VectorDimension, len(queryVec))
	}
	if len(results) != 1 || len(results[0].Embedding) != VectorDimension {
		t.Errorf("expected stored vectors in results, got %+v", results)
	}
}

func TestStore_Stats(t *testing.T) {
	querier := &mockQuerier{docCount: 42, sourceCount: 3}
	store := New(querier, &mockEmbedder{embedding: testEmbedding()}, log.NewNop())

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Chunks != 42 || stats.Sources != 3 {
		t.Errorf("expected {42 3}, got %+v", stats)
	}
}

func TestStore_Reset(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, &mockEmbedder{embedding: testEmbedding()}, log.NewNop())

	if err := store.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if !querier.resetCalled {
		t.Error("expected DeleteAllDocuments to be called")
	}
}
