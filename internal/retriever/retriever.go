// Package retriever implements retrieval strategies over the knowledge
// store and assembles retrieved passages into prompt context.
//
// Strategies:
//   - Retrieve: plain top-k cosine similarity
//   - RetrieveWithThreshold: top-k filtered by a similarity floor
//   - RetrieveDiverse: Maximal Marginal Relevance over a larger
//     candidate pool, trading a little relevance for coverage
//   - RetrieveFiltered: top-k restricted by document metadata
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuchat/docuchat/internal/knowledge"
)

// mmrFetchFactor is the candidate pool multiplier for diverse
// retrieval: fetch factor*k candidates, select k by MMR.
const mmrFetchFactor = 3

// mmrLambda balances relevance against diversity in MMR scoring.
// 1.0 is pure relevance, 0.0 is pure diversity.
const mmrLambda = 0.5

// Searcher is the slice of knowledge.Store the retriever depends on.
// Interfaces are defined by the consumer, not the provider.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	SearchWithEmbeddings(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]float32, []knowledge.VectorResult, error)
}

// Config holds retrieval defaults from application configuration.
type Config struct {
	TopK           int     // Default number of passages to retrieve
	ScoreThreshold float32 // Default similarity floor for threshold retrieval
}

// Retriever executes retrieval strategies against a Searcher.
// Safe for concurrent use.
type Retriever struct {
	store     Searcher
	topK      int
	threshold float32
	logger    *slog.Logger
}

// New creates a Retriever. Zero-value config fields fall back to
// topK=4 and threshold=0.7.
func New(store Searcher, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.7
	}

	return &Retriever{
		store:     store,
		topK:      cfg.TopK,
		threshold: cfg.ScoreThreshold,
		logger:    logger,
	}
}

// Retrieve performs basic top-k retrieval. k <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]knowledge.Result, error) {
	if k <= 0 {
		k = r.topK
	}

	results, err := r.store.Search(ctx, query, knowledge.WithTopK(k))
	if err != nil {
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}

	r.logger.Debug("retrieved documents", "query_len", len(query), "k", k, "hits", len(results))
	return results, nil
}

// RetrieveWithThreshold retrieves top-k results and drops those below
// the similarity floor. threshold <= 0 uses the configured default.
func (r *Retriever) RetrieveWithThreshold(ctx context.Context, query string, k int, threshold float32) ([]knowledge.Result, error) {
	if threshold <= 0 {
		threshold = r.threshold
	}

	results, err := r.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Similarity >= threshold {
			filtered = append(filtered, res)
		}
	}

	r.logger.Debug("threshold retrieval", "threshold", threshold, "kept", len(filtered), "dropped", len(results)-len(filtered))
	return filtered, nil
}

// RetrieveDiverse retrieves k diverse results using Maximal Marginal
// Relevance: a pool of 3k candidates is fetched by similarity and k are
// selected greedily, penalizing redundancy with already-selected passages.
func (r *Retriever) RetrieveDiverse(ctx context.Context, query string, k int) ([]knowledge.Result, error) {
	if k <= 0 {
		k = r.topK
	}

	queryVec, candidates, err := r.store.SearchWithEmbeddings(ctx, query, knowledge.WithTopK(k*mmrFetchFactor))
	if err != nil {
		return nil, fmt.Errorf("retrieving MMR candidates: %w", err)
	}

	selected := maximalMarginalRelevance(queryVec, candidates, k, mmrLambda)

	results := make([]knowledge.Result, len(selected))
	for i, idx := range selected {
		results[i] = candidates[idx].Result
	}

	r.logger.Debug("diverse retrieval", "candidates", len(candidates), "selected", len(results))
	return results, nil
}

// RetrieveFiltered retrieves top-k results restricted by metadata,
// e.g. {"filename": "report.pdf"}.
func (r *Retriever) RetrieveFiltered(ctx context.Context, query string, filter map[string]string, k int) ([]knowledge.Result, error) {
	if k <= 0 {
		k = r.topK
	}

	opts := []knowledge.SearchOption{knowledge.WithTopK(k)}
	for key, value := range filter {
		opts = append(opts, knowledge.WithFilter(key, value))
	}

	results, err := r.store.Search(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("retrieving filtered documents: %w", err)
	}
	return results, nil
}

// BuildContext joins retrieved passages into a numbered, source-cited
// context block for prompt assembly.
//
// Format:
//
//	[Document 1] (Source: report.pdf, Page: 3)
//	<passage text>
//	---
//	[Document 2] ...
func BuildContext(results []knowledge.Result) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for i, res := range results {
		source := res.Document.Metadata[knowledge.MetaFilename]
		if source == "" {
			source = "unknown source"
		}

		header := fmt.Sprintf("[Document %d] (Source: %s", i+1, source)
		if page := res.Document.Metadata["page"]; page != "" {
			header += fmt.Sprintf(", Page: %s", page)
		}
		header += ")"

		parts = append(parts, header+"\n"+res.Document.Content+"\n")
	}

	return strings.Join(parts, "\n---\n")
}

// Sources extracts the deduplicated source filenames from results,
// preserving retrieval order.
func Sources(results []knowledge.Result) []string {
	seen := make(map[string]bool, len(results))
	var sources []string
	for _, res := range results {
		name := res.Document.Metadata[knowledge.MetaFilename]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sources = append(sources, name)
	}
	return sources
}
