package retriever

import (
	"math"

	"github.com/docuchat/docuchat/internal/knowledge"
)

// maximalMarginalRelevance greedily selects up to k candidate indexes,
// scoring each unselected candidate as
//
//	lambda*sim(query, cand) - (1-lambda)*max(sim(cand, selected))
//
// Candidates with missing embeddings are skipped.
func maximalMarginalRelevance(queryVec []float32, candidates []knowledge.VectorResult, k int, lambda float32) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	querySim := make([]float32, len(candidates))
	for i, cand := range candidates {
		querySim[i] = cosineSimilarity(queryVec, cand.Embedding)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := float32(math.Inf(-1))

		for i := range candidates {
			if picked[i] || len(candidates[i].Embedding) == 0 {
				continue
			}

			var maxRedundancy float32
			for _, j := range selected {
				if sim := cosineSimilarity(candidates[i].Embedding, candidates[j].Embedding); sim > maxRedundancy {
					maxRedundancy = sim
				}
			}

			score := lambda*querySim[i] - (1-lambda)*maxRedundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}

		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
	}

	return selected
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
