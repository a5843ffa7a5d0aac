package search

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// CosineSimilarity returns the normalized dot product of two vectors. It is
// 0 when either vector has zero norm or the lengths differ; it never panics.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Semantic ranks candidates by cosine similarity to the query vector.
// Candidates without a usable embedding are skipped, not treated as errors.
func Semantic(queryVector []float32, candidates []Candidate) []Scored {
	if len(queryVector) == 0 {
		return nil
	}
	var results []Scored
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			log.Warn().Str("chunk", c.ID).Msg("Chunk has no usable embedding, skipping semantic scoring")
			continue
		}
		if len(c.Vector) != len(queryVector) {
			log.Warn().Str("chunk", c.ID).
				Int("have", len(c.Vector)).Int("want", len(queryVector)).
				Msg("Chunk embedding dimension differs from query, skipping")
			continue
		}
		results = append(results, Scored{
			Candidate: c,
			Score:     CosineSimilarity(queryVector, c.Vector),
			Method:    MethodSemantic,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// BestChunkPerDocument collapses chunk-level scores to document granularity,
// keeping each document's single best chunk. One highly relevant passage
// beats many mediocre ones.
func BestChunkPerDocument(results []Scored) []Scored {
	best := make(map[string]Scored, len(results))
	for _, r := range results {
		key := r.DocumentID
		if key == "" {
			// No document attribution, keep the chunk as its own group.
			key = r.ID
		}
		if cur, ok := best[key]; !ok || r.Score > cur.Score {
			best[key] = r
		}
	}
	out := make([]Scored, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
