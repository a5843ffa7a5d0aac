// Package search implements the scoring half of the retrieval engine:
// lexical BM25, semantic cosine similarity, and hybrid score fusion with
// heuristic re-ranking.
package search

import "time"

// Candidate is a scorable chunk together with the document fields the
// scorers and the quality validator need.
type Candidate struct {
	ID         string
	DocumentID string
	Title      string
	Content    string
	Vector     []float32
	CreatedAt  time.Time
	Metadata   map[string]string
	// HasRefs marks chunks whose document carries bibliographic references.
	HasRefs bool
}

// Method tags identify which scorer produced a result.
const (
	MethodLexical  = "lexical"
	MethodSemantic = "semantic"
	MethodHybrid   = "hybrid"
)

// Scored is a candidate with its relevance score attached.
type Scored struct {
	Candidate
	Score  float64
	Method string
}
