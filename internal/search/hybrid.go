package search

import (
	"errors"
	"sort"

	"hydrokb/internal/models"
)

// DefaultAlpha weights the semantic side of the fusion. Short technical
// queries often use different wording than the source text, so semantic
// similarity gets the larger share.
const DefaultAlpha = 0.65

// Re-ranking bonus weights.
const (
	termOverlapWeight = 0.2
	techDensityWeight = 0.1
	lengthBonus       = 0.1
)

// Content length range considered a well-formed chunk: neither a fragment
// nor a wall of text.
const (
	sweetSpotMin = 200
	sweetSpotMax = 1500
)

var errNoResults = errors.New("no results to rerank")

// Fuse combines independently scored lexical and semantic result lists into
// one ranking. Each list is max-normalized first so the two score scales are
// comparable; a result present in only one list keeps its weighted share as
// if the other score were 0.
func Fuse(lexical, semantic []Scored, alpha float64) []Scored {
	if alpha < 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	lexNorm := maxNormalize(lexical)
	semNorm := maxNormalize(semantic)

	type parts struct {
		cand     Candidate
		lex, sem float64
		inLex    bool
		inSem    bool
	}
	merged := make(map[string]*parts)
	order := make([]string, 0, len(lexNorm)+len(semNorm))
	for _, r := range lexNorm {
		merged[r.ID] = &parts{cand: r.Candidate, lex: r.Score, inLex: true}
		order = append(order, r.ID)
	}
	for _, r := range semNorm {
		if p, ok := merged[r.ID]; ok {
			p.sem = r.Score
			p.inSem = true
			// Prefer the semantic candidate's vector-bearing copy.
			p.cand = r.Candidate
			continue
		}
		merged[r.ID] = &parts{cand: r.Candidate, sem: r.Score, inSem: true}
		order = append(order, r.ID)
	}

	results := make([]Scored, 0, len(order))
	for _, id := range order {
		p := merged[id]
		method := MethodHybrid
		if !p.inSem {
			method = MethodLexical
		} else if !p.inLex {
			method = MethodSemantic
		}
		results = append(results, Scored{
			Candidate: p.cand,
			Score:     alpha*p.sem + (1-alpha)*p.lex,
			Method:    method,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// Rerank applies heuristic bonuses on top of the fused scores and truncates
// to topK. Callers skip it when the candidate count is already within topK.
func Rerank(query string, results []Scored, topK int) ([]Scored, error) {
	if len(results) == 0 {
		return nil, errNoResults
	}
	if topK <= 0 {
		return nil, errors.New("topK must be positive")
	}
	queryTerms := Tokenize(query)

	reranked := make([]Scored, len(results))
	for i, r := range results {
		bonus := termOverlapBonus(queryTerms, r.Content) +
			techDensityBonus(r.Content) +
			lengthSweetSpotBonus(r.Content)
		reranked[i] = r
		reranked[i].Score = r.Score * (1 + bonus)
	}
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}

func maxNormalize(results []Scored) []Scored {
	if len(results) == 0 {
		return results
	}
	max := results[0].Score
	for _, r := range results[1:] {
		if r.Score > max {
			max = r.Score
		}
	}
	if max <= 0 {
		return results
	}
	out := make([]Scored, len(results))
	for i, r := range results {
		out[i] = r
		out[i].Score = r.Score / max
	}
	return out
}

// termOverlapBonus rewards content that literally contains the query terms.
func termOverlapBonus(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	contentTokens := Tokenize(content)
	present := make(map[string]struct{}, len(contentTokens))
	for _, t := range contentTokens {
		present[t] = struct{}{}
	}
	matches := 0
	for _, t := range queryTerms {
		if _, ok := present[t]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms)) * termOverlapWeight
}

// techDensityBonus rewards domain vocabulary density.
func techDensityBonus(content string) float64 {
	tokens := Tokenize(content)
	if len(tokens) == 0 {
		return 0
	}
	matches := 0
	for _, t := range tokens {
		if _, ok := models.DomainTerms[t]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens)) * techDensityWeight
}

func lengthSweetSpotBonus(content string) float64 {
	if n := len(content); n >= sweetSpotMin && n <= sweetSpotMax {
		return lengthBonus
	}
	return 0
}
