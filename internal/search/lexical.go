package search

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"hydrokb/internal/models"
)

// Standard BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75

	minTokenLen = 3
)

// Tokenize lower-cases, strips punctuation and drops short tokens and
// stop-words. Query and corpus go through the same pipeline so term
// frequency comparisons stay valid.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minTokenLen {
			continue
		}
		if _, stop := models.StopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// BM25 ranks candidates against the query terms. Chunks with no matching
// term are excluded entirely to keep the candidate set small for fusion.
func BM25(queryTerms []string, candidates []Candidate) []Scored {
	if len(queryTerms) == 0 || len(candidates) == 0 {
		return nil
	}

	docTokens := make([][]string, len(candidates))
	docFreq := make([]map[string]int, len(candidates))
	totalLen := 0
	for i, c := range candidates {
		tokens := Tokenize(c.Content)
		docTokens[i] = tokens
		totalLen += len(tokens)
		freq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freq[t]++
		}
		docFreq[i] = freq
	}
	avgDocLen := float64(totalLen) / float64(len(candidates))
	if avgDocLen == 0 {
		return nil
	}

	// Document frequency per query term over the candidate corpus.
	n := float64(len(candidates))
	containing := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		if _, done := containing[term]; done {
			continue
		}
		count := 0.0
		for i := range candidates {
			if docFreq[i][term] > 0 {
				count++
			}
		}
		containing[term] = count
	}

	var results []Scored
	for i, c := range candidates {
		score := 0.0
		matched := false
		docLen := float64(len(docTokens[i]))
		for _, term := range queryTerms {
			tf := float64(docFreq[i][term])
			if tf == 0 {
				continue
			}
			matched = true
			nt := containing[term]
			idf := math.Log((n - nt + 0.5) / (nt + 0.5))
			if idf < 0 {
				idf = 0
			}
			score += idf * (tf * (bm25K1 + 1)) /
				(tf + bm25K1*(1-bm25B+bm25B*(docLen/avgDocLen)))
		}
		if !matched {
			continue
		}
		results = append(results, Scored{Candidate: c, Score: score, Method: MethodLexical})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
