// Package quality scores and filters ranked search results on relevance,
// technical density, completeness, freshness and source reliability.
package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"hydrokb/internal/models"
	"hydrokb/internal/search"
)

// Fixed sub-score weights; they sum to 1.
const (
	weightRelevance    = 0.30
	weightTechnical    = 0.25
	weightCompleteness = 0.20
	weightFreshness    = 0.15
	weightReliability  = 0.10
)

const freshnessFloor = 0.3

// formulaPattern matches `h = expression` style formula fragments.
var formulaPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9_]{0,3}\s*=\s*[0-9a-zA-Z(]`)

// Options configure validation. Zero values fall back to usable defaults.
type Options struct {
	// MinScore is the floor the overall score (default mode) or each
	// weight-scaled sub-score (strict mode) must clear.
	MinScore float64
	// Strict requires every sub-score to individually clear its floor.
	Strict bool
	// MaxAgeYears is the age at which content is considered outdated.
	MaxAgeYears float64
	// PreferredSources get a reliability bonus when mentioned.
	PreferredSources []string
	// Now anchors freshness; defaults to time.Now.
	Now time.Time
}

// Validated pairs a result that passed the filter with its metrics.
type Validated struct {
	search.Scored
	Metrics models.QualityMetrics
}

type Validator struct {
	opts Options
}

func New(opts Options) *Validator {
	if opts.MinScore <= 0 {
		opts.MinScore = 0.4
	}
	if opts.MaxAgeYears <= 0 {
		opts.MaxAgeYears = 10
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return &Validator{opts: opts}
}

// Validate computes metrics for every result and returns the ones that pass
// the filtering policy, sorted by overall quality descending.
func (v *Validator) Validate(query string, results []search.Scored) []Validated {
	queryTerms := search.Tokenize(query)

	var passed []Validated
	for _, r := range results {
		m := v.metricsFor(queryTerms, r)
		if !v.passes(m) {
			continue
		}
		passed = append(passed, Validated{Scored: r, Metrics: m})
	}
	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].Metrics.Overall > passed[j].Metrics.Overall
	})
	return passed
}

// Metrics computes the quality metrics for a single result without
// filtering; cleanup tooling uses it to inspect rejected content.
func (v *Validator) Metrics(query string, r search.Scored) models.QualityMetrics {
	return v.metricsFor(search.Tokenize(query), r)
}

func (v *Validator) passes(m models.QualityMetrics) bool {
	if !v.opts.Strict {
		return m.Overall >= v.opts.MinScore
	}
	floors := []struct {
		score, weight float64
	}{
		{m.Relevance, weightRelevance},
		{m.TechnicalAccuracy, weightTechnical},
		{m.Completeness, weightCompleteness},
		{m.Freshness, weightFreshness},
		{m.SourceReliability, weightReliability},
	}
	for _, f := range floors {
		if f.score < v.opts.MinScore*f.weight {
			return false
		}
	}
	return m.Overall >= v.opts.MinScore
}

func (v *Validator) metricsFor(queryTerms []string, r search.Scored) models.QualityMetrics {
	m := models.QualityMetrics{}

	m.Relevance = v.relevance(queryTerms, r, &m)
	m.TechnicalAccuracy = v.technicalAccuracy(r.Content, &m)
	m.Completeness = v.completeness(r.Content, &m)
	m.Freshness = v.freshness(r.CreatedAt, &m)
	m.SourceReliability = v.reliability(r, &m)

	m.Overall = weightRelevance*m.Relevance +
		weightTechnical*m.TechnicalAccuracy +
		weightCompleteness*m.Completeness +
		weightFreshness*m.Freshness +
		weightReliability*m.SourceReliability

	m.Recommendations = recommendations(m.Issues)
	return m
}

// relevance blends the incoming retrieval score with raw query/content term
// overlap.
func (v *Validator) relevance(queryTerms []string, r search.Scored, m *models.QualityMetrics) float64 {
	incoming := clamp01(r.Score)
	overlap := overlapRatio(queryTerms, r.Content)
	score := 0.7*incoming + 0.3*overlap
	if score < 0.3 {
		m.Issues = append(m.Issues, models.QualityIssue{
			Kind:        models.IssueLowRelevance,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("result scores %.2f against the query", score),
		})
	}
	return score
}

// technicalAccuracy measures domain term, formula and unit density per word.
func (v *Validator) technicalAccuracy(content string, m *models.QualityMetrics) float64 {
	tokens := search.Tokenize(content)
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}

	hits := 0
	for _, t := range tokens {
		if _, ok := models.DomainTerms[t]; ok {
			hits++
		}
	}
	for _, w := range strings.Fields(strings.ToLower(content)) {
		if _, ok := models.UnitTokens[strings.Trim(w, ".,;:()")]; ok {
			hits++
		}
	}
	hits += len(formulaPattern.FindAllString(content, -1))

	density := float64(hits) / float64(words)
	score := clamp01(density * 5)
	if density < 0.02 {
		m.Issues = append(m.Issues, models.QualityIssue{
			Kind:        models.IssueLowTechnicalDensity,
			Severity:    models.SeverityLow,
			Description: "content carries little technical vocabulary",
		})
		score *= 0.8
	}
	return score
}

// completeness blends a content-length base score with structural
// indicators (examples, steps, tables, references).
func (v *Validator) completeness(content string, m *models.QualityMetrics) float64 {
	length := len(content)
	var base float64
	switch {
	case length >= 800:
		base = 1.0
	case length >= 400:
		base = 0.75
	case length >= 150:
		base = 0.5
	default:
		base = 0.25
		m.Issues = append(m.Issues, models.QualityIssue{
			Kind:        models.IssueIncompleteInfo,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("content is only %d characters long", length),
		})
	}
	return 0.7*base + 0.3*structureScore(content)
}

// freshness decays linearly from 1.0 to a floor as content age approaches
// the configured maximum.
func (v *Validator) freshness(createdAt time.Time, m *models.QualityMetrics) float64 {
	if createdAt.IsZero() {
		return freshnessFloor
	}
	ageYears := v.opts.Now.Sub(createdAt).Hours() / (24 * 365.25)
	if ageYears <= 0 {
		return 1.0
	}
	if ageYears >= v.opts.MaxAgeYears {
		severity := models.SeverityMedium
		if ageYears >= v.opts.MaxAgeYears*1.5 {
			severity = models.SeverityHigh
		}
		m.Issues = append(m.Issues, models.QualityIssue{
			Kind:        models.IssueOutdatedContent,
			Severity:    severity,
			Description: fmt.Sprintf("content is %.1f years old (limit %.0f)", ageYears, v.opts.MaxAgeYears),
		})
		return freshnessFloor
	}
	return 1.0 - (ageYears/v.opts.MaxAgeYears)*(1.0-freshnessFloor)
}

// reliability starts from a neutral base and adds bonuses for recognized
// authoritative sources, caller-preferred sources and bibliographic
// references.
func (v *Validator) reliability(r search.Scored, m *models.QualityMetrics) float64 {
	haystack := strings.ToLower(r.Title + " " + r.Content)
	score := 0.5
	for _, src := range models.AuthoritativeSources {
		if strings.Contains(haystack, src) {
			score += 0.3
			break
		}
	}
	for _, src := range v.opts.PreferredSources {
		if src != "" && strings.Contains(haystack, strings.ToLower(src)) {
			score += 0.2
			break
		}
	}
	if r.HasRefs {
		score += 0.1
	}
	score = clamp01(score)
	if score < 0.4 {
		m.Issues = append(m.Issues, models.QualityIssue{
			Kind:        models.IssueUnreliableSource,
			Severity:    models.SeverityLow,
			Description: "no recognized source attribution found",
		})
	}
	return score
}

func recommendations(issues []models.QualityIssue) []string {
	var recs []string
	for _, issue := range issues {
		switch issue.Kind {
		case models.IssueLowRelevance:
			recs = append(recs, "refine the query with more specific technical terms")
		case models.IssueLowTechnicalDensity:
			recs = append(recs, "verify the chunk against the source document")
		case models.IssueIncompleteInfo:
			recs = append(recs, "consult the full document for complete context")
		case models.IssueOutdatedContent:
			recs = append(recs, "check for a newer revision of this document")
		case models.IssueUnreliableSource:
			recs = append(recs, "cross-check with an authoritative reference")
		}
	}
	return recs
}

func overlapRatio(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, t := range search.Tokenize(content) {
		present[t] = struct{}{}
	}
	matches := 0
	for _, t := range queryTerms {
		if _, ok := present[t]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
