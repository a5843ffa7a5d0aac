package models

import "time"

// SearchResult is the query-time projection returned by the retrieval engine.
// It is never persisted.
type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Method   string            `json:"method"` // "lexical", "semantic" or "hybrid"
	Metadata map[string]string `json:"metadata,omitempty"`
	// Degraded marks results produced while the embedding pipeline was
	// running on the fallback provider.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	Quality *QualityMetrics `json:"quality,omitempty"`
}

// QualityMetrics holds the per-result validation scores computed at query time.
type QualityMetrics struct {
	Relevance         float64        `json:"relevance"`
	TechnicalAccuracy float64        `json:"technical_accuracy"`
	Completeness      float64        `json:"completeness"`
	Freshness         float64        `json:"freshness"`
	SourceReliability float64        `json:"source_reliability"`
	Overall           float64        `json:"overall"`
	Issues            []QualityIssue `json:"issues,omitempty"`
	Recommendations   []string       `json:"recommendations,omitempty"`
}

type IssueKind string

const (
	IssueLowRelevance        IssueKind = "low_relevance"
	IssueLowTechnicalDensity IssueKind = "low_technical_density"
	IssueIncompleteInfo      IssueKind = "incomplete_info"
	IssueOutdatedContent     IssueKind = "outdated_content"
	IssueUnreliableSource    IssueKind = "unreliable_source"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type QualityIssue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

// Progress is emitted after each chunk is embedded during ingestion.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// DocumentInput carries a document into the ingestion path. Category and
// regions feed the metadata filters exposed by the search API.
type DocumentInput struct {
	Title       string
	Content     string
	Category    string
	Subcategory string
	Regions     []string
	Keywords    []string
	FormulaRefs []string
	TableRefs   []string
	FigureRefs  []string
	Language    string
	Version     string
	CreatedAt   time.Time
}
