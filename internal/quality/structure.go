package quality

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var structureParser = goldmark.New(goldmark.WithExtensions(extension.Table))

// Plain-text cues for structure that survives markdown stripping during
// extraction.
var (
	exampleCues   = []string{"ejemplo", "example", "caso práctico", "caso practico"}
	stepCues      = []string{"paso 1", "paso 2", "step 1", "step 2", "procedimiento"}
	referenceCues = []string{"referencia", "bibliograf", "reference", "véase", "vease", "ver tabla", "ver figura"}
)

// structureScore returns the fraction (0..1) of structural indicators found
// in the content: worked examples, procedural steps, tables and references.
// Markdown constructs are detected from the parsed document tree, prose cues
// by substring.
func structureScore(content string) float64 {
	hasList, hasTable := markdownIndicators(content)

	lower := strings.ToLower(content)
	indicators := 0
	if containsAny(lower, exampleCues) {
		indicators++
	}
	if hasList || containsAny(lower, stepCues) {
		indicators++
	}
	if hasTable || strings.Contains(lower, "tabla ") || strings.Contains(lower, "table ") {
		indicators++
	}
	if containsAny(lower, referenceCues) {
		indicators++
	}
	return float64(indicators) / 4
}

// markdownIndicators parses content as markdown and reports whether it
// contains lists or tables.
func markdownIndicators(content string) (hasList, hasTable bool) {
	source := []byte(content)
	root := structureParser.Parser().Parse(text.NewReader(source))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindList:
			hasList = true
		case east.KindTable:
			hasTable = true
		}
		if hasList && hasTable {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return hasList, hasTable
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
