// Package extract pulls plain text out of the document formats the knowledge
// base ingests. The retrieval engine itself only ever sees the extracted
// text; format handling stops at this boundary.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extracted is the format-independent result of pulling text from a file.
type Extracted struct {
	Title    string
	Text     string
	Language string
}

// Extract reads a document file and returns its text content with a derived
// title. Supported formats: .pdf, .docx, .xlsx, .ods, .md, .txt.
func Extract(path string) (*Extracted, error) {
	var (
		content string
		title   string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		content, err = extractPDF(path)
	case ".docx":
		content, err = extractDOCX(path)
	case ".xlsx":
		content, err = extractXLSX(path)
	case ".ods":
		content, err = extractODS(path)
	case ".md":
		content, title, err = extractMarkdown(path)
	case ".txt":
		content, err = extractText(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(path), err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%s contains no extractable text", filepath.Base(path))
	}
	if title == "" {
		title = titleFromFilename(path)
	}
	return &Extracted{Title: title, Text: content, Language: detectLanguage(content)}, nil
}

// Common function words unlikely to overlap between the two corpus languages.
var (
	spanishMarkers = []string{"de", "la", "el", "los", "las", "una", "del", "para", "con", "que"}
	englishMarkers = []string{"the", "and", "for", "with", "that", "this", "are", "from", "which"}
)

// detectLanguage is a coarse es/en classifier based on function-word counts.
// It only has to be right often enough to default the language metadata; the
// caller can always override it.
func detectLanguage(content string) string {
	sample := strings.ToLower(content)
	if len(sample) > 4000 {
		sample = sample[:4000]
	}
	counts := map[string]int{}
	for _, w := range strings.Fields(sample) {
		counts[strings.Trim(w, ".,;:()¿?¡!\"")]++
	}
	es, en := 0, 0
	for _, m := range spanishMarkers {
		es += counts[m]
	}
	for _, m := range englishMarkers {
		en += counts[m]
	}
	if en > es {
		return "en"
	}
	return "es"
}

func extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		pageText, err := reader.Page(i).GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func extractDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var sb strings.Builder
	for _, para := range strings.Split(r.Editable().GetContent(), "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString(para)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// extractXLSX renders each sheet as tab-separated rows under a sheet header,
// so table lookups (roughness coefficients, fitting loss factors) stay
// searchable as text.
func extractXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		sb.WriteString("Hoja: " + sheet.Name + "\n")
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			line := strings.TrimSpace(strings.Join(cells, "\t"))
			if line != "" {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractODS(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		sb.WriteString("Hoja: " + sheetName + "\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// extractMarkdown keeps the markdown source intact (structure cues feed the
// quality validator later) and derives the title from the first heading.
func extractMarkdown(path string) (content, title string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	root := goldmark.New().Parser().Parse(text.NewReader(data))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			title = strings.TrimSpace(string(h.Text(data)))
			break
		}
	}
	return string(data), title, nil
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// titleFromFilename turns "perdidas_carga_hazen-williams.pdf" into
// "Perdidas Carga Hazen Williams".
func titleFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	words := strings.Fields(base)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
