package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	c := New()
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n  \t"))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := New()
	chunks := c.Split("La ecuación de Hazen-Williams estima la pérdida de carga.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "La ecuación de Hazen-Williams estima la pérdida de carga.", chunks[0])
}

func TestSplitRespectsMaxSize(t *testing.T) {
	c := New(WithMaxSize(200), WithOverlap(40))
	text := strings.Repeat("caudal presion tuberia diametro velocidad friccion ", 60)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 200, "chunk %d exceeds the limit", i)
	}
}

func TestSplitLongDocumentProducesMultipleChunks(t *testing.T) {
	c := New(WithMaxSize(800), WithOverlap(100))
	var sb strings.Builder
	for sb.Len() < 2500 {
		sb.WriteString("El coeficiente de rugosidad depende del material de la tubería. ")
	}
	chunks := c.Split(sb.String())
	assert.GreaterOrEqual(t, len(chunks), 3)
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	c := New(WithMaxSize(200), WithOverlap(100))
	words := make([]string, 99)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i+1)
	}
	chunks := c.Split(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	// The second chunk starts with the trailing overlap/10 words of the first.
	firstWords := strings.Fields(chunks[0])
	require.GreaterOrEqual(t, len(firstWords), 10)
	tail := strings.Join(firstWords[len(firstWords)-10:], " ")
	assert.True(t, strings.HasPrefix(chunks[1], tail),
		"chunk 1 %q does not start with the seed %q", chunks[1], tail)
}

func TestSplitClosesChunkAtParagraphBoundary(t *testing.T) {
	c := New(WithMaxSize(800), WithOverlap(100))
	first := strings.TrimSpace(strings.Repeat("tuberia caudal presion diametro ", 22))
	second := strings.TrimSpace(strings.Repeat("rugosidad friccion ", 10))
	chunks := c.Split(first + "\n\n" + second)
	require.Len(t, chunks, 2)

	// The second paragraph does not fit after the first, so the first chunk
	// ends exactly at the paragraph boundary and the second paragraph stays
	// whole in the next chunk, after the overlap seed.
	assert.Equal(t, first, chunks[0])
	assert.True(t, strings.HasSuffix(chunks[1], "\n\n"+second),
		"chunk 1 %q does not end with the intact second paragraph", chunks[1])
}

func TestSplitPacksWholeParagraphsPerChunk(t *testing.T) {
	c := New()
	paras := []string{
		"El golpe de ariete se mitiga con válvulas de alivio.",
		"La presión estática máxima ocurre en el punto más bajo de la red.",
		"El diámetro mínimo en redes de distribución es de 75 mm.",
	}
	chunks := c.Split(strings.Join(paras, "\n\n"))
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.Join(paras, "\n\n"), chunks[0])
}

func TestSplitPreservesMarkdownTableLines(t *testing.T) {
	c := New()
	table := "| Material | C |\n|---|---|\n| PVC | 150 |\n| Acero | 120 |"
	chunks := c.Split(table)
	require.Len(t, chunks, 1)
	assert.Equal(t, table, chunks[0])
}

func TestSplitHardSplitsOversizedWord(t *testing.T) {
	c := New(WithMaxSize(30), WithOverlap(0))
	chunks := c.Split(strings.Repeat("a", 100))
	require.Len(t, chunks, 4)
	for _, chunk := range chunks[:3] {
		assert.Len(t, chunk, 30)
	}
	assert.Len(t, chunks[3], 10)
}

func TestSplitHardSplitCarriesNoOverlap(t *testing.T) {
	c := New(WithMaxSize(30), WithOverlap(20))
	text := "inicio " + strings.Repeat("b", 60) + " final"
	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 3)
	// Slices of the oversized word stay pure, no seeded words in front.
	assert.Equal(t, strings.Repeat("b", 30), chunks[1])
}

func TestSplitHardSplitKeepsRuneBoundaries(t *testing.T) {
	c := New(WithMaxSize(25), WithOverlap(0))
	chunks := c.Split(strings.Repeat("ñ", 40))
	require.GreaterOrEqual(t, len(chunks), 2)
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d cuts a rune in half", i)
		assert.LessOrEqual(t, len(chunk), 25)
	}
}

func TestNewClampsExcessiveOverlap(t *testing.T) {
	c := New(WithMaxSize(100), WithOverlap(500))
	assert.Equal(t, 25, c.Overlap())
	assert.Equal(t, 100, c.MaxSize())
}
