package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "notas.txt", "Velocidad máxima recomendada: 2.5 m/s\n")
	got, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Velocidad máxima recomendada: 2.5 m/s", got.Text)
	assert.Equal(t, "Notas", got.Title)
}

func TestExtractMarkdownTitleFromHeading(t *testing.T) {
	path := writeFile(t, "norma.md", "# NOM-127-SSA1\n\nLímites permisibles de calidad del agua.\n")
	got, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "NOM-127-SSA1", got.Title)
	assert.Contains(t, got.Text, "# NOM-127-SSA1")
	assert.Contains(t, got.Text, "Límites permisibles")
}

func TestExtractMarkdownWithoutHeadingFallsBackToFilename(t *testing.T) {
	path := writeFile(t, "perdidas_carga_hazen-williams.md", "Texto sin encabezado.\n")
	got, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Perdidas Carga Hazen Williams", got.Title)
}

func TestExtractRejectsEmptyFile(t *testing.T) {
	path := writeFile(t, "vacio.txt", "   \n\n")
	_, err := Extract(path)
	assert.Error(t, err)
}

func TestExtractRejectsUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "imagen.png", "not really an image")
	_, err := Extract(path)
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "es", detectLanguage("La pérdida de carga en la tubería depende del caudal y de la rugosidad."))
	assert.Equal(t, "en", detectLanguage("The head loss in the pipe depends on the flow rate and the roughness."))
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "Diseño De Tanques", titleFromFilename("/tmp/diseño_de_tanques.pdf"))
	assert.Equal(t, "Manual", titleFromFilename("manual.docx"))
}
