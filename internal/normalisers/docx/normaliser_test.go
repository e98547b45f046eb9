package docx

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// writeTestDOCX writes a minimal DOCX archive and returns its path.
func writeTestDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)

	// Add [Content_Types].xml (required for valid DOCX)
	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return path
}

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.Equal(t, domain.FormatWord, normaliser.Format())
}

func TestNormalise_Success(t *testing.T) {
	path := writeTestDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello World</w:t></w:r></w:p>
</w:body>
</w:document>`)

	text, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)
}

func TestNormalise_MultipleParagraphs(t *testing.T) {
	path := writeTestDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Third paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`)

	text, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	// Paragraphs should be separated by newlines
	assert.Equal(t, "First paragraph\nSecond paragraph\nThird paragraph", text)
}

func TestNormalise_MultipleRuns(t *testing.T) {
	// Multiple runs in a single paragraph (e.g., different formatting)
	path := writeTestDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Bold </w:t></w:r><w:r><w:t>and plain</w:t></w:r></w:p>
</w:body>
</w:document>`)

	text, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Bold and plain", text)
}

func TestNormalise_InvalidZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip file"), 0o600))

	text, err := New().Normalise(context.Background(), path)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestNormalise_MissingDocumentXML(t *testing.T) {
	path := writeTestDOCX(t, "")

	_, err := New().Normalise(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestNormalise_MalformedXML(t *testing.T) {
	path := writeTestDOCX(t, "<w:document><w:body><w:p>")

	_, err := New().Normalise(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
}
