package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, Supported("docs/guide.md"))
	assert.True(t, Supported("notes.TXT"))
	assert.True(t, Supported("paper.pdf"))
	assert.True(t, Supported("report.docx"))
	assert.False(t, Supported("image.png"))
	assert.False(t, Supported("archive.zip"))
	assert.False(t, Supported("Makefile"))
}

func TestExtractPlain(t *testing.T) {
	t.Parallel()

	e := NewExtractor()

	t.Run("returns trimmed text", func(t *testing.T) {
		t.Parallel()
		sections, err := e.ExtractBytes([]byte("  hello world\n"), ".txt")
		require.NoError(t, err)
		require.Len(t, sections, 1)
		assert.Equal(t, "hello world", sections[0].Text)
		assert.Zero(t, sections[0].Page)
	})

	t.Run("empty file yields no sections", func(t *testing.T) {
		t.Parallel()
		sections, err := e.ExtractBytes([]byte("  \n "), ".md")
		require.NoError(t, err)
		assert.Empty(t, sections)
	})

	t.Run("rejects invalid utf8", func(t *testing.T) {
		t.Parallel()
		_, err := e.ExtractBytes([]byte{0xff, 0xfe, 0x01}, ".txt")
		assert.Error(t, err)
	})
}

func TestExtractDOCX(t *testing.T) {
	t.Parallel()

	e := NewExtractor()

	t.Run("extracts text runs", func(t *testing.T) {
		t.Parallel()
		docx := buildDocx(t, `<w:document><w:body>`+
			`<w:p w:rsidR="x"><w:r><w:t>Hello</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t xml:space="preserve">overlapping windows</w:t></w:r></w:p>`+
			`</w:body></w:document>`)

		sections, err := e.ExtractBytes(docx, ".docx")
		require.NoError(t, err)
		require.Len(t, sections, 1)
		assert.Equal(t, "Hello overlapping windows", sections[0].Text)
	})

	t.Run("no text runs yields no sections", func(t *testing.T) {
		t.Parallel()
		docx := buildDocx(t, `<w:document><w:body></w:body></w:document>`)

		sections, err := e.ExtractBytes(docx, ".docx")
		require.NoError(t, err)
		assert.Empty(t, sections)
	})

	t.Run("rejects non-zip content", func(t *testing.T) {
		t.Parallel()
		_, err := e.ExtractBytes([]byte("plain text, not a zip"), ".docx")
		assert.Error(t, err)
	})

	t.Run("rejects zip without document xml", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("something/else.xml")
		require.NoError(t, err)
		_, err = w.Write([]byte("<x/>"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = e.ExtractBytes(buf.Bytes(), ".docx")
		assert.Error(t, err)
	})
}

func TestExtractPDFInvalid(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("not a pdf"), ".pdf")
	assert.Error(t, err)
}
