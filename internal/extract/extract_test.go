package extract

import (
	"archive/zip"
	"bytes"
	"strings"
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

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Ferritin reflects</w:t></w:r><w:r><w:t xml:space="preserve"> iron stores.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Zinc</w:t><w:tab/><w:t>supports appetite.</w:t></w:r></w:p>
    <w:p/>
  </w:body>
</w:document>`

func TestText_PlainText(t *testing.T) {
	text, err := Text("notes.txt", strings.NewReader("Vitamin D\xff and B12"))

	require.NoError(t, err)
	assert.Equal(t, "Vitamin D and B12", text)
}

func TestText_UnknownExtensionIsText(t *testing.T) {
	text, err := Text("guideline.md", strings.NewReader("# Iron"))

	require.NoError(t, err)
	assert.Equal(t, "# Iron", text)
}

func TestText_Docx(t *testing.T) {
	data := buildDocx(t, sampleDocument)

	text, err := Text("Guideline.DOCX", bytes.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "Ferritin reflects iron stores.\nZinc\tsupports appetite.\n", text)
}

func TestDocx_NotAZip(t *testing.T) {
	_, err := Docx([]byte("plain text"))

	assert.ErrorIs(t, err, ErrNotDocx)
}

func TestDocx_MissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Docx(buf.Bytes())

	assert.ErrorIs(t, err, ErrNotDocx)
}

func TestPDF_Invalid(t *testing.T) {
	_, err := Text("report.pdf", strings.NewReader("not a pdf"))

	assert.Error(t, err)
}
