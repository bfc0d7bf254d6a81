package testutil

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPDFIsReadable(t *testing.T) {
	path := WritePDF(t, filepath.Join(t.TempDir(), "doc.pdf"),
		[]TextRun{{X: 72, Y: 700, Size: 12, Text: "Привет мир"}},
		[]TextRun{{X: 72, Y: 700, Size: 12, Text: "Page two"}},
	)

	n, err := api.PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBuildPDFXrefOffsets(t *testing.T) {
	data := BuildPDF([]TextRun{{X: 10, Y: 10, Size: 9, Text: "abc"}})
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(data, []byte("%%EOF\n")))
	// object 1 starts exactly where the xref says
	idx := bytes.Index(data, []byte("1 0 obj"))
	require.Positive(t, idx)
	assert.Contains(t, string(data), "0000000015 00000 n")
}

func TestBuildPDFEmpty(t *testing.T) {
	data := BuildPDF()
	assert.Contains(t, string(data), "/Count 1")
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	WriteFile(t, filepath.Join(dir, "a.txt"), []byte("x"))
	assert.Equal(t, []string{"a.txt"}, ListDir(t, dir))
	assert.Nil(t, ListDir(t, filepath.Join(dir, "missing")))
	assert.True(t, FileExists(filepath.Join(dir, "a.txt")))
}
