package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, ".incoming")
	require.NoError(t, os.Mkdir(sub, 0o750))

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "doc.pdf"), true},
		{filepath.Join(dir, "DOC.PDF"), true},
		{filepath.Join(dir, ".scan.pdf"), true},
		{sub, true},
		{filepath.Join(dir, "notes.txt"), false},
		{filepath.Join(dir, "doc.pdf.part"), false},
		{filepath.Join(dir, "missing"), false},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.path))
		})
	}
}
