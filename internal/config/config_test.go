package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debugLevel = "debug"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Verbose)

	assert.Equal(t, "ENTRADA_PDFS", cfg.Folders.Input)
	assert.Equal(t, "SALIDA_TRADUCIDOS", cfg.Folders.Output)
	assert.Equal(t, "PDFS_PROCESADOS", cfg.Folders.Processed)
	assert.Equal(t, "PDFS_CON_ERROR", cfg.Folders.Error)
	assert.Equal(t, "TEMP_OCR", cfg.Folders.TempOCR)

	assert.Equal(t, "ocrmypdf", cfg.OCR.Binary)
	assert.Equal(t, "rus", cfg.OCR.Language)
	assert.Equal(t, 2, cfg.OCR.Jobs)
	assert.True(t, cfg.OCR.ForceOCR)
	assert.True(t, cfg.OCR.Deskew)
	assert.Equal(t, "pdf", cfg.OCR.OutputType)

	assert.Equal(t, "http://localhost:11434/api/generate", cfg.Translator.Endpoint)
	assert.Equal(t, "gemma2:9b", cfg.Translator.Model)
	assert.InDelta(t, 0.0, cfg.Translator.Temperature, 1e-9)
	assert.Equal(t, 4096, cfg.Translator.NumCtx)
	assert.Equal(t, 60*time.Second, cfg.Translator.Timeout)

	assert.Equal(t, 3, cfg.Rewrite.MinBlockChars)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 5*time.Second, cfg.Batch.PollInterval)
	assert.Equal(t, CollisionOverwrite, cfg.Batch.ErrorCollision)
	assert.True(t, cfg.Batch.ShowProgress)
	assert.False(t, cfg.Batch.ShowPages)
	assert.Equal(t, 40, cfg.Batch.ProgressWidth)
	assert.True(t, cfg.Batch.ShowETA)
	assert.True(t, cfg.Batch.ShowRate)
	assert.Empty(t, cfg.Metrics.Addr)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid debug level", func(c *Config) { c.LogLevel = debugLevel }, ""},
		{"invalid log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"empty input folder", func(c *Config) { c.Folders.Input = " " }, "folders.input"},
		{"duplicate folders", func(c *Config) { c.Folders.Error = c.Folders.Processed }, "same directory"},
		{"empty ocr binary", func(c *Config) { c.OCR.Binary = "" }, "ocr.binary"},
		{"zero ocr jobs", func(c *Config) { c.OCR.Jobs = 0 }, "ocr.jobs"},
		{"zero ocr timeout", func(c *Config) { c.OCR.Timeout = 0 }, "ocr.timeout"},
		{"empty endpoint", func(c *Config) { c.Translator.Endpoint = "" }, "translator.endpoint"},
		{"empty model", func(c *Config) { c.Translator.Model = "" }, "translator.model"},
		{"temperature too high", func(c *Config) { c.Translator.Temperature = 3 }, "translator.temperature"},
		{"negative num ctx", func(c *Config) { c.Translator.NumCtx = -1 }, "translator.num_ctx"},
		{"zero translator timeout", func(c *Config) { c.Translator.Timeout = 0 }, "translator.timeout"},
		{"zero font size", func(c *Config) { c.Rewrite.FontSize = 0 }, "rewrite.font_size"},
		{"tight line spacing", func(c *Config) { c.Rewrite.LineSpacing = 0.5 }, "rewrite.line_spacing"},
		{"bad fill color", func(c *Config) { c.Rewrite.FillColor = "white" }, "rewrite.fill_color"},
		{"bad text color", func(c *Config) { c.Rewrite.TextColor = "#12345G" }, "rewrite.text_color"},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
		{"zero poll interval", func(c *Config) { c.Batch.PollInterval = 0 }, "batch.poll_interval"},
		{"unknown collision policy", func(c *Config) { c.Batch.ErrorCollision = "rename" }, "batch.error_collision"},
		{"timestamp collision policy", func(c *Config) { c.Batch.ErrorCollision = CollisionTimestamp }, ""},
		{"zero progress width", func(c *Config) { c.Batch.ProgressWidth = 0 }, "batch.progress_width"},
		{"output inside input", func(c *Config) { c.Folders.Output = "ENTRADA_PDFS/out" }, "folders.output"},
		{"cache inside input", func(c *Config) { c.Folders.TempOCR = "ENTRADA_PDFS/.ocr" }, "folders.temp_ocr"},
		{"sibling with input prefix", func(c *Config) { c.Folders.Output = "ENTRADA_PDFS_OUT" }, ""},
		{"input inside output", func(c *Config) { c.Folders.Input = "SALIDA_TRADUCIDOS/in" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvedFolders(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.BaseDir = base
	cfg.Folders.Error = filepath.Join(base, "elsewhere", "errors")

	folders, err := cfg.ResolvedFolders()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "ENTRADA_PDFS"), folders.Input)
	assert.Equal(t, filepath.Join(base, "SALIDA_TRADUCIDOS"), folders.Output)
	assert.Equal(t, filepath.Join(base, "elsewhere", "errors"), folders.Error)
	assert.Equal(t, filepath.Join(base, "TEMP_OCR"), folders.TempOCR)
}

func TestResolvedFoldersRejectsOutputInsideInput(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.BaseDir = base
	cfg.Folders.Output = filepath.Join(base, "ENTRADA_PDFS", "translated")
	require.NoError(t, cfg.Validate(), "relative input and absolute output are only comparable once resolved")

	_, err := cfg.ResolvedFolders()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "folders.output")
	assert.Contains(t, err.Error(), "inside folders.input")
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	assert.True(t, within("in", "in"+sep+"out"))
	assert.True(t, within("/data/in", "/data/in/a/b"))
	assert.False(t, within("in", "in"))
	assert.False(t, within("in", "input"))
	assert.False(t, within("in", ".."+sep+"in"+sep+"x"))
	assert.False(t, within("/data/in", "out"))
}

func TestResolveBaseDirDefaultsToWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := DefaultConfig()
	base, err := cfg.ResolveBaseDir()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(base)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
