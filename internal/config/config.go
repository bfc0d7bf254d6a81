package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Error-folder collision policies.
const (
	CollisionOverwrite = "overwrite"
	CollisionTimestamp = "timestamp"
)

// DefaultConfig returns a configuration with the pipeline's stock settings.
func DefaultConfig() Config {
	return Config{
		BaseDir:  "",
		LogLevel: "info",
		Verbose:  false,
		Folders: FoldersConfig{
			Input:     "ENTRADA_PDFS",
			Output:    "SALIDA_TRADUCIDOS",
			Processed: "PDFS_PROCESADOS",
			Error:     "PDFS_CON_ERROR",
			TempOCR:   "TEMP_OCR",
		},
		OCR: OCRConfig{
			Binary:     "ocrmypdf",
			Language:   "rus",
			Jobs:       2,
			ForceOCR:   true,
			Deskew:     true,
			OutputType: "pdf",
			Timeout:    30 * time.Minute,
		},
		Translator: TranslatorConfig{
			Endpoint:       "http://localhost:11434/api/generate",
			Model:          "gemma2:9b",
			SourceLanguage: "Russian",
			TargetLanguage: "Spanish",
			Temperature:    0.0,
			NumCtx:         4096,
			Timeout:        60 * time.Second,
			MinChars:       2,
		},
		Rewrite: RewriteConfig{
			MinBlockChars: 3,
			FontName:      "Helvetica",
			FontSize:      9,
			FillColor:     "#FFFFFF",
			TextColor:     "#000000",
			LineSpacing:   1.2,
		},
		Batch: BatchConfig{
			Workers:        4,
			PollInterval:   5 * time.Second,
			WatchEvents:    true,
			ErrorCollision: CollisionOverwrite,
			ShowProgress:   true,
			ShowPages:      false,
			ProgressWidth:  40,
			ShowETA:        true,
			ShowRate:       true,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.Folders.validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.OCR.Binary) == "" {
		return fmt.Errorf("invalid ocr.binary: must not be empty")
	}
	if c.OCR.Jobs <= 0 {
		return fmt.Errorf("invalid ocr.jobs: %d (must be positive)", c.OCR.Jobs)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("invalid ocr.timeout: %v (must be positive)", c.OCR.Timeout)
	}

	if strings.TrimSpace(c.Translator.Endpoint) == "" {
		return fmt.Errorf("invalid translator.endpoint: must not be empty")
	}
	if strings.TrimSpace(c.Translator.Model) == "" {
		return fmt.Errorf("invalid translator.model: must not be empty")
	}
	if c.Translator.Temperature < 0 || c.Translator.Temperature > 2 {
		return fmt.Errorf("invalid translator.temperature: %.2f (must be between 0.0 and 2.0)", c.Translator.Temperature)
	}
	if c.Translator.NumCtx <= 0 {
		return fmt.Errorf("invalid translator.num_ctx: %d (must be positive)", c.Translator.NumCtx)
	}
	if c.Translator.Timeout <= 0 {
		return fmt.Errorf("invalid translator.timeout: %v (must be positive)", c.Translator.Timeout)
	}

	if c.Rewrite.FontSize <= 0 {
		return fmt.Errorf("invalid rewrite.font_size: %d (must be positive)", c.Rewrite.FontSize)
	}
	if c.Rewrite.LineSpacing < 1 {
		return fmt.Errorf("invalid rewrite.line_spacing: %.2f (must be at least 1.0)", c.Rewrite.LineSpacing)
	}
	if err := validateHexColor(c.Rewrite.FillColor, "rewrite.fill_color"); err != nil {
		return err
	}
	if err := validateHexColor(c.Rewrite.TextColor, "rewrite.text_color"); err != nil {
		return err
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Batch.PollInterval <= 0 {
		return fmt.Errorf("invalid batch.poll_interval: %v (must be positive)", c.Batch.PollInterval)
	}
	if c.Batch.ProgressWidth <= 0 {
		return fmt.Errorf("invalid batch.progress_width: %d (must be positive)", c.Batch.ProgressWidth)
	}
	validCollisions := []string{CollisionOverwrite, CollisionTimestamp}
	if !contains(validCollisions, c.Batch.ErrorCollision) {
		return fmt.Errorf("invalid batch.error_collision: %s (must be one of: %s)",
			c.Batch.ErrorCollision, strings.Join(validCollisions, ", "))
	}

	return nil
}

func (f FoldersConfig) validate() error {
	named := map[string]string{
		"folders.input":     f.Input,
		"folders.output":    f.Output,
		"folders.processed": f.Processed,
		"folders.error":     f.Error,
		"folders.temp_ocr":  f.TempOCR,
	}
	seen := make(map[string]string, len(named))
	for key, dir := range named {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("invalid %s: must not be empty", key)
		}
		clean := filepath.Clean(dir)
		if other, dup := seen[clean]; dup {
			return fmt.Errorf("invalid %s: same directory as %s (%s)", key, other, dir)
		}
		seen[clean] = key
	}

	// Anything below the input folder would be scanned as a new document.
	for key, dir := range named {
		if key != "folders.input" && within(f.Input, dir) {
			return fmt.Errorf("invalid %s: %s lies inside folders.input (%s)", key, dir, f.Input)
		}
	}
	return nil
}

// within reports whether child is strictly below parent. Paths that cannot
// be related (one absolute, one relative) are not considered nested.
func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ResolveBaseDir returns the absolute base directory, defaulting to the
// working directory.
func (c *Config) ResolveBaseDir() (string, error) {
	base := c.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		base = wd
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base dir %s: %w", base, err)
	}
	return abs, nil
}

// ResolvedFolders returns the folder configuration with every path made absolute.
func (c *Config) ResolvedFolders() (FoldersConfig, error) {
	base, err := c.ResolveBaseDir()
	if err != nil {
		return FoldersConfig{}, err
	}
	resolved := c.Folders.Resolve(base)
	if err := resolved.validate(); err != nil {
		return FoldersConfig{}, err
	}
	return resolved, nil
}

// Resolve joins relative folder paths onto base.
func (f FoldersConfig) Resolve(base string) FoldersConfig {
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}
	return FoldersConfig{
		Input:     resolve(f.Input),
		Output:    resolve(f.Output),
		Processed: resolve(f.Processed),
		Error:     resolve(f.Error),
		TempOCR:   resolve(f.TempOCR),
	}
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateHexColor validates a "#RRGGBB" color string.
func validateHexColor(value, name string) error {
	if len(value) != 7 || value[0] != '#' {
		return fmt.Errorf("invalid %s: %q (must be #RRGGBB)", name, value)
	}
	for _, r := range value[1:] {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return fmt.Errorf("invalid %s: %q (must be #RRGGBB)", name, value)
		}
	}
	return nil
}
