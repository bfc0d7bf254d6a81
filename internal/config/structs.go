//nolint:lll
package config

import "time"

// Config represents the complete configuration for the pdftrans pipeline.
// It is loaded from configuration files, environment variables and command-line
// flags, and handed to each component at construction time.
type Config struct {
	// Global settings
	BaseDir  string `mapstructure:"base_dir" yaml:"base_dir" json:"base_dir"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Lifecycle folders
	Folders FoldersConfig `mapstructure:"folders" yaml:"folders" json:"folders"`

	// External OCR tool
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Inference endpoint
	Translator TranslatorConfig `mapstructure:"translator" yaml:"translator" json:"translator"`

	// Output document rendering
	Rewrite RewriteConfig `mapstructure:"rewrite" yaml:"rewrite" json:"rewrite"`

	// Polling loop and worker pool
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Prometheus exposition
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// FoldersConfig names the five lifecycle folders. Relative paths are resolved
// against Config.BaseDir.
type FoldersConfig struct {
	Input     string `mapstructure:"input" yaml:"input" json:"input"`
	Output    string `mapstructure:"output" yaml:"output" json:"output"`
	Processed string `mapstructure:"processed" yaml:"processed" json:"processed"`
	Error     string `mapstructure:"error" yaml:"error" json:"error"`
	TempOCR   string `mapstructure:"temp_ocr" yaml:"temp_ocr" json:"temp_ocr"`
}

// OCRConfig controls the ocrmypdf invocation.
type OCRConfig struct {
	Binary     string        `mapstructure:"binary" yaml:"binary" json:"binary"`
	Language   string        `mapstructure:"language" yaml:"language" json:"language"`
	Jobs       int           `mapstructure:"jobs" yaml:"jobs" json:"jobs"`
	ForceOCR   bool          `mapstructure:"force_ocr" yaml:"force_ocr" json:"force_ocr"`
	Deskew     bool          `mapstructure:"deskew" yaml:"deskew" json:"deskew"`
	OutputType string        `mapstructure:"output_type" yaml:"output_type" json:"output_type"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// TranslatorConfig controls requests to the inference endpoint.
type TranslatorConfig struct {
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Model          string        `mapstructure:"model" yaml:"model" json:"model"`
	SourceLanguage string        `mapstructure:"source_language" yaml:"source_language" json:"source_language"`
	TargetLanguage string        `mapstructure:"target_language" yaml:"target_language" json:"target_language"`
	Temperature    float64       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	NumCtx         int           `mapstructure:"num_ctx" yaml:"num_ctx" json:"num_ctx"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MinChars       int           `mapstructure:"min_chars" yaml:"min_chars" json:"min_chars"`
}

// RewriteConfig controls how translated blocks are drawn.
type RewriteConfig struct {
	MinBlockChars int     `mapstructure:"min_block_chars" yaml:"min_block_chars" json:"min_block_chars"`
	FontName      string  `mapstructure:"font_name" yaml:"font_name" json:"font_name"`
	FontSize      int     `mapstructure:"font_size" yaml:"font_size" json:"font_size"`
	FillColor     string  `mapstructure:"fill_color" yaml:"fill_color" json:"fill_color"`
	TextColor     string  `mapstructure:"text_color" yaml:"text_color" json:"text_color"`
	LineSpacing   float64 `mapstructure:"line_spacing" yaml:"line_spacing" json:"line_spacing"`
}

// BatchConfig contains polling and worker pool settings.
type BatchConfig struct {
	Workers        int           `mapstructure:"workers" yaml:"workers" json:"workers"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	WatchEvents    bool          `mapstructure:"watch_events" yaml:"watch_events" json:"watch_events"`
	ErrorCollision string        `mapstructure:"error_collision" yaml:"error_collision" json:"error_collision"`
	ShowProgress   bool          `mapstructure:"show_progress" yaml:"show_progress" json:"show_progress"`
	ShowPages      bool          `mapstructure:"show_pages" yaml:"show_pages" json:"show_pages"`
	ProgressWidth  int           `mapstructure:"progress_width" yaml:"progress_width" json:"progress_width"`
	ShowETA        bool          `mapstructure:"show_eta" yaml:"show_eta" json:"show_eta"`
	ShowRate       bool          `mapstructure:"show_rate" yaml:"show_rate" json:"show_rate"`
}

// MetricsConfig contains Prometheus settings. An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}
