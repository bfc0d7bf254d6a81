package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pdftrans/internal/config"
)

// addTranslatorFlags registers flags that override the inference endpoint.
func addTranslatorFlags(c *cobra.Command) {
	c.Flags().String("model", "", "Ollama model used for translation")
	c.Flags().String("endpoint", "", "Ollama /api/generate URL")
	c.Flags().String("target-language", "", "language to translate into")
}

// addPipelineFlags registers the flags shared by watch and once.
func addPipelineFlags(c *cobra.Command) {
	addTranslatorFlags(c)
	c.Flags().IntP("workers", "w", 0, "number of documents processed in parallel")
	c.Flags().Duration("poll-interval", 0, "wait between scans of an empty input folder")
	c.Flags().Bool("no-progress", false, "disable console progress output")
	c.Flags().Bool("show-pages", false, "print a line per rewritten page")
	c.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	c.Flags().String("ocr-binary", "", "ocrmypdf executable")
	c.Flags().String("error-collision", "", "name clash policy for the error folder (overwrite, timestamp)")
}

// applyFlagOverrides copies explicitly set flags onto cfg and revalidates it.
func applyFlagOverrides(c *cobra.Command, cfg *config.Config) error {
	flags := c.Flags()

	if flags.Changed("model") {
		cfg.Translator.Model, _ = flags.GetString("model")
	}
	if flags.Changed("endpoint") {
		cfg.Translator.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("target-language") {
		cfg.Translator.TargetLanguage, _ = flags.GetString("target-language")
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("poll-interval") {
		cfg.Batch.PollInterval, _ = flags.GetDuration("poll-interval")
	}
	if flags.Changed("no-progress") {
		noProgress, _ := flags.GetBool("no-progress")
		cfg.Batch.ShowProgress = !noProgress
	}
	if flags.Changed("show-pages") {
		cfg.Batch.ShowPages, _ = flags.GetBool("show-pages")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("ocr-binary") {
		cfg.OCR.Binary, _ = flags.GetString("ocr-binary")
	}
	if flags.Changed("error-collision") {
		cfg.Batch.ErrorCollision, _ = flags.GetString("error-collision")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// loadCommandConfig returns the merged configuration for c.
func loadCommandConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(c, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
