package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pdftrans/internal/translate"
)

// translateCmd represents the translate command.
var translateCmd = &cobra.Command{
	Use:   "translate <text>...",
	Short: "Translate a single text fragment",
	Long: `Send one fragment through the same client the pipeline uses and print the
result. Useful to check that the Ollama endpoint and model respond.

Examples:
  pdftrans translate "Привет мир"
  pdftrans translate --model llama3.1:8b Технический паспорт`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranslateCommand,
}

func init() {
	addTranslatorFlags(translateCmd)
	rootCmd.AddCommand(translateCmd)
}

func runTranslateCommand(c *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(c)
	if err != nil {
		return err
	}

	client := translate.NewClient(cfg.Translator, slog.Default())
	res := client.Translate(c.Context(), strings.Join(args, " "))

	switch res.Status {
	case translate.StatusFallback:
		if res.Err == nil {
			res.Err = errors.New("no translation returned")
		}
		return fmt.Errorf("translation via %s failed: %w", client.Model(), res.Err)
	case translate.StatusSkipped:
		slog.Info("fragment too short or numeric, returned unchanged")
	}

	_, _ = fmt.Fprintln(c.OutOrStdout(), res.Text)
	return nil
}
