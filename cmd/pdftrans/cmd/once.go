package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// onceCmd represents the once command.
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Process the input folder a single time",
	Long: `Run one scan of the input folder: every PDF found is repaired, translated
and relocated, then the command exits. Documents that fail are moved to the
error folder and do not change the exit status.

Examples:
  pdftrans once
  pdftrans once --base-dir /srv/scans --no-progress`,
	RunE: runOnceCommand,
}

func init() {
	addPipelineFlags(onceCmd)
	rootCmd.AddCommand(onceCmd)
}

func runOnceCommand(c *cobra.Command, _ []string) error {
	cfg, err := loadCommandConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := buildOrchestrator(c, cfg)
	if err != nil {
		return err
	}
	startMetrics(ctx, cfg.Metrics.Addr)

	summary, err := o.RunOnce(ctx)
	if err != nil {
		return err
	}

	if summary.Discovered == 0 {
		_, _ = fmt.Fprintf(c.OutOrStdout(), "no PDFs in %s\n", o.Layout().Input)
		return nil
	}
	_, _ = fmt.Fprintf(c.OutOrStdout(), "%d discovered, %d succeeded, %d failed, %d interrupted\n",
		summary.Discovered, summary.Succeeded, summary.Failed, summary.Interrupted)
	if summary.RelocationErrors > 0 {
		return fmt.Errorf("%d source file(s) could not be relocated", summary.RelocationErrors)
	}
	return nil
}
