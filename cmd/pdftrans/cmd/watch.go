package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pdftrans/internal/batch"
	"github.com/MeKo-Tech/pdftrans/internal/config"
	"github.com/MeKo-Tech/pdftrans/internal/metrics"
	"github.com/MeKo-Tech/pdftrans/internal/ocr"
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process the input folder until interrupted",
	Long: `Scan the input folder, translate every PDF found and keep watching for new
files until SIGINT or SIGTERM. Documents still in flight when the signal
arrives stay in the input folder and are picked up on the next start.

Examples:
  pdftrans watch
  pdftrans watch --workers 2 --poll-interval 10s
  pdftrans watch --metrics-addr :9090`,
	RunE: runWatchCommand,
}

func init() {
	addPipelineFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatchCommand(c *cobra.Command, _ []string) error {
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

	return o.Run(ctx)
}

// buildOrchestrator wires the production pipeline and its progress output.
func buildOrchestrator(c *cobra.Command, cfg *config.Config) (*batch.Orchestrator, error) {
	if err := ocr.EnsureBinary(cfg.OCR.Binary); err != nil {
		slog.Warn("documents will be translated without OCR repair", "error", err)
	}

	o, err := batch.NewFromConfig(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return o.WithProgress(newProgress(c.OutOrStdout(), cfg)), nil
}

// startMetrics serves /metrics in the background when addr is set.
func startMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
}
