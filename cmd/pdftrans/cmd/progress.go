package cmd

import (
	"io"
	"log/slog"

	"github.com/mattn/go-isatty"

	"github.com/MeKo-Tech/pdftrans/internal/batch"
	"github.com/MeKo-Tech/pdftrans/internal/config"
)

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newProgress picks the progress reporter for a run. The console bar is only
// drawn on a terminal; otherwise progress goes to the structured log.
func newProgress(w io.Writer, cfg *config.Config) batch.Progress {
	if !cfg.Batch.ShowProgress || !isTerminal(w) {
		return batch.NewLogProgress(slog.Default(), slog.LevelInfo)
	}
	return batch.NewConsoleProgress(w, "").
		WithWidth(cfg.Batch.ProgressWidth).
		WithPages(cfg.Batch.ShowPages || cfg.Verbose).
		WithOptions(cfg.Batch.ShowETA, cfg.Batch.ShowRate)
}
