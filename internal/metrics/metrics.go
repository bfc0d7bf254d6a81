// Package metrics holds the Prometheus collectors for the translation pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Document lifecycle
	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_documents_total",
			Help: "Total number of documents handled, by outcome",
		},
		[]string{"outcome"}, // outcome: succeeded, failed, interrupted
	)

	relocationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_relocation_errors_total",
			Help: "Total number of failed moves out of the input folder",
		},
		[]string{"destination"},
	)

	// External collaborators
	repairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_ocr_repairs_total",
			Help: "Total number of OCR repair attempts, by status",
		},
		[]string{"status"}, // status: cached, repaired, fallback
	)

	translationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_translations_total",
			Help: "Total number of text fragments sent through the translator, by status",
		},
		[]string{"status"}, // status: translated, skipped, fallback
	)

	blocksRewritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdftrans_blocks_rewritten_total",
			Help: "Total number of text blocks masked and replaced",
		},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdftrans_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"}, // stage: repair, translate, rewrite, document
	)
)

// DocumentDone records the final outcome of one document.
func DocumentDone(outcome string) {
	documentsTotal.WithLabelValues(outcome).Inc()
}

// RelocationFailed records a move that left the file in the input folder.
func RelocationFailed(destination string) {
	relocationErrors.WithLabelValues(destination).Inc()
}

// RepairDone records one OCR repair result.
func RepairDone(status string, d time.Duration) {
	repairsTotal.WithLabelValues(status).Inc()
	stageDuration.WithLabelValues("repair").Observe(d.Seconds())
}

// TranslationDone records one translation result. Skipped fragments carry no duration.
func TranslationDone(status string, d time.Duration) {
	translationsTotal.WithLabelValues(status).Inc()
	if d > 0 {
		stageDuration.WithLabelValues("translate").Observe(d.Seconds())
	}
}

// BlockRewritten counts a masked and replaced block.
func BlockRewritten() {
	blocksRewritten.Inc()
}

// ObserveStage records the duration of a named stage.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
