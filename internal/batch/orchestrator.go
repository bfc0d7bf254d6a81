// Package batch runs the folder pipeline: scan the input folder, repair and
// rewrite every PDF on a bounded worker pool, and relocate each source as soon
// as its pipeline finishes.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/pdftrans/internal/config"
	"github.com/MeKo-Tech/pdftrans/internal/folders"
	"github.com/MeKo-Tech/pdftrans/internal/metrics"
	"github.com/MeKo-Tech/pdftrans/internal/ocr"
	"github.com/MeKo-Tech/pdftrans/internal/pdf"
	"github.com/MeKo-Tech/pdftrans/internal/rewrite"
	"github.com/MeKo-Tech/pdftrans/internal/translate"
)

// DefaultSettleDelay is how long Run waits after a folder event before
// rescanning, so a file still being copied in is not picked up half written.
const DefaultSettleDelay = time.Second

// Repairer produces a document with a usable text layer.
type Repairer interface {
	Repair(ctx context.Context, src string) ocr.Result
}

// Rewriter translates a document into the output folder.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request, onPage rewrite.PageFunc) (rewrite.Report, error)
}

// Options configures an Orchestrator.
type Options struct {
	Workers      int
	PollInterval time.Duration
	WatchEvents  bool
	SettleDelay  time.Duration
	Progress     Progress
	Logger       *slog.Logger
}

// Outcome is the final state of one file in a cycle.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	// OutcomeInterrupted means the run was cancelled mid-pipeline; the source
	// stays in the input folder.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "interrupted"
	}
}

// FileResult describes what happened to one source file.
type FileResult struct {
	Source        string
	Repair        ocr.Result
	Report        rewrite.Report
	Err           error
	Outcome       Outcome
	Destination   string
	RelocationErr error
	Duration      time.Duration
}

// Summary aggregates one scan cycle.
type Summary struct {
	Discovered       int
	Succeeded        int
	Failed           int
	Interrupted      int
	RelocationErrors int
	Duration         time.Duration
	Files            []FileResult
}

func (s *Summary) add(res FileResult) {
	switch res.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeFailed:
		s.Failed++
	default:
		s.Interrupted++
	}
	if res.RelocationErr != nil {
		s.RelocationErrors++
	}
	s.Files = append(s.Files, res)
}

// Orchestrator owns the scan, dispatch, collect and relocate cycle.
type Orchestrator struct {
	layout   *folders.Layout
	repairer Repairer
	rewriter Rewriter
	opts     Options
	logger   *slog.Logger
	progress Progress
	names    *keyedMutex
}

// New creates an Orchestrator over an existing folder layout.
func New(layout *folders.Layout, repairer Repairer, rewriter Rewriter, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultConfig().Batch.PollInterval
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = NoOpProgress{}
	}
	return &Orchestrator{
		layout:   layout,
		repairer: repairer,
		rewriter: rewriter,
		opts:     opts,
		logger:   logger,
		progress: progress,
		names:    newKeyedMutex(),
	}
}

// NewFromConfig wires the production components: ocrmypdf repair into the
// cache folder, the HTTP translation client and the pdfcpu backed rewriter.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	layout, err := folders.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folders: %w", err)
	}

	repairer := ocr.NewRepairer(cfg.OCR, layout.TempOCR, logger)
	client := translate.NewClient(cfg.Translator, logger)
	opener := pdf.NewOpener(pdf.StyleFromConfig(cfg.Rewrite), logger)
	rewriter := rewrite.NewRewriter(opener, client, cfg.Rewrite.MinBlockChars, logger)

	return New(layout, repairer, rewriter, Options{
		Workers:      cfg.Batch.Workers,
		PollInterval: cfg.Batch.PollInterval,
		WatchEvents:  cfg.Batch.WatchEvents,
		Logger:       logger,
	}), nil
}

// WithProgress sets the progress reporter.
func (o *Orchestrator) WithProgress(p Progress) *Orchestrator {
	if p == nil {
		p = NoOpProgress{}
	}
	o.progress = p
	return o
}

// Layout returns the folder layout the orchestrator works on.
func (o *Orchestrator) Layout() *folders.Layout {
	return o.layout
}

// Run scans the input folder until ctx is cancelled. A cycle that moved
// files out is followed by an immediate rescan; otherwise Run waits for the
// poll interval or a folder event. Cancellation is a clean shutdown and
// returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.layout.Ensure(); err != nil {
		return err
	}

	var wake <-chan struct{}
	if o.opts.WatchEvents {
		w, err := newWatcher(o.layout.Input, o.logger)
		if err != nil {
			o.logger.Warn("folder events unavailable, polling only", "dir", o.layout.Input, "error", err)
		} else {
			defer w.Close()
			wake = w.Wake()
		}
	}

	o.logger.Info("watching input folder",
		"dir", o.layout.Input,
		"workers", o.opts.Workers,
		"poll_interval", o.opts.PollInterval.String())

	for {
		summary, err := o.RunOnce(ctx)
		if ctx.Err() != nil {
			o.logger.Info("stopping", "reason", context.Cause(ctx))
			return nil
		}
		if err != nil {
			o.logger.Error("scan cycle failed", "error", err)
		} else if summary.Discovered > 0 && summary.RelocationErrors == 0 {
			continue
		}
		if !o.wait(ctx, wake) {
			o.logger.Info("stopping", "reason", context.Cause(ctx))
			return nil
		}
	}
}

func (o *Orchestrator) wait(ctx context.Context, wake <-chan struct{}) bool {
	timer := time.NewTimer(o.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-wake:
	}

	settle := time.NewTimer(o.opts.SettleDelay)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-settle.C:
		return true
	}
}

// RunOnce performs a single scan cycle. Per-file failures are recorded in the
// summary and never returned as an error; only folder setup and scan errors
// are.
func (o *Orchestrator) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	if err := o.layout.Ensure(); err != nil {
		return Summary{}, err
	}
	files, err := o.layout.ListPDFs()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to scan input folder: %w", err)
	}

	summary := Summary{Discovered: len(files)}
	if len(files) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	o.logger.Info("batch discovered", "files", len(files))
	o.progress.OnStart(len(files))

	results := make(chan FileResult)
	go o.dispatch(ctx, files, results)

	done := 0
	for res := range results {
		o.relocate(&res)
		metrics.DocumentDone(res.Outcome.String())
		summary.add(res)
		done++
		o.progress.OnFileDone(res, done, len(files))
	}

	// Files never dispatched because of cancellation stay in the input folder.
	summary.Interrupted += len(files) - done
	summary.Duration = time.Since(start)
	metrics.ObserveStage("batch", summary.Duration)
	o.progress.OnComplete(summary)

	o.logger.Info("batch finished",
		"discovered", summary.Discovered,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"interrupted", summary.Interrupted,
		"relocation_errors", summary.RelocationErrors,
		"duration", summary.Duration.String())
	return summary, nil
}

// dispatch feeds files to at most Workers concurrent pipelines and closes
// results once every started pipeline has reported.
func (o *Orchestrator) dispatch(ctx context.Context, files []string, results chan<- FileResult) {
	defer close(results)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, src := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results <- o.processFile(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
}

// processFile runs repair then rewrite for one source file.
func (o *Orchestrator) processFile(ctx context.Context, src string) FileResult {
	start := time.Now()
	res := FileResult{Source: src}

	unlock := o.names.Lock(filepath.Base(src))
	defer unlock()

	logger := o.logger.With("file", src)

	if err := ctx.Err(); err != nil {
		res.Outcome, res.Err = OutcomeInterrupted, err
		return res
	}

	o.progress.OnStage(src, StageRepairing)
	res.Repair = o.repairer.Repair(ctx, src)
	if err := ctx.Err(); err != nil {
		res.Outcome, res.Err = OutcomeInterrupted, err
		res.Duration = time.Since(start)
		return res
	}

	o.progress.OnStage(src, StageTranslating)
	req := rewrite.Request{
		Source: src,
		Input:  res.Repair.Path,
		Output: o.layout.OutputPath(src),
	}
	report, err := o.rewriter.Rewrite(ctx, req, func(page, total int) {
		o.progress.OnPage(src, page, total)
	})
	res.Report = report
	res.Duration = time.Since(start)

	switch {
	case err == nil:
		res.Outcome = OutcomeSucceeded
		logger.Info("document translated",
			"output", report.Output,
			"ocr", res.Repair.Status.String(),
			"pages", report.Pages,
			"blocks", report.Blocks,
			"rewritten", report.Rewritten,
			"fallbacks", report.Fallbacks,
			"duration", res.Duration.String())
	case ctx.Err() != nil:
		res.Outcome, res.Err = OutcomeInterrupted, err
		logger.Warn("document interrupted", "error", err)
	default:
		res.Outcome, res.Err = OutcomeFailed, err
		logger.Error("document failed", "error", err)
	}
	return res
}

// relocate moves the source of a finished pipeline. It runs on the single
// collector goroutine so collision checks never race each other.
func (o *Orchestrator) relocate(res *FileResult) {
	var (
		dest, folder string
		err          error
	)
	switch res.Outcome {
	case OutcomeSucceeded:
		folder = "processed"
		dest, err = o.layout.MoveToProcessed(res.Source)
	case OutcomeFailed:
		folder = "error"
		dest, err = o.layout.MoveToError(res.Source)
	default:
		return
	}

	if err != nil {
		res.RelocationErr = err
		metrics.RelocationFailed(folder)
		o.logger.Error("failed to relocate source", "file", res.Source, "folder", folder, "error", err)
		return
	}
	res.Destination = dest
	o.logger.Debug("source relocated", "file", res.Source, "destination", dest)
}

// keyedMutex serialises work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
