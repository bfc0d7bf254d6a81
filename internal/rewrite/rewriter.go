package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MeKo-Tech/pdftrans/internal/metrics"
	"github.com/MeKo-Tech/pdftrans/internal/translate"
)

// partSuffix marks an output that is still being written.
const partSuffix = ".part"

// Request describes one document to rewrite.
type Request struct {
	// Source is the file in the input folder.
	Source string
	// Input is the file to read; the repaired copy or Source itself.
	Input string
	// Output is where the translated document goes.
	Output string
}

// Report summarises a successful rewrite.
type Report struct {
	Source      string
	Output      string
	Pages       int
	Blocks      int
	Rewritten   int
	Fallbacks   int
	Duration    time.Duration
	TempCleared bool
}

// PageFunc is called after each page with the 1-based page number and total.
type PageFunc func(page, total int)

// Rewriter drives a Document through translation and rewriting.
type Rewriter struct {
	opener        Opener
	translator    translate.Translator
	minBlockChars int
	logger        *slog.Logger
}

// NewRewriter creates a Rewriter. Blocks shorter than minBlockChars after
// trimming are left alone.
func NewRewriter(opener Opener, translator translate.Translator, minBlockChars int, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{
		opener:        opener,
		translator:    translator,
		minBlockChars: minBlockChars,
		logger:        logger,
	}
}

// Rewrite translates every block of req.Input and writes req.Output. Either
// the whole document is written or nothing is: on error no output remains and
// the repaired input is kept for the next attempt. On success a repaired
// input distinct from req.Source is deleted.
func (r *Rewriter) Rewrite(ctx context.Context, req Request, onPage PageFunc) (Report, error) {
	start := time.Now()
	report := Report{Source: req.Source, Output: req.Output}

	doc, err := r.opener.Open(req.Input)
	if err != nil {
		return report, fmt.Errorf("failed to open %s: %w", req.Input, err)
	}
	closed := false
	closeDoc := func() {
		if closed {
			return
		}
		closed = true
		if cerr := doc.Close(); cerr != nil {
			r.logger.Warn("failed to close document", "file", req.Input, "error", cerr)
		}
	}
	defer closeDoc()

	total := doc.PageCount()
	if total <= 0 {
		return report, ErrNoPages
	}
	report.Pages = total

	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.rewritePage(ctx, doc, page, &report); err != nil {
			return report, fmt.Errorf("page %d: %w", page, err)
		}
		if onPage != nil {
			onPage(page, total)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := save(doc, req.Output); err != nil {
		return report, err
	}
	// The repaired copy must not be held open when it is unlinked.
	closeDoc()

	if req.Input != "" && filepath.Clean(req.Input) != filepath.Clean(req.Source) {
		if err := os.Remove(req.Input); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("failed to remove repaired copy", "file", req.Input, "error", err)
		} else {
			report.TempCleared = true
		}
	}

	report.Duration = time.Since(start)
	metrics.ObserveStage("rewrite", report.Duration)
	return report, nil
}

func (r *Rewriter) rewritePage(ctx context.Context, doc Document, page int, report *Report) error {
	blocks, err := doc.Blocks(page)
	if err != nil {
		return fmt.Errorf("failed to extract blocks: %w", err)
	}

	for _, b := range blocks {
		original := normalizeBlockText(b.Text)
		if utf8.RuneCountInString(original) < r.minBlockChars {
			continue
		}
		report.Blocks++

		res := r.translator.Translate(ctx, original)
		if res.Status == translate.StatusFallback {
			report.Fallbacks++
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if res.Text == original {
			continue
		}

		if err := doc.Mask(page, b.Rect); err != nil {
			return fmt.Errorf("failed to mask block %s: %w", b.Rect, err)
		}
		if err := doc.InsertText(page, b.Rect, res.Text); err != nil {
			return fmt.Errorf("failed to insert text in block %s: %w", b.Rect, err)
		}
		report.Rewritten++
		metrics.BlockRewritten()
	}

	r.logger.Debug("page rewritten", "page", page, "blocks", len(blocks))
	return nil
}

// normalizeBlockText folds a multi-line block into one line.
func normalizeBlockText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// save writes to a partial file next to path and renames it into place.
func save(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	part := path + partSuffix
	if err := doc.Save(part); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
