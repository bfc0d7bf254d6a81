// Package ocr repairs a document's text layer by running ocrmypdf over it.
// Repaired copies are cached in a temp folder keyed by file name.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/pdftrans/internal/config"
	"github.com/MeKo-Tech/pdftrans/internal/metrics"
)

// ErrToolUnavailable is reported when the OCR binary cannot be found.
var ErrToolUnavailable = errors.New("ocr tool unavailable")

// Status describes how a repair attempt ended.
type Status int

const (
	// StatusFallback means the tool failed and the source file is used as is.
	StatusFallback Status = iota
	// StatusCached means a repaired copy already existed.
	StatusCached
	// StatusRepaired means the tool produced a fresh repaired copy.
	StatusRepaired
)

func (s Status) String() string {
	switch s {
	case StatusCached:
		return "cached"
	case StatusRepaired:
		return "repaired"
	default:
		return "fallback"
	}
}

// Result is the outcome of Repair. Path is always usable: on fallback it is
// the source path and Err says why.
type Result struct {
	Path   string
	Status Status
	Err    error
}

// Distinct reports whether Path is a repaired copy rather than the source.
func (r Result) Distinct(src string) bool {
	return r.Path != "" && filepath.Clean(r.Path) != filepath.Clean(src)
}

// maxStderr bounds how much tool output is carried in an error.
const maxStderr = 2048

// Repairer runs the external OCR tool with a fixed argument set.
type Repairer struct {
	cfg      config.OCRConfig
	cacheDir string
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRepairer creates a Repairer writing into cacheDir.
func NewRepairer(cfg config.OCRConfig, cacheDir string, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{
		cfg:      cfg,
		cacheDir: cacheDir,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// CachePath returns the cache entry for src.
func (r *Repairer) CachePath(src string) string {
	return filepath.Join(r.cacheDir, filepath.Base(src))
}

// Args returns the tool arguments for repairing src into dst.
func (r *Repairer) Args(src, dst string) []string {
	args := []string{"--language", r.cfg.Language}
	if r.cfg.ForceOCR {
		args = append(args, "--force-ocr")
	}
	if r.cfg.Deskew {
		args = append(args, "--deskew")
	}
	args = append(args,
		"--jobs", strconv.Itoa(r.cfg.Jobs),
		"--output-type", r.cfg.OutputType,
		src, dst,
	)
	return args
}

// Repair returns a path to a document with a usable text layer. It never
// fails: a tool error yields the source path with StatusFallback.
func (r *Repairer) Repair(ctx context.Context, src string) Result {
	start := time.Now()
	res := r.repair(ctx, src)
	metrics.RepairDone(res.Status.String(), time.Since(start))

	if res.Err != nil {
		r.logger.Warn("ocr repair failed, using original file", "file", src, "error", res.Err)
	} else {
		r.logger.Debug("ocr repair finished", "file", src, "status", res.Status.String(), "path", res.Path)
	}
	return res
}

func (r *Repairer) repair(ctx context.Context, src string) Result {
	cached := r.CachePath(src)

	unlock := r.lock(cached)
	defer unlock()

	if info, err := os.Stat(cached); err == nil && info.Mode().IsRegular() {
		return Result{Path: cached, Status: StatusCached}
	}

	binary, err := exec.LookPath(r.cfg.Binary)
	if err != nil {
		return fallback(src, fmt.Errorf("%w: %s: %w", ErrToolUnavailable, r.cfg.Binary, err))
	}

	if err := os.MkdirAll(r.cacheDir, 0o750); err != nil {
		return fallback(src, fmt.Errorf("failed to create cache folder: %w", err))
	}

	part := cached + ".part"
	defer func() { _ = os.Remove(part) }()

	cmdCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, binary, r.Args(src, part)...) //nolint:gosec // G204: binary comes from configuration
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fallback(src, fmt.Errorf("ocrmypdf interrupted: %w", ctxErr))
		}
		return fallback(src, fmt.Errorf("ocrmypdf: %w - %s", err, tail(stderr.String())))
	}

	if info, err := os.Stat(part); err != nil || info.Size() == 0 {
		return fallback(src, fmt.Errorf("ocrmypdf produced no output for %s", filepath.Base(src)))
	}

	if err := os.Rename(part, cached); err != nil {
		return fallback(src, fmt.Errorf("failed to store repaired file: %w", err))
	}

	return Result{Path: cached, Status: StatusRepaired}
}

// lock serialises work on one cache key.
func (r *Repairer) lock(key string) func() {
	r.mu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func fallback(src string, err error) Result {
	return Result{Path: src, Status: StatusFallback, Err: err}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}

// EnsureBinary checks whether the OCR binary is available on PATH.
func EnsureBinary(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolUnavailable, binary, err)
	}
	return nil
}
