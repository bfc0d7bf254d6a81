// Package folders owns the five on-disk lifecycle partitions of the pipeline:
// input, output, processed, error and the OCR cache. A document's lifecycle
// stage is the folder that currently holds it.
package folders

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/pdftrans/internal/config"
)

// PartSuffix marks files that are still being written.
const PartSuffix = ".part"

// Layout holds absolute paths of the lifecycle folders.
type Layout struct {
	Input     string
	Output    string
	Processed string
	Error     string
	TempOCR   string

	// ErrorCollision selects what MoveToError does when the name is taken.
	ErrorCollision string

	now func() time.Time
}

// NewLayout builds a Layout from resolved folder configuration.
func NewLayout(f config.FoldersConfig, errorCollision string) *Layout {
	if errorCollision == "" {
		errorCollision = config.CollisionOverwrite
	}
	return &Layout{
		Input:          f.Input,
		Output:         f.Output,
		Processed:      f.Processed,
		Error:          f.Error,
		TempOCR:        f.TempOCR,
		ErrorCollision: errorCollision,
		now:            time.Now,
	}
}

// FromConfig resolves the configured folders against the base directory.
func FromConfig(cfg *config.Config) (*Layout, error) {
	resolved, err := cfg.ResolvedFolders()
	if err != nil {
		return nil, err
	}
	return NewLayout(resolved, cfg.Batch.ErrorCollision), nil
}

// SetClock replaces the time source used for collision suffixes.
func (l *Layout) SetClock(now func() time.Time) {
	l.now = now
}

// Dirs returns every folder in a fixed order.
func (l *Layout) Dirs() []string {
	return []string{l.Input, l.Output, l.Processed, l.Error, l.TempOCR}
}

// Ensure creates any missing folder.
func (l *Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
	}
	return nil
}

// ListPDFs recursively finds PDF files under the input folder, hidden ones
// included. Matching on the extension is case-insensitive; partial files are
// skipped.
func (l *Layout) ListPDFs() ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// A file moved away mid-walk is not an error.
			if errors.Is(err, os.ErrNotExist) && path != l.Input {
				return nil
			}
			return err
		}

		if info.IsDir() {
			return nil
		}

		if isCandidate(info.Name()) && info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.Walk(l.Input, walkFn); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", l.Input, err)
	}

	sort.Strings(files)
	return files, nil
}

func isCandidate(name string) bool {
	return !strings.HasSuffix(name, PartSuffix) && strings.EqualFold(filepath.Ext(name), ".pdf")
}

// OutputPath is where the translated document for src is written.
func (l *Layout) OutputPath(src string) string {
	return filepath.Join(l.Output, filepath.Base(src))
}

// CachePath is the OCR cache entry for src. Entries are keyed by file name only.
func (l *Layout) CachePath(src string) string {
	return filepath.Join(l.TempOCR, filepath.Base(src))
}

// MoveToProcessed moves src into the processed folder. An existing file with
// the same name is never overwritten: the moved file gets a timestamp suffix.
func (l *Layout) MoveToProcessed(src string) (string, error) {
	dst, err := l.freeName(l.Processed, filepath.Base(src))
	if err != nil {
		return "", err
	}
	if err := Move(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// MoveToError moves src into the error folder according to ErrorCollision.
func (l *Layout) MoveToError(src string) (string, error) {
	dst := filepath.Join(l.Error, filepath.Base(src))
	if l.ErrorCollision == config.CollisionTimestamp {
		var err error
		if dst, err = l.freeName(l.Error, filepath.Base(src)); err != nil {
			return "", err
		}
	}
	if err := Move(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// freeName returns dir/name if unused, else dir/<base>_<unix><ext>, else
// dir/<base>_<unix>_<n><ext> for the first free n.
func (l *Layout) freeName(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if !exists(candidate) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	stamp := strconv.FormatInt(l.now().Unix(), 10)

	candidate = filepath.Join(dir, base+"_"+stamp+ext)
	for n := 1; exists(candidate); n++ {
		if n > 10000 {
			return "", fmt.Errorf("no free name for %s in %s", name, dir)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", base, stamp, n, ext))
	}
	return candidate, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Move renames src to dst. Across filesystems it copies, syncs and removes the
// source, so either the move completes or src stays where it was.
func Move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: src comes from the input folder scan
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
