// Package pdf is the document backend of the rewriter. Text blocks are read
// with dslipak/pdf (falling back to ledongthuc/pdf), and edits are applied
// with pdfcpu as opaque image stamps and text stamps on top of each page.
package pdf

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/pdftrans/internal/rewrite"
)

// ErrClosed is returned by operations on a closed document.
var ErrClosed = errors.New("document is closed")

var disableConfigDir sync.Once

// Opener opens documents with a fixed Style.
type Opener struct {
	style  Style
	logger *slog.Logger
}

// NewOpener creates an Opener.
func NewOpener(style Style, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	return &Opener{style: style, logger: logger}
}

// Open implements rewrite.Opener.
func (o *Opener) Open(path string) (rewrite.Document, error) {
	return Open(path, o.style, o.logger)
}

// Document is an opened PDF with pending edits.
type Document struct {
	path   string
	pages  int
	style  Style
	conf   *model.Configuration
	logger *slog.Logger

	primary  glyphSource
	fallback glyphSource

	stamps map[int][]*model.Watermark
	edits  int
	closed bool
}

// Open reads the page count with pdfcpu and prepares the text extractors.
func Open(path string, style Style, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	d := &Document{
		path:   path,
		pages:  pages,
		style:  style,
		conf:   conf,
		logger: logger,
		stamps: make(map[int][]*model.Watermark),
	}

	if src, err := openDslipak(path); err == nil {
		d.primary = src
	} else {
		logger.Debug("primary text extractor unavailable", "file", path, "error", err)
	}

	return d, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.pages
}

// Blocks returns the text blocks of page.
func (d *Document) Blocks(page int) ([]rewrite.Block, error) {
	if err := d.check(page); err != nil {
		return nil, err
	}

	glyphs, err := d.glyphs(page)
	if err != nil {
		return nil, err
	}
	return GroupBlocks(glyphs), nil
}

func (d *Document) glyphs(page int) ([]Glyph, error) {
	var primaryErr error
	if d.primary != nil {
		glyphs, err := d.primary.Glyphs(page)
		if err == nil {
			return glyphs, nil
		}
		primaryErr = err
		d.logger.Debug("primary extraction failed, trying fallback", "file", d.path, "page", page, "error", err)
	}

	if d.fallback == nil {
		src, err := openLedongthuc(d.path)
		if err != nil {
			return nil, errors.Join(primaryErr, fmt.Errorf("failed to open fallback extractor: %w", err))
		}
		d.fallback = src
	}

	glyphs, err := d.fallback.Glyphs(page)
	if err != nil {
		return nil, errors.Join(primaryErr, err)
	}
	return glyphs, nil
}

// Mask queues an opaque fill over r.
func (d *Document) Mask(page int, r rewrite.Rect) error {
	if err := d.check(page); err != nil {
		return err
	}
	if r.Empty() {
		return nil
	}
	wm, err := maskWatermark(r, d.style.FillColor)
	if err != nil {
		return err
	}
	d.stamps[page] = append(d.stamps[page], wm)
	d.edits++
	return nil
}

// InsertText queues text drawn inside r.
func (d *Document) InsertText(page int, r rewrite.Rect, text string) error {
	if err := d.check(page); err != nil {
		return err
	}
	wm, err := textWatermark(r, text, d.style)
	if err != nil {
		return err
	}
	d.stamps[page] = append(d.stamps[page], wm)
	d.edits++
	return nil
}

// Save writes the document with all queued edits to path. Without edits the
// document is re-encoded unchanged.
func (d *Document) Save(path string) error {
	if d.closed {
		return ErrClosed
	}
	if d.edits == 0 {
		ctx, err := api.ReadContextFile(d.path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", d.path, err)
		}
		if err := api.WriteContextFile(ctx, path); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}

	if err := api.AddWatermarksSliceMapFile(d.path, path, d.stamps, d.conf); err != nil {
		return fmt.Errorf("failed to apply %d edits: %w", d.edits, err)
	}
	return nil
}

// Close releases the extractors.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for _, src := range []glyphSource{d.primary, d.fallback} {
		if src != nil {
			errs = append(errs, src.Close())
		}
	}
	return errors.Join(errs...)
}

func (d *Document) check(page int) error {
	if d.closed {
		return ErrClosed
	}
	if page < 1 || page > d.pages {
		return fmt.Errorf("page %d out of range 1..%d", page, d.pages)
	}
	return nil
}
