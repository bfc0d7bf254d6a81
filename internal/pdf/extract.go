package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"

	dspdf "github.com/dslipak/pdf"
	lpdf "github.com/ledongthuc/pdf"
)

// errNullPage is returned when a page object cannot be resolved.
var errNullPage = errors.New("page is null")

// glyphSource reads positioned text from one page.
type glyphSource interface {
	Glyphs(page int) ([]Glyph, error)
	Close() error
}

// dslipakSource is the primary extractor.
type dslipakSource struct {
	f *os.File
	r *dspdf.Reader
}

func openDslipak(path string) (*dslipakSource, error) {
	f, r, err := openReader(path, "dslipak", dspdf.NewReader)
	if err != nil {
		return nil, err
	}
	return &dslipakSource{f: f, r: r}, nil
}

func (s *dslipakSource) Glyphs(page int) (glyphs []Glyph, err error) {
	defer recoverInto(&err, "dslipak", page)

	p := s.r.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d: %w", page, errNullPage)
	}
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return glyphs, nil
}

func (s *dslipakSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// ledongthucSource is tried when the primary extractor fails on a page.
type ledongthucSource struct {
	f *os.File
	r *lpdf.Reader
}

func openLedongthuc(path string) (*ledongthucSource, error) {
	f, r, err := openReader(path, "ledongthuc", lpdf.NewReader)
	if err != nil {
		return nil, err
	}
	return &ledongthucSource{f: f, r: r}, nil
}

func (s *ledongthucSource) Glyphs(page int) (glyphs []Glyph, err error) {
	defer recoverInto(&err, "ledongthuc", page)

	p := s.r.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d: %w", page, errNullPage)
	}
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return glyphs, nil
}

func (s *ledongthucSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// openReader opens path and builds a reader over it. The file stays open
// for the reader's lifetime and is closed here if the reader cannot be built,
// including when the library panics on a malformed trailer.
func openReader[R any](path, who string, newReader func(io.ReaderAt, int64) (R, error)) (f *os.File, r R, err error) {
	f, err = os.Open(path) //nolint:gosec // path comes from the input folder listing
	if err != nil {
		return nil, r, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			f = nil
		}
	}()
	defer recoverInto(&err, who, 0)

	fi, err := f.Stat()
	if err != nil {
		return f, r, err
	}
	r, err = newReader(f, fi.Size())
	return f, r, err
}

// recoverInto turns a panic inside a text extractor into an error. Both
// readers panic on malformed content streams.
func recoverInto(err *error, who string, page int) {
	if r := recover(); r != nil {
		if page > 0 {
			*err = fmt.Errorf("%s extractor panicked on page %d: %v", who, page, r)
			return
		}
		*err = fmt.Errorf("%s extractor panicked: %v", who, r)
	}
}
