// Package rewrite replaces the text blocks of a document with their
// translations, page by page, and persists the result only when every page
// was processed.
package rewrite

import (
	"errors"
	"fmt"
)

// ErrNoPages is returned for documents without pages.
var ErrNoPages = errors.New("document has no pages")

// Rect is an axis-aligned rectangle in PDF user space (origin bottom left).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: min(r.X0, o.X0),
		Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.1f %.1f %.1f %.1f]", r.X0, r.Y0, r.X1, r.Y1)
}

// Block is a region of a page together with the text extracted from it.
type Block struct {
	Rect Rect
	Text string
}

// Document is an open, editable document. Pages are numbered from 1.
// Edits are buffered until Save.
type Document interface {
	PageCount() int
	Blocks(page int) ([]Block, error)
	Mask(page int, r Rect) error
	InsertText(page int, r Rect, text string) error
	Save(path string) error
	Close() error
}

// Opener opens documents by path.
type Opener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Document, error)

// Open calls f(path).
func (f OpenerFunc) Open(path string) (Document, error) {
	return f(path)
}
