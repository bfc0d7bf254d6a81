package pdf

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/pdftrans/internal/config"
	"github.com/MeKo-Tech/pdftrans/internal/rewrite"
)

// Style controls how masks and replacement text are drawn.
type Style struct {
	FontName    string
	FontSize    int
	FillColor   string
	TextColor   string
	LineSpacing float64
}

// StyleFromConfig converts rewrite settings into a Style.
func StyleFromConfig(cfg config.RewriteConfig) Style {
	return Style{
		FontName:    cfg.FontName,
		FontSize:    cfg.FontSize,
		FillColor:   cfg.FillColor,
		TextColor:   cfg.TextColor,
		LineSpacing: cfg.LineSpacing,
	}
}

func (s Style) lineHeight() float64 {
	spacing := s.LineSpacing
	if spacing < 1 {
		spacing = 1
	}
	return float64(s.FontSize) * spacing
}

// maskBleed extends masks slightly so antialiased glyph edges are covered.
const maskBleed = 0.5

// maskWatermark builds an opaque image stamp covering r.
func maskWatermark(r rewrite.Rect, fill string) (*model.Watermark, error) {
	c, err := parseHexColor(fill)
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(r.Width() + 2*maskBleed))
	h := int(math.Ceil(r.Height() + 2*maskBleed))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("mask %s has no area", r)
	}

	img := imaging.New(w, h, c)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}

	desc := fmt.Sprintf("position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, opacity:1",
		num(r.X0-maskBleed), num(r.Y0-maskBleed))
	return api.ImageWatermarkForReader(&buf, desc, true, false, types.POINTS)
}

// textWatermark builds a left-aligned text stamp anchored to the top of r.
// Text is wrapped to the width of r; lines that do not fit its height are dropped.
func textWatermark(r rewrite.Rect, text string, style Style) (*model.Watermark, error) {
	lines := wrap(encodable(text), style.FontName, style.FontSize, r.Width())
	if len(lines) == 0 {
		return nil, fmt.Errorf("nothing to draw in %s", r)
	}

	lh := style.lineHeight()
	maxLines := max(1, int(math.Floor(r.Height()/lh+1e-6)))
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	height := float64(len(lines)) * lh
	y := r.Y1 - height
	if y < r.Y0 {
		y = r.Y0
	}

	desc := fmt.Sprintf("fontname:%s, points:%d, position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, "+
		"fillcolor:%s, aligntext:l, opacity:1",
		style.FontName, style.FontSize, num(r.X0), num(y), style.TextColor)
	return api.TextWatermark(strings.Join(lines, "\n"), desc, true, false, types.POINTS)
}

// wrap breaks text into lines no wider than width using the core font
// metrics. A single word wider than width gets a line of its own.
func wrap(text, fontName string, fontSize int, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := cur + " " + w
		if font.TextWidth(candidate, fontName, fontSize) <= width {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

// encodable replaces runes the standard fonts cannot show (anything outside
// WinAnsi) with '?'.
func encodable(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteByte(' ')
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

func parseHexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil //nolint:gosec // masked to 24 bits
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
