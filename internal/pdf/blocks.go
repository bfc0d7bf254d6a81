package pdf

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/pdftrans/internal/rewrite"
)

// Glyph is one positioned text run as reported by the content stream
// interpreter. X and Y are the origin on the baseline; W is the advance.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Layout thresholds, as multiples of the font size.
const (
	baselineTolerance = 0.5
	wordGap           = 0.25
	columnGap         = 3.0
	lineGap           = 1.6
	descent           = 0.25
	ascent            = 0.9

	defaultFontSize = 10.0
)

type textLine struct {
	baseline float64
	size     float64
	x0, x1   float64
	glyphs   []Glyph
}

func (l *textLine) rect() rewrite.Rect {
	return rewrite.Rect{
		X0: l.x0,
		Y0: l.baseline - descent*l.size,
		X1: l.x1,
		Y1: l.baseline + ascent*l.size,
	}
}

func (l *textLine) add(g Glyph) {
	l.glyphs = append(l.glyphs, g)
	l.x0 = math.Min(l.x0, g.X)
	l.x1 = math.Max(l.x1, g.X+g.W)
	l.size = math.Max(l.size, g.FontSize)
}

// text joins the glyphs left to right, inserting a space wherever the gap
// between runs is wider than a fraction of the font size.
func (l *textLine) text() string {
	sort.SliceStable(l.glyphs, func(i, j int) bool { return l.glyphs[i].X < l.glyphs[j].X })

	var b strings.Builder
	end := math.Inf(-1)
	for _, g := range l.glyphs {
		if b.Len() > 0 && g.X-end > wordGap*l.size && !endsWithSpace(b.String()) && !strings.HasPrefix(g.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(g.S)
		end = math.Max(end, g.X+g.W)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func endsWithSpace(s string) bool {
	return strings.HasSuffix(s, " ")
}

type textBlock struct {
	rect  rewrite.Rect
	lines []*textLine
}

// GroupBlocks turns glyphs into text blocks: glyphs sharing a baseline form
// lines, and vertically adjacent lines that overlap horizontally form blocks.
// Blocks come back in reading order, top to bottom.
func GroupBlocks(glyphs []Glyph) []rewrite.Block {
	lines := groupLines(glyphs)
	if len(lines) == 0 {
		return nil
	}

	var blocks []*textBlock
	for _, line := range lines {
		lr := line.rect()
		var target *textBlock
		for _, b := range blocks {
			last := b.lines[len(b.lines)-1]
			gap := last.baseline - line.baseline
			size := math.Max(last.size, line.size)
			if gap <= 0 || gap > lineGap*size {
				continue
			}
			if overlaps(b.rect, lr) {
				target = b
				break
			}
		}
		if target == nil {
			blocks = append(blocks, &textBlock{rect: lr, lines: []*textLine{line}})
			continue
		}
		target.lines = append(target.lines, line)
		target.rect = target.rect.Union(lr)
	}

	out := make([]rewrite.Block, 0, len(blocks))
	for _, b := range blocks {
		texts := make([]string, 0, len(b.lines))
		for _, l := range b.lines {
			if t := l.text(); t != "" {
				texts = append(texts, t)
			}
		}
		if len(texts) == 0 {
			continue
		}
		out = append(out, rewrite.Block{
			Rect: b.rect,
			Text: norm.NFC.String(strings.Join(texts, "\n")),
		})
	}
	return out
}

// groupLines sorts glyphs top to bottom, bands them by baseline and splits
// each band into lines on wide horizontal gaps.
func groupLines(glyphs []Glyph) []*textLine {
	cleaned := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		if g.FontSize <= 0 {
			g.FontSize = defaultFontSize
		}
		if g.W < 0 {
			g.W = 0
		}
		cleaned = append(cleaned, g)
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		if cleaned[i].Y != cleaned[j].Y {
			return cleaned[i].Y > cleaned[j].Y
		}
		return cleaned[i].X < cleaned[j].X
	})

	var bands [][]Glyph
	var top, size float64
	for _, g := range cleaned {
		n := len(bands)
		if n > 0 && top-g.Y <= baselineTolerance*math.Max(size, g.FontSize) {
			bands[n-1] = append(bands[n-1], g)
			size = math.Max(size, g.FontSize)
			continue
		}
		bands = append(bands, []Glyph{g})
		top, size = g.Y, g.FontSize
	}

	var lines []*textLine
	for _, band := range bands {
		sort.SliceStable(band, func(i, j int) bool { return band[i].X < band[j].X })

		var cur *textLine
		for _, g := range band {
			if cur != nil && g.X-cur.x1 <= columnGap*math.Max(cur.size, g.FontSize) {
				cur.add(g)
				continue
			}
			cur = &textLine{baseline: g.Y, size: g.FontSize, x0: g.X, x1: g.X + g.W}
			cur.glyphs = append(cur.glyphs, g)
			lines = append(lines, cur)
		}
	}
	return lines
}

func overlaps(a, b rewrite.Rect) bool {
	return a.X0 < b.X1 && b.X0 < a.X1
}
