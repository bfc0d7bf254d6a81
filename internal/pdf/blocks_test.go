package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// word lays out s as per-rune glyphs starting at x, each advance wide.
func word(x, y, size, advance float64, s string) []Glyph {
	var out []Glyph
	for _, r := range s {
		out = append(out, Glyph{X: x, Y: y, W: advance, FontSize: size, S: string(r)})
		x += advance
	}
	return out
}

func TestGroupBlocksSingleLine(t *testing.T) {
	glyphs := append(word(72, 700, 12, 6, "Привет"), word(114, 700, 12, 6, "мир")...)

	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Привет мир", blocks[0].Text)
	assert.InDelta(t, 72.0, blocks[0].Rect.X0, 1e-9)
	assert.InDelta(t, 132.0, blocks[0].Rect.X1, 1e-9)
	assert.InDelta(t, 700-0.25*12, blocks[0].Rect.Y0, 1e-9)
	assert.InDelta(t, 700+0.9*12, blocks[0].Rect.Y1, 1e-9)
}

func TestGroupBlocksParagraph(t *testing.T) {
	var glyphs []Glyph
	glyphs = append(glyphs, word(72, 700, 10, 5, "first")...)
	glyphs = append(glyphs, word(72, 688, 10, 5, "second")...)
	glyphs = append(glyphs, word(72, 676, 10, 5, "third")...)

	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 1)
	assert.Equal(t, "first\nsecond\nthird", blocks[0].Text)
	assert.InDelta(t, 676-2.5, blocks[0].Rect.Y0, 1e-9)
	assert.InDelta(t, 709.0, blocks[0].Rect.Y1, 1e-9)
}

func TestGroupBlocksSplitsOnLargeLineGap(t *testing.T) {
	var glyphs []Glyph
	glyphs = append(glyphs, word(72, 700, 10, 5, "title")...)
	glyphs = append(glyphs, word(72, 600, 10, 5, "body")...)

	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 2)
	assert.Equal(t, "title", blocks[0].Text)
	assert.Equal(t, "body", blocks[1].Text)
}

func TestGroupBlocksSplitsColumns(t *testing.T) {
	var glyphs []Glyph
	glyphs = append(glyphs, word(300, 700, 10, 5, "right")...)
	glyphs = append(glyphs, word(72, 700, 10, 5, "left")...)
	glyphs = append(glyphs, word(72, 688, 10, 5, "left2")...)
	glyphs = append(glyphs, word(300, 688, 10, 5, "right2")...)

	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 2)
	assert.Equal(t, "left\nleft2", blocks[0].Text)
	assert.Equal(t, "right\nright2", blocks[1].Text)
}

func TestGroupBlocksToleratesBaselineJitter(t *testing.T) {
	glyphs := []Glyph{
		{X: 10, Y: 100, W: 5, FontSize: 10, S: "a"},
		{X: 15, Y: 101.5, W: 5, FontSize: 10, S: "b"},
		{X: 20, Y: 99, W: 5, FontSize: 10, S: "c"},
	}
	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 1)
	assert.Equal(t, "abc", blocks[0].Text)
}

func TestGroupBlocksSkipsWhitespaceAndDefaultsSize(t *testing.T) {
	glyphs := []Glyph{
		{X: 10, Y: 100, W: 5, S: "h"},
		{X: 15, Y: 100, W: 5, S: "i"},
		{X: 20, Y: 100, W: 5, S: " "},
		{X: 40, Y: 100, W: 5, S: "\t"},
	}
	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 1)
	assert.Equal(t, "hi", blocks[0].Text)
	assert.InDelta(t, 100+0.9*defaultFontSize, blocks[0].Rect.Y1, 1e-9)
}

func TestGroupBlocksMultiRuneRuns(t *testing.T) {
	glyphs := []Glyph{
		{X: 10, Y: 100, W: 30, FontSize: 10, S: "Hello "},
		{X: 40, Y: 100, W: 25, FontSize: 10, S: "world"},
	}
	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hello world", blocks[0].Text)
}

func TestGroupBlocksNormalizesToNFC(t *testing.T) {
	// "\u0439" written as \u0438 plus a combining breve
	glyphs := []Glyph{
		{X: 10, Y: 100, W: 5, FontSize: 10, S: "\u0438\u0306"},
		{X: 15, Y: 100, W: 5, FontSize: 10, S: "\u0445"},
	}
	blocks := GroupBlocks(glyphs)
	require.Len(t, blocks, 1)
	assert.Equal(t, "\u0439\u0445", blocks[0].Text)
}

func TestGroupBlocksEmpty(t *testing.T) {
	assert.Empty(t, GroupBlocks(nil))
	assert.Empty(t, GroupBlocks([]Glyph{{X: 1, Y: 1, S: " "}}))
}
