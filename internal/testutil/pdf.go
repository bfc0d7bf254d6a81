package testutil

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// TextRun is a line of text placed on a page with its baseline at (X, Y).
type TextRun struct {
	X, Y float64
	Size float64
	Text string
}

// glyphWidth is the advance of every code in the test font, in 1/1000 em.
const glyphWidth = 500

// BuildPDF returns a small but valid PDF with one page per entry of pages.
// All text uses a single Type1 font whose codes map to arbitrary Unicode
// runes through a ToUnicode CMap, so Cyrillic text extracts correctly.
func BuildPDF(pages ...[]TextRun) []byte {
	if len(pages) == 0 {
		pages = [][]TextRun{nil}
	}

	codes := map[rune]int{}
	var order []rune
	for _, runs := range pages {
		for _, run := range runs {
			for _, r := range run.Text {
				if _, ok := codes[r]; !ok {
					if len(order) == 254 {
						panic("testutil: too many distinct runes for a single-byte font")
					}
					order = append(order, r)
					codes[r] = len(order)
				}
			}
		}
	}

	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	catalog := add("") // filled in below
	pagesObj := add("")
	cmap := add(stream(toUnicode(order)))
	widths := make([]string, max(len(order), 1))
	for i := range widths {
		widths[i] = fmt.Sprint(glyphWidth)
	}
	fontObj := add(fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 1 /LastChar %d /Widths [%s] /ToUnicode %d 0 R >>",
		max(len(order), 1), strings.Join(widths, " "), cmap))

	var kids []string
	for _, runs := range pages {
		var content strings.Builder
		for _, run := range runs {
			var hex strings.Builder
			for _, r := range run.Text {
				fmt.Fprintf(&hex, "%02X", codes[r])
			}
			fmt.Fprintf(&content, "BT /F1 %g Tf %g %g Td <%s> Tj ET\n", run.Size, run.X, run.Y, hex.String())
		}
		contentObj := add(stream(content.String()))
		page := add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObj, fontObj, contentObj))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	objs[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objs[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)
	return buf.Bytes()
}

// WritePDF builds a PDF and writes it to path.
func WritePDF(t *testing.T, path string, pages ...[]TextRun) string {
	t.Helper()
	return WriteFile(t, filepath.Clean(path), BuildPDF(pages...))
}

func stream(data string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data)
}

func toUnicode(order []rune) string {
	var b strings.Builder
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<00> <FF>\nendcodespacerange\n")
	if len(order) > 0 {
		// bfchar sections hold at most 100 entries each
		for start := 0; start < len(order); start += 100 {
			end := min(start+100, len(order))
			fmt.Fprintf(&b, "%d beginbfchar\n", end-start)
			for i := start; i < end; i++ {
				fmt.Fprintf(&b, "<%02X> <%04X>\n", i+1, order[i])
			}
			b.WriteString("endbfchar\n")
		}
	}
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend")
	return b.String()
}
