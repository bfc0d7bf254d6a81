package testutil

import (
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	dspdf "github.com/dslipak/pdf"
	"github.com/stretchr/testify/require"
)

// Form is a form XObject referenced from a page's resources.
type Form struct {
	Name    string
	Content string
	BBox    [4]float64
	Images  int

	// Placement is the translation of the cm operator that draws the form on
	// the page, when one was found.
	Placement [2]float64
	Placed    bool
}

// Width returns the BBox width.
func (f Form) Width() float64 { return f.BBox[2] - f.BBox[0] }

// Height returns the BBox height.
func (f Form) Height() float64 { return f.BBox[3] - f.BBox[1] }

// OpenPDF opens path for inspection and closes the file when the test ends.
func OpenPDF(t *testing.T, path string) *dspdf.Reader {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	fi, err := f.Stat()
	require.NoError(t, err)
	r, err := dspdf.NewReader(f, fi.Size())
	require.NoError(t, err)
	return r
}

// XObjectCount returns the number of XObjects in the resources of page.
func XObjectCount(t *testing.T, path string, page int) int {
	t.Helper()
	r := OpenPDF(t, path)
	return len(r.Page(page).Resources().Key("XObject").Keys())
}

var placeRE = regexp.MustCompile(`([-\d.]+) ([-\d.]+) ([-\d.]+) ([-\d.]+) ([-\d.]+) ([-\d.]+) cm(?: /\S+ gs)? /(\S+) Do`)

// PageForms returns the form XObjects of page with their decoded content
// and, when the page content draws them through a cm operator, their
// placement on the page.
func PageForms(t *testing.T, path string, page int) []Form {
	t.Helper()
	p := OpenPDF(t, path).Page(page)

	placements := map[string][2]float64{}
	for _, m := range placeRE.FindAllStringSubmatch(pageContent(t, p.V.Key("Contents")), -1) {
		e, errE := strconv.ParseFloat(m[5], 64)
		f, errF := strconv.ParseFloat(m[6], 64)
		if errE == nil && errF == nil {
			placements[m[7]] = [2]float64{e, f}
		}
	}

	xobjs := p.Resources().Key("XObject")
	var forms []Form
	for _, name := range xobjs.Keys() {
		v := xobjs.Key(name)
		if v.Key("Subtype").Name() != "Form" {
			continue
		}
		form := Form{Name: name, Content: readStream(t, v)}
		bbox := v.Key("BBox")
		for i := 0; i < 4 && i < bbox.Len(); i++ {
			form.BBox[i] = bbox.Index(i).Float64()
		}
		inner := v.Key("Resources").Key("XObject")
		for _, k := range inner.Keys() {
			if inner.Key(k).Key("Subtype").Name() == "Image" {
				form.Images++
			}
		}
		form.Placement, form.Placed = placements[name]
		forms = append(forms, form)
	}
	return forms
}

func pageContent(t *testing.T, contents dspdf.Value) string {
	t.Helper()
	if contents.Kind() != dspdf.Array {
		return readStream(t, contents)
	}
	var b strings.Builder
	for i := 0; i < contents.Len(); i++ {
		b.WriteString(readStream(t, contents.Index(i)))
		b.WriteByte('\n')
	}
	return b.String()
}

func readStream(t *testing.T, v dspdf.Value) string {
	t.Helper()
	rc := v.Reader()
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}
