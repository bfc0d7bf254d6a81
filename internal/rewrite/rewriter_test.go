package rewrite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pdftrans/internal/translate"
)

type edit struct {
	page int
	rect Rect
	text string
}

type fakeDoc struct {
	pages    [][]Block
	failPage int
	failSave bool

	masks   []edit
	inserts []edit
	saved   string
	closed  bool

	// pinned, when set, is checked at Close to see whether the file still existed.
	pinned        string
	pinnedAtClose bool
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Blocks(page int) ([]Block, error) {
	if page == d.failPage {
		return nil, errors.New("corrupt content stream")
	}
	return d.pages[page-1], nil
}

func (d *fakeDoc) Mask(page int, r Rect) error {
	d.masks = append(d.masks, edit{page: page, rect: r})
	return nil
}

func (d *fakeDoc) InsertText(page int, r Rect, text string) error {
	d.inserts = append(d.inserts, edit{page: page, rect: r, text: text})
	return nil
}

func (d *fakeDoc) Save(path string) error {
	if d.failSave {
		_ = os.WriteFile(path, []byte("half"), 0o600)
		return errors.New("disk full")
	}
	d.saved = path
	return os.WriteFile(path, []byte("%PDF-1.7 rewritten"), 0o600)
}

func (d *fakeDoc) Close() error {
	d.closed = true
	if d.pinned != "" {
		_, err := os.Stat(d.pinned)
		d.pinnedAtClose = err == nil
	}
	return nil
}

func openerFor(doc *fakeDoc) Opener {
	return OpenerFunc(func(string) (Document, error) { return doc, nil })
}

// mapTranslator translates from a fixed dictionary; unknown text is echoed.
type mapTranslator struct {
	mu    sync.Mutex
	dict  map[string]string
	calls []string
}

func (m *mapTranslator) Translate(_ context.Context, text string) translate.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if out, ok := m.dict[text]; ok {
		return translate.Result{Text: out, Status: translate.StatusTranslated}
	}
	return translate.Result{Text: text, Status: translate.StatusTranslated}
}

type identityTranslator struct{}

func (identityTranslator) Translate(_ context.Context, text string) translate.Result {
	return translate.Result{Text: text, Status: translate.StatusTranslated}
}

func paths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "doc.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o750))
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o600))
	return src, filepath.Join(dir, "out", "doc.pdf")
}

func TestRewriteReplacesChangedBlocks(t *testing.T) {
	src, out := paths(t)
	rect := Rect{X0: 72, Y0: 700, X1: 200, Y1: 715}
	doc := &fakeDoc{pages: [][]Block{{
		{Rect: rect, Text: "Привет мир"},
		{Rect: Rect{X0: 72, Y0: 40, X1: 80, Y1: 50}, Text: "12"},
	}}}
	tr := &mapTranslator{dict: map[string]string{"Привет мир": "Hola mundo"}}

	var pagesSeen []int
	rep, err := NewRewriter(openerFor(doc), tr, 3, nil).Rewrite(context.Background(),
		Request{Source: src, Input: src, Output: out},
		func(page, total int) { pagesSeen = append(pagesSeen, page); assert.Equal(t, 1, total) })
	require.NoError(t, err)

	assert.Equal(t, []edit{{page: 1, rect: rect}}, doc.masks)
	assert.Equal(t, []edit{{page: 1, rect: rect, text: "Hola mundo"}}, doc.inserts)
	assert.Equal(t, []string{"Привет мир"}, tr.calls, "short blocks are not translated")
	assert.Equal(t, []int{1}, pagesSeen)
	assert.Equal(t, 1, rep.Pages)
	assert.Equal(t, 1, rep.Blocks)
	assert.Equal(t, 1, rep.Rewritten)
	assert.True(t, doc.closed)
	assert.FileExists(t, out)
	assert.NoFileExists(t, out+partSuffix)
	assert.Equal(t, out+partSuffix, doc.saved)
}

func TestRewriteIdentityTranslationMasksNothing(t *testing.T) {
	src, out := paths(t)
	doc := &fakeDoc{pages: [][]Block{
		{{Rect: Rect{X0: 1, Y0: 1, X1: 50, Y1: 10}, Text: "Первый блок"}},
		{{Rect: Rect{X0: 1, Y0: 1, X1: 50, Y1: 10}, Text: "Второй блок"}},
	}}

	rep, err := NewRewriter(openerFor(doc), identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: src, Output: out}, nil)
	require.NoError(t, err)

	assert.Empty(t, doc.masks)
	assert.Empty(t, doc.inserts)
	assert.Equal(t, 0, rep.Rewritten)
	assert.Equal(t, 2, rep.Blocks)
	assert.FileExists(t, out)
}

func TestRewriteFailingPageLeavesNoOutput(t *testing.T) {
	src, out := paths(t)
	repaired := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(repaired, []byte("%PDF-1.4 repaired"), 0o600))

	doc := &fakeDoc{
		pages: [][]Block{
			{{Rect: Rect{X0: 1, Y0: 1, X1: 50, Y1: 10}, Text: "Привет мир"}},
			{{Rect: Rect{X0: 1, Y0: 1, X1: 50, Y1: 10}, Text: "Пока мир"}},
		},
		failPage: 2,
	}
	tr := &mapTranslator{dict: map[string]string{"Привет мир": "Hola mundo"}}

	_, err := NewRewriter(openerFor(doc), tr, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: repaired, Output: out}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")

	assert.Len(t, doc.masks, 1, "page 1 was rewritten before the failure")
	assert.Empty(t, doc.saved)
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, out+partSuffix)
	assert.FileExists(t, repaired, "repaired copy is kept after a failure")
	assert.True(t, doc.closed)
}

func TestRewriteSaveFailureRemovesPart(t *testing.T) {
	src, out := paths(t)
	doc := &fakeDoc{pages: [][]Block{{}}, failSave: true}

	_, err := NewRewriter(openerFor(doc), identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: src, Output: out}, nil)
	require.Error(t, err)
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, out+partSuffix)
}

func TestRewriteDeletesDistinctRepairedCopy(t *testing.T) {
	src, out := paths(t)
	repaired := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(repaired, []byte("%PDF-1.4 repaired"), 0o600))
	doc := &fakeDoc{pages: [][]Block{{}}}

	rep, err := NewRewriter(openerFor(doc), identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: repaired, Output: out}, nil)
	require.NoError(t, err)
	assert.True(t, rep.TempCleared)
	assert.NoFileExists(t, repaired)
	assert.FileExists(t, src)
}

func TestRewriteClosesDocumentBeforeRemovingRepairedCopy(t *testing.T) {
	src, out := paths(t)
	repaired := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(repaired, []byte("%PDF-1.4 repaired"), 0o600))
	doc := &fakeDoc{pages: [][]Block{{}}, pinned: repaired}

	rep, err := NewRewriter(openerFor(doc), identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: repaired, Output: out}, nil)
	require.NoError(t, err)
	assert.True(t, rep.TempCleared)
	assert.True(t, doc.closed)
	assert.True(t, doc.pinnedAtClose, "document was still open when its file was removed")
	assert.NoFileExists(t, repaired)
}

func TestRewriteKeepsSourceWhenNotRepaired(t *testing.T) {
	src, out := paths(t)
	doc := &fakeDoc{pages: [][]Block{{}}}

	rep, err := NewRewriter(openerFor(doc), identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: src, Output: out}, nil)
	require.NoError(t, err)
	assert.False(t, rep.TempCleared)
	assert.FileExists(t, src)
}

func TestRewriteNoPages(t *testing.T) {
	src, out := paths(t)
	_, err := NewRewriter(openerFor(&fakeDoc{}), identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: src, Output: out}, nil)
	assert.ErrorIs(t, err, ErrNoPages)
	assert.NoFileExists(t, out)
}

func TestRewriteOpenError(t *testing.T) {
	src, out := paths(t)
	opener := OpenerFunc(func(string) (Document, error) { return nil, errors.New("not a pdf") })
	_, err := NewRewriter(opener, identityTranslator{}, 3, nil).
		Rewrite(context.Background(), Request{Source: src, Input: src, Output: out}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a pdf")
}

func TestRewriteCancelled(t *testing.T) {
	src, out := paths(t)
	doc := &fakeDoc{pages: [][]Block{{}, {}}}
	ctx, cancel := context.WithCancel(context.Background())

	_, err := NewRewriter(openerFor(doc), identityTranslator{}, 3, nil).
		Rewrite(ctx, Request{Source: src, Input: src, Output: out}, func(int, int) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)
}

func TestNormalizeBlockText(t *testing.T) {
	assert.Equal(t, "Привет мир", normalizeBlockText(" Привет\nмир \n"))
	assert.Equal(t, "a b", normalizeBlockText("a\r\nb"))
	assert.Equal(t, "", strings.TrimSpace(normalizeBlockText("\n\n")))
}

func TestRect(t *testing.T) {
	r := Rect{X0: 10, Y0: 20, X1: 30, Y1: 25}
	assert.InDelta(t, 20.0, r.Width(), 1e-9)
	assert.InDelta(t, 5.0, r.Height(), 1e-9)
	assert.False(t, r.Empty())
	assert.True(t, Rect{X0: 1, X1: 1, Y1: 5}.Empty())
	assert.Equal(t, Rect{X0: 0, Y0: 20, X1: 30, Y1: 40}, r.Union(Rect{X0: 0, Y0: 35, X1: 5, Y1: 40}))
	assert.Equal(t, "[10.0 20.0 30.0 25.0]", r.String())
}
