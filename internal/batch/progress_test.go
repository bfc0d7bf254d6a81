package batch

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/pdftrans/internal/ocr"
	"github.com/MeKo-Tech/pdftrans/internal/rewrite"
)

type recordingProgress struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingProgress) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recordingProgress) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingProgress) OnStart(total int) { r.add("start %d", total) }

func (r *recordingProgress) OnStage(src string, stage Stage) {
	r.add("stage %s %s", filepath.Base(src), stage)
}

func (r *recordingProgress) OnPage(src string, page, total int) {
	r.add("page %s %d/%d", filepath.Base(src), page, total)
}

func (r *recordingProgress) OnFileDone(res FileResult, done, total int) {
	r.add("done %s %s %d/%d", filepath.Base(res.Source), res.Outcome, done, total)
}

func (r *recordingProgress) OnComplete(s Summary) { r.add("complete %d", s.Discovered) }

var (
	_ Progress = NoOpProgress{}
	_ Progress = (*ConsoleProgress)(nil)
	_ Progress = (*LogProgress)(nil)
	_ Progress = (*recordingProgress)(nil)
)

func newTestConsole(buf *bytes.Buffer) *ConsoleProgress {
	c := NewConsoleProgress(buf, "").WithWidth(10)
	start := time.Unix(fixedUnix, 0)
	calls := 0
	c.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Second)
	}
	return c
}

func TestConsoleProgressStatusLines(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf)

	c.OnStart(2)
	c.OnStage("/in/doc.pdf", StageRepairing)
	c.OnFileDone(FileResult{
		Source:  "/in/doc.pdf",
		Outcome: OutcomeSucceeded,
		Repair:  ocr.Result{Status: ocr.StatusRepaired},
		Report:  rewrite.Report{Output: "/out/doc.pdf", Blocks: 4, Rewritten: 3},
	}, 1, 2)
	c.OnFileDone(FileResult{
		Source:      "/in/bad.pdf",
		Outcome:     OutcomeFailed,
		Destination: "/err/bad.pdf",
		Err:         errors.New("no pages"),
	}, 2, 2)
	c.OnComplete(Summary{Succeeded: 1, Failed: 1})

	out := buf.String()
	assert.Contains(t, out, "found 2 PDF(s)")
	assert.Contains(t, out, "[repairing]  doc.pdf")
	assert.Contains(t, out, "✓ doc.pdf -> /out/doc.pdf (3/4 blocks rewritten, ocr repaired)")
	assert.Contains(t, out, "✗ bad.pdf -> /err/bad.pdf: no pages")
	assert.Contains(t, out, "[█████░░░░░] 1/2 (50.0%)")
	assert.Contains(t, out, "ETA:")
	assert.Contains(t, out, "[██████████] 2/2 (100.0%)")
	assert.Contains(t, out, "done: 1 succeeded, 1 failed, 0 interrupted")
}

func TestConsoleProgressInterruptedAndRelocationError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf)
	c.OnStart(2)
	c.OnFileDone(FileResult{Source: "/in/a.pdf", Outcome: OutcomeInterrupted}, 1, 2)
	c.OnFileDone(FileResult{
		Source:        "/in/b.pdf",
		Outcome:       OutcomeSucceeded,
		RelocationErr: errors.New("permission denied"),
	}, 2, 2)

	out := buf.String()
	assert.Contains(t, out, "- a.pdf interrupted, left in input")
	assert.Contains(t, out, "✗ b.pdf succeeded, not moved: permission denied")
}

func TestConsoleProgressPagesOptIn(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf)
	c.OnPage("/in/doc.pdf", 1, 3)
	assert.Empty(t, buf.String())

	c.WithPages(true).OnPage("/in/doc.pdf", 2, 3)
	assert.Contains(t, buf.String(), "doc.pdf page 2/3")
}

func TestConsoleProgressWithoutRateOrETA(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf).WithOptions(false, false)
	c.OnStart(2)
	c.OnFileDone(FileResult{Source: "a.pdf", Outcome: OutcomeSucceeded}, 1, 2)

	out := buf.String()
	assert.NotContains(t, out, "ETA")
	assert.NotContains(t, out, "files/s")
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	p := NewLogProgress(logger, slog.LevelInfo)

	p.OnStart(1)
	p.OnPage("doc.pdf", 1, 1)
	p.OnFileDone(FileResult{Source: "doc.pdf", Outcome: OutcomeFailed, Destination: "err/doc.pdf"}, 1, 1)
	p.OnComplete(Summary{Failed: 1})

	out := buf.String()
	assert.Contains(t, out, "batch started")
	assert.NotContains(t, out, "page rewritten")
	assert.Contains(t, out, "outcome=failed")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
