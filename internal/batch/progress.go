package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Stage is the step a file's pipeline is currently in.
type Stage string

const (
	StageRepairing   Stage = "repairing"
	StageTranslating Stage = "translating"
)

// Progress receives lifecycle notifications during a scan cycle. OnStage and
// OnPage are called from worker goroutines; the rest from the collector.
type Progress interface {
	// OnStart is called once the cycle knows how many files it has.
	OnStart(total int)

	// OnStage is called when a file enters a pipeline stage.
	OnStage(src string, stage Stage)

	// OnPage is called after each rewritten page.
	OnPage(src string, page, total int)

	// OnFileDone is called after a file has been relocated.
	OnFileDone(res FileResult, done, total int)

	// OnComplete is called when every dispatched file has finished.
	OnComplete(s Summary)
}

// NoOpProgress implements Progress but does nothing.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)                     {}
func (NoOpProgress) OnStage(string, Stage)           {}
func (NoOpProgress) OnPage(string, int, int)         {}
func (NoOpProgress) OnFileDone(FileResult, int, int) {}
func (NoOpProgress) OnComplete(Summary)              {}

// ConsoleProgress prints a status line per file and a batch progress bar.
type ConsoleProgress struct {
	writer    io.Writer
	prefix    string
	width     int
	showPages bool
	showETA   bool
	showRate  bool
	mutex     sync.Mutex
	startTime time.Time
	now       func() time.Time
}

// NewConsoleProgress creates a console progress reporter.
func NewConsoleProgress(writer io.Writer, prefix string) *ConsoleProgress {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgress{
		writer:   writer,
		prefix:   prefix,
		width:    40,
		showETA:  true,
		showRate: true,
		now:      time.Now,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgress) WithWidth(width int) *ConsoleProgress {
	c.width = width
	return c
}

// WithPages enables a line per rewritten page.
func (c *ConsoleProgress) WithPages(show bool) *ConsoleProgress {
	c.showPages = show
	return c
}

// WithOptions configures display options.
func (c *ConsoleProgress) WithOptions(showETA, showRate bool) *ConsoleProgress {
	c.showETA = showETA
	c.showRate = showRate
	return c
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = c.now()
	_, _ = fmt.Fprintf(c.writer, "%sfound %d PDF(s)\n", c.prefix, total)
}

func (c *ConsoleProgress) OnStage(src string, stage Stage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "%s%-12s %s\n", c.prefix, "["+string(stage)+"]", filepath.Base(src))
}

func (c *ConsoleProgress) OnPage(src string, page, total int) {
	if !c.showPages {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "%s%-12s %s page %d/%d\n", c.prefix, "", filepath.Base(src), page, total)
}

func (c *ConsoleProgress) OnFileDone(res FileResult, done, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	name := filepath.Base(res.Source)
	var line string
	switch {
	case res.RelocationErr != nil:
		line = fmt.Sprintf("✗ %s %s, not moved: %v", name, res.Outcome, res.RelocationErr)
	case res.Outcome == OutcomeSucceeded:
		line = fmt.Sprintf("✓ %s -> %s (%d/%d blocks rewritten, ocr %s)",
			name, res.Report.Output, res.Report.Rewritten, res.Report.Blocks, res.Repair.Status)
	case res.Outcome == OutcomeFailed:
		line = fmt.Sprintf("✗ %s -> %s: %v", name, res.Destination, res.Err)
	default:
		line = fmt.Sprintf("- %s interrupted, left in input", name)
	}
	_, _ = fmt.Fprintf(c.writer, "%s%s\n", c.prefix, line)
	c.drawProgressBar(done, total, c.now())
}

func (c *ConsoleProgress) OnComplete(s Summary) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone: %d succeeded, %d failed, %d interrupted in %v\n",
		c.prefix, s.Succeeded, s.Failed, s.Interrupted, c.now().Sub(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgress) drawProgressBar(current, total int, now time.Time) {
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total) * 100.0
	filled := int(float64(c.width) * float64(current) / float64(total))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)

	status := fmt.Sprintf("%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)

	elapsed := now.Sub(c.startTime)
	if elapsed > 0 && current > 0 {
		if c.showRate {
			status += fmt.Sprintf(" %.2f files/s", float64(current)/elapsed.Seconds())
		}
		if c.showETA && current < total {
			remaining := total - current
			eta := time.Duration(elapsed.Seconds()*float64(remaining)/float64(current)) * time.Second
			status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
		}
	}

	_, _ = fmt.Fprintln(c.writer, status)
}

// LogProgress reports cycle progress through slog instead of the console.
type LogProgress struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogProgress creates a log-based progress reporter.
func NewLogProgress(logger *slog.Logger, level slog.Level) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, level: level}
}

func (l *LogProgress) OnStart(total int) {
	l.logger.Log(context.Background(), l.level, "batch started", "total", total)
}

func (l *LogProgress) OnStage(src string, stage Stage) {
	l.logger.Log(context.Background(), l.level, "file stage", "file", src, "stage", string(stage))
}

func (l *LogProgress) OnPage(src string, page, total int) {
	l.logger.Log(context.Background(), slog.LevelDebug, "page rewritten", "file", src, "page", page, "pages", total)
}

func (l *LogProgress) OnFileDone(res FileResult, done, total int) {
	l.logger.Log(context.Background(), l.level, "file done",
		"file", res.Source, "outcome", res.Outcome.String(),
		"destination", res.Destination, "done", done, "total", total)
}

func (l *LogProgress) OnComplete(s Summary) {
	l.logger.Log(context.Background(), l.level, "batch complete",
		"succeeded", s.Succeeded, "failed", s.Failed, "interrupted", s.Interrupted)
}
