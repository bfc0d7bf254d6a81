package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// watcher turns filesystem events in the input folder into wake-ups for the
// scan loop. Only the folder itself is watched; files dropped into existing
// subfolders are still found by the next poll.
type watcher struct {
	fs     *fsnotify.Watcher
	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

func newWatcher(dir string, logger *slog.Logger) (*watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &watcher{
		fs:     fw,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.loop()
	return w, nil
}

// Wake delivers at most one pending notification at a time.
func (w *watcher) Wake() <-chan struct{} {
	return w.wake
}

func (w *watcher) Close() {
	if err := w.fs.Close(); err != nil {
		w.logger.Debug("failed to close watcher", "error", err)
	}
	<-w.done
}

func (w *watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !relevant(ev.Name) {
				continue
			}
			w.logger.Debug("input folder changed", "path", ev.Name, "op", ev.Op.String())
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// relevant reports whether an event path could lead to new work: a PDF or a
// new subfolder.
func relevant(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
