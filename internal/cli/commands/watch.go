package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher reports debounced changes to one file. It watches the parent
// directory so editors that replace the file on save are seen too.
type fileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

func newFileWatcher(path string, logger *slog.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &fileWatcher{path: abs, watcher: w, logger: logger}, nil
}

// Run calls onChange once per burst of writes to the file. Bursts end after
// debounce passes without events. Run returns when ctx is done.
func (fw *fileWatcher) Run(ctx context.Context, debounce time.Duration, onChange func()) error {
	defer func() { _ = fw.watcher.Close() }()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.logger.Debug("file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
