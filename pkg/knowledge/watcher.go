package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the knowledge base when files under its root change.
// Intended for development only; production trees are immutable after
// boot. Blocks until ctx is cancelled.
func (b *Base) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create knowledge watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(b.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch knowledge tree: %w", err)
	}

	slog.Info("Watching knowledge base for changes", "path", b.root)

	// Editors fire bursts of events per save; coalesce them into one
	// reload per quiet period.
	var (
		debounce = 500 * time.Millisecond
		timer    *time.Timer
		timerC   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Knowledge watcher error", "error", err)
		case <-timerC:
			timer = nil
			timerC = nil
			if err := b.Reload(); err != nil {
				slog.Warn("Knowledge base reload failed", "error", err)
			}
		}
	}
}
