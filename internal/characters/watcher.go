package characters

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a character Source when its export file changes on
// disk. Export tooling rewrites the whole file, so writes are debounced
// before triggering a reload.
type Watcher struct {
	source   *Source
	debounce time.Duration
	onReload func(count int)
	stopChan chan struct{}
	stopOnce sync.Once
}

// WatcherConfig configures a character file watcher.
type WatcherConfig struct {
	// Debounce is how long to wait after the last write event before
	// reloading. Default: 500ms.
	Debounce time.Duration

	// OnReload is called after each successful reload with the new
	// record count. Optional.
	OnReload func(count int)
}

// NewWatcher creates a watcher for the given source.
func NewWatcher(source *Source, cfg WatcherConfig) *Watcher {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		source:   source,
		debounce: debounce,
		onReload: cfg.OnReload,
		stopChan: make(chan struct{}),
	}
}

// Run watches the export file until the context is cancelled or Stop is
// called. The parent directory is watched rather than the file itself
// so atomic rename-over writes are observed.
func (w *Watcher) Run(ctx context.Context) (err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	dir := filepath.Dir(w.source.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch character export directory: %w", err)
	}

	target := filepath.Clean(w.source.Path())

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopChan:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.source.Load(); err != nil {
				log.Printf("character reload failed: %v", err)
				continue
			}
			if w.onReload != nil {
				w.onReload(w.source.Count())
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("character watcher error: %v", watchErr)
		}
	}
}

// Stop terminates a running watcher. It is safe to call more than
// once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
}
