package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HotReloader watches the config file and calls onReload with the freshly
// loaded config whenever it changes. Only changes that pass validation are
// delivered; a broken edit keeps the previous configuration in effect.
type HotReloader struct {
	path     string
	cooldown time.Duration
	watcher  *fsnotify.Watcher
	onReload func(AppConfig)

	lastReload time.Time
}

// NewHotReloader creates a reloader for path. cooldown suppresses the burst
// of events editors produce for a single save.
func NewHotReloader(path string, cooldown time.Duration, onReload func(AppConfig)) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file atomically and the
	// watch on the old inode would go dead.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	return &HotReloader{
		path:     path,
		cooldown: cooldown,
		watcher:  watcher,
		onReload: onReload,
	}, nil
}

// Run processes filesystem events until ctx is cancelled.
func (h *HotReloader) Run(ctx context.Context) error {
	defer h.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-h.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.maybeReload()
		case _, ok := <-h.watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are transient; keep going.
		}
	}
}

func (h *HotReloader) maybeReload() {
	now := time.Now()
	if now.Sub(h.lastReload) < h.cooldown {
		return
	}

	cfg, err := LoadWithEnvOverrides(h.path)
	if err != nil {
		// Invalid edit: keep running with the previous config.
		return
	}
	h.lastReload = now
	if h.onReload != nil {
		h.onReload(cfg)
	}
}
