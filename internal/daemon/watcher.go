package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/dochub/internal/manifest"
)

// debounceWindow coalesces bursts of filesystem events (editors write
// manifests in several operations) into one rebuild trigger.
const debounceWindow = 2 * time.Second

// manifestWatcher triggers rebuilds when package manifests change.
type manifestWatcher struct {
	watcher *fsnotify.Watcher
	trigger func(reason string)
}

// newManifestWatcher watches packagesDir and its immediate subdirectories.
// New package directories are picked up as they appear because the parent
// directory is watched too.
func newManifestWatcher(packagesDir string, trigger func(reason string)) (*manifestWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(packagesDir); err != nil {
		_ = w.Close()
		return nil, err
	}
	entries, err := os.ReadDir(packagesDir)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := w.Add(filepath.Join(packagesDir, e.Name())); err != nil {
			slog.Warn("Failed to watch package directory", "dir", e.Name(), "error", err)
		}
	}
	return &manifestWatcher{watcher: w, trigger: trigger}, nil
}

// run pumps events until the context is done. Only manifest file events
// and new directories are interesting; everything else is noise.
func (m *manifestWatcher) run(ctx context.Context) {
	defer m.watcher.Close()

	var timer *time.Timer
	fire := func() {
		m.trigger("manifest change")
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				if stat, err := os.Stat(event.Name); err == nil && stat.IsDir() {
					if err := m.watcher.Add(event.Name); err != nil {
						slog.Debug("Failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			if filepath.Base(event.Name) != manifest.FileName {
				continue
			}
			slog.Debug("Manifest event", "event", event.Op.String(), "path", event.Name)
			if timer == nil {
				timer = time.AfterFunc(debounceWindow, fire)
			} else {
				timer.Reset(debounceWindow)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Manifest watcher error", "error", err)
		}
	}
}
