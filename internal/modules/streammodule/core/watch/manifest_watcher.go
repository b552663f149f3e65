// Package watch reports when an engine first publishes a manifest.
// Engine dispatch is fire-and-forget; watching the output directory is the
// only signal that a started job actually produced something playable.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// ReadyFunc is called once with the manifest path when it appears
type ReadyFunc func(manifestPath string)

// ManifestWatcher watches output directories for manifest files
type ManifestWatcher struct {
	logger  hclog.Logger
	timeout time.Duration
}

// NewManifestWatcher creates a watcher that gives up after timeout (0 = never)
func NewManifestWatcher(logger hclog.Logger, timeout time.Duration) *ManifestWatcher {
	return &ManifestWatcher{logger: logger, timeout: timeout}
}

// Watch starts watching for manifestPath in the background. onReady runs at
// most once. Watching ends when the manifest shows up, ctx is cancelled or
// the timeout passes.
func (w *ManifestWatcher) Watch(ctx context.Context, manifestPath string, onReady ReadyFunc) error {
	manifestPath = filepath.Clean(manifestPath)
	dir := filepath.Dir(manifestPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	cancel := context.CancelFunc(func() {})
	if w.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
	}

	go w.loop(ctx, cancel, watcher, manifestPath, onReady)
	return nil
}

func (w *ManifestWatcher) loop(ctx context.Context, cancel context.CancelFunc, watcher *fsnotify.Watcher, manifestPath string, onReady ReadyFunc) {
	defer cancel()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("stopped watching manifest", "manifest", manifestPath, "reason", ctx.Err())
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != manifestPath {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			w.logger.Info("manifest available", "manifest", manifestPath)
			if onReady != nil {
				onReady(manifestPath)
			}
			return

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("manifest watcher error", "manifest", manifestPath, "error", err)
		}
	}
}
