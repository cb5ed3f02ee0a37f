package gestalt

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// EnvironmentWatcher reloads file-backed property sources when their
// backing files change on disk. Reloads swap the source's value map in
// place, so lookups through the environment pick up new values without any
// re-registration.
type EnvironmentWatcher struct {
	loader  ResourceLoader
	logger  Logger
	watcher *fsnotify.Watcher

	// path -> sources to reload when that path changes.
	sources map[string][]*FilePropertySource
}

// NewEnvironmentWatcher creates a watcher. Close releases its resources.
func NewEnvironmentWatcher(loader ResourceLoader, logger Logger) (*EnvironmentWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &EnvironmentWatcher{
		loader:  loader,
		logger:  ensureLogger(logger),
		watcher: w,
		sources: make(map[string][]*FilePropertySource),
	}, nil
}

// Watch registers a property source for reload when the file at path
// changes. The path must be the on-disk location the loader resolves the
// source's location to.
func (w *EnvironmentWatcher) Watch(ps *FilePropertySource, path string) error {
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.sources[path] = append(w.sources[path], ps)
	return nil
}

// Start consumes filesystem events until the context is done or the
// watcher is closed. Run it in its own goroutine.
func (w *EnvironmentWatcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			for _, ps := range w.sources[event.Name] {
				if err := ps.Reload(w.loader); err != nil {
					w.logger.Error("Reloading property source failed", "source", ps.Name(), "path", event.Name, "error", err)
					continue
				}
				w.logger.Info("Reloaded property source", "source", ps.Name(), "path", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Filesystem watch error", "error", err)
		}
	}
}

// Close stops watching and releases the underlying watcher.
func (w *EnvironmentWatcher) Close() error {
	return w.watcher.Close()
}
