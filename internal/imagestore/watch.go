package imagestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/fyrsmithlabs/newsrag/internal/document"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize image store watcher")

// Watcher reloads a side file whenever it is rewritten and hands the new
// documents to a callback.
//
// Save replaces the file by rename, so the parent directory is watched and
// events are filtered by name.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(map[string]*document.ImageDocument)
	onError  func(error)
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches path. onReload receives every successful reload;
// onError, which may be nil, receives load and watcher errors.
func NewWatcher(path string, onReload func(map[string]*document.ImageDocument), onError func(error)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrWatcherFailed)
	}
	if onReload == nil {
		return nil, fmt.Errorf("%w: reload callback is nil", ErrWatcherFailed)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if onError == nil {
		onError = func(error) {}
	}

	return &Watcher{
		path:     abs,
		watcher:  w,
		onReload: onReload,
		onError:  onError,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start processes events in a background goroutine until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

// Stop ends event processing and releases the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

// Done is closed once the event goroutine exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) reload() {
	docs, err := Load(w.path)
	if err != nil {
		// A partial write shows up as a decode error; the next event
		// carries the complete file.
		w.onError(err)
		return
	}
	w.onReload(docs)
}
