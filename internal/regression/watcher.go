package regression

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow suppresses duplicate reloads from the burst of filesystem
// events a single artifact write produces.
const debounceWindow = 100 * time.Millisecond

// Watcher reloads the model artifact when it changes on disk.
type Watcher struct {
	path       string
	watcher    *fsnotify.Watcher
	onReload   func(*Model)
	stopChan   chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	lastReload time.Time
}

// NewWatcher creates a watcher for the artifact at path. onReload runs with
// each successfully loaded model.
func NewWatcher(path string, onReload func(*Model)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     path,
		watcher:  w,
		onReload: onReload,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching the artifact's directory. Watching the directory
// rather than the file survives editors and deploys that replace the file.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop stops watching. Calling it more than once is a no-op.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.recentlyReloaded() {
				continue
			}
			m, err := Load(w.path)
			if err != nil {
				// Partial writes fail to parse; the next event retries.
				log.Printf("Warning: failed to reload model artifact: %v", err)
				continue
			}
			w.markReloaded()
			w.onReload(m)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: model watcher error: %v", err)
		}
	}
}

func (w *Watcher) recentlyReloaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastReload) < debounceWindow
}

func (w *Watcher) markReloaded() {
	w.mu.Lock()
	w.lastReload = time.Now()
	w.mu.Unlock()
}
