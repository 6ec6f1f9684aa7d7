package words

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads a Catalog when its word file changes. A file that fails
// to parse leaves the current table in place.
type Watcher struct {
	catalog *Catalog
	path    string
	log     zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	reloads int
	onLoad  func(n int, err error)
}

// NewWatcher creates a watcher for path. onLoad, if non-nil, is called after
// every reload attempt.
func NewWatcher(c *Catalog, path string, log zerolog.Logger, onLoad func(n int, err error)) *Watcher {
	return &Watcher{
		catalog: c,
		path:    path,
		log:     log.With().Str("component", "words").Logger(),
		done:    make(chan struct{}),
		onLoad:  onLoad,
	}
}

// Start watches the directory holding the file, so editors that replace the
// file by rename are seen too.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw
	go w.loop()

	w.log.Info().Str("path", w.path).Msg("word list watcher started")
	return nil
}

// Stop closes the watcher and cancels a pending reload.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.watcher.Close()
	<-w.done

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

// Reloads returns how many reloads have been attempted.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) loop() {
	defer close(w.done)
	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// schedule debounces reloads so a burst of writes loads the file once.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(reloadDebounce)
		return
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	ws, err := LoadFile(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("word list reload failed, keeping current list")
	} else {
		w.catalog.Replace(ws, w.path)
		w.log.Info().Int("words", len(ws)).Str("path", w.path).Msg("word list reloaded")
	}

	w.mu.Lock()
	w.reloads++
	cb := w.onLoad
	w.mu.Unlock()

	if cb != nil {
		cb(len(ws), err)
	}
}
