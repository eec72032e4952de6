package pcml

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/hostcall/pkg/log"
)

// DefaultDebounce is the delay between a file change and invalidation.
const DefaultDebounce = 100 * time.Millisecond

// Watcher invalidates cached templates when their files change on disk.
type Watcher struct {
	store    *Store
	debounce time.Duration
	logger   log.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a Watcher for store's directory.
func NewWatcher(store *Store, debounce time.Duration, logger log.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		store:    store,
		debounce: debounce,
		logger:   log.OrNoop(logger),
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.store.Dir()); err != nil {
		fw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fw)
	w.logger.Info("template watcher started", log.String("dir", w.store.Dir()))
	return nil
}

// Stop ends the watch and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if filepath.Ext(base) != Extension {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(strings.TrimSuffix(base, Extension))

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("template watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.store.Invalidate(name)
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
	})
}
