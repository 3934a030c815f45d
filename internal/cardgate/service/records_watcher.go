package service

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mfields-dev/cardgate/internal/cardgate/store"
)

// selfWriteWindow is how close an fsnotify write event must be to the
// store's own last save to be attributed to the store rather than to an
// out-of-band edit.
const selfWriteWindow = 2 * time.Second

// RecordsWatcher watches the records file for modifications made outside
// the daemon (a shell edit, another process).  The in-memory record list
// stays authoritative for the rest of the run, so an external edit is a
// memory/disk divergence; the watcher surfaces it as a warning rather
// than reloading.
type RecordsWatcher struct {
	path    string
	records *store.RecordStore
	logger  *log.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRecordsWatcher creates the watcher but does not start it.
func NewRecordsWatcher(path string, records *store.RecordStore, logger *log.Logger) *RecordsWatcher {
	return &RecordsWatcher{
		path:    path,
		records: records,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start begins watching.  Watch setup failure is logged and the watcher
// stays inert — observation is best effort, never fatal.
func (w *RecordsWatcher) Start(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Printf("records watcher unavailable: %v", err)
		close(w.done)
		return
	}
	if err := fw.Add(w.path); err != nil {
		w.logger.Printf("records watcher: cannot watch %s: %v", w.path, err)
		fw.Close()
		close(w.done)
		return
	}
	w.watcher = fw

	go w.loop(ctx)
}

// Stop closes the watcher and waits for the loop to exit.
func (w *RecordsWatcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

func (w *RecordsWatcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Writes the store just made are expected traffic.
			if time.Since(w.records.LastSavedAt()) < selfWriteWindow {
				continue
			}
			w.logger.Printf("records file %s modified outside the daemon; in-memory state remains authoritative until the next save", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("records watcher error: %v", err)
		}
	}
}
