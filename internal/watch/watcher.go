// Package watch posts batch files dropped into a directory.
//
// Every *.json file created or written in the watched directory is decoded
// as one batch and posted exactly once. Outcomes are only logged: files are
// never retried, moved or deleted.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/hubble/pkg/hubble"
	"github.com/bft-labs/hubble/pkg/log"
)

// DefaultDebounce is how long a file must stay quiet before it is posted.
const DefaultDebounce = 100 * time.Millisecond

// Poster sends one batch. *hubble.Client satisfies it.
type Poster interface {
	Post(ctx context.Context, writeKey string, batch hubble.Batch, opts ...hubble.PostOption) (*http.Response, error)
}

// Watcher monitors a directory for batch files via fsnotify.
type Watcher struct {
	dir      string
	writeKey string
	poster   Poster
	logger   log.Logger
	opts     []hubble.PostOption
	debounce time.Duration

	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.Mutex
	pending map[string]*time.Timer
	sent    map[string]bool
	wg      sync.WaitGroup
}

// New creates a Watcher for dir. opts are passed to every Post.
func New(dir, writeKey string, poster Poster, logger log.Logger, opts ...hubble.PostOption) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		dir:      dir,
		writeKey: writeKey,
		poster:   poster,
		logger:   logger,
		opts:     opts,
		debounce: DefaultDebounce,
		ready:    make(chan struct{}),
		pending:  make(map[string]*time.Timer),
		sent:     make(map[string]bool),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the directory until ctx is cancelled. In-flight posts are
// waited for before it returns. Run may be called again after it returns;
// files already posted are not posted again.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info("watching for batch files", log.String("dir", w.dir))

	defer w.wg.Wait()
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.forget(event.Name)
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", log.Err(err))
		}
	}
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sent[path] {
		return
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		if w.sent[path] {
			w.mu.Unlock()
			return
		}
		w.sent[path] = true
		w.mu.Unlock()

		w.postFile(ctx, path)
	})
	w.pending[path] = timer
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	delete(w.pending, path)
	delete(w.sent, path)
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) postFile(ctx context.Context, path string) {
	file := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		w.logger.Error("open batch file", log.String("file", file), log.Err(err))
		return
	}
	batch, err := hubble.DecodeBatch(f)
	f.Close()
	if err != nil {
		w.logger.Error("skipping batch file", log.String("file", file), log.Err(err))
		return
	}

	resp, err := w.poster.Post(ctx, w.writeKey, batch, w.opts...)
	if err != nil {
		var apiErr *hubble.APIError
		if errors.As(err, &apiErr) {
			w.logger.Error("batch rejected",
				log.String("file", file),
				log.Int("status", apiErr.Status),
				log.String("code", apiErr.Code),
				log.String("message", apiErr.Message),
			)
			return
		}
		w.logger.Error("batch not sent", log.String("file", file), log.Err(err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	w.logger.Info("batch posted", log.String("file", file), log.Int("status", resp.StatusCode))
}
