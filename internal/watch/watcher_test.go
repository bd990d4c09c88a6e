package watch

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/hubble/pkg/hubble"
	"github.com/bft-labs/hubble/pkg/log"
)

type fakePoster struct {
	mu      sync.Mutex
	batches []hubble.Batch
	keys    []string
	posted  chan struct{}
	status  int
	body    string
}

func newFakePoster(status int, body string) *fakePoster {
	return &fakePoster{posted: make(chan struct{}, 16), status: status, body: body}
}

func (p *fakePoster) Post(ctx context.Context, writeKey string, batch hubble.Batch, opts ...hubble.PostOption) (*http.Response, error) {
	p.mu.Lock()
	p.batches = append(p.batches, batch)
	p.keys = append(p.keys, writeKey)
	p.mu.Unlock()
	defer func() { p.posted <- struct{}{} }()

	if p.status != http.StatusOK {
		return nil, &hubble.APIError{Status: p.status, Code: "invalid_key", Message: p.body}
	}
	return &http.Response{StatusCode: p.status, Body: io.NopCloser(strings.NewReader(p.body))}, nil
}

func (p *fakePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

type recordLogger struct {
	log.NoopLogger
	mu     sync.Mutex
	errors []string
}

func (l *recordLogger) Error(msg string, fields ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
}

func waitPosted(t *testing.T, p *fakePoster) {
	t.Helper()
	select {
	case <-p.posted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for post")
	}
}

func TestWatcher_PostsNewBatchFile(t *testing.T) {
	dir := t.TempDir()
	poster := newFakePoster(http.StatusOK, "ok")
	startWatcher(t, New(dir, "wk", poster, nil))

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte(`{"a":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "batch-1.json"), []byte(`{"batch":[{"event":"signup"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	waitPosted(t, poster)

	poster.mu.Lock()
	defer poster.mu.Unlock()
	if len(poster.batches) != 1 {
		t.Fatalf("posted %d batches, want 1", len(poster.batches))
	}
	if poster.keys[0] != "wk" {
		t.Errorf("write key = %v, want wk", poster.keys[0])
	}
	events, ok := poster.batches[0]["batch"].([]any)
	if !ok || len(events) != 1 {
		t.Errorf("batch = %v, want one event", poster.batches[0])
	}
}

func TestWatcher_PostsEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	poster := newFakePoster(http.StatusOK, "ok")
	startWatcher(t, New(dir, "wk", poster, nil))

	path := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(path, []byte(`{"n":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitPosted(t, poster)

	// A later rewrite of an already-sent file is not posted again.
	if err := os.WriteFile(path, []byte(`{"n":2}`), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * DefaultDebounce)

	if got := poster.count(); got != 1 {
		t.Errorf("posted %d times, want 1", got)
	}
}

func TestWatcher_LogsRejectedAndInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	poster := newFakePoster(http.StatusBadRequest, "bad key")
	logger := &recordLogger{}
	startWatcher(t, New(dir, "wk", poster, logger))

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`not json`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rejected.json"), []byte(`{"a":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitPosted(t, poster)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msgs := strings.Join(logger.messages(), ",")
		if strings.Contains(msgs, "batch rejected") && strings.Contains(msgs, "skipping batch file") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	msgs := strings.Join(logger.messages(), ",")
	if !strings.Contains(msgs, "batch rejected") {
		t.Errorf("errors = %v, want batch rejected", msgs)
	}
	if !strings.Contains(msgs, "skipping batch file") {
		t.Errorf("errors = %v, want skipping batch file", msgs)
	}
	if got := poster.count(); got != 1 {
		t.Errorf("posted %d times, want 1", got)
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), "wk", newFakePoster(http.StatusOK, ""), nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() error = nil, want error for missing directory")
	}
}

func TestWatcher_RunAgainAfterStop(t *testing.T) {
	dir := t.TempDir()
	poster := newFakePoster(http.StatusOK, "ok")
	w := New(dir, "wk", poster, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	<-w.Ready()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	startWatcher(t, w)
	if err := os.WriteFile(filepath.Join(dir, "second.json"), []byte(`{"run":2}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitPosted(t, poster)

	if got := poster.count(); got != 1 {
		t.Errorf("posted %d batches, want 1", got)
	}
}
