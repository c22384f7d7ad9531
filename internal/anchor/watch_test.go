package anchor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingPusher struct {
	mu   sync.Mutex
	docs []Document
}

func (r *recordingPusher) PushDocument(ctx context.Context, doc Document) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return &Result{RequestID: "req", ContentHash: doc.ContentHash, Complete: true}, nil
}

func waitEvent(t *testing.T, events <-chan WatchEvent) WatchEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return WatchEvent{}
	}
}

func TestDirWatcher(t *testing.T) {
	dir := t.TempDir()
	pusher := &recordingPusher{}
	w := NewDirWatcher(dir, pusher, 50*time.Millisecond, map[string]interface{}{"source": "watch"})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan WatchEvent, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, events) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "brief-7.md")
	if err := os.WriteFile(path, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events)
	if ev.Err != nil || ev.Path != path {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Result.ContentHash != ContentHash("v1") {
		t.Errorf("content hash = %s", ev.Result.ContentHash)
	}

	// Same content: not anchored again.
	if err := os.WriteFile(path, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("v2"), 0600); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, events); ev.Result.ContentHash != ContentHash("v2") {
		t.Errorf("second anchor hash = %s", ev.Result.ContentHash)
	}

	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	if len(pusher.docs) != 2 {
		t.Fatalf("pushed %d documents, want 2", len(pusher.docs))
	}
	doc := pusher.docs[0]
	if doc.ID != "brief-7" || doc.Title != "brief-7.md" || doc.Metadata["source"] != "watch" {
		t.Errorf("unexpected document %+v", doc)
	}
}

type flakySender struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *flakySender) SendDag(ctx context.Context, destination string, amount float64, memo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "dagtx-ok", nil
}

func (f *flakySender) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestDirWatcher_RetriesAfterFailedStage(t *testing.T) {
	dir := t.TempDir()
	sender := &flakySender{err: errors.New("gateway down")}
	w := NewDirWatcher(dir, NewPipeline(nil, sender, "DAG0dest", 1, nil), 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan WatchEvent, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, events) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "brief-9.txt")
	write := func() {
		t.Helper()
		if err := os.WriteFile(path, []byte("same"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	write()
	ev := waitEvent(t, events)
	if ev.Err != nil || ev.Result.Complete || ev.Result.DagTx != "" {
		t.Fatalf("first attempt should report a failed stage, got %+v %+v", ev, ev.Result)
	}

	// Same content after a failure is retried.
	write()
	if ev := waitEvent(t, events); ev.Result.Complete {
		t.Fatalf("gateway still down, got complete result %+v", ev.Result)
	}

	sender.setErr(nil)
	write()
	ev = waitEvent(t, events)
	if !ev.Result.Complete || ev.Result.DagTx != "dagtx-ok" {
		t.Fatalf("expected anchored result, got %+v", ev.Result)
	}

	// Now anchored: identical content is skipped.
	write()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.calls != 3 {
		t.Errorf("gateway called %d times, want 3", sender.calls)
	}
}

func TestDirWatcher_MissingDir(t *testing.T) {
	w := NewDirWatcher(filepath.Join(t.TempDir(), "missing"), &recordingPusher{}, 0, nil)
	if err := w.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
