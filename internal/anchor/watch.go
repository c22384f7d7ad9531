package anchor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hakichain/hakichain/internal/logging"
)

// DefaultSettle is how long a file must go unmodified before it is anchored.
const DefaultSettle = 2 * time.Second

// Pusher anchors one document. *Pipeline implements it.
type Pusher interface {
	PushDocument(ctx context.Context, doc Document) (*Result, error)
}

// WatchEvent reports the outcome for one file.
type WatchEvent struct {
	Path   string
	Result *Result
	Err    error
}

// DirWatcher anchors files written into a directory. Each file becomes a
// document whose id is its base name without extension. Rewriting a file
// with identical content does not anchor it again once every configured
// stage succeeded for that content; after a failed stage the next write
// retries.
type DirWatcher struct {
	dir    string
	pusher Pusher
	settle time.Duration
	meta   map[string]interface{}

	anchored map[string]string // path -> content hash
}

func NewDirWatcher(dir string, pusher Pusher, settle time.Duration, meta map[string]interface{}) *DirWatcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &DirWatcher{
		dir:      dir,
		pusher:   pusher,
		settle:   settle,
		meta:     meta,
		anchored: make(map[string]string),
	}
}

// Run watches until ctx is done, sending one WatchEvent per anchoring
// attempt to events (which may be nil). Files already present when Run
// starts are not anchored.
func (w *DirWatcher) Run(ctx context.Context, events chan<- WatchEvent) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	log := logging.With(logging.Component("anchor-watch"), "dir", w.dir)
	log.Info("watching for documents")

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", logging.Err(err))

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				ev, ok := w.anchorFile(ctx, path)
				if !ok {
					continue
				}
				if events != nil {
					select {
					case events <- ev:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}

// anchorFile reports false when the file is gone, is a directory or its
// content was already anchored completely.
func (w *DirWatcher) anchorFile(ctx context.Context, path string) (WatchEvent, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return WatchEvent{}, false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return WatchEvent{Path: path, Err: fmt.Errorf("failed to read document: %w", err)}, true
	}
	hash := ContentHash(string(content))
	if w.anchored[path] == hash {
		return WatchEvent{}, false
	}

	base := filepath.Base(path)
	res, err := w.pusher.PushDocument(ctx, Document{
		ID:          strings.TrimSuffix(base, filepath.Ext(base)),
		Title:       base,
		ContentHash: hash,
		Metadata:    w.meta,
	})
	if err == nil && res != nil && res.Complete {
		w.anchored[path] = hash
	}
	return WatchEvent{Path: path, Result: res, Err: err}, true
}
