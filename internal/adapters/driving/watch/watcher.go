// Package watch re-ingests documents as they are created or changed under
// a directory. It is a driving adapter: file system events drive the
// ingest service.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is re-ingested.
// Editors often write a file several times in a row.
const DefaultDebounce = 500 * time.Millisecond

// Event reports the outcome of one re-ingest.
type Event struct {
	Path   string
	Result *domain.IngestResult
	Err    error
}

// Watcher re-ingests supported files under a directory as they change.
type Watcher struct {
	ingest   driving.IngestService
	supports func(path string) bool
	opts     domain.IngestOptions
	debounce time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed file is re-ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIngestOptions sets the options used for every re-ingest.
func WithIngestOptions(opts domain.IngestOptions) Option {
	return func(w *Watcher) {
		w.opts = opts
	}
}

// New creates a watcher. supports filters the files worth ingesting; nil
// accepts every file.
func New(ingest driving.IngestService, supports func(path string) bool, opts ...Option) *Watcher {
	w := &Watcher{
		ingest:   ingest,
		supports: supports,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.supports == nil {
		w.supports = func(string) bool { return true }
	}
	return w
}

// Watch starts watching dir and its non-hidden subdirectories. Changed
// files are re-ingested one at a time and reported on the returned
// channel, which is closed when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	if w.ingest == nil {
		return nil, errors.New("ingest service not configured")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := addTree(fsw, dir); err != nil {
		fsw.Close()
		return nil, err
	}

	logger.Info("Watching %s for changes", dir)

	events := make(chan Event)
	go w.loop(ctx, fsw, events)
	return events, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			path, changed := w.handleEvent(fsw, ev)
			if !changed {
				continue
			}
			pending[path] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher: %v", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)

			for _, p := range paths {
				logger.Debug("Re-ingesting %s", p)
				result, err := w.ingest.IngestFile(ctx, p, w.opts)
				select {
				case out <- Event{Path: p, Result: result, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleEvent returns the file to re-ingest for ev, if any. New
// directories are added to the watch list.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) (string, bool) {
	if isHidden(ev.Name) {
		return "", false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// Gone again before we looked.
		return "", false
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) && fsw != nil {
			if err := addTree(fsw, ev.Name); err != nil {
				logger.Warn("watching new directory %s: %v", ev.Name, err)
			}
		}
		return "", false
	}
	if !w.supports(ev.Name) {
		return "", false
	}
	return ev.Name, true
}

// addTree watches root and every non-hidden directory below it.
func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func isHidden(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
