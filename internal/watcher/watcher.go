// Package watcher implements the live filesystem watcher (Watcher, spec
// component C8): debounced fsnotify events routed into upsert/delete calls.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

// Op identifies the kind of filesystem change observed for a path.
type Op int

const (
	OpAdd Op = iota
	OpChange
	OpUnlink
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileEvent is a single observed filesystem change, post-debounce.
type FileEvent struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Handler receives the debounced, stability-checked events from Watcher.
type Handler interface {
	HandleUpsert(ctx context.Context, path string) error
	HandleDelete(ctx context.Context, path string) error
}

// IgnoreFunc reports whether relPath (POSIX-normalized, relative to the
// watched root) should be ignored — the Watcher is configured with the
// same ignore list as the FileWalker (spec.md §4.8).
type IgnoreFunc func(relPath string, isDir bool) bool

const (
	debounceWindow  = 300 * time.Millisecond
	stabilityWindow = 500 * time.Millisecond
	pollInterval    = 100 * time.Millisecond
)

// Watcher subscribes to a directory tree and, after debouncing and an
// await-write-finish stability check, invokes Handler.HandleUpsert /
// HandleDelete for each settled change.
type Watcher struct {
	root    string
	ignore  IgnoreFunc
	handler Handler

	fsw       *fsnotify.Watcher
	debouncer *Debouncer
}

// New creates a Watcher rooted at root. ignore may be nil (nothing ignored).
func New(root string, ignore IgnoreFunc, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, sgerrors.New(sgerrors.WatcherFailure, "failed to create filesystem watcher", err)
	}
	if ignore == nil {
		ignore = func(string, bool) bool { return false }
	}
	w := &Watcher{
		root:    root,
		ignore:  ignore,
		handler: handler,
		fsw:     fsw,
	}
	w.debouncer = NewDebouncer(debounceWindow, w.onSettled)
	return w, nil
}

// Run watches the tree until ctx is canceled, calling Handler methods for
// every settled change. It blocks until the watcher stops.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()
	defer w.debouncer.Stop()

	if err := w.addTreeWatches(w.root); err != nil {
		return sgerrors.New(sgerrors.WatcherFailure, "failed to add watches", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) addTreeWatches(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rel, err := filepath.Rel(w.root, filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if w.ignore(rel, true) {
			continue
		}
		if err := w.addTreeWatches(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("failed to watch subdirectory", slog.String("dir", rel), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (w *Watcher) handleFsnotifyEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()
	if w.ignore(rel, isDir) {
		return
	}

	if isDir && ev.Op&(fsnotify.Create) != 0 {
		if err := w.addTreeWatches(ev.Name); err != nil {
			slog.Warn("failed to watch new subdirectory", slog.String("dir", rel), slog.String("error", err.Error()))
		}
		return
	}
	if isDir {
		return
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpAdd
	case ev.Op&fsnotify.Write != 0:
		op = OpChange
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpUnlink
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Op: op, Timestamp: time.Now()})
}

// onSettled is invoked by the debouncer once an event's 300ms window has
// elapsed; it performs the await-write-finish stability check before
// dispatching to the handler.
func (w *Watcher) onSettled(ev FileEvent) {
	ctx := context.Background()

	if ev.Op == OpUnlink {
		if err := w.handler.HandleDelete(ctx, ev.Path); err != nil {
			slog.Error("delete handler failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		}
		return
	}

	full := filepath.Join(w.root, ev.Path)
	if !awaitWriteFinish(full) {
		slog.Warn("file did not stabilize before timeout, skipping", slog.String("path", ev.Path))
		return
	}
	if err := w.handler.HandleUpsert(ctx, ev.Path); err != nil {
		slog.Error("upsert handler failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
	}
}

// awaitWriteFinish polls the file's size until it is stable across
// consecutive polls for at least stabilityWindow, or gives up.
func awaitWriteFinish(path string) bool {
	deadline := time.Now().Add(2 * stabilityWindow)
	var lastSize int64 = -1
	var stableSince time.Time

	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return false
			}
			return false
		}
		if info.Size() == lastSize {
			if stableSince.IsZero() {
				stableSince = time.Now()
			}
			if time.Since(stableSince) >= stabilityWindow {
				return true
			}
		} else {
			lastSize = info.Size()
			stableSince = time.Time{}
		}
		time.Sleep(pollInterval)
	}
	return false
}
