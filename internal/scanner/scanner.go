// Package scanner implements the FileWalker: a lazy producer of
// {path, content, size, lastModified} records honoring ignore rules and
// size/count bounds.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/searchgrep/searchgrep/internal/errors"
	"github.com/searchgrep/searchgrep/internal/gitignore"
)

// gitignoreCacheSize bounds the number of per-directory gitignore matchers
// kept in memory at once.
const gitignoreCacheSize = 1000

// DefaultMaxFileSize is used when Options.MaxFileSize is zero.
const DefaultMaxFileSize = 10 * 1024 * 1024

// DefaultMaxFileCount is used when Options.MaxFileCount is zero.
const DefaultMaxFileCount = 10000

// File is one {path, content, size, lastModified} record yielded by Walk.
type File struct {
	Path         string // repo-relative, POSIX-normalized
	Content      string
	Size         int64
	LastModified time.Time
}

// Result is either a File or a non-fatal error (e.g. a permission error on
// a single entry); Walk never aborts the whole scan on a per-file error.
type Result struct {
	File *File
	Err  error
}

// Options configures a single Walk call.
type Options struct {
	RootDir      string
	MaxFileSize  int64
	MaxFileCount int
}

// FileWalker discovers indexable files under a root directory.
type FileWalker struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a FileWalker with a bounded gitignore-matcher cache.
func New() (*FileWalker, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &FileWalker{gitignoreCache: cache}, nil
}

// Walk streams File records for everything under opts.RootDir that isn't
// skipped by the default exclusions, `.gitignore`/`.searchgrepignore`, or
// the size/count bounds. The returned channel is closed when the walk
// completes or ctx is canceled.
func (w *FileWalker) Walk(ctx context.Context, opts Options) (<-chan Result, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	maxFileCount := opts.MaxFileCount
	if maxFileCount <= 0 {
		maxFileCount = DefaultMaxFileCount
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		w.walk(ctx, absRoot, maxFileSize, maxFileCount, results)
	}()
	return results, nil
}

func (w *FileWalker) walk(ctx context.Context, absRoot string, maxFileSize int64, maxFileCount int, results chan<- Result) {
	emitted := 0

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if isDotfile(d.Name()) || isExcludedDir(relPath) {
				return filepath.SkipDir
			}
			if w.isGitignored(relPath, absRoot, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if isDotfile(d.Name()) || isExcludedFile(d.Name(), relPath) {
			return nil
		}
		if w.isGitignored(relPath, absRoot, false) {
			return nil
		}

		if emitted >= maxFileCount {
			emitErr(ctx, results, errors.New(errors.IgnoredFile,
				fmt.Sprintf("maxFileCount (%d) reached, skipping %s", maxFileCount, relPath), nil))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			slog.Debug("skipping oversized file", slog.String("path", relPath), slog.Int64("size", info.Size()))
			emitErr(ctx, results, errors.New(errors.IgnoredFile,
				fmt.Sprintf("file %s exceeds maxFileSize (%d bytes)", relPath, maxFileSize), nil))
			return nil
		}

		if isBinary(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			emitErr(ctx, results, fmt.Errorf("failed to read %s: %w", relPath, err))
			return nil
		}

		emitted++
		select {
		case results <- Result{File: &File{
			Path:         relPath,
			Content:      string(content),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		emitErr(ctx, results, err)
	}
}

func emitErr(ctx context.Context, results chan<- Result, err error) {
	select {
	case results <- Result{Err: err}:
	case <-ctx.Done():
	}
}

func isDotfile(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

var excludedDirs = []string{
	"node_modules", ".git", "vendor", "__pycache__", "dist", "build",
}

func isExcludedDir(relPath string) bool {
	base := filepath.Base(relPath)
	for _, d := range excludedDirs {
		if base == d {
			return true
		}
	}
	return false
}

var lockFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	"Cargo.lock":        true,
	"Gemfile.lock":      true,
	"poetry.lock":       true,
}

func isExcludedFile(baseName, relPath string) bool {
	if lockFiles[baseName] {
		return true
	}
	if strings.HasSuffix(baseName, ".min.js") || strings.HasSuffix(baseName, ".min.css") {
		return true
	}
	return false
}

// isGitignored checks relPath against the nearest-ancestor union of
// `.gitignore`/`.searchgrepignore` matchers, walking from root down.
func (w *FileWalker) isGitignored(relPath, absRoot string, isDir bool) bool {
	dir := absRoot
	segments := strings.Split(filepath.Dir(relPath), "/")

	if m := w.matcherFor(dir); m != nil && m.Match(relPath, isDir) {
		return true
	}

	for _, seg := range segments {
		if seg == "." || seg == "" {
			continue
		}
		dir = filepath.Join(dir, seg)
		if m := w.matcherFor(dir); m != nil && m.Match(relPath, isDir) {
			return true
		}
	}
	return false
}

func (w *FileWalker) matcherFor(dir string) *gitignore.Matcher {
	w.cacheMu.RLock()
	m, ok := w.gitignoreCache.Get(dir)
	w.cacheMu.RUnlock()
	if ok {
		return m
	}

	m, err := gitignore.LoadForDir(dir)
	if err != nil || m.Rules() == 0 {
		m = nil
	}

	w.cacheMu.Lock()
	w.gitignoreCache.Add(dir, m)
	w.cacheMu.Unlock()
	return m
}

// ShouldIgnore reports whether relPath (relative to root) would be
// skipped by Walk: dotfiles, excluded directories, lockfiles, and
// `.gitignore`/`.searchgrepignore` matches. Used by the Watcher so it
// applies the same ignore list as the FileWalker (spec.md §4.8).
func (w *FileWalker) ShouldIgnore(root, relPath string, isDir bool) bool {
	base := filepath.Base(relPath)
	if isDotfile(base) {
		return true
	}
	if isDir {
		if isExcludedDir(relPath) {
			return true
		}
	} else if isExcludedFile(base, relPath) {
		return true
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	return w.isGitignored(filepath.ToSlash(relPath), absRoot, isDir)
}

// InvalidateCache clears the gitignore matcher cache; call after a
// `.gitignore`/`.searchgrepignore` file changes.
func (w *FileWalker) InvalidateCache() {
	w.cacheMu.Lock()
	defer w.cacheMu.Unlock()
	w.gitignoreCache.Purge()
}

func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}
