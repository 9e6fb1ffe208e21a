// Package synchronizer implements the Synchronizer capability (spec
// component C7): a three-way diff between the local tree and the
// VectorStore, applied with bounded-concurrency fan-out.
package synchronizer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/searchgrep/searchgrep/internal/hash"
	"github.com/searchgrep/searchgrep/internal/scanner"
	"github.com/searchgrep/searchgrep/internal/store"
)

// DefaultConcurrency is the default fan-out width for upload/embed calls.
const DefaultConcurrency = 10

// Progress describes a single phase transition, passed to the optional
// onProgress callback.
type Progress struct {
	Phase     string // "scanning" | "comparing" | "uploading" | "deleting" | "done"
	Completed int
	Total     int
}

// Options controls a sync run.
type Options struct {
	DryRun      bool
	Concurrency int
	OnProgress  func(Progress)
}

// Result is the outcome of a sync run.
type Result struct {
	Uploaded   int
	Deleted    int
	Skipped    int
	Errors     []FileError
	DurationMs int64
}

// FileError records a per-file failure; sync never aborts on these.
type FileError struct {
	Path string
	Err  error
}

type localFile struct {
	path    string
	content string
	size    int64
	mtime   int64
	hash    string
}

// Sync walks root via w, diffs against st, and applies the diff. Per-file
// failures are captured in Result.Errors and never abort the run.
func Sync(ctx context.Context, st *store.Store, w *scanner.FileWalker, root string, opts Options) (Result, error) {
	start := time.Now()
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	report := func(p Progress) {
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}

	report(Progress{Phase: "scanning"})
	local, err := scanLocal(ctx, w, root)
	if err != nil {
		return Result{}, err
	}

	report(Progress{Phase: "comparing"})
	indexed := st.ListFiles()
	indexedHash := make(map[string]string, len(indexed))
	for _, f := range indexed {
		indexedHash[f.Path] = f.Hash
	}

	var toUpload []localFile
	var skipped int
	localPaths := make(map[string]bool, len(local))
	for _, f := range local {
		localPaths[f.path] = true
		if h, ok := indexedHash[f.path]; ok && h == f.hash {
			skipped++
			continue
		}
		toUpload = append(toUpload, f)
	}

	var toDelete []string
	for path := range indexedHash {
		if !localPaths[path] {
			toDelete = append(toDelete, path)
		}
	}

	result := Result{Skipped: skipped}

	report(Progress{Phase: "uploading", Total: len(toUpload)})
	if !opts.DryRun {
		uploaded, errs := uploadAll(ctx, st, toUpload, opts.Concurrency)
		result.Uploaded = uploaded
		result.Errors = append(result.Errors, errs...)
	} else {
		result.Uploaded = len(toUpload)
	}

	report(Progress{Phase: "deleting", Total: len(toDelete)})
	if !opts.DryRun {
		deleted, errs := deleteAll(st, toDelete)
		result.Deleted = deleted
		result.Errors = append(result.Errors, errs...)
	} else {
		result.Deleted = len(toDelete)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	report(Progress{Phase: "done"})
	return result, nil
}

func scanLocal(ctx context.Context, w *scanner.FileWalker, root string) ([]localFile, error) {
	results, err := w.Walk(ctx, scanner.Options{RootDir: root})
	if err != nil {
		return nil, err
	}

	var out []localFile
	for res := range results {
		if res.Err != nil || res.File == nil {
			continue
		}
		out = append(out, localFile{
			path:    res.File.Path,
			content: res.File.Content,
			size:    res.File.Size,
			mtime:   res.File.LastModified.UnixMilli(),
			hash:    hash.Hash([]byte(res.File.Content)),
		})
	}
	return out, nil
}

func uploadAll(ctx context.Context, st *store.Store, files []localFile, concurrency int) (int, []FileError) {
	var mu sync.Mutex
	var uploaded int
	var errs []FileError

	g := &errgroup.Group{}
	g.SetLimit(concurrency)

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := st.UpsertFile(ctx, f.path, f.content, f.hash, f.size, f.mtime); err != nil {
				mu.Lock()
				errs = append(errs, FileError{Path: f.path, Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			uploaded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return uploaded, errs
}

func deleteAll(st *store.Store, paths []string) (int, []FileError) {
	var deleted int
	var errs []FileError
	for _, p := range paths {
		if err := st.DeleteFile(p); err != nil {
			errs = append(errs, FileError{Path: p, Err: err})
			continue
		}
		deleted++
	}
	return deleted, errs
}
