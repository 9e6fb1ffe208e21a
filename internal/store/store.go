package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/searchgrep/searchgrep/internal/chunk"
	"github.com/searchgrep/searchgrep/internal/clock"
	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

// Embedder is the subset of embed.Port the store needs, kept narrow so
// this package doesn't import embed directly. kind is always "doc" at
// this call site; the type lives in embed to avoid a dependency cycle.
type Embedder interface {
	Dimensions() int
	EmbedDocs(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the VectorStore: a durable, single-writer JSON document store
// owned by exactly one process at a time (spec.md §4.5/§5).
type Store struct {
	dataDir string
	name    string
	path    string
	clock   clock.Clock
	embed   Embedder

	mu   sync.RWMutex // serializes in-process access
	lock *FileLock    // serializes cross-process access
	data persistedStore
}

// Open loads (or initializes) the store named name under dataDir. The
// store file is not required to exist yet; the first persist creates it.
func Open(dataDir, name string, embed Embedder, c clock.Clock) (*Store, error) {
	if c == nil {
		c = clock.System{}
	}
	s := &Store{
		dataDir: dataDir,
		name:    name,
		path:    filepath.Join(dataDir, name+".json"),
		clock:   c,
		embed:   embed,
		lock:    NewFileLock(dataDir, name),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		now := s.clock.Now()
		s.data = persistedStore{
			SchemaVersion: schemaVersion,
			Documents:     make(map[string]*Document),
			Metadata:      Metadata{Name: s.name, Created: now, Updated: now},
		}
		return nil
	}
	if err != nil {
		return sgerrors.New(sgerrors.StoreIOFailure, "failed to read store file", err)
	}

	var parsed persistedStore
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return sgerrors.New(sgerrors.StoreCorrupt, "store file is not valid JSON", err)
	}
	if parsed.SchemaVersion > schemaVersion {
		return sgerrors.New(sgerrors.StoreCorrupt,
			fmt.Sprintf("store file schema version %d is newer than supported version %d",
				parsed.SchemaVersion, schemaVersion), nil)
	}
	if parsed.Documents == nil {
		parsed.Documents = make(map[string]*Document)
	}
	s.data = parsed
	return nil
}

// persist writes the store atomically: a temp file is written and
// renamed over the target, so a crash mid-write never leaves a partial
// file at s.path. Callers must hold s.mu for writing and s.lock.
func (s *Store) persist() error {
	s.data.Metadata.Updated = s.clock.Now()
	s.data.SchemaVersion = schemaVersion

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return sgerrors.New(sgerrors.StoreIOFailure, "failed to marshal store", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return sgerrors.New(sgerrors.StoreIOFailure, "failed to create data directory", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0644); err != nil {
		return sgerrors.New(sgerrors.StoreIOFailure, "failed to write store file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return sgerrors.New(sgerrors.StoreIOFailure, "failed to rename store file into place", err)
	}
	return nil
}

// withWriteLock runs fn with the in-process write lock and the
// cross-process file lock both held, so two goroutines in this process
// and two processes on the same machine never interleave mutations.
func (s *Store) withWriteLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return sgerrors.New(sgerrors.StoreIOFailure, "failed to acquire store lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func normalizePath(path string) string {
	return filepath.ToSlash(path)
}

// UpsertFile replaces (or creates) the Document for path. If an existing
// Document has the same hash, this is a no-op. The hash check, chunking,
// embedding, and persist all run while the write lock is held, so the
// whole read-modify-write is atomic w.r.t. other writers.
func (s *Store) UpsertFile(ctx context.Context, path, content, hash string, size, mtime int64) error {
	path = normalizePath(path)

	return s.withWriteLock(func() error {
		if existing, ok := s.data.Documents[path]; ok && existing.Hash == hash {
			return nil
		}

		chunks := chunk.Chunk(content, chunk.DefaultChunkSize, chunk.DefaultOverlap)
		chunkTexts := make([]string, len(chunks))
		for i, c := range chunks {
			chunkTexts[i] = fmt.Sprintf("File: %s\n\n%s", path, c.Content)
		}

		var chunkEmbeddings [][]float32
		if len(chunkTexts) > 0 {
			var err error
			chunkEmbeddings, err = s.embed.EmbedDocs(ctx, chunkTexts)
			if err != nil {
				return err
			}
			if len(chunkEmbeddings) != len(chunkTexts) {
				return sgerrors.New(sgerrors.EmbedderFailure,
					fmt.Sprintf("expected %d chunk embeddings, got %d", len(chunkTexts), len(chunkEmbeddings)), nil)
			}
			for i, e := range chunkEmbeddings {
				if len(e) != s.embed.Dimensions() {
					return sgerrors.New(sgerrors.EmbedderFailure,
						fmt.Sprintf("chunk %d embedding has %d dimensions, store expects %d", i, len(e), s.embed.Dimensions()), nil)
				}
			}
		}

		prefix := content
		if len(prefix) > 2048 {
			prefix = prefix[:2048]
		}
		wholeFileText := fmt.Sprintf("File: %s\n\n%s", path, prefix)
		wholeFileEmbedding, err := s.embed.EmbedDocs(ctx, []string{wholeFileText})
		if err != nil {
			return err
		}
		if len(wholeFileEmbedding) != 1 {
			return sgerrors.New(sgerrors.EmbedderFailure, "expected exactly one whole-file embedding", nil)
		}
		if len(wholeFileEmbedding[0]) != s.embed.Dimensions() {
			return sgerrors.New(sgerrors.EmbedderFailure,
				fmt.Sprintf("whole-file embedding has %d dimensions, store expects %d", len(wholeFileEmbedding[0]), s.embed.Dimensions()), nil)
		}

		docChunks := make([]Chunk, len(chunks))
		for i, c := range chunks {
			docChunks[i] = Chunk{
				Content:   c.Content,
				Embedding: chunkEmbeddings[i],
				LineStart: c.LineStart,
				LineEnd:   c.LineEnd,
			}
		}

		doc := &Document{
			ID:           path + "-" + hash,
			Path:         path,
			Hash:         hash,
			Content:      content,
			Embedding:    wholeFileEmbedding[0],
			LineCount:    strings.Count(content, "\n") + 1,
			Size:         size,
			LastModified: mtime,
			Chunks:       docChunks,
		}
		s.data.Documents[path] = doc

		return s.persist()
	})
}

// DeleteFile removes the Document for path if present.
func (s *Store) DeleteFile(path string) error {
	path = normalizePath(path)
	return s.withWriteLock(func() error {
		if _, ok := s.data.Documents[path]; !ok {
			return nil
		}
		delete(s.data.Documents, path)
		return s.persist()
	})
}

// ListFiles returns a lightweight, embedding-free projection of every
// indexed file, sorted by path for stable output.
func (s *Store) ListFiles() []FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FileMetadata, 0, len(s.data.Documents))
	for _, doc := range s.data.Documents {
		out = append(out, FileMetadata{
			Path:         doc.Path,
			Hash:         doc.Hash,
			Size:         doc.Size,
			LastModified: doc.LastModified,
			LineCount:    doc.LineCount,
			ChunkCount:   len(doc.Chunks),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetInfo summarizes the store's current contents.
func (s *Store) GetInfo() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalSize int64
	for _, doc := range s.data.Documents {
		totalSize += doc.Size
	}
	return Info{
		Name:        s.data.Metadata.Name,
		FileCount:   len(s.data.Documents),
		TotalSize:   totalSize,
		LastUpdated: s.data.Metadata.Updated,
	}
}

// Clear resets the store to empty and removes the persisted file.
func (s *Store) Clear() error {
	return s.withWriteLock(func() error {
		now := s.clock.Now()
		s.data = persistedStore{
			SchemaVersion: schemaVersion,
			Documents:     make(map[string]*Document),
			Metadata:      Metadata{Name: s.name, Created: now, Updated: now},
		}
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return sgerrors.New(sgerrors.StoreIOFailure, "failed to remove store file", err)
		}
		return nil
	})
}

// Documents returns a read-only snapshot of all documents, used by the
// Retriever. The returned slice and its Document pointers must not be
// mutated by callers.
func (s *Store) Documents() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.data.Documents))
	for _, doc := range s.data.Documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Path returns the backing file path for this store.
func (s *Store) Path() string {
	return s.path
}
