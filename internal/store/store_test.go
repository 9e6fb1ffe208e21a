package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/searchgrep/searchgrep/internal/clock"
	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

type stubEmbedder struct {
	dims  int
	calls int
}

func (s *stubEmbedder) Dimensions() int { return s.dims }

func (s *stubEmbedder) EmbedDocs(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, s.dims)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *stubEmbedder) {
	t.Helper()
	dir := t.TempDir()
	emb := &stubEmbedder{dims: 4}
	st, err := Open(dir, "idx", emb, clock.Fixed(1000))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return st, emb
}

func TestUpsertFile_CreatesDocument(t *testing.T) {
	st, _ := newTestStore(t)
	content := "func main() {\n\tprintln(1)\n}\n"

	if err := st.UpsertFile(context.Background(), "main.go", content, "xxh64:abc", 100, 1000); err != nil {
		t.Fatalf("UpsertFile() failed: %v", err)
	}

	files := st.ListFiles()
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Path != "main.go" {
		t.Errorf("Path = %q, want main.go", files[0].Path)
	}
}

func TestUpsertFile_NoOpOnEqualHash(t *testing.T) {
	st, emb := newTestStore(t)
	content := "package main\n"

	if err := st.UpsertFile(context.Background(), "a.go", content, "xxh64:same", 10, 1); err != nil {
		t.Fatalf("first UpsertFile() failed: %v", err)
	}
	callsAfterFirst := emb.calls

	if err := st.UpsertFile(context.Background(), "a.go", content, "xxh64:same", 10, 1); err != nil {
		t.Fatalf("second UpsertFile() failed: %v", err)
	}
	if emb.calls != callsAfterFirst {
		t.Errorf("expected no new embed calls on no-op upsert, calls went from %d to %d", callsAfterFirst, emb.calls)
	}
}

func TestUpsertFile_ReplacesOnHashChange(t *testing.T) {
	st, _ := newTestStore(t)

	if err := st.UpsertFile(context.Background(), "a.go", "v1", "xxh64:v1", 2, 1); err != nil {
		t.Fatalf("first UpsertFile() failed: %v", err)
	}
	if err := st.UpsertFile(context.Background(), "a.go", "v2 content", "xxh64:v2", 10, 2); err != nil {
		t.Fatalf("second UpsertFile() failed: %v", err)
	}

	files := st.ListFiles()
	if len(files) != 1 {
		t.Fatalf("expected 1 file after replace, got %d", len(files))
	}
	if files[0].Hash != "xxh64:v2" {
		t.Errorf("Hash = %q, want xxh64:v2", files[0].Hash)
	}
}

func TestUpsertFile_PathsUnique(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	_ = st.UpsertFile(ctx, "x.go", "one", "xxh64:1", 1, 1)
	_ = st.UpsertFile(ctx, "x.go", "two", "xxh64:2", 2, 2)

	docs := st.Documents()
	count := 0
	for _, d := range docs {
		if d.Path == "x.go" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 document for path x.go, got %d", count)
	}
}

type mismatchEmbedder struct {
	dims    int
	badDims int
}

func (m *mismatchEmbedder) Dimensions() int { return m.dims }

func (m *mismatchEmbedder) EmbedDocs(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, m.badDims)
	}
	return out, nil
}

func TestUpsertFile_RejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	emb := &mismatchEmbedder{dims: 4, badDims: 8}
	st, err := Open(dir, "idx", emb, clock.Fixed(1000))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	err = st.UpsertFile(context.Background(), "a.go", "package main\n", "xxh64:1", 10, 1)
	if err == nil {
		t.Fatal("expected UpsertFile() to fail on an embedding dimension mismatch")
	}
	if sgerrors.KindOf(err) != sgerrors.EmbedderFailure {
		t.Errorf("expected EmbedderFailure, got %v", sgerrors.KindOf(err))
	}
	if len(st.ListFiles()) != 0 {
		t.Error("expected no document to be stored after a rejected dimension mismatch")
	}
}

func TestDeleteFile_RemovesDocument(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	_ = st.UpsertFile(ctx, "y.go", "content", "xxh64:1", 1, 1)

	if err := st.DeleteFile("y.go"); err != nil {
		t.Fatalf("DeleteFile() failed: %v", err)
	}
	if len(st.ListFiles()) != 0 {
		t.Error("expected no files after delete")
	}
}

func TestDeleteFile_MissingPathIsNoOp(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.DeleteFile("nonexistent.go"); err != nil {
		t.Errorf("DeleteFile() on missing path should not error: %v", err)
	}
}

func TestGetInfo_ReflectsContents(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	_ = st.UpsertFile(ctx, "a.go", "aaaa", "xxh64:1", 4, 1)
	_ = st.UpsertFile(ctx, "b.go", "bbbb", "xxh64:2", 4, 1)

	info := st.GetInfo()
	if info.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", info.FileCount)
	}
	if info.TotalSize != 8 {
		t.Errorf("TotalSize = %d, want 8", info.TotalSize)
	}
}

func TestClear_RemovesPersistedFileAndResetsState(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	_ = st.UpsertFile(ctx, "a.go", "content", "xxh64:1", 1, 1)

	if _, err := os.Stat(st.Path()); err != nil {
		t.Fatalf("expected store file to exist before Clear(): %v", err)
	}

	if err := st.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, err := os.Stat(st.Path()); !os.IsNotExist(err) {
		t.Error("expected store file removed after Clear()")
	}
	if len(st.ListFiles()) != 0 {
		t.Error("expected no files after Clear()")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	emb := &stubEmbedder{dims: 4}

	st1, err := Open(dir, "idx", emb, clock.Fixed(1000))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st1.UpsertFile(context.Background(), "a.go", "content", "xxh64:1", 7, 1); err != nil {
		t.Fatalf("UpsertFile() failed: %v", err)
	}

	st2, err := Open(dir, "idx", emb, clock.Fixed(2000))
	if err != nil {
		t.Fatalf("reopen Open() failed: %v", err)
	}
	files := st2.ListFiles()
	if len(files) != 1 || files[0].Path != "a.go" {
		t.Fatalf("expected reopened store to contain a.go, got %v", files)
	}
}

func TestOpen_RejectsNewerSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.json")
	future := `{"schemaVersion": 999, "documents": {}, "metadata": {"name":"idx","created":1,"updated":1}}`
	if err := os.WriteFile(path, []byte(future), 0644); err != nil {
		t.Fatalf("failed to seed future-schema file: %v", err)
	}

	_, err := Open(dir, "idx", &stubEmbedder{dims: 4}, clock.Fixed(1000))
	if err == nil {
		t.Fatal("expected Open() to fail on a newer schema version")
	}
	if sgerrors.KindOf(err) != sgerrors.StoreCorrupt {
		t.Errorf("expected StoreCorrupt, got %v", sgerrors.KindOf(err))
	}
}

func TestOpen_RejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("failed to seed invalid file: %v", err)
	}

	_, err := Open(dir, "idx", &stubEmbedder{dims: 4}, clock.Fixed(1000))
	if sgerrors.KindOf(err) != sgerrors.StoreCorrupt {
		t.Errorf("expected StoreCorrupt, got %v", sgerrors.KindOf(err))
	}
}

func TestMetadataUpdated_MonotonicallyNonDecreasing(t *testing.T) {
	dir := t.TempDir()
	emb := &stubEmbedder{dims: 4}
	st, err := Open(dir, "idx", emb, clock.Fixed(1000))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	_ = st.UpsertFile(context.Background(), "a.go", "a", "xxh64:1", 1, 1)
	first := st.GetInfo().LastUpdated

	_ = st.UpsertFile(context.Background(), "b.go", "b", "xxh64:2", 1, 1)
	second := st.GetInfo().LastUpdated

	if second < first {
		t.Errorf("metadata.updated went backwards: %d then %d", first, second)
	}
}
