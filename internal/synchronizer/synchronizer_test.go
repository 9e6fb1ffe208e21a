package synchronizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/searchgrep/searchgrep/internal/clock"
	"github.com/searchgrep/searchgrep/internal/hash"
	"github.com/searchgrep/searchgrep/internal/scanner"
	"github.com/searchgrep/searchgrep/internal/store"
)

type stubEmbedder struct{ dims int }

func (s *stubEmbedder) Dimensions() int { return s.dims }
func (s *stubEmbedder) EmbedDocs(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir(), "idx", &stubEmbedder{dims: 4}, clock.Fixed(1))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	return st
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// TestSync_DiffScenario mirrors the spec's canonical diff scenario:
// local = {x: H1, y: H2}; store = {x: H1, z: H3}.
// Expected: uploaded=1 (y), deleted=1 (z), skipped=1 (x).
func TestSync_DiffScenario(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.go", "package x\n")
	writeFile(t, root, "y.go", "package y\n")

	st := newTestStore(t)
	ctx := context.Background()
	if err := st.UpsertFile(ctx, "x.go", "package x\n", hashOf(t, "package x\n"), 10, 1); err != nil {
		t.Fatalf("seed x.go failed: %v", err)
	}
	if err := st.UpsertFile(ctx, "z.go", "package z\n", hashOf(t, "package z\n"), 10, 1); err != nil {
		t.Fatalf("seed z.go failed: %v", err)
	}

	w, err := scanner.New()
	if err != nil {
		t.Fatalf("scanner.New() failed: %v", err)
	}

	result, err := Sync(ctx, st, w, root, Options{})
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if result.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", result.Uploaded)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
}

func TestSync_IdempotentOnUnchangedTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	st := newTestStore(t)
	w, err := scanner.New()
	if err != nil {
		t.Fatalf("scanner.New() failed: %v", err)
	}
	ctx := context.Background()

	if _, err := Sync(ctx, st, w, root, Options{}); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	result, err := Sync(ctx, st, w, root, Options{})
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if result.Uploaded != 0 || result.Deleted != 0 || result.Skipped != 1 {
		t.Errorf("expected uploaded=0 deleted=0 skipped=1 on unchanged tree, got %+v", result)
	}
}

func TestSync_DryRunReportsWithoutMutating(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	st := newTestStore(t)
	w, err := scanner.New()
	if err != nil {
		t.Fatalf("scanner.New() failed: %v", err)
	}

	result, err := Sync(context.Background(), st, w, root, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if result.Uploaded != 1 {
		t.Errorf("expected dry-run to report uploaded=1, got %d", result.Uploaded)
	}
	if len(st.ListFiles()) != 0 {
		t.Error("dry-run must not mutate the store")
	}
}

func hashOf(t *testing.T, content string) string {
	t.Helper()
	return hash.Hash([]byte(content))
}
