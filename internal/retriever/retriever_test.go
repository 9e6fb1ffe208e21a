package retriever

import (
	"context"
	"math"
	"testing"

	"github.com/searchgrep/searchgrep/internal/clock"
	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/store"
)

type stubEmbedder struct {
	dims    int
	queryFn func(text string) []float32
}

func (s *stubEmbedder) Dimensions() int { return s.dims }

func (s *stubEmbedder) Embed(_ context.Context, texts []string, _ embed.Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if s.queryFn != nil {
			out[i] = s.queryFn(t)
			continue
		}
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

// fixedDocEmbedder satisfies store.Embedder for seeding fixtures: it
// returns the pre-baked vector for a text found in vectors, and a zero
// vector of dims length for any other text.
type fixedDocEmbedder struct {
	dims    int
	vectors map[string][]float32 // keyed by text
}

func (f *fixedDocEmbedder) Dimensions() int { return f.dims }

func (f *fixedDocEmbedder) EmbedDocs(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func TestCosine_ZeroVectorYieldsZero(t *testing.T) {
	if got := cosine(nil, []float32{1, 2, 3}); got != 0 {
		t.Errorf("cosine(nil, v) = %v, want 0", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Errorf("cosine(zero, v) = %v, want 0", got)
	}
}

func TestCosine_DimensionMismatchYieldsZero(t *testing.T) {
	if got := cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("cosine(mismatched dims) = %v, want 0", got)
	}
}

func TestCosine_IdenticalVectorsYieldOne(t *testing.T) {
	v := []float32{1, 2, 3}
	got := cosine(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("cosine(v, v) = %v, want 1", got)
	}
}

func TestTokenize_LowercasesAndDropsShortTokens(t *testing.T) {
	got := tokenize("Hello, World! a bb ccc")
	want := []string{"hello", "world", "bb", "ccc"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenize_EmptyQueryYieldsNoTokens(t *testing.T) {
	if got := tokenize("   "); len(got) != 0 {
		t.Errorf("tokenize(blank) = %v, want empty", got)
	}
}

func TestFuse_TieBreakScenario(t *testing.T) {
	// Chunk A: dense rank 0 (#1), BM25 rank 2 (#3).
	// Chunk B: dense rank 1 (#2), BM25 rank 0 (#1).
	dense := []scored{{index: 0, score: 0.9}, {index: 1, score: 0.8}}
	sparse := []scored{{index: 1, score: 5.0}, {index: 2, score: 4.0}, {index: 0, score: 3.0}}

	fused := fuse(dense, sparse, 60)

	scoreOf := func(idx int) float64 {
		for _, s := range fused {
			if s.index == idx {
				return s.score
			}
		}
		t.Fatalf("index %d missing from fused results", idx)
		return 0
	}

	wantA := 1.0/61.0 + 1.0/63.0
	wantB := 1.0/62.0 + 1.0/61.0

	if math.Abs(scoreOf(0)-wantA) > 1e-9 {
		t.Errorf("A score = %v, want %v", scoreOf(0), wantA)
	}
	if math.Abs(scoreOf(1)-wantB) > 1e-9 {
		t.Errorf("B score = %v, want %v", scoreOf(1), wantB)
	}
	if fused[0].index != 1 {
		t.Errorf("expected B (index 1) to rank first, got index %d", fused[0].index)
	}
}

func TestDedupByPath_KeepsHighestScoringChunkPerPath(t *testing.T) {
	candidates := []candidateChunk{
		{path: "a.go", content: "high"},
		{path: "a.go", content: "low"},
		{path: "b.go", content: "other"},
	}
	fused := []scored{
		{index: 0, score: 0.9},
		{index: 2, score: 0.8},
		{index: 1, score: 0.7},
	}

	results := dedupByPath(fused, candidates, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 unique paths, got %d", len(results))
	}
	for _, r := range results {
		if r.Path == "a.go" && r.ChunkContent != "high" {
			t.Errorf("expected a.go to keep the 0.9-scoring chunk, got %q", r.ChunkContent)
		}
	}
}

func seedStore(t *testing.T, docEmb *fixedDocEmbedder) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir, "idx", docEmb, clock.Fixed(1))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	return st
}

func TestSearch_EmptyStoreYieldsNoResults(t *testing.T) {
	docEmb := &fixedDocEmbedder{dims: 4}
	st := seedStore(t, docEmb)
	r := New(st, &stubEmbedder{dims: 4})

	results, err := r.Search(context.Background(), "anything", 5, Options{Hybrid: true})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from an empty store, got %d", len(results))
	}
}

func TestSearch_FiltersByFileType(t *testing.T) {
	docEmb := &fixedDocEmbedder{dims: 4}
	st := seedStore(t, docEmb)
	ctx := context.Background()

	_ = st.UpsertFile(ctx, "a.go", "func a() {\n\treturn\n}\n", "xxh64:1", 10, 1)
	_ = st.UpsertFile(ctx, "b.py", "def b():\n    return\n", "xxh64:2", 10, 1)

	r := New(st, &stubEmbedder{dims: 4})
	results, err := r.Search(ctx, "return", 10, Options{Hybrid: true, FileTypes: []string{"go"}})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	for _, res := range results {
		if res.Path != "a.go" {
			t.Errorf("expected only .go results, got %q", res.Path)
		}
	}
}

func TestSearch_ResultsUniquePerPathAndBoundedByTopK(t *testing.T) {
	docEmb := &fixedDocEmbedder{dims: 4}
	st := seedStore(t, docEmb)
	ctx := context.Background()

	for _, name := range []string{"a.go", "b.go", "c.go"} {
		content := "func " + name + "() {\n\tdoWork()\n\tdoWork()\n}\n"
		if err := st.UpsertFile(ctx, name, content, "xxh64:"+name, 10, 1); err != nil {
			t.Fatalf("seed UpsertFile(%s) failed: %v", name, err)
		}
	}

	r := New(st, &stubEmbedder{dims: 4})
	results, err := r.Search(ctx, "doWork", 2, Options{Hybrid: true})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) > 2 {
		t.Fatalf("expected at most topK=2 results, got %d", len(results))
	}
	seen := make(map[string]bool)
	for _, res := range results {
		if seen[res.Path] {
			t.Errorf("duplicate path in results: %s", res.Path)
		}
		seen[res.Path] = true
	}
}
