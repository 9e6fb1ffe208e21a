// Package retriever implements the Retriever capability (spec component
// C6): hybrid dense+sparse chunk search with reciprocal rank fusion.
// The Answerer used by `ask` lives in internal/answer.
package retriever

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/store"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	rrfK        = 60
	minTokenLen = 2
)

// Options controls a single search call.
type Options struct {
	Hybrid    bool
	FileTypes []string // extensions, leading dot optional, case-insensitive; empty = all
}

// Result is one ranked chunk.
type Result struct {
	Path            string
	Score           float64
	ChunkContent    string
	LineStart       int
	LineEnd         int
	ParentContent   string
	ParentAvailable bool
}

// Retriever answers search queries against a Store snapshot.
type Retriever struct {
	store    *store.Store
	embedder embed.Port
}

// New returns a Retriever reading from st and embedding queries with e.
func New(st *store.Store, e embed.Port) *Retriever {
	return &Retriever{store: st, embedder: e}
}

type candidateChunk struct {
	path      string
	lineStart int
	lineEnd   int
	content   string
	embedding []float32
	parent    string
	tokens    []string
}

// Search implements the spec.md §4.6 pipeline: filter, dense score, BM25
// score (if hybrid), fuse via RRF, dedup per path, truncate to topK.
func (r *Retriever) Search(ctx context.Context, query string, topK int, opts Options) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}

	docs := r.store.Documents()
	candidates := filterAndFlatten(docs, opts.FileTypes)
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVecs, err := r.embedder.Embed(ctx, []string{query}, embed.KindQuery)
	if err != nil {
		return nil, err
	}
	var queryVec []float32
	if len(queryVecs) > 0 {
		queryVec = queryVecs[0]
	}

	dense := denseScore(candidates, queryVec, 3*topK)

	var sparse []scored
	if opts.Hybrid {
		sparse = bm25Score(candidates, query, 3*topK)
	}

	fused := fuse(dense, sparse, rrfK)

	results := dedupByPath(fused, candidates, 2*topK)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func filterAndFlatten(docs []*store.Document, fileTypes []string) []candidateChunk {
	allowed := normalizeExtensions(fileTypes)

	var out []candidateChunk
	for _, doc := range docs {
		if len(allowed) > 0 && !allowed[strings.ToLower(extOf(doc.Path))] {
			continue
		}
		for _, c := range doc.Chunks {
			out = append(out, candidateChunk{
				path:      doc.Path,
				lineStart: c.LineStart,
				lineEnd:   c.LineEnd,
				content:   c.Content,
				embedding: c.Embedding,
				parent:    doc.Content,
				tokens:    tokenize(c.Content),
			})
		}
	}
	return out
}

func normalizeExtensions(fileTypes []string) map[string]bool {
	if len(fileTypes) == 0 {
		return nil
	}
	out := make(map[string]bool, len(fileTypes))
	for _, ft := range fileTypes {
		ft = strings.ToLower(strings.TrimPrefix(ft, "."))
		out["."+ft] = true
	}
	return out
}

func extOf(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return path[i:]
}

type scored struct {
	index int // index into the candidates slice
	score float64
}

func denseScore(candidates []candidateChunk, query []float32, keep int) []scored {
	out := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, scored{index: i, score: cosine(query, c.embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > keep {
		out = out[:keep]
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var tokenSplitPattern = regexp.MustCompile(`[^\w\s]`)

func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := tokenSplitPattern.ReplaceAllString(lowered, " ")
	fields := strings.Fields(cleaned)

	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

func bm25Score(candidates []candidateChunk, query string, keep int) []scored {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	n := len(candidates)
	if n == 0 {
		return nil
	}

	df := make(map[string]int)
	var totalLen int
	for _, c := range candidates {
		totalLen += len(c.tokens)
		seen := make(map[string]bool)
		for _, t := range c.tokens {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	avgDocLength := float64(totalLen) / float64(n)

	idf := make(map[string]float64, len(queryTokens))
	for _, t := range queryTokens {
		d := df[t]
		idf[t] = math.Log((float64(n)-float64(d)+0.5)/(float64(d)+0.5) + 1)
	}

	out := make([]scored, 0, n)
	for i, c := range candidates {
		tf := make(map[string]int)
		for _, t := range c.tokens {
			tf[t]++
		}
		docLen := float64(len(c.tokens))

		var score float64
		for _, t := range queryTokens {
			termFreq := float64(tf[t])
			if termFreq == 0 {
				continue
			}
			numerator := termFreq * (bm25K1 + 1)
			denominator := termFreq + bm25K1*(1-bm25B+bm25B*docLen/avgDocLength)
			score += idf[t] * numerator / denominator
		}
		out = append(out, scored{index: i, score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > keep {
		out = out[:keep]
	}
	return out
}

// fuse applies reciprocal rank fusion: Σ 1/(k+rank+1) per list, summed
// across lists that contain the candidate, rank is 0-based. Candidate
// order is the order each index is first seen (dense list, then sparse),
// so ties resolve deterministically under the stable sort below rather
// than depending on map iteration order.
func fuse(dense, sparse []scored, k int) []scored {
	acc := make(map[int]float64)
	var order []int
	addList := func(list []scored) {
		for rank, s := range list {
			if _, ok := acc[s.index]; !ok {
				order = append(order, s.index)
			}
			acc[s.index] += 1.0 / float64(k+rank+1)
		}
	}
	addList(dense)
	addList(sparse)

	out := make([]scored, 0, len(order))
	for _, idx := range order {
		out = append(out, scored{index: idx, score: acc[idx]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func dedupByPath(fused []scored, candidates []candidateChunk, maxPaths int) []Result {
	seen := make(map[string]bool)
	var out []Result
	for _, s := range fused {
		c := candidates[s.index]
		if seen[c.path] {
			continue
		}
		seen[c.path] = true
		out = append(out, Result{
			Path:            c.path,
			Score:           s.score,
			ChunkContent:    c.content,
			LineStart:       c.lineStart,
			LineEnd:         c.lineEnd,
			ParentContent:   c.parent,
			ParentAvailable: true,
		})
		if len(seen) >= maxPaths {
			break
		}
	}
	return out
}
