// Package embed implements the EmbedderPort capability (spec component
// C4): dense text → vector, with a remote (OpenAI-compatible) and a
// local (Ollama-compatible) implementation behind a single interface.
package embed

import (
	"context"
	"math"
	"strings"
)

// Kind distinguishes how a text is being embedded: as a stored document
// or as an incoming query. Some providers use different instruction
// prefixes for the two.
type Kind int

const (
	KindDoc Kind = iota
	KindQuery
)

func (k Kind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "doc"
}

// MaxInputChars is the per-text truncation applied before any embed call
// (spec.md §4.4).
const MaxInputChars = 8000

// Port is the EmbedderPort capability: embed(texts, kind) → vectors.
// Factory constructs each implementation at most once (sync.Once).
// Implementations are batch-aware; output[i] corresponds to input[i], with no further
// ordering requirement. All vectors returned from a single call share a
// dimensionality.
type Port interface {
	Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error)
	Dimensions() int
}

// ChatPort is the optional collaborator used by the Answerer.
type ChatPort interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// DocEmbedder narrows a Port to the doc-kind-only shape the VectorStore
// needs, so internal/store can depend on a tiny interface of its own
// instead of importing this package's Kind type.
type DocEmbedder struct {
	Port Port
}

// EmbedDocs embeds texts with kind=doc.
func (d DocEmbedder) EmbedDocs(ctx context.Context, texts []string) ([][]float32, error) {
	return d.Port.Embed(ctx, texts, KindDoc)
}

// Dimensions delegates to the wrapped Port.
func (d DocEmbedder) Dimensions() int {
	return d.Port.Dimensions()
}

// Truncate truncates each text to MaxInputChars runes.
func Truncate(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = truncateOne(t)
	}
	return out
}

func truncateOne(s string) string {
	r := []rune(s)
	if len(r) <= MaxInputChars {
		return s
	}
	return string(r[:MaxInputChars])
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
