package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

const (
	defaultLocalTimeout    = 30 * time.Second
	defaultLocalMaxRetries = 3
	defaultLocalDimensions = 768
)

// localEmbedRequest mirrors Ollama's /api/embed request body.
type localEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// localEmbedResponse mirrors Ollama's /api/embed response body.
type localEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// LocalEmbedder calls an Ollama-compatible HTTP embedding endpoint.
type LocalEmbedder struct {
	client *http.Client
	host   string
	model  string
	dims   int
}

// NewLocalEmbedder creates a LocalEmbedder against host for model. dims,
// if zero or negative, defaults to 768; it is not updated from the
// vectors the endpoint returns.
func NewLocalEmbedder(host, model string, dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = defaultLocalDimensions
	}
	return &LocalEmbedder{
		client: &http.Client{Timeout: defaultLocalTimeout},
		host:   host,
		model:  model,
		dims:   dims,
	}
}

// Dimensions returns the embedding dimension used by this embedder.
func (e *LocalEmbedder) Dimensions() int {
	return e.dims
}

// Embed implements Port by truncating inputs and POSTing a single batch
// request to the local endpoint, retrying transient failures with
// exponential backoff.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	truncated := Truncate(texts)

	results := make([][]float32, len(truncated))
	var pending []int
	for i, t := range truncated {
		if isBlank(t) {
			results[i] = make([]float32, e.dims)
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	pendingTexts := make([]string, len(pending))
	for i, idx := range pending {
		pendingTexts[i] = truncated[idx]
	}

	embeddings, err := e.embedWithRetry(ctx, pendingTexts)
	if err != nil {
		return nil, sgerrors.New(sgerrors.EmbedderFailure, "local embedder request failed", err)
	}
	if len(embeddings) != len(pendingTexts) {
		return nil, sgerrors.New(sgerrors.EmbedderFailure,
			fmt.Sprintf("expected %d embeddings, got %d", len(pendingTexts), len(embeddings)), nil)
	}
	for i, idx := range pending {
		results[idx] = embeddings[i]
	}
	return results, nil
}

func (e *LocalEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < defaultLocalMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		embeddings, err := e.doEmbed(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		slog.Debug("local embed attempt failed",
			slog.Int("attempt", attempt+1), slog.String("error", err.Error()))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", defaultLocalMaxRetries, lastErr)
}

func (e *LocalEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(localEmbedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach local embedding endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local embedding endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		v := make([]float32, len(emb))
		for j, f := range emb {
			v[j] = float32(f)
		}
		embeddings[i] = normalizeVector(v)
	}
	return embeddings, nil
}
