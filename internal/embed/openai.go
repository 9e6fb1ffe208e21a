package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAITimeout   = 30 * time.Second
	defaultOpenAIDimension = 1536 // text-embedding-3-small
)

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIEmbedder calls OpenAI's (or an OpenAI-compatible) embeddings API.
type OpenAIEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dims    int
}

// NewOpenAIEmbedder creates an OpenAIEmbedder. apiKey is required; callers
// should surface ConfigMissing before constructing one without it.
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIEmbedder{
		client:  &http.Client{Timeout: defaultOpenAITimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    defaultOpenAIDimension,
	}
}

// Dimensions returns the embedding dimension used by this embedder.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// Embed implements Port. kind is accepted for interface symmetry;
// OpenAI's embeddings API draws no doc/query distinction.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, sgerrors.New(sgerrors.ConfigMissing, "OPENAI_API_KEY is not set", nil).
			WithSuggestion("set openaiApiKey in config or the OPENAI_API_KEY environment variable")
	}
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

	embeddings, err := e.doEmbed(ctx, pendingTexts)
	if err != nil {
		return nil, sgerrors.New(sgerrors.EmbedderFailure, "OpenAI embedding request failed", err)
	}
	if len(embeddings) != len(pendingTexts) {
		return nil, sgerrors.New(sgerrors.EmbedderFailure,
			fmt.Sprintf("expected %d embeddings, got %d", len(pendingTexts), len(embeddings)), nil)
	}
	for i, idx := range pending {
		results[idx] = embeddings[i]
		if len(embeddings[i]) > 0 {
			e.dims = len(embeddings[i])
		}
	}
	return results, nil
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach OpenAI: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to decode response (status %d): %s", resp.StatusCode, string(body))
	}
	if result.Error != nil {
		return nil, fmt.Errorf("OpenAI error: %s", result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI returned status %d", resp.StatusCode)
	}

	embeddings := make([][]float32, len(result.Data))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			continue
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}
