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
	defaultChatModel   = "gpt-4o-mini"
	defaultChatTimeout = 60 * time.Second
)

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIChat implements ChatPort against the OpenAI (or OpenAI-compatible)
// chat completions API.
type OpenAIChat struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAIChat creates an OpenAIChat client.
func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultChatModel
	}
	return &OpenAIChat{
		client:  &http.Client{Timeout: defaultChatTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

// Complete implements ChatPort.
func (c *OpenAIChat) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", sgerrors.New(sgerrors.ConfigMissing, "OPENAI_API_KEY is not set", nil).
			WithSuggestion("set openaiApiKey in config or the OPENAI_API_KEY environment variable")
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", sgerrors.New(sgerrors.EmbedderFailure, "failed to reach chat completions endpoint", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to decode chat response (status %d): %s", resp.StatusCode, string(raw))
	}
	if result.Error != nil {
		return "", fmt.Errorf("chat completion error: %s", result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions returned status %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}
