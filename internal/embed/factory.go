package embed

import (
	"strings"
	"sync"

	"github.com/searchgrep/searchgrep/internal/config"
	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

// Factory lazily constructs the Port (and, for the openai provider,
// ChatPort) named by config, initializing each at most once and caching
// the result for the process lifetime.
type Factory struct {
	cfg *config.Config

	embedOnce sync.Once
	embed     Port
	embedErr  error

	chatOnce sync.Once
	chat     ChatPort
	chatErr  error
}

// NewFactory returns a Factory bound to cfg.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// Embedder returns the provider-selected Port, constructing it on first
// call and memoizing it (and any construction error) thereafter.
func (f *Factory) Embedder() (Port, error) {
	f.embedOnce.Do(func() {
		switch strings.ToLower(f.cfg.EmbeddingProvider) {
		case "local":
			f.embed = NewLocalEmbedder(f.cfg.LocalEmbeddingURL, f.cfg.EmbeddingModel, 0)
		case "openai":
			if f.cfg.OpenAIAPIKey == "" {
				f.embedErr = sgerrors.New(sgerrors.ConfigMissing,
					"embeddingProvider is 'openai' but no API key is configured", nil).
					WithSuggestion("set openaiApiKey in config or the OPENAI_API_KEY environment variable")
				return
			}
			f.embed = NewOpenAIEmbedder(f.cfg.OpenAIAPIKey, f.cfg.BaseURL, f.cfg.EmbeddingModel)
		default:
			f.embedErr = sgerrors.New(sgerrors.ConfigMissing,
				"unknown embeddingProvider: "+f.cfg.EmbeddingProvider, nil)
		}
	})
	return f.embed, f.embedErr
}

// Chat returns the ChatPort used by the Answerer, or (nil, nil) when no
// chat-capable provider is configured. Only the openai provider currently
// has a chat-completions counterpart; local-only configurations leave
// chat nil, and the Answerer surfaces that as NotConfigured.
func (f *Factory) Chat() (ChatPort, error) {
	f.chatOnce.Do(func() {
		if strings.ToLower(f.cfg.EmbeddingProvider) != "openai" || f.cfg.OpenAIAPIKey == "" {
			return
		}
		f.chat = NewOpenAIChat(f.cfg.OpenAIAPIKey, f.cfg.BaseURL, defaultChatModel)
	})
	return f.chat, f.chatErr
}
