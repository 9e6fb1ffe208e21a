package embed

import (
	"testing"

	"github.com/searchgrep/searchgrep/internal/config"
	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
)

func TestFactory_Embedder_LocalProvider(t *testing.T) {
	cfg := config.New()
	cfg.EmbeddingProvider = "local"
	cfg.LocalEmbeddingURL = "http://localhost:11434"

	f := NewFactory(cfg)
	e, err := f.Embedder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := e.(*LocalEmbedder); !ok {
		t.Errorf("expected *LocalEmbedder, got %T", e)
	}

	e2, _ := f.Embedder()
	if e2 != e {
		t.Error("expected Embedder() to memoize the same instance")
	}
}

func TestFactory_Embedder_OpenAIWithoutKeyFails(t *testing.T) {
	cfg := config.New()
	cfg.EmbeddingProvider = "openai"
	cfg.OpenAIAPIKey = ""

	f := NewFactory(cfg)
	_, err := f.Embedder()
	if sgerrors.KindOf(err) != sgerrors.ConfigMissing {
		t.Fatalf("expected ConfigMissing, got %v", err)
	}
}

func TestFactory_Embedder_UnknownProviderFails(t *testing.T) {
	cfg := config.New()
	cfg.EmbeddingProvider = "carrier-pigeon"

	f := NewFactory(cfg)
	_, err := f.Embedder()
	if sgerrors.KindOf(err) != sgerrors.ConfigMissing {
		t.Fatalf("expected ConfigMissing, got %v", err)
	}
}

func TestFactory_Chat_NilWithoutOpenAIProvider(t *testing.T) {
	cfg := config.New()
	cfg.EmbeddingProvider = "local"

	f := NewFactory(cfg)
	chat, err := f.Chat()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat != nil {
		t.Error("expected a nil ChatPort for a non-openai provider")
	}
}

func TestFactory_Chat_OpenAIWithKey(t *testing.T) {
	cfg := config.New()
	cfg.EmbeddingProvider = "openai"
	cfg.OpenAIAPIKey = "sk-test"

	f := NewFactory(cfg)
	chat, err := f.Chat()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat == nil {
		t.Fatal("expected a non-nil ChatPort")
	}
}
