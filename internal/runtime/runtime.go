// Package runtime bundles the capabilities a CLI command needs into one
// explicitly-constructed value (spec.md §9's "Global singletons ... become
// explicitly-injected capabilities"), replacing package-level singletons
// with a struct threaded through call sites.
package runtime

import (
	"github.com/searchgrep/searchgrep/internal/clock"
	"github.com/searchgrep/searchgrep/internal/config"
	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/store"
)

// Runtime bundles config, embedder, chat, clock, and store per spec.md
// §9's design note.
type Runtime struct {
	Config  *config.Config
	Factory *embed.Factory
	Clock   clock.Clock
	Store   *store.Store
}

// New constructs a Runtime for dataDir/storeName from cfg, lazily wiring
// the embedder factory and opening (or creating) the store.
func New(cfg *config.Config, dataDir, storeName string) (*Runtime, error) {
	factory := embed.NewFactory(cfg)

	embedder, err := factory.Embedder()
	if err != nil {
		return nil, err
	}

	c := clock.System{}
	st, err := store.Open(dataDir, storeName, embed.DocEmbedder{Port: embedder}, c)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:  cfg,
		Factory: factory,
		Clock:   c,
		Store:   st,
	}, nil
}

// Embedder returns the runtime's Port, for query embedding at the
// Retriever call site.
func (r *Runtime) Embedder() (embed.Port, error) {
	return r.Factory.Embedder()
}

// Chat returns the runtime's ChatPort, or (nil, nil) if no chat-capable
// provider is configured; the Answerer surfaces that as NotConfigured.
func (r *Runtime) Chat() (embed.ChatPort, error) {
	return r.Factory.Chat()
}
