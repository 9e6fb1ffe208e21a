// Package answer implements the Answerer capability (spec component C9):
// it turns a set of search results into a chat-completion prompt and
// returns the assistant's reply.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/searchgrep/searchgrep/internal/embed"
	sgerrors "github.com/searchgrep/searchgrep/internal/errors"
	"github.com/searchgrep/searchgrep/internal/retriever"
)

const (
	systemPrompt   = "You are a concise code assistant."
	maxTokens      = 1000
	fallbackAnswer = "No answer was returned."
	parentPreview  = 1024
)

// Answerer builds a prompt from search results and delegates to a ChatPort.
type Answerer struct {
	chat embed.ChatPort
}

// New returns an Answerer backed by chat. chat may be nil; Ask then
// fails with NotConfigured.
func New(chat embed.ChatPort) *Answerer {
	return &Answerer{chat: chat}
}

// Ask builds the context block from results and asks the chat model to
// answer query, returning its reply or a fallback string if empty.
func (a *Answerer) Ask(ctx context.Context, query string, results []retriever.Result) (string, error) {
	if a.chat == nil {
		return "", sgerrors.New(sgerrors.NotConfigured, "no ChatPort is configured", nil)
	}

	contextBlock := buildContext(results)
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, query)

	reply, err := a.chat.Complete(ctx, systemPrompt, user, maxTokens)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return fallbackAnswer, nil
	}
	return reply, nil
}

func buildContext(results []retriever.Result) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "File: %s (lines %d-%d)\n", r.Path, r.LineStart, r.LineEnd)
		b.WriteString("```\n")
		if r.ChunkContent != "" {
			b.WriteString(r.ChunkContent)
		} else if r.ParentAvailable {
			b.WriteString(truncate(r.ParentContent, parentPreview))
		}
		b.WriteString("\n```\n\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
