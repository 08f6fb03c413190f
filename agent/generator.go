// Package agent generates assistant replies from transcribed utterances.
package agent

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/history"
	"github.com/wa3i/voice-agent/language"
)

// CompletionRequest is the contract consumed by completion backends
type CompletionRequest struct {
	Model       string
	Messages    []history.TurnMessage
	Temperature float64
	MaxTokens   int
}

// Completer is a completion backend. Implementations return the single
// assistant message text or an error.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Generator produces one assistant reply per user utterance. It calls
// the completion backend once per invocation, with no retry. Upstream
// failures never propagate: the caller always gets either the model's
// reply or the bundle's fixed localized fallback, so a generation
// failure degrades the conversation but never ends the call.
type Generator struct {
	completer Completer
	bundle    language.Bundle
}

// NewGenerator creates a generator bound to a language bundle
func NewGenerator(completer Completer, bundle language.Bundle) *Generator {
	return &Generator{
		completer: completer,
		bundle:    bundle,
	}
}

// Generate builds [system] + history + [user utterance] and asks the
// completion backend for a reply. The store is not mutated; appending
// the user and assistant messages is the caller's responsibility.
func (g *Generator) Generate(ctx context.Context, store *history.Store, userText string) string {
	req := CompletionRequest{
		Model:       g.bundle.CompletionModel,
		Messages:    store.BuildRequest(g.bundle.SystemPrompt, userText),
		Temperature: g.bundle.Temperature,
		MaxTokens:   g.bundle.MaxTokens,
	}

	reply, err := g.completer.Complete(ctx, req)
	if err != nil {
		logrus.Warnf("⚠️ Turn generation failed, using fallback: %v", err)
		return g.bundle.Fallback
	}
	if reply == "" {
		logrus.Warn("⚠️ Turn generation returned empty reply, using fallback")
		return g.bundle.Fallback
	}
	return reply
}

// Fallback returns the fixed localized error reply for this generator's language
func (g *Generator) Fallback() string {
	return g.bundle.Fallback
}
