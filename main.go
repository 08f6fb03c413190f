package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/agent"
	"github.com/wa3i/voice-agent/config"
	"github.com/wa3i/voice-agent/deepgram"
	"github.com/wa3i/voice-agent/elevenlabs"
	"github.com/wa3i/voice-agent/language"
	"github.com/wa3i/voice-agent/server"
	"github.com/wa3i/voice-agent/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	deps := buildDeps(cfg)

	// Create session registry
	registry := session.NewRegistry(cfg, deps)

	// Start cleanup routine
	ctx, cancel := context.WithCancel(context.Background())
	go registry.StartCleanupRoutine(ctx)

	srv := server.NewServer(cfg, registry, deps)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logrus.Info("Received shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.Fatalf("Server error: %v", err)
	}

	logrus.Info("Server stopped")
}

// buildDeps binds the upstream adapters to the loaded credentials. A
// missing credential is not checked here: it surfaces as an
// initialization failure when a session starts.
func buildDeps(cfg *config.Config) session.Deps {
	return session.Deps{
		NewTranscriber: func(ctx context.Context, bundle language.Bundle, onTranscript func(string), onError func(error)) (session.Transcriber, error) {
			t, err := deepgram.NewTranscriber(ctx, cfg.DeepgramAPIKey, "", bundle)
			if err != nil {
				return nil, err
			}
			t.OnTranscript = onTranscript
			t.OnError = onError
			t.StartReceiving(ctx)
			return t, nil
		},
		NewCompleter: func(ctx context.Context) (agent.Completer, error) {
			if cfg.LLMProvider == "gemini" {
				return agent.NewGeminiClient(ctx, cfg.GeminiAPIKey)
			}
			return agent.NewOpenRouterClient(cfg.OpenRouterAPIKey, "")
		},
		NewSynthesizer: func() (session.Synthesizer, error) {
			return elevenlabs.NewSynthesizer(cfg.ElevenLabsAPIKey, "")
		},
	}
}
