// Package server exposes the HTTP and WebSocket surface of the voice
// agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/config"
	"github.com/wa3i/voice-agent/session"
)

const (
	serviceName    = "WA3i Voice Agent"
	serviceVersion = "1.0.0"
)

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	registry   *session.Registry
	config     *config.Config
	deps       session.Deps
}

// NewServer wires all endpoints. The registry is injected rather than
// referenced as ambient state; deps are the same adapter constructors
// the registry uses, reused by the one-shot /chat and /tts endpoints.
func NewServer(cfg *config.Config, registry *session.Registry, deps session.Deps) *Server {
	s := &Server{
		registry: registry,
		config:   cfg,
		deps:     deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024, // 64KB for audio chunks
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /debug", s.handleDebug)
	mux.HandleFunc("POST /conversation/start", s.handleConversationStart)
	mux.HandleFunc("GET /ws/conversation/{conversation_id}", s.handleConversationSocket)
	mux.HandleFunc("POST /conversation/{conversation_id}/end", s.handleConversationEnd)
	mux.HandleFunc("GET /voices", s.handleVoices)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /tts", s.handleTTS)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     withCORS(mux),
		ReadTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the root handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for connections
func (s *Server) Start() error {
	logrus.Infof("🚀 Voice agent server starting on %s", s.httpServer.Addr)
	logrus.Infof("📡 WebSocket endpoint: ws://localhost:%d/ws/conversation/{id}", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and all active sessions
func (s *Server) Shutdown(ctx context.Context) error {
	logrus.Info("🛑 Shutting down server...")
	s.registry.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

// withCORS allows browser clients on any origin to reach the HTTP
// endpoints
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
