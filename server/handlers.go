package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/agent"
	"github.com/wa3i/voice-agent/elevenlabs"
	"github.com/wa3i/voice-agent/history"
	"github.com/wa3i/voice-agent/language"
	"github.com/wa3i/voice-agent/session"
)

type startRequest struct {
	Language       string `json:"language"`
	ConversationID string `json:"conversation_id"`
}

type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   serviceName,
		"version":   serviceVersion,
		"languages": language.Supported(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.registry.Count(),
	})
}

// handleDebug reports which credentials are configured, with masked
// prefixes
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deepgram_key_set":      s.config.DeepgramAPIKey != "",
		"openrouter_key_set":    s.config.OpenRouterAPIKey != "",
		"elevenlabs_key_set":    s.config.ElevenLabsAPIKey != "",
		"deepgram_key_prefix":   keyPrefix(s.config.DeepgramAPIKey),
		"openrouter_key_prefix": keyPrefix(s.config.OpenRouterAPIKey),
		"elevenlabs_key_prefix": keyPrefix(s.config.ElevenLabsAPIKey),
	})
}

// handleConversationStart hands the client its WebSocket URL. The
// registry entry is created on WebSocket connect, not here.
func (s *Server) handleConversationStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bundle := language.Select(req.Language)
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ready",
		"conversation_id": conversationID,
		"language":        bundle.Tag,
		"websocket_url":   "/ws/conversation/" + conversationID + "?language=" + bundle.Tag,
	})
}

func (s *Server) handleConversationSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")
	bundle := language.Select(r.URL.Query().Get("language"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	sess, err := s.registry.Create(r.Context(), conversationID, bundle, conn)
	if err != nil {
		logrus.Errorf("❌ Failed to create session %s: %v", conversationID, err)
		msg, _ := sonic.Marshal(map[string]string{"error": err.Error()})
		_ = conn.WriteMessage(websocket.TextMessage, msg)
		conn.Close()
		return
	}

	logrus.Infof("✅ New session created: %s", sess.ID)

	// Blocks until the socket closes, a stop command arrives, or the
	// session fails; Run guarantees termination cleanup on every path.
	sess.Run()

	if err := s.registry.Terminate(context.Background(), sess.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		logrus.Warnf("⚠️ Failed to remove session %s: %v", sess.ID, err)
	}
	logrus.Infof("🔌 Session closed: %s", sess.ID)
}

func (s *Server) handleConversationEnd(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")

	if err := s.registry.Terminate(r.Context(), conversationID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ended",
		"conversation_id": conversationID,
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, language.Voices())
}

// handleChat is the synchronous single-turn text endpoint. Each call
// uses a fresh, unregistered generator: no history persists across
// calls.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bundle := language.Select(req.Language)

	completer, err := s.deps.NewCompleter(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	generator := agent.NewGenerator(completer, bundle)
	reply := generator.Generate(r.Context(), history.NewStore(s.config.HistoryCap), req.Message)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": reply,
		"language": bundle.Tag,
	})
}

// handleTTS is the standalone synthesis endpoint. Unlike the in-call
// path, an upstream failure surfaces its status code verbatim.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	bundle := language.Select(req.Language)

	synthesizer, err := s.deps.NewSynthesizer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	voiceID := language.VoiceAdam // Adam for Arabic
	if bundle.Tag == language.English {
		voiceID = language.VoiceJosh
	}

	stream, err := synthesizer.Synthesize(r.Context(), elevenlabs.Request{
		Text:            req.Text,
		VoiceID:         voiceID,
		ModelID:         "eleven_multilingual_v2", // Best for Arabic
		Stability:       bundle.Stability,
		SimilarityBoost: bundle.SimilarityBoost,
	})
	if err != nil {
		var statusErr *elevenlabs.StatusError
		if errors.As(err, &statusErr) {
			logrus.Errorf("❌ TTS error: %s", statusErr.Message)
			writeError(w, statusErr.Code, "TTS generation failed")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline; filename=speech.mp3")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, stream); err != nil {
		logrus.Warnf("⚠️ TTS response write error: %v", err)
	}
}

func keyPrefix(key string) interface{} {
	if key == "" {
		return nil
	}
	if len(key) > 8 {
		return key[:8] + "..."
	}
	return key + "..."
}

func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
