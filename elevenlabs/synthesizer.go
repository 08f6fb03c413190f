// Package elevenlabs wraps the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the ElevenLabs API endpoint
const DefaultBaseURL = "https://api.elevenlabs.io"

// ErrMissingAPIKey is returned when the synthesizer is constructed
// without a credential
var ErrMissingAPIKey = errors.New("missing API key")

// StatusError carries the upstream HTTP status verbatim so standalone
// synthesis callers can mirror it. In-call sessions instead drop the
// turn's audio and keep listening.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("synthesis failed: status %d - %s", e.Code, e.Message)
}

// Request describes one synthesis invocation
type Request struct {
	Text            string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

// Synthesizer converts text to an audio byte stream
type Synthesizer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewSynthesizer creates a synthesizer. baseURL may be empty to use the
// default endpoint. Fails when apiKey is empty.
func NewSynthesizer(apiKey, baseURL string) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Synthesizer{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

// Synthesize requests speech for the given text and returns the audio
// stream (audio/mpeg). The caller owns the returned body and must close
// it. A non-success upstream status is returned as *StatusError.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (io.ReadCloser, error) {
	body := ttsAPIRequest{
		Text:    req.Text,
		ModelID: req.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       req.Stability,
			SimilarityBoost: req.SimilarityBoost,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Message: string(errBody)}
	}

	return resp.Body, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ttsAPIRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}
