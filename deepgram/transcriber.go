// Package deepgram wraps a streaming connection to the Deepgram
// speech-to-text API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/language"
)

// DefaultListenURL is the Deepgram streaming transcription endpoint
const DefaultListenURL = "wss://api.deepgram.com/v1/listen"

const keepAlivePeriod = 5 * time.Second

// ErrMissingAPIKey is returned when the transcriber is constructed
// without a credential
var ErrMissingAPIKey = errors.New("missing API key")

// Transcriber holds one persistent streaming connection to Deepgram,
// configured once at session start. Audio frames are forwarded in
// arrival order; only finalized utterances are surfaced.
//
// Callback fields must be set before StartReceiving is called.
type Transcriber struct {
	conn *websocket.Conn

	// OnTranscript is invoked with each finalized utterance
	OnTranscript func(text string)
	// OnError is invoked when the connection fails. Transcription
	// failures are unrecoverable for the owning session.
	OnError func(err error)

	// pending accumulates finalized segments until end-of-speech
	pending []string

	writeMu sync.Mutex
	mu      sync.RWMutex
	closed  bool
}

// NewTranscriber dials the Deepgram listen API with the bundle's
// language, model, sample rate and encoding. A missing credential or a
// failed dial is an initialization failure: the session must not accept
// audio.
func NewTranscriber(ctx context.Context, apiKey, baseURL string, bundle language.Bundle) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultListenURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram URL: %w", err)
	}
	q := u.Query()
	q.Set("model", bundle.TranscriptionModel)
	q.Set("language", bundle.Tag)
	q.Set("sample_rate", strconv.Itoa(bundle.SampleRate))
	q.Set("encoding", bundle.Encoding)
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", "300")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to Deepgram: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	logrus.Infof("✅ Connected to Deepgram (%s, %s)", bundle.TranscriptionModel, bundle.Tag)

	return &Transcriber{conn: conn}, nil
}

// StartReceiving begins listening for transcript events and starts the
// keepalive ticker. The receiver exits when the connection drops or the
// context is cancelled.
func (t *Transcriber) StartReceiving(ctx context.Context) {
	go t.keepAlive(ctx)

	go func() {
		for {
			_, message, err := t.conn.ReadMessage()
			if err != nil {
				t.mu.RLock()
				closed := t.closed
				t.mu.RUnlock()

				if !closed {
					logrus.Errorf("❌ Deepgram receive error: %v", err)
					if t.OnError != nil {
						t.OnError(err)
					}
				}
				return
			}

			t.handleEvent(message)
		}
	}()
}

func (t *Transcriber) handleEvent(message []byte) {
	var event resultEvent
	if err := sonic.Unmarshal(message, &event); err != nil {
		logrus.Warnf("⚠️ Failed to parse Deepgram event: %v", err)
		return
	}
	if event.Type != "Results" {
		return
	}
	if len(event.Channel.Alternatives) == 0 {
		return
	}

	transcript := strings.TrimSpace(event.Channel.Alternatives[0].Transcript)

	// Interim transcripts are never surfaced. Finalized segments are
	// held until Deepgram signals end of speech, since several
	// is_final segments can occur within a single utterance.
	if event.IsFinal && transcript != "" {
		t.pending = append(t.pending, transcript)
	}

	if event.SpeechFinal && len(t.pending) > 0 {
		utterance := strings.Join(t.pending, " ")
		t.pending = nil
		logrus.Infof("📝 Finalized utterance: %s", utterance)
		if t.OnTranscript != nil {
			t.OnTranscript(utterance)
		}
	}
}

// SendAudio forwards one audio frame. Frames are written in call order;
// sends after Close are a no-op.
func (t *Transcriber) SendAudio(frame []byte) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

// keepAlive keeps the stream open across pauses in speech
func (t *Transcriber) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.RLock()
			closed := t.closed
			t.mu.RUnlock()
			if closed {
				return
			}

			t.writeMu.Lock()
			err := t.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close signals end of stream and tears the connection down. Idempotent.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	t.writeMu.Unlock()

	return t.conn.Close()
}

// resultEvent is the subset of Deepgram's Results message we consume
type resultEvent struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}
