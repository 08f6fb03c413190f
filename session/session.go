package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/agent"
	"github.com/wa3i/voice-agent/elevenlabs"
	"github.com/wa3i/voice-agent/history"
	"github.com/wa3i/voice-agent/language"
)

const (
	writeBufferSize   = 64
	writeTimeout      = 10 * time.Second
	deliveryChunkSize = 4096
)

// stopCommand is the exact text frame payload that ends a session
const stopCommand = "stop"

// State is a session lifecycle state
type State int32

const (
	StateCreated State = iota
	StateActive
	StateListening
	StateSpeaking
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Transcriber is the transcription adapter owned by a session. Frames
// are forwarded in arrival order; finalized utterances come back
// through the callback wired at construction.
type Transcriber interface {
	SendAudio(frame []byte) error
	Close() error
}

// Synthesizer is the synthesis adapter owned by a session
type Synthesizer interface {
	Synthesize(ctx context.Context, req elevenlabs.Request) (io.ReadCloser, error)
}

// Deps are the adapter constructors a session calls during Start.
// Injecting constructors keeps adapter credentials out of the session
// and lets tests substitute stub upstreams.
type Deps struct {
	// NewTranscriber opens the streaming speech-to-text connection and
	// wires the finalized-transcript and fatal-error callbacks.
	NewTranscriber func(ctx context.Context, bundle language.Bundle, onTranscript func(string), onError func(error)) (Transcriber, error)

	// NewCompleter constructs the completion backend
	NewCompleter func(ctx context.Context) (agent.Completer, error)

	// NewSynthesizer constructs the text-to-speech client
	NewSynthesizer func() (Synthesizer, error)
}

// outFrame is one outbound audio chunk tagged with the playback
// generation it belongs to. Frames from a superseded generation are
// dropped by the write pump.
type outFrame struct {
	gen  int64
	data []byte
}

// Session owns one open voice channel and drives the cycle:
// receive audio → transcript → generate turn → synthesize → send audio.
type Session struct {
	ID           string
	Bundle       language.Bundle
	CreatedAt    time.Time
	LastActivity time.Time

	conn        *websocket.Conn
	deps        Deps
	history     *history.Store
	generator   *agent.Generator
	transcriber Transcriber
	synthesizer Synthesizer

	writeChan chan outFrame
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	// playGen identifies the current playback; bumping it interrupts
	// any in-flight audio delivery
	playGen atomic.Int64

	mu    sync.RWMutex
	state State
}

// New creates a session in the Created state for an established client
// connection. Adapters are not constructed until Start.
func New(id string, conn *websocket.Conn, bundle language.Bundle, historyCap int, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	if conn != nil {
		conn.SetReadLimit(512 * 1024) // 512KB max message
	}

	return &Session{
		ID:           id,
		Bundle:       bundle,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		conn:         conn,
		deps:         deps,
		history:      history.NewStore(historyCap),
		writeChan:    make(chan outFrame, writeBufferSize),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start constructs the adapters from the session's bundle and moves the
// session to Active. Any construction failure is wrapped as
// ErrInitialization; the caller must not accept audio afterwards.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start from state %s", ErrInitialization, state)
	}
	s.mu.Unlock()

	completer, err := s.deps.NewCompleter(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	s.generator = agent.NewGenerator(completer, s.Bundle)

	synthesizer, err := s.deps.NewSynthesizer()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	s.synthesizer = synthesizer

	transcriber, err := s.deps.NewTranscriber(s.ctx, s.Bundle, s.handleTranscript, s.handleTranscriberError)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	s.transcriber = transcriber

	s.setState(StateActive)
	if s.conn != nil {
		go s.writePump()
	}

	logrus.Infof("✅ [%s] Session active (language: %s)", shortID(s.ID), s.Bundle.Tag)
	return nil
}

// Run processes the client channel until the socket closes, a stop
// command arrives, or the session is terminated. Cleanup always runs,
// regardless of how the loop exits.
func (s *Session) Run() {
	defer s.Terminate()

	for {
		select {
		case <-s.CloseChan:
			return
		default:
			messageType, message, err := s.conn.ReadMessage()
			if err != nil {
				return
			}

			s.touch()

			switch messageType {
			case websocket.BinaryMessage:
				if err := s.ReceiveAudio(message); err != nil {
					logrus.Errorf("❌ [%s] Failed to forward audio: %v", shortID(s.ID), err)
				}
			case websocket.TextMessage:
				if string(message) == stopCommand {
					logrus.Infof("🛑 [%s] Stop command received", shortID(s.ID))
					return
				}
			}
		}
	}
}

// ReceiveAudio forwards one frame to the transcriber in arrival order.
// New audio while synthesized output is still being delivered is an
// interruption: the remaining output is discarded and the session
// returns to listening. Calls after termination begins are a no-op.
func (s *Session) ReceiveAudio(frame []byte) error {
	s.mu.Lock()
	switch s.state {
	case StateCreated, StateTerminating, StateTerminated:
		s.mu.Unlock()
		return nil
	case StateSpeaking:
		s.state = StateListening
		s.playGen.Add(1)
		logrus.Infof("✋ [%s] Interrupted, discarding in-flight audio", shortID(s.ID))
	}
	s.mu.Unlock()

	return s.transcriber.SendAudio(frame)
}

// handleTranscript runs the turn cycle for one finalized utterance.
// Invoked from the transcriber's receive goroutine, so utterances are
// processed one at a time in arrival order.
func (s *Session) handleTranscript(text string) {
	if s.currentState() >= StateTerminating {
		return
	}

	logrus.Infof("💬 [%s] User: %s", shortID(s.ID), text)
	gen := s.playGen.Load()

	reply := s.generator.Generate(s.ctx, s.history, text)
	s.history.Append(history.TurnMessage{Role: history.RoleUser, Content: text})
	s.history.Append(history.TurnMessage{Role: history.RoleAssistant, Content: reply})
	logrus.Infof("🤖 [%s] Assistant: %s", shortID(s.ID), reply)

	stream, err := s.synthesizer.Synthesize(s.ctx, elevenlabs.Request{
		Text:            reply,
		VoiceID:         s.Bundle.VoiceID,
		ModelID:         s.Bundle.SynthesisModel,
		Stability:       s.Bundle.Stability,
		SimilarityBoost: s.Bundle.SimilarityBoost,
	})
	if err != nil {
		// No fallback audio: the turn goes undelivered and the session
		// keeps listening.
		logrus.Errorf("❌ [%s] Synthesis failed, dropping turn audio: %v", shortID(s.ID), err)
		return
	}
	defer stream.Close()

	if s.playGen.Load() != gen {
		logrus.Infof("✋ [%s] Turn superseded before delivery, dropping audio", shortID(s.ID))
		return
	}

	s.deliver(stream, gen)
}

// deliver streams synthesized audio to the client in chunks, aborting
// between chunks if the playback generation is superseded
func (s *Session) deliver(stream io.Reader, gen int64) {
	if !s.setStateFrom(StateListening, StateSpeaking) && !s.setStateFrom(StateActive, StateSpeaking) {
		return
	}

	buf := make([]byte, deliveryChunkSize)
	for {
		if s.playGen.Load() != gen {
			// Interrupted; stale frames still queued are dropped by the
			// write pump
			return
		}

		n, err := stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.queueFrame(outFrame{gen: gen, data: chunk})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			logrus.Errorf("❌ [%s] Audio stream read error: %v", shortID(s.ID), err)
			break
		}
	}

	s.setStateFrom(StateSpeaking, StateListening)
}

// handleTranscriberError handles a transcription connection failure,
// which is unrecoverable for the session
func (s *Session) handleTranscriberError(err error) {
	logrus.Errorf("❌ [%s] Transcription failure, terminating session: %v", shortID(s.ID), err)
	s.Terminate()
}

// writePump serializes all outbound writes on a single goroutine.
// Frames tagged with a superseded playback generation are discarded.
func (s *Session) writePump() {
	defer func() {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-s.CloseChan:
			return
		case frame := <-s.writeChan:
			if frame.gen != s.playGen.Load() {
				continue
			}

			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.data); err != nil {
				return
			}
		}
	}
}

// queueFrame hands a frame to the write pump, giving up if the session
// closes first
func (s *Session) queueFrame(frame outFrame) {
	select {
	case s.writeChan <- frame:
		s.touch()
	case <-s.CloseChan:
	}
}

// Terminate is the single guaranteed cleanup path, idempotent and safe
// to invoke concurrently from every exit route: stop command, client
// disconnect, transcription failure, registry shutdown.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state == StateTerminating || s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminating
	s.mu.Unlock()

	s.cancel()
	s.playGen.Add(1)
	close(s.CloseChan)

	if s.transcriber != nil {
		if err := s.transcriber.Close(); err != nil {
			logrus.Warnf("⚠️ [%s] Transcriber close error: %v", shortID(s.ID), err)
		}
	}

	if s.conn != nil {
		s.conn.Close()
	}

	s.setState(StateTerminated)
	logrus.Infof("🔌 [%s] Session terminated", shortID(s.ID))
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.currentState()
}

// History exposes the session's bounded conversation memory
func (s *Session) History() *history.Store {
	return s.history
}

func (s *Session) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// setStateFrom transitions to 'to' only when currently in 'from'
func (s *Session) setStateFrom(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastActivity = time.Now()
	s.mu.Unlock()
}

// lastActivity reads LastActivity under the session lock
func (s *Session) lastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastActivity
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
