package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wa3i/voice-agent/config"
	"github.com/wa3i/voice-agent/language"
)

func testConfig() *config.Config {
	return &config.Config{
		// Unroutable address so the registry runs without a mirror
		RedisURL:       "127.0.0.1:1",
		MaxSessions:    100,
		SessionTimeout: 30 * time.Minute,
		HistoryCap:     10,
	}
}

func TestCreateAndGet(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())
	defer r.Shutdown()

	s, err := r.Create(context.Background(), "conv-1", language.Select(language.Arabic), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID != "conv-1" || s.Bundle.Tag != language.Arabic {
		t.Errorf("session = %s/%s", s.ID, s.Bundle.Tag)
	}
	if s.State() != StateActive {
		t.Errorf("state = %s, want active", s.State())
	}

	got, ok := r.Get("conv-1")
	if !ok || got != s {
		t.Error("Get did not return the created session")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())
	defer r.Shutdown()

	if _, err := r.Create(context.Background(), "conv-1", language.Select(language.Arabic), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := r.Create(context.Background(), "conv-1", language.Select(language.English), nil)
	if !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("err = %v, want ErrDuplicateSession", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d after duplicate attempt, want 1", r.Count())
	}
}

func TestCreateRespectsMaxSessions(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.MaxSessions = 2
	r := NewRegistry(cfg, h.deps())
	defer r.Shutdown()

	for i := 0; i < 2; i++ {
		if _, err := r.Create(context.Background(), fmt.Sprintf("conv-%d", i), language.Select(language.Arabic), nil); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	_, err := r.Create(context.Background(), "conv-overflow", language.Select(language.Arabic), nil)
	if !errors.Is(err, ErrMaxSessions) {
		t.Fatalf("err = %v, want ErrMaxSessions", err)
	}

	// Ending a session frees capacity
	if err := r.Terminate(context.Background(), "conv-0"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if _, err := r.Create(context.Background(), "conv-overflow", language.Select(language.Arabic), nil); err != nil {
		t.Fatalf("Create after capacity freed: %v", err)
	}
}

func TestCreateAdapterFailureLeavesNoEntry(t *testing.T) {
	h := newHarness()
	deps := h.deps()
	deps.NewSynthesizer = func() (Synthesizer, error) {
		return nil, errors.New("missing API key")
	}
	r := NewRegistry(testConfig(), deps)
	defer r.Shutdown()

	_, err := r.Create(context.Background(), "conv-1", language.Select(language.Arabic), nil)
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("err = %v, want ErrInitialization", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after failed start, want 0", r.Count())
	}

	// The identifier stays usable
	r2 := NewRegistry(testConfig(), h.deps())
	defer r2.Shutdown()
	if _, err := r2.Create(context.Background(), "conv-1", language.Select(language.Arabic), nil); err != nil {
		t.Fatalf("Create after failed start: %v", err)
	}
}

func TestTerminateMissingSession(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())
	defer r.Shutdown()

	if _, err := r.Create(context.Background(), "conv-1", language.Select(language.Arabic), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := r.Terminate(context.Background(), "no-such-conversation")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, registry mutated by failed terminate", r.Count())
	}
}

func TestTerminateRemovesAndEndsSession(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())
	defer r.Shutdown()

	s, err := r.Create(context.Background(), "conv-1", language.Select(language.Arabic), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.Terminate(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if s.State() != StateTerminated {
		t.Errorf("state = %s, want terminated", s.State())
	}
	if _, ok := r.Get("conv-1"); ok {
		t.Error("session still registered after terminate")
	}

	// Second terminate of the same identifier reports not found
	if err := r.Terminate(context.Background(), "conv-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("repeat terminate err = %v, want ErrSessionNotFound", err)
	}
}

func TestCleanupInactiveSessions(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.SessionTimeout = time.Millisecond
	r := NewRegistry(cfg, h.deps())
	defer r.Shutdown()

	s, err := r.Create(context.Background(), "conv-stale", language.Select(language.Arabic), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	r.CleanupInactiveSessions(context.Background())

	if r.Count() != 0 {
		t.Errorf("Count = %d after cleanup, want 0", r.Count())
	}
	if s.State() != StateTerminated {
		t.Errorf("state = %s, want terminated", s.State())
	}
}

func TestCleanupKeepsActiveSessions(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())
	defer r.Shutdown()

	if _, err := r.Create(context.Background(), "conv-live", language.Select(language.Arabic), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r.CleanupInactiveSessions(context.Background())
	if r.Count() != 1 {
		t.Errorf("Count = %d, active session swept", r.Count())
	}
}

func TestShutdownTerminatesAllSessions(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())

	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, err := r.Create(context.Background(), fmt.Sprintf("conv-%d", i), language.Select(language.Arabic), nil)
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		sessions = append(sessions, s)
	}

	r.Shutdown()

	if r.Count() != 0 {
		t.Errorf("Count = %d after shutdown, want 0", r.Count())
	}
	for _, s := range sessions {
		if s.State() != StateTerminated {
			t.Errorf("[%s] state = %s, want terminated", s.ID, s.State())
		}
	}
}

func TestConcurrentCreateAndTerminate(t *testing.T) {
	h := newHarness()
	r := NewRegistry(testConfig(), h.deps())
	defer r.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", i)
			if _, err := r.Create(context.Background(), id, language.Select(language.Arabic), nil); err != nil {
				t.Errorf("Create %s: %v", id, err)
				return
			}
			if err := r.Terminate(context.Background(), id); err != nil {
				t.Errorf("Terminate %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0", r.Count())
	}
}
