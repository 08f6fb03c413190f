package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/wa3i/voice-agent/config"
	"github.com/wa3i/voice-agent/language"
)

// Registry is the process-wide table of active sessions, keyed by
// conversation identifier. It is the single point of truth for which
// sessions exist. All operations are safe under concurrent invocation;
// the registry never blocks a session's audio/turn pipeline.
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	deps     Deps
}

// NewRegistry creates a registry. Redis is used as a best-effort
// metadata mirror; an unreachable Redis is not an error.
func NewRegistry(cfg *config.Config, deps Deps) *Registry {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logrus.Warnf("⚠️ Redis unavailable, continuing without session mirror: %v", err)
		redisClient = nil
	}

	return &Registry{
		sessions: make(map[string]*Session),
		redis:    redisClient,
		config:   cfg,
		deps:     deps,
	}
}

// Create constructs and starts a session for the given conversation
// identifier. The entry is added only after the session starts
// successfully; a duplicate identifier fails with ErrDuplicateSession.
func (r *Registry) Create(ctx context.Context, id string, bundle language.Bundle, conn *websocket.Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, ErrDuplicateSession
	}
	if len(r.sessions) >= r.config.MaxSessions {
		return nil, ErrMaxSessions
	}

	s := New(id, conn, bundle, r.config.HistoryCap, r.deps)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	r.sessions[id] = s
	r.mirrorStore(ctx, s)
	return s, nil
}

// Get looks up a session by conversation identifier
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[id]
	return s, exists
}

// Terminate ends a session and removes its entry. A missing identifier
// reports ErrSessionNotFound without mutating the registry.
func (r *Registry) Terminate(ctx context.Context, id string) error {
	r.mu.Lock()
	s, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.Terminate()
	r.mirrorRemove(ctx, id)
	return nil
}

// Count returns the number of active sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CleanupInactiveSessions terminates sessions idle past the configured
// timeout
func (r *Registry) CleanupInactiveSessions(ctx context.Context) {
	r.mu.Lock()
	var stale []*Session
	now := time.Now()
	for id, s := range r.sessions {
		if now.Sub(s.lastActivity()) > r.config.SessionTimeout {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		logrus.Infof("🧹 [%s] Terminating inactive session", shortID(s.ID))
		s.Terminate()
		r.mirrorRemove(ctx, s.ID)
	}
}

// StartCleanupRoutine runs periodic cleanup of inactive sessions until
// the context is cancelled
func (r *Registry) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown terminates all sessions and closes the Redis mirror
func (r *Registry) Shutdown() {
	r.mu.Lock()
	remaining := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		remaining = append(remaining, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range remaining {
		s.Terminate()
	}

	if r.redis != nil {
		r.redis.Close()
	}
}

// mirrorStore mirrors session metadata to Redis, best effort
func (r *Registry) mirrorStore(ctx context.Context, s *Session) {
	if r.redis == nil {
		return
	}
	r.redis.HSet(ctx, "session:"+s.ID, map[string]interface{}{
		"created_at": s.CreatedAt.Format(time.RFC3339),
		"language":   s.Bundle.Tag,
		"status":     "active",
	})
	r.redis.SAdd(ctx, "active_sessions", s.ID)
	r.redis.Expire(ctx, "session:"+s.ID, r.config.SessionTimeout)
}

func (r *Registry) mirrorRemove(ctx context.Context, id string) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, "session:"+id)
	r.redis.SRem(ctx, "active_sessions", id)
}
