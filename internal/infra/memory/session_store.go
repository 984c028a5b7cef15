package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"trivia-session-service/internal/domain"
)

// Cache is the best-effort key/value contract used for warm restarts.
// Implementations swallow their own failures; a false result only means "no effect".
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
}

// SessionStore is the in-memory implementation of app.SessionRepository.
// When a Cache is attached, every upsert is written through and map misses are read
// back from the cache, so a restarted process picks up sessions where it left off.
type SessionStore struct {
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
	sf     singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*domain.Session
	// players is keyed by playerKey, so one player id holds a separate record per session.
	players map[string]*domain.Player
}

// NewSessionStore builds a store; cache may be nil for a purely in-process deployment.
func NewSessionStore(cache Cache, ttl time.Duration, logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With().Str("component", "session_store").Logger(),
		sessions: make(map[string]*domain.Session),
		players:  make(map[string]*domain.Player),
	}
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return session, true
	}
	if s.cache == nil {
		return nil, false
	}

	v, _, _ := s.sf.Do(sessionKey(sessionID), func() (interface{}, error) {
		s.mu.RLock()
		if session, ok := s.sessions[sessionID]; ok {
			s.mu.RUnlock()
			return session, nil
		}
		s.mu.RUnlock()

		raw, ok := s.cache.Get(ctx, sessionKey(sessionID))
		if !ok {
			return (*domain.Session)(nil), nil
		}
		var restored domain.Session
		if err := json.Unmarshal(raw, &restored); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("discarding unreadable cached session")
			return (*domain.Session)(nil), nil
		}
		restored.Normalize()

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.sessions[sessionID]; ok {
			return existing, nil
		}
		s.sessions[sessionID] = &restored
		s.logger.Info().Str("session_id", sessionID).Str("status", string(restored.Status)).Msg("session restored from cache")
		return &restored, nil
	})
	session, _ = v.(*domain.Session)
	return session, session != nil
}

func (s *SessionStore) UpsertSession(ctx context.Context, session *domain.Session) {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	s.writeThrough(ctx, sessionKey(session.ID), session)
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Delete(ctx, sessionKey(sessionID))
	}
}

func (s *SessionStore) GetPlayer(ctx context.Context, sessionID, playerID string) (*domain.Player, bool) {
	key := playerKey(sessionID, playerID)
	s.mu.RLock()
	player, ok := s.players[key]
	s.mu.RUnlock()
	if ok || s.cache == nil {
		return player, ok
	}

	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var restored domain.Player
	if err := json.Unmarshal(raw, &restored); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Str("player_id", playerID).Msg("discarding unreadable cached player")
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.players[key]; ok {
		return existing, true
	}
	s.players[key] = &restored
	return &restored, true
}

// UpsertPlayer stores the player's record for player.SessionID.
func (s *SessionStore) UpsertPlayer(ctx context.Context, player *domain.Player) {
	key := playerKey(player.SessionID, player.ID)
	s.mu.Lock()
	s.players[key] = player
	s.mu.Unlock()
	s.writeThrough(ctx, key, player)
}

// Len reports how many sessions are held in memory.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) writeThrough(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("skip cache write")
		return
	}
	s.cache.Set(ctx, key, raw, s.ttl)
}

func sessionKey(sessionID string) string {
	return "trivia:session:" + sessionID
}

func playerKey(sessionID, playerID string) string {
	return "trivia:player:" + sessionID + ":" + playerID
}
