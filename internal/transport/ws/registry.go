package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// Registry maps player ids to their current socket. It is independent of session
// rosters: a player can be on a roster with no socket registered.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]app.Connection

	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]app.Connection),
		logger: logger.With().Str("component", "connection_registry").Logger(),
	}
}

// Register makes conn the player's socket, closing any socket it replaces.
func (r *Registry) Register(playerID string, conn app.Connection) {
	r.mu.Lock()
	old, exists := r.conns[playerID]
	r.conns[playerID] = conn
	r.mu.Unlock()

	if exists && old != conn {
		old.Close(websocket.CloseNormalClosure, "replaced by a newer connection")
		r.logger.Info().Str("player_id", playerID).Str("old_connection_id", old.ID()).Str("connection_id", conn.ID()).Msg("connection replaced")
	}
}

// Unregister removes the player's socket only if it is still conn.
func (r *Registry) Unregister(playerID string, conn app.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[playerID]; !ok || current != conn {
		return false
	}
	delete(r.conns, playerID)
	return true
}

func (r *Registry) IsConnected(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[playerID]
	return ok
}

// SendTo delivers at most once; a missing or full socket drops the message.
func (r *Registry) SendTo(playerID string, msg domain.Message) bool {
	r.mu.RLock()
	conn, ok := r.conns[playerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := conn.Send(msg); err != nil {
		r.logger.Debug().Err(err).Str("player_id", playerID).Str("type", msg.Type).Msg("message dropped")
		return false
	}
	return true
}

// BroadcastToGame sends msg to every roster member except excludePlayerID and
// returns how many sockets accepted it.
func (r *Registry) BroadcastToGame(roster []string, msg domain.Message, excludePlayerID string) int {
	delivered := 0
	for _, playerID := range roster {
		if playerID == excludePlayerID {
			continue
		}
		if r.SendTo(playerID, msg) {
			delivered++
		}
	}
	return delivered
}

// Len is the number of registered sockets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
