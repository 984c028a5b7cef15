package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/domain"
)

// Publisher mirrors every outbound session event onto a per-session channel
// (<prefix>:<sessionId>) for processes that want to observe a game. Nothing
// consumes these messages inside this service.
type Publisher struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

func NewPublisher(client *redis.Client, prefix string, logger zerolog.Logger) *Publisher {
	if prefix == "" {
		prefix = "trivia:events"
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "session_publisher").Logger(),
	}
}

func (p *Publisher) Publish(ctx context.Context, sessionID string, msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", msg.Type).Msg("failed to marshal session event")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.Channel(sessionID), data).Err(); err != nil {
		p.logger.Warn().Err(err).Str("session_id", sessionID).Str("type", msg.Type).Msg("failed to publish session event")
	}
}

// Channel is the pub/sub channel for one session.
func (p *Publisher) Channel(sessionID string) string {
	return p.prefix + ":" + sessionID
}
