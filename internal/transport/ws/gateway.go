package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/logging"
	"trivia-session-service/internal/metrics"
)

// SessionEngine is the part of app.Engine the gateway drives.
type SessionEngine interface {
	Join(ctx context.Context, conn app.Connection, req app.JoinRequest) error
	StartGame(ctx context.Context, sessionID string) error
	SubmitAnswer(ctx context.Context, sessionID, playerID string, choiceIndex int) error
	NextRound(ctx context.Context, sessionID string, expectedRound int) error
	RequestRoundResults(ctx context.Context, sessionID, playerID string) (*domain.Message, error)
	Leave(ctx context.Context, sessionID, playerID string, conn app.Connection)
}

// Gateway accepts sockets, frames inbound messages and dispatches them to the engine.
type Gateway struct {
	engine   SessionEngine
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewGateway builds a gateway. An empty allowedOrigins list, or one containing "*", accepts any origin.
func NewGateway(engine SessionEngine, allowedOrigins []string, m *metrics.Metrics, logger zerolog.Logger) *Gateway {
	allowAll := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return &Gateway{
		engine:  engine,
		metrics: m,
		logger:  logger.With().Str("component", "ws_gateway").Logger(),
		now:     time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	conn := NewConnection(uuid.NewString(), wsConn, g.logger)
	log := conn.logger
	ctx := logging.IntoContext(r.Context(), log)

	g.metrics.ConnectionOpened()
	defer g.metrics.ConnectionClosed()
	go conn.WritePump()

	_ = conn.Send(domain.Message{Type: domain.TypeSocketConnected, Payload: domain.SocketConnectedPayload{
		ConnectionID: conn.ID(),
		Timestamp:    g.now().UnixMilli(),
	}})
	log.Debug().Str("remote_addr", r.RemoteAddr).Msg("socket connected")

	conn.ReadPump(func(data []byte) {
		g.handle(ctx, conn, data)
	})

	if conn.playerID != "" {
		g.engine.Leave(context.WithoutCancel(ctx), conn.sessionID, conn.playerID, conn)
	}
	conn.Close(websocket.CloseNormalClosure, "")
	log.Debug().Str("session_id", conn.sessionID).Str("player_id", conn.playerID).Msg("socket closed")
}

func (g *Gateway) handle(ctx context.Context, conn *Connection, data []byte) {
	frame, msgType, err := ParseFrame(data)
	if msgType != "" {
		g.metrics.InboundFrame(msgType)
	}
	if err != nil {
		g.reject(ctx, conn, msgType, err)
		return
	}
	if err := g.dispatch(ctx, conn, frame); err != nil {
		g.reject(ctx, conn, msgType, err)
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *Connection, frame Frame) error {
	switch f := frame.(type) {
	case JoinFrame:
		if conn.playerID != "" && (conn.playerID != f.PlayerID || conn.sessionID != f.SessionID) {
			g.engine.Leave(ctx, conn.sessionID, conn.playerID, conn)
			conn.sessionID, conn.playerID = "", ""
		}
		err := g.engine.Join(ctx, conn, app.JoinRequest{
			SessionID:         f.SessionID,
			PlayerID:          f.PlayerID,
			DisplayName:       f.DisplayName,
			AvatarRef:         f.AvatarRef,
			DeviceFingerprint: f.DeviceFingerprint,
			TotalRounds:       f.TotalRounds,
		})
		if err != nil {
			return err
		}
		conn.sessionID, conn.playerID = f.SessionID, f.PlayerID
		return nil

	case StartGameFrame:
		return g.engine.StartGame(ctx, f.SessionID)

	case SubmitAnswerFrame:
		if conn.playerID == "" || conn.sessionID != f.SessionID {
			return domain.ErrNotJoined
		}
		return g.engine.SubmitAnswer(ctx, f.SessionID, conn.playerID, f.ChoiceIndex)

	case NextRoundFrame:
		return g.engine.NextRound(ctx, f.SessionID, f.Round)

	case RequestRoundResultsFrame:
		msg, err := g.engine.RequestRoundResults(ctx, f.SessionID, conn.playerID)
		if err != nil {
			return err
		}
		if msg == nil {
			_ = conn.Send(errorMessage(CodeResultsNotReady, "round results not available yet"))
			return nil
		}
		if err := conn.Send(*msg); err != nil {
			log := logging.FromContext(ctx)
			log.Debug().Err(err).Msg("results reply dropped")
		}
		return nil

	default:
		return ErrUnknownType
	}
}

// reject reacts to a failed frame according to its error class.
func (g *Gateway) reject(ctx context.Context, conn *Connection, msgType string, err error) {
	log := logging.FromContext(ctx).With().Str("type", msgType).Str("session_id", conn.sessionID).Str("player_id", conn.playerID).Logger()

	switch class := domain.Classify(err); {
	case class == domain.ClassPolicy:
		log.Info().Err(err).Msg("policy violation, closing connection")
		g.metrics.PolicyViolation()
		_ = conn.Send(errorMessage(errorCode(err), err.Error()))
		conn.Close(ClosePolicyViolation, err.Error())
	case class == domain.ClassState:
		log.Debug().Err(err).Msg("ignoring stale message")
	case class == domain.ClassProtocol, isFramingError(err):
		log.Debug().Err(err).Msg("protocol error")
		_ = conn.Send(errorMessage(errorCode(err), err.Error()))
	default:
		log.Error().Err(err).Msg("message handling failed")
		_ = conn.Send(errorMessage(CodeInternal, "internal error"))
	}
}

func isFramingError(err error) bool {
	code := errorCode(err)
	return code == CodeBadFrame || code == CodeUnknownType
}
