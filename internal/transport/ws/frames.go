package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"trivia-session-service/internal/domain"
)

// Inbound message types.
const (
	TypeJoin                = "join"
	TypeStartGame           = "start_game"
	TypeSubmitAnswer        = "submit_answer"
	TypeNextRound           = "next_round"
	TypeRequestRoundResults = "request_round_results"
)

// Frame is one parsed inbound message. The set of implementations is closed;
// dispatch switches over them exhaustively.
type Frame interface {
	frameType() string
}

type JoinFrame struct {
	SessionID         string
	PlayerID          string
	DisplayName       string
	AvatarRef         string
	DeviceFingerprint string
	TotalRounds       *int
}

type StartGameFrame struct {
	SessionID string
}

type SubmitAnswerFrame struct {
	SessionID   string
	ChoiceIndex int
}

// NextRoundFrame may name the round the sender is advancing from; 0 means unspecified.
type NextRoundFrame struct {
	SessionID string
	Round     int
}

type RequestRoundResultsFrame struct {
	SessionID string
}

func (JoinFrame) frameType() string                { return TypeJoin }
func (StartGameFrame) frameType() string           { return TypeStartGame }
func (SubmitAnswerFrame) frameType() string        { return TypeSubmitAnswer }
func (NextRoundFrame) frameType() string           { return TypeNextRound }
func (RequestRoundResultsFrame) frameType() string { return TypeRequestRoundResults }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// fields accepts the union of inbound fields. Clients may send them at the top
// level or nested under `payload`; nested values win.
type fields struct {
	SessionID         string `json:"sessionId"`
	PlayerID          string `json:"playerId"`
	DisplayName       string `json:"displayName"`
	AvatarRef         string `json:"avatarRef"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	TotalRounds       *int   `json:"totalRounds"`
	ChoiceIndex       *int   `json:"choiceIndex"`
	Round             int    `json:"round"`
}

// ParseFrame decodes and validates an inbound frame. It returns the message type
// alongside any error so failures can still be attributed.
func ParseFrame(data []byte) (Frame, string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	switch env.Type {
	case "":
		return nil, "", fmt.Errorf("type: %w", domain.ErrMissingField)
	case TypeJoin, TypeStartGame, TypeSubmitAnswer, TypeNextRound, TypeRequestRoundResults:
	default:
		return nil, env.Type, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, env.Type, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if p := bytes.TrimSpace(env.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		if err := json.Unmarshal(p, &f); err != nil {
			return nil, env.Type, fmt.Errorf("%w: payload: %v", ErrBadFrame, err)
		}
	}

	if f.SessionID == "" {
		return nil, env.Type, fmt.Errorf("sessionId: %w", domain.ErrMissingField)
	}

	switch env.Type {
	case TypeJoin:
		switch {
		case f.PlayerID == "":
			return nil, env.Type, fmt.Errorf("playerId: %w", domain.ErrMissingField)
		case f.DeviceFingerprint == "":
			return nil, env.Type, fmt.Errorf("deviceFingerprint: %w", domain.ErrMissingField)
		}
		return JoinFrame{
			SessionID:         f.SessionID,
			PlayerID:          f.PlayerID,
			DisplayName:       f.DisplayName,
			AvatarRef:         f.AvatarRef,
			DeviceFingerprint: f.DeviceFingerprint,
			TotalRounds:       f.TotalRounds,
		}, env.Type, nil
	case TypeStartGame:
		return StartGameFrame{SessionID: f.SessionID}, env.Type, nil
	case TypeSubmitAnswer:
		if f.ChoiceIndex == nil {
			return nil, env.Type, fmt.Errorf("choiceIndex: %w", domain.ErrMissingField)
		}
		return SubmitAnswerFrame{SessionID: f.SessionID, ChoiceIndex: *f.ChoiceIndex}, env.Type, nil
	case TypeNextRound:
		return NextRoundFrame{SessionID: f.SessionID, Round: f.Round}, env.Type, nil
	case TypeRequestRoundResults:
		return RequestRoundResultsFrame{SessionID: f.SessionID}, env.Type, nil
	default:
		return nil, env.Type, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
