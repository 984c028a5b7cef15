package ws

import (
	"errors"

	"github.com/gorilla/websocket"

	"trivia-session-service/internal/domain"
)

// Error codes carried in the `code` field of error frames.
const (
	CodeBadFrame        = "bad_frame"
	CodeUnknownType     = "unknown_type"
	CodeMissingField    = "missing_field"
	CodeInvalidChoice   = "invalid_choice"
	CodeNotJoined       = "not_joined"
	CodeDeviceInUse     = "device_in_use"
	CodeResultsNotReady = "results_not_ready"
	CodeInternal        = "internal_error"
)

// ClosePolicyViolation is sent when a connection is rejected, e.g. a second player on one device.
const ClosePolicyViolation = websocket.ClosePolicyViolation

var (
	ErrBadFrame    = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadFrame):
		return CodeBadFrame
	case errors.Is(err, ErrUnknownType):
		return CodeUnknownType
	case errors.Is(err, domain.ErrMissingField):
		return CodeMissingField
	case errors.Is(err, domain.ErrInvalidChoice):
		return CodeInvalidChoice
	case errors.Is(err, domain.ErrNotJoined):
		return CodeNotJoined
	case errors.Is(err, domain.ErrDeviceInUse):
		return CodeDeviceInUse
	default:
		return CodeInternal
	}
}

func errorMessage(code, text string) domain.Message {
	return domain.Message{Type: domain.TypeError, Payload: domain.ErrorPayload{Code: code, Message: text}}
}
