package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an action references an unknown session.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrPlayerNotFound is returned when a player is not on the session roster.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrInvalidState is returned when an action does not fit the session status.
	ErrInvalidState = errors.New("action not allowed in current session state")
	// ErrRoundClosed is returned when an answer arrives after its round was finalized.
	ErrRoundClosed = errors.New("round is closed")
	// ErrStaleRound is returned when a message references a round that is no longer current.
	ErrStaleRound = errors.New("stale round reference")

	// ErrDeviceInUse is returned when a device fingerprint already belongs to another active player.
	ErrDeviceInUse = errors.New("device already joined this session as another player")

	// ErrInvalidChoice indicates an answer index outside the option range.
	ErrInvalidChoice = errors.New("choice index out of range")
	// ErrMissingField indicates a required inbound field was empty.
	ErrMissingField = errors.New("missing required field")
	// ErrNotJoined indicates a connection acted before joining a session.
	ErrNotJoined = errors.New("connection has not joined a session")

	// ErrInvalidQuestion indicates malformed question bank content.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrEmptyQuestionBank indicates there are no questions to play.
	ErrEmptyQuestionBank = errors.New("question bank is empty")
)

// ErrorClass groups engine errors by how the transport must react.
type ErrorClass int

const (
	// ClassInternal errors are reported to the client as a generic failure.
	ClassInternal ErrorClass = iota
	// ClassProtocol errors are answered with an error frame; the connection stays open.
	ClassProtocol
	// ClassPolicy errors are answered with an error frame and the connection is closed.
	ClassPolicy
	// ClassState errors are stale or out-of-order actions; they are logged and dropped.
	ClassState
)

// Classify maps an error to its ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrDeviceInUse):
		return ClassPolicy
	case errors.Is(err, ErrInvalidChoice),
		errors.Is(err, ErrMissingField),
		errors.Is(err, ErrNotJoined):
		return ClassProtocol
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrRoundClosed),
		errors.Is(err, ErrStaleRound):
		return ClassState
	default:
		return ClassInternal
	}
}
