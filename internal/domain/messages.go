package domain

// Outbound message types.
const (
	TypeSocketConnected = "socket_connected"
	TypePlayerJoined    = "player_joined"
	TypeGameState       = "game_state"
	TypeGameStarted     = "game_started"
	TypeRoundResults    = "round_results"
	TypeNextRound       = "next_round"
	TypeAnswerReceived  = "answer_received"
	TypePlayerLeft      = "player_left"
	TypeGameFinished    = "game_finished"
	TypeError           = "error"
)

// Message is the envelope for every outbound frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// PlayerView is the public projection of a player.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
	Score       int    `json:"score"`
	Connected   bool   `json:"connected"`
}

// SocketConnectedPayload is sent as soon as a socket is accepted.
type SocketConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

// PlayerJoinedPayload announces a join to the rest of the roster.
type PlayerJoinedPayload struct {
	SessionID    string       `json:"sessionId"`
	Player       PlayerView   `json:"player"`
	Players      []PlayerView `json:"players"`
	TotalPlayers int          `json:"totalPlayers"`
}

// PlayerLeftPayload announces a disconnect.
type PlayerLeftPayload struct {
	SessionID        string `json:"sessionId"`
	PlayerID         string `json:"playerId"`
	TotalPlayers     int    `json:"totalPlayers"`
	ConnectedPlayers int    `json:"connectedPlayers"`
}

// QuestionPayload carries a live round. Used by game_started and next_round.
type QuestionPayload struct {
	SessionID           string            `json:"sessionId"`
	Round               int               `json:"round"`
	TotalRounds         int               `json:"totalRounds"`
	Question            SanitizedQuestion `json:"question"`
	RoundStartedAt      int64             `json:"roundStartedAt"`
	RoundDurationMillis int64             `json:"roundDurationMillis"`
	RemainingTimeMillis int64             `json:"remainingTime"`
}

// AnswerReceivedPayload is a content-free tally of submissions.
type AnswerReceivedPayload struct {
	SessionID     string `json:"sessionId"`
	Round         int    `json:"round"`
	AnsweredCount int    `json:"answeredCount"`
	TotalPlayers  int    `json:"totalPlayers"`
}

// PlayerResult is one roster member's outcome for a round.
type PlayerResult struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	ChoiceIndex int    `json:"choiceIndex"`
	IsCorrect   bool   `json:"isCorrect"`
	Score       int    `json:"score"`
}

// RoundResultsPayload is produced when a round is finalized.
type RoundResultsPayload struct {
	SessionID     string         `json:"sessionId"`
	Round         int            `json:"round"`
	TotalRounds   int            `json:"totalRounds"`
	QuestionID    int            `json:"questionId"`
	CorrectAnswer int            `json:"correctAnswer"`
	Results       []PlayerResult `json:"results"`
	Scores        map[string]int `json:"scores"`
}

// ScoreEntry is one line of the final scoreboard.
type ScoreEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// GameFinishedPayload is produced when the last round is finalized.
type GameFinishedPayload struct {
	SessionID string               `json:"sessionId"`
	Scores    []ScoreEntry         `json:"scores"`
	Summary   GameSummary          `json:"summary"`
	LastRound *RoundResultsPayload `json:"lastRound,omitempty"`
}

// GameStatePayload is the full snapshot sent to a joining player.
type GameStatePayload struct {
	SessionID           string               `json:"sessionId"`
	PlayerID            string               `json:"playerId"`
	Status              Status               `json:"status"`
	CurrentRound        int                  `json:"currentRound"`
	TotalRounds         int                  `json:"totalRounds"`
	Players             []PlayerView         `json:"players"`
	TotalPlayers        int                  `json:"totalPlayers"`
	Question            *SanitizedQuestion   `json:"question,omitempty"`
	RoundStartedAt      int64                `json:"roundStartedAt,omitempty"`
	RoundDurationMillis int64                `json:"roundDurationMillis"`
	RemainingTimeMillis *int64               `json:"remainingTime,omitempty"`
	HasAnswered         bool                 `json:"hasAnswered"`
	LastResults         *RoundResultsPayload `json:"lastResults,omitempty"`
	Summary             *GameSummary         `json:"summary,omitempty"`
}

// ErrorPayload is sent for protocol and policy errors.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
