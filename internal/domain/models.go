package domain

import "slices"

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// NoChoice marks a player that did not answer a round.
const NoChoice = -1

// Question is an immutable quiz item from the question bank.
type Question struct {
	ID                 int      `json:"id" yaml:"id"`
	Prompt             string   `json:"prompt" yaml:"prompt"`
	ImageRef           string   `json:"imageRef,omitempty" yaml:"imageRef"`
	Options            []string `json:"options" yaml:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex" yaml:"correctOptionIndex"`
	Category           string   `json:"category,omitempty" yaml:"category"`
}

// Validate checks the shape of a question loaded from storage.
func (q Question) Validate() error {
	if len(q.Options) != OptionCount {
		return ErrInvalidQuestion
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return ErrInvalidQuestion
	}
	return nil
}

// HasDuplicateOptions reports whether two options share the same text.
func (q Question) HasDuplicateOptions() bool {
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, ok := seen[opt]; ok {
			return true
		}
		seen[opt] = struct{}{}
	}
	return false
}

// RandomizedQuestion is a question whose options were shuffled for one presentation.
type RandomizedQuestion struct {
	Question
	OriginalCorrectOptionIndex int `json:"originalCorrectOptionIndex"`
}

// SanitizedQuestion is the client-facing form of a question. It has no answer key.
type SanitizedQuestion struct {
	ID       int      `json:"id"`
	Prompt   string   `json:"prompt"`
	ImageRef string   `json:"imageRef,omitempty"`
	Options  []string `json:"options"`
	Category string   `json:"category,omitempty"`
}

// Player is a participant. Records outlive roster membership.
type Player struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	AvatarRef         string `json:"avatarRef,omitempty"`
	SessionID         string `json:"sessionId"`
	Score             int    `json:"score"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// PendingAnswer is an answer submitted for the open round.
type PendingAnswer struct {
	ChoiceIndex       int   `json:"choiceIndex"`
	Round             int   `json:"round"`
	SubmittedAtMillis int64 `json:"submittedAtMillis"`
}

// RecordedAnswer is a scored answer stored in a round record.
type RecordedAnswer struct {
	ChoiceIndex       int   `json:"choiceIndex"`
	IsCorrect         bool  `json:"isCorrect"`
	SubmittedAtMillis int64 `json:"submittedAtMillis"`
}

// RoundRecord is written once per round number.
type RoundRecord struct {
	Round           int                       `json:"round"`
	Question        RandomizedQuestion        `json:"question"`
	PerPlayerAnswer map[string]RecordedAnswer `json:"perPlayerAnswer"`
}

// Session is the aggregate for one trivia game.
type Session struct {
	ID                   string                   `json:"id"`
	PlayerIDs            []string                 `json:"playerIds"`
	CurrentRound         int                      `json:"currentRound"`
	TotalRounds          int                      `json:"totalRounds"`
	Status               Status                   `json:"status"`
	PendingAnswers       map[string]PendingAnswer `json:"pendingAnswers"`
	StartedAtMillis      int64                    `json:"startedAtMillis"`
	CurrentQuestion      *RandomizedQuestion      `json:"currentQuestion,omitempty"`
	RoundStartedAtMillis int64                    `json:"roundStartedAtMillis"`
	RoundDurationMillis  int64                    `json:"roundDurationMillis"`
	UsedQuestionIDs      []int                    `json:"usedQuestionIds"`
	RoundHistory         []RoundRecord            `json:"roundHistory"`
	Summary              *GameSummary             `json:"summary,omitempty"`
	Devices              map[string]string        `json:"devices"`
}

// NewSession returns a waiting session.
func NewSession(id string, totalRounds int, roundDurationMillis int64) *Session {
	return &Session{
		ID:                  id,
		PlayerIDs:           []string{},
		TotalRounds:         totalRounds,
		Status:              StatusWaiting,
		PendingAnswers:      make(map[string]PendingAnswer),
		RoundDurationMillis: roundDurationMillis,
		UsedQuestionIDs:     []int{},
		RoundHistory:        []RoundRecord{},
		Devices:             make(map[string]string),
	}
}

// Normalize fills nil maps and slices, e.g. after decoding from a cache.
func (s *Session) Normalize() {
	if s.PlayerIDs == nil {
		s.PlayerIDs = []string{}
	}
	if s.PendingAnswers == nil {
		s.PendingAnswers = make(map[string]PendingAnswer)
	}
	if s.UsedQuestionIDs == nil {
		s.UsedQuestionIDs = []int{}
	}
	if s.RoundHistory == nil {
		s.RoundHistory = []RoundRecord{}
	}
	if s.Devices == nil {
		s.Devices = make(map[string]string)
	}
}

// HasPlayer reports roster membership.
func (s *Session) HasPlayer(playerID string) bool {
	return slices.Contains(s.PlayerIDs, playerID)
}

// AddPlayer appends playerID to the roster unless already present.
func (s *Session) AddPlayer(playerID string) bool {
	if s.HasPlayer(playerID) {
		return false
	}
	s.PlayerIDs = append(s.PlayerIDs, playerID)
	return true
}

// RemovePlayer drops playerID from the roster and frees its device.
func (s *Session) RemovePlayer(playerID string) bool {
	idx := slices.Index(s.PlayerIDs, playerID)
	if idx < 0 {
		return false
	}
	s.PlayerIDs = slices.Delete(s.PlayerIDs, idx, idx+1)
	for device, owner := range s.Devices {
		if owner == playerID {
			delete(s.Devices, device)
		}
	}
	return true
}

// DeviceOwner returns the roster member bound to a device fingerprint.
// Whether that owner still blocks the device depends on them being connected, which the
// engine checks.
func (s *Session) DeviceOwner(fingerprint string) (string, bool) {
	owner, ok := s.Devices[fingerprint]
	if !ok || !s.HasPlayer(owner) {
		return "", false
	}
	return owner, true
}

// QuestionUsed reports whether a question id was already drawn in this session.
func (s *Session) QuestionUsed(id int) bool {
	return slices.Contains(s.UsedQuestionIDs, id)
}

// MarkQuestionUsed records a drawn question id.
func (s *Session) MarkQuestionUsed(id int) {
	if !s.QuestionUsed(id) {
		s.UsedQuestionIDs = append(s.UsedQuestionIDs, id)
	}
}

// Record returns the history entry for a round.
func (s *Session) Record(round int) (RoundRecord, bool) {
	for _, rec := range s.RoundHistory {
		if rec.Round == round {
			return rec, true
		}
	}
	return RoundRecord{}, false
}

// RoundDeadlineMillis is the wall-clock millisecond at which the open round expires.
func (s *Session) RoundDeadlineMillis() int64 {
	return s.RoundStartedAtMillis + s.RoundDurationMillis
}

// RoundExpired reports whether the open round's clock has run out at nowMillis.
func (s *Session) RoundExpired(nowMillis int64) bool {
	return nowMillis >= s.RoundDeadlineMillis()
}

// RemainingMillis is the time left in the open round, never negative.
func (s *Session) RemainingMillis(nowMillis int64) int64 {
	left := s.RoundDeadlineMillis() - nowMillis
	if left < 0 {
		return 0
	}
	return left
}

// AnswerSummary is one player's answer for one round inside a GameSummary.
type AnswerSummary struct {
	Round     int  `json:"round"`
	Choice    int  `json:"choice"`
	IsCorrect bool `json:"isCorrect"`
}

// PlayerStats aggregates one player's game.
type PlayerStats struct {
	PlayerID    string          `json:"playerId"`
	DisplayName string          `json:"displayName"`
	AvatarRef   string          `json:"avatarRef,omitempty"`
	Score       int             `json:"score"`
	Passed      int             `json:"passed"`
	Failed      int             `json:"failed"`
	Answers     []AnswerSummary `json:"answers"`
}

// QuestionSummary is the per-round answer reveal inside a GameSummary.
type QuestionSummary struct {
	Round         int      `json:"round"`
	QuestionID    int      `json:"questionId"`
	Prompt        string   `json:"prompt"`
	ImageRef      string   `json:"imageRef,omitempty"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// GameSummary is built once when a session finishes.
type GameSummary struct {
	Questions   []QuestionSummary `json:"questions"`
	PlayerStats []PlayerStats     `json:"playerStats"`
}
