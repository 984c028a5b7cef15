package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-session-service/internal/domain"
)

func playingSession(totalRounds int) (*domain.Session, map[string]*domain.Player) {
	s := domain.NewSession("S", totalRounds, 10_000)
	s.AddPlayer("a")
	s.AddPlayer("b")
	s.Status = domain.StatusPlaying
	s.CurrentRound = 1
	s.RoundStartedAtMillis = 1_000
	s.CurrentQuestion = &domain.RandomizedQuestion{
		Question: domain.Question{ID: 9, Prompt: "p", Options: []string{"w", "x", "y", "z"}, CorrectOptionIndex: 2},
	}
	s.MarkQuestionUsed(9)
	players := map[string]*domain.Player{
		"a": {ID: "a", DisplayName: "Ann", SessionID: "S"},
		"b": {ID: "b", DisplayName: "Bo", SessionID: "S"},
	}
	return s, players
}

func TestFinalizeRoundNotReadyWhileOpen(t *testing.T) {
	s, players := playingSession(2)
	out := FinalizeRound(s, players, 5_000, false)
	assert.False(t, out.Ready)
	assert.False(t, out.Fresh)
	_, ok := out.Message()
	assert.False(t, ok)
	assert.Empty(t, s.RoundHistory)
}

func TestFinalizeRoundScoresOnce(t *testing.T) {
	s, players := playingSession(2)
	s.PendingAnswers["a"] = domain.PendingAnswer{ChoiceIndex: 2, Round: 1, SubmittedAtMillis: 2_000}

	first := FinalizeRound(s, players, 11_000, false)
	require.True(t, first.Ready)
	require.True(t, first.Fresh)
	require.NotNil(t, first.Results)
	assert.Nil(t, first.Finished)
	assert.Equal(t, 1, players["a"].Score)
	assert.Equal(t, 0, players["b"].Score)

	require.Len(t, first.Results.Results, 2)
	assert.Equal(t, "a", first.Results.Results[0].PlayerID)
	assert.True(t, first.Results.Results[0].IsCorrect)
	assert.Equal(t, domain.NoChoice, first.Results.Results[1].ChoiceIndex)
	assert.False(t, first.Results.Results[1].IsCorrect)

	second := FinalizeRound(s, players, 12_000, true)
	assert.True(t, second.Ready)
	assert.False(t, second.Fresh)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, players["a"].Score)
	assert.Len(t, s.RoundHistory, 1)
}

func TestFinalizeRoundIgnoresAnswersFromOtherRounds(t *testing.T) {
	s, players := playingSession(2)
	s.PendingAnswers["a"] = domain.PendingAnswer{ChoiceIndex: 2, Round: 0}

	out := FinalizeRound(s, players, 0, true)
	require.True(t, out.Fresh)
	assert.Equal(t, domain.NoChoice, s.RoundHistory[0].PerPlayerAnswer["a"].ChoiceIndex)
	assert.Equal(t, 0, players["a"].Score)
}

func TestFinalizeLastRoundFinishesGame(t *testing.T) {
	s, players := playingSession(1)
	s.PendingAnswers["b"] = domain.PendingAnswer{ChoiceIndex: 2, Round: 1}

	out := FinalizeRound(s, players, 0, true)
	require.NotNil(t, out.Finished)
	assert.Equal(t, domain.StatusFinished, s.Status)
	require.NotNil(t, s.Summary)

	msg, ok := out.Message()
	require.True(t, ok)
	assert.Equal(t, domain.TypeGameFinished, msg.Type)

	finished := msg.Payload.(domain.GameFinishedPayload)
	assert.Equal(t, "b", finished.Scores[0].PlayerID)
	require.NotNil(t, finished.LastRound)
	assert.Equal(t, 1, finished.LastRound.Round)

	again := FinalizeRound(s, players, 0, true)
	assert.False(t, again.Fresh)
	require.NotNil(t, again.Finished)
	assert.Equal(t, finished.Summary, again.Finished.Summary)
	assert.Equal(t, 1, players["b"].Score)
}

func TestFinalizeRoundSkipsWaitingSession(t *testing.T) {
	s := domain.NewSession("S", 1, 1000)
	out := FinalizeRound(s, nil, 10_000, true)
	assert.False(t, out.Ready)
}

func TestBuildSummaryIncludesDepartedPlayers(t *testing.T) {
	s, players := playingSession(2)
	s.RoundHistory = []domain.RoundRecord{
		{
			Round:    2,
			Question: domain.RandomizedQuestion{Question: domain.Question{ID: 4, Options: []string{"1", "2", "3", "4"}, CorrectOptionIndex: 0}},
			PerPlayerAnswer: map[string]domain.RecordedAnswer{
				"a": {ChoiceIndex: 0, IsCorrect: true},
			},
		},
		{
			Round:    1,
			Question: domain.RandomizedQuestion{Question: domain.Question{ID: 3, Options: []string{"1", "2", "3", "4"}, CorrectOptionIndex: 1}},
			PerPlayerAnswer: map[string]domain.RecordedAnswer{
				"a":    {ChoiceIndex: 3},
				"gone": {ChoiceIndex: 1, IsCorrect: true},
			},
		},
	}
	players["a"].Score = 1

	summary := BuildSummary(s, players)
	require.Len(t, summary.Questions, 2)
	assert.Equal(t, 1, summary.Questions[0].Round)
	assert.Equal(t, 1, summary.Questions[0].CorrectAnswer)

	require.Len(t, summary.PlayerStats, 3)
	a := summary.PlayerStats[0]
	assert.Equal(t, "a", a.PlayerID)
	assert.Equal(t, 1, a.Passed)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, []domain.AnswerSummary{{Round: 1, Choice: 3}, {Round: 2, Choice: 0, IsCorrect: true}}, a.Answers)

	b := summary.PlayerStats[1]
	assert.Equal(t, 2, b.Failed)
	assert.Equal(t, domain.NoChoice, b.Answers[0].Choice)

	assert.Equal(t, "gone", summary.PlayerStats[2].PlayerID)
	assert.Equal(t, 1, summary.PlayerStats[2].Passed)
}
