package app

import (
	"sort"

	"trivia-session-service/internal/domain"
)

// BuildSummary derives the end-of-game view from the round history.
// A round a player did not answer is reported as choice -1, not correct.
func BuildSummary(session *domain.Session, players map[string]*domain.Player) domain.GameSummary {
	history := make([]domain.RoundRecord, len(session.RoundHistory))
	copy(history, session.RoundHistory)
	sort.Slice(history, func(i, j int) bool { return history[i].Round < history[j].Round })

	questions := make([]domain.QuestionSummary, 0, len(history))
	for _, rec := range history {
		questions = append(questions, domain.QuestionSummary{
			Round:         rec.Round,
			QuestionID:    rec.Question.ID,
			Prompt:        rec.Question.Prompt,
			ImageRef:      rec.Question.ImageRef,
			Options:       rec.Question.Options,
			CorrectAnswer: rec.Question.CorrectOptionIndex,
		})
	}

	stats := make([]domain.PlayerStats, 0, len(session.PlayerIDs))
	for _, id := range summaryPlayers(session, history) {
		st := domain.PlayerStats{PlayerID: id, Answers: make([]domain.AnswerSummary, 0, len(history))}
		if p := players[id]; p != nil {
			st.DisplayName = p.DisplayName
			st.AvatarRef = p.AvatarRef
			st.Score = p.Score
		}
		for _, rec := range history {
			ans, ok := rec.PerPlayerAnswer[id]
			if !ok {
				ans = domain.RecordedAnswer{ChoiceIndex: domain.NoChoice}
			}
			if ans.IsCorrect {
				st.Passed++
			} else {
				st.Failed++
			}
			st.Answers = append(st.Answers, domain.AnswerSummary{
				Round:     rec.Round,
				Choice:    ans.ChoiceIndex,
				IsCorrect: ans.IsCorrect,
			})
		}
		stats = append(stats, st)
	}

	return domain.GameSummary{Questions: questions, PlayerStats: stats}
}

// summaryPlayers is the roster followed by anyone who answered a round but has since left it.
func summaryPlayers(session *domain.Session, history []domain.RoundRecord) []string {
	ids := make([]string, 0, len(session.PlayerIDs))
	seen := make(map[string]struct{})
	for _, id := range session.PlayerIDs {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	var extra []string
	for _, rec := range history {
		for id := range rec.PerPlayerAnswer {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				extra = append(extra, id)
			}
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}
