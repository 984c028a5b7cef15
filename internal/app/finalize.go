package app

import (
	"sort"

	"trivia-session-service/internal/domain"
)

// Outcome is the result of FinalizeRound.
type Outcome struct {
	// Ready is false while the open round is still running.
	Ready bool
	// Fresh is true only for the call that recorded the round and applied scores.
	Fresh bool
	// Round is the round the outcome refers to.
	Round    int
	Results  *domain.RoundResultsPayload
	Finished *domain.GameFinishedPayload
}

// Message returns the frame a broadcast of this outcome carries.
func (o Outcome) Message() (domain.Message, bool) {
	switch {
	case !o.Ready:
		return domain.Message{}, false
	case o.Finished != nil:
		return domain.Message{Type: domain.TypeGameFinished, Payload: *o.Finished}, true
	case o.Results != nil:
		return domain.Message{Type: domain.TypeRoundResults, Payload: *o.Results}, true
	default:
		return domain.Message{}, false
	}
}

// FinalizeRound scores the session's current round at most once.
//
// The timer, the all-answered path, the results request and reconnecting joins all go
// through here. The round is only recorded when force is set or its clock ran out; a
// round that already has a history record is never scored again, and the caller gets
// the recorded payload back instead. Finalizing the last round finishes the game.
// players must hold every player referenced by the roster, pending answers and history.
func FinalizeRound(session *domain.Session, players map[string]*domain.Player, nowMillis int64, force bool) Outcome {
	if session.Status == domain.StatusFinished {
		finished := finishedPayload(session, players)
		return Outcome{Ready: true, Round: session.CurrentRound, Results: finished.LastRound, Finished: &finished}
	}
	if session.Status != domain.StatusPlaying || session.CurrentQuestion == nil {
		return Outcome{}
	}

	round := session.CurrentRound
	if rec, ok := session.Record(round); ok {
		results := resultsFromRecord(session, rec, players)
		return Outcome{Ready: true, Round: round, Results: &results}
	}
	if !force && !session.RoundExpired(nowMillis) {
		return Outcome{Round: round}
	}

	question := *session.CurrentQuestion
	rec := domain.RoundRecord{
		Round:           round,
		Question:        question,
		PerPlayerAnswer: make(map[string]domain.RecordedAnswer, len(session.PlayerIDs)),
	}
	for playerID, ans := range session.PendingAnswers {
		if ans.Round != round {
			continue
		}
		correct := ans.ChoiceIndex == question.CorrectOptionIndex
		rec.PerPlayerAnswer[playerID] = domain.RecordedAnswer{
			ChoiceIndex:       ans.ChoiceIndex,
			IsCorrect:         correct,
			SubmittedAtMillis: ans.SubmittedAtMillis,
		}
		if correct {
			if p := players[playerID]; p != nil {
				p.Score++
			}
		}
	}
	for _, playerID := range session.PlayerIDs {
		if _, ok := rec.PerPlayerAnswer[playerID]; !ok {
			rec.PerPlayerAnswer[playerID] = domain.RecordedAnswer{ChoiceIndex: domain.NoChoice}
		}
	}
	session.RoundHistory = append(session.RoundHistory, rec)

	results := resultsFromRecord(session, rec, players)
	out := Outcome{Ready: true, Fresh: true, Round: round, Results: &results}
	if round >= session.TotalRounds {
		finishGame(session, players)
		finished := finishedPayload(session, players)
		out.Finished = &finished
	}
	return out
}

// finishGame moves the session to Finished and freezes its summary. It is idempotent.
func finishGame(session *domain.Session, players map[string]*domain.Player) {
	if session.Status == domain.StatusFinished && session.Summary != nil {
		return
	}
	session.Status = domain.StatusFinished
	summary := BuildSummary(session, players)
	session.Summary = &summary
}

func resultsFromRecord(session *domain.Session, rec domain.RoundRecord, players map[string]*domain.Player) domain.RoundResultsPayload {
	ids := recordOrder(session, rec)
	results := make([]domain.PlayerResult, 0, len(ids))
	scores := make(map[string]int, len(ids))
	for _, id := range ids {
		ans := rec.PerPlayerAnswer[id]
		p := players[id]
		res := domain.PlayerResult{
			PlayerID:    id,
			ChoiceIndex: ans.ChoiceIndex,
			IsCorrect:   ans.IsCorrect,
		}
		if p != nil {
			res.DisplayName = p.DisplayName
			res.Score = p.Score
		}
		scores[id] = res.Score
		results = append(results, res)
	}
	return domain.RoundResultsPayload{
		SessionID:     session.ID,
		Round:         rec.Round,
		TotalRounds:   session.TotalRounds,
		QuestionID:    rec.Question.ID,
		CorrectAnswer: rec.Question.CorrectOptionIndex,
		Results:       results,
		Scores:        scores,
	}
}

func finishedPayload(session *domain.Session, players map[string]*domain.Player) domain.GameFinishedPayload {
	summary := domain.GameSummary{}
	if session.Summary != nil {
		summary = *session.Summary
	}
	scores := make([]domain.ScoreEntry, 0, len(summary.PlayerStats))
	for _, st := range summary.PlayerStats {
		scores = append(scores, domain.ScoreEntry{PlayerID: st.PlayerID, DisplayName: st.DisplayName, Score: st.Score})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	payload := domain.GameFinishedPayload{
		SessionID: session.ID,
		Scores:    scores,
		Summary:   summary,
	}
	if n := len(session.RoundHistory); n > 0 {
		last := resultsFromRecord(session, session.RoundHistory[n-1], players)
		payload.LastRound = &last
	}
	return payload
}

// recordOrder lists the players of a record in roster order, then any others sorted by id.
func recordOrder(session *domain.Session, rec domain.RoundRecord) []string {
	ids := make([]string, 0, len(rec.PerPlayerAnswer))
	seen := make(map[string]struct{}, len(rec.PerPlayerAnswer))
	for _, id := range session.PlayerIDs {
		if _, ok := rec.PerPlayerAnswer[id]; ok {
			ids = append(ids, id)
			seen[id] = struct{}{}
		}
	}
	var extra []string
	for id := range rec.PerPlayerAnswer {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}
