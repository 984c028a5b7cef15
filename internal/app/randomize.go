package app

import (
	"math/rand"

	"trivia-session-service/internal/domain"
)

// Randomize shuffles the options of q with a Fisher-Yates pass and tracks where the
// correct option landed. The correct index follows the option's position rather than its
// text, so duplicate option strings cannot move the answer key onto the wrong duplicate.
func Randomize(q domain.Question, rnd *rand.Rand) domain.RandomizedQuestion {
	n := len(q.Options)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	options := make([]string, n)
	correct := q.CorrectOptionIndex
	for i, src := range perm {
		options[i] = q.Options[src]
		if src == q.CorrectOptionIndex {
			correct = i
		}
	}

	shuffled := q
	shuffled.Options = options
	shuffled.CorrectOptionIndex = correct
	return domain.RandomizedQuestion{
		Question:                   shuffled,
		OriginalCorrectOptionIndex: q.CorrectOptionIndex,
	}
}

// Sanitize strips the answer key before a question is shown to clients.
func Sanitize(q domain.RandomizedQuestion) domain.SanitizedQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return domain.SanitizedQuestion{
		ID:       q.ID,
		Prompt:   q.Prompt,
		ImageRef: q.ImageRef,
		Options:  options,
		Category: q.Category,
	}
}

// pickUnused returns a random question not yet used in the session.
func pickUnused(bank []domain.Question, session *domain.Session, rnd *rand.Rand) (domain.Question, bool) {
	candidates := make([]domain.Question, 0, len(bank))
	for _, q := range bank {
		if !session.QuestionUsed(q.ID) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return domain.Question{}, false
	}
	return candidates[rnd.Intn(len(candidates))], true
}
