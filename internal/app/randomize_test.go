package app

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-session-service/internal/domain"
)

func TestRandomizeKeepsAnswerKeyWithOption(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	q := domain.Question{ID: 1, Prompt: "capital?", Options: []string{"Oslo", "Rome", "Lima", "Kyiv"}, CorrectOptionIndex: 1}

	seenPositions := map[int]bool{}
	for i := 0; i < 200; i++ {
		r := Randomize(q, rnd)
		require.Len(t, r.Options, 4)
		assert.ElementsMatch(t, q.Options, r.Options)
		assert.Equal(t, "Rome", r.Options[r.CorrectOptionIndex])
		assert.Equal(t, 1, r.OriginalCorrectOptionIndex)
		seenPositions[r.CorrectOptionIndex] = true
	}
	assert.Len(t, seenPositions, 4, "every position should come up over many shuffles")
	assert.Equal(t, []string{"Oslo", "Rome", "Lima", "Kyiv"}, q.Options, "source question is not mutated")
}

func TestRandomizeWithDuplicateOptionText(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	q := domain.Question{ID: 2, Options: []string{"same", "same", "other", "else"}, CorrectOptionIndex: 1}
	require.True(t, q.HasDuplicateOptions())

	for i := 0; i < 100; i++ {
		r := Randomize(q, rnd)
		assert.Equal(t, "same", r.Options[r.CorrectOptionIndex])
	}
}

func TestSanitizeDropsAnswerKey(t *testing.T) {
	r := Randomize(domain.Question{ID: 5, Prompt: "p", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: 3}, rand.New(rand.NewSource(9)))
	s := Sanitize(r)
	assert.Equal(t, r.Options, s.Options)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctOptionIndex")
	assert.NotContains(t, string(raw), "originalCorrectOptionIndex")

	s.Options[0] = "mutated"
	assert.NotEqual(t, "mutated", r.Options[0])
}

func TestPickUnusedSkipsUsedQuestions(t *testing.T) {
	rnd := rand.New(rand.NewSource(4))
	bank := []domain.Question{{ID: 1}, {ID: 2}, {ID: 3}}
	s := domain.NewSession("S", 3, 1000)
	s.MarkQuestionUsed(1)
	s.MarkQuestionUsed(3)

	for i := 0; i < 20; i++ {
		q, ok := pickUnused(bank, s, rnd)
		require.True(t, ok)
		assert.Equal(t, 2, q.ID)
	}

	s.MarkQuestionUsed(2)
	_, ok := pickUnused(bank, s, rnd)
	assert.False(t, ok)
}
