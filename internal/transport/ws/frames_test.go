package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-session-service/internal/domain"
)

func TestParseFrameFlatAndNested(t *testing.T) {
	flat := `{"type":"join","sessionId":"S1","playerId":"p1","displayName":"Ann","deviceFingerprint":"d1","totalRounds":3}`
	frame, typ, err := ParseFrame([]byte(flat))
	require.NoError(t, err)
	assert.Equal(t, TypeJoin, typ)
	join, ok := frame.(JoinFrame)
	require.True(t, ok)
	assert.Equal(t, "Ann", join.DisplayName)
	require.NotNil(t, join.TotalRounds)
	assert.Equal(t, 3, *join.TotalRounds)

	nested := `{"type":"submit_answer","payload":{"sessionId":"S1","choiceIndex":0}}`
	frame, _, err = ParseFrame([]byte(nested))
	require.NoError(t, err)
	assert.Equal(t, SubmitAnswerFrame{SessionID: "S1", ChoiceIndex: 0}, frame)

	frame, _, err = ParseFrame([]byte(`{"type":"next_round","sessionId":"S1","payload":{"round":2}}`))
	require.NoError(t, err)
	assert.Equal(t, NextRoundFrame{SessionID: "S1", Round: 2}, frame)

	frame, _, err = ParseFrame([]byte(`{"type":"start_game","sessionId":"S1","payload":null}`))
	require.NoError(t, err)
	assert.Equal(t, StartGameFrame{SessionID: "S1"}, frame)

	frame, _, err = ParseFrame([]byte(`{"type":"request_round_results","sessionId":"S1"}`))
	require.NoError(t, err)
	assert.Equal(t, RequestRoundResultsFrame{SessionID: "S1"}, frame)
}

func TestParseFrameErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
		code string
	}{
		{"not json", `{"type":`, ErrBadFrame, CodeBadFrame},
		{"no type", `{"sessionId":"S1"}`, domain.ErrMissingField, CodeMissingField},
		{"unknown type", `{"type":"dance","sessionId":"S1"}`, ErrUnknownType, CodeUnknownType},
		{"unknown type without session", `{"type":"dance"}`, ErrUnknownType, CodeUnknownType},
		{"no session", `{"type":"start_game"}`, domain.ErrMissingField, CodeMissingField},
		{"join without device", `{"type":"join","sessionId":"S1","playerId":"p1"}`, domain.ErrMissingField, CodeMissingField},
		{"answer without choice", `{"type":"submit_answer","sessionId":"S1"}`, domain.ErrMissingField, CodeMissingField},
		{"bad payload", `{"type":"submit_answer","sessionId":"S1","payload":{"choiceIndex":"two"}}`, ErrBadFrame, CodeBadFrame},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseFrame([]byte(tc.raw))
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.code, errorCode(err))
		})
	}
}
