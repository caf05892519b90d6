package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
)

func TestPositionRef_Unmarshal(t *testing.T) {
	for _, raw := range []string{`7`, `"7"`, `"pos_7"`} {
		t.Run(raw, func(t *testing.T) {
			var m ClientMessage
			require.NoError(t, json.Unmarshal([]byte(`{"type":"AssignPosition","position":`+raw+`}`), &m))
			p, err := m.Position.Parse()
			require.NoError(t, err)
			assert.Equal(t, bracket.Position(7), p)
		})
	}

	var m ClientMessage
	require.Error(t, json.Unmarshal([]byte(`{"position":[1]}`), &m))

	require.NoError(t, json.Unmarshal([]byte(`{"position":"pos_17"}`), &m))
	_, err := m.Position.Parse()
	require.ErrorIs(t, err, bracket.ErrUnknownPosition)
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: %q", bracket.ErrUnknownMatch, "r9_m9"), CodeNotFound},
		{tournament.ErrRobotNotFound, CodeNotFound},
		{bracket.ErrDependentMatchCompleted, CodeConflict},
		{bracket.ErrBracketInProgress, CodeConflict},
		{bracket.ErrBracketExists, CodeConflict},
		{bracket.ErrInvalidWinner, CodeInvalid},
		{tournament.ErrInvalidDuration, CodeInvalid},
		{tournament.ErrUnsupportedCommand, CodeBadRequest},
		{tournament.ErrPersist, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorCode(tc.err))
		})
	}
}
