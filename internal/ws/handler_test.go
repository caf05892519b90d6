package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/store"
	"github.com/DoyleJ11/hebocon-control/internal/tournament"
	"github.com/DoyleJ11/hebocon-control/internal/types"
)

func strPtr(s string) *string { return &s }

func TestToCommand(t *testing.T) {
	cases := []struct {
		name string
		in   types.ClientMessage
		want tournament.Command
	}{
		{
			"advance",
			types.ClientMessage{Type: "AdvanceWinner", MatchID: "qf_m2", Winner: "Kipp-Bot"},
			tournament.Command{Type: tournament.CmdAdvanceWinner, MatchID: bracket.MatchQFM2, Robot: "Kipp-Bot"},
		},
		{
			"assign position",
			types.ClientMessage{Type: "AssignPosition", Position: "pos_4", Robot: " Bumm-Bot "},
			tournament.Command{Type: tournament.CmdAssignPosition, Position: 4, Robot: "Bumm-Bot"},
		},
		{
			"empty robot clears",
			types.ClientMessage{Type: "AssignPosition", Position: "4"},
			tournament.Command{Type: tournament.CmdClearPosition, Position: 4},
		},
		{
			"partial match",
			types.ClientMessage{Type: "SetMatch", Round: strPtr("Finale")},
			tournament.Command{Type: tournament.CmdSetMatch, Match: tournament.MatchUpdate{Round: strPtr("Finale")}},
		},
		{
			"timer",
			types.ClientMessage{Type: "StartTimer", Duration: 120},
			tournament.Command{Type: tournament.CmdStartTimer, DurationSec: 120},
		},
		{
			"shuffle",
			types.ClientMessage{Type: "AssignRobots", Shuffle: true},
			tournament.Command{Type: tournament.CmdAssignRobots, Shuffle: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToCommand(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToCommand_Rejects(t *testing.T) {
	_, err := ToCommand(types.ClientMessage{Type: "ExpireTimer"})
	require.ErrorIs(t, err, tournament.ErrUnsupportedCommand)

	_, err = ToCommand(types.ClientMessage{Type: "AssignPosition", Position: "pos_0", Robot: "X"})
	require.ErrorIs(t, err, bracket.ErrUnknownPosition)
}

func dial(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	log := zaptest.NewLogger(t)
	sess, err := tournament.Open(context.Background(), store.NewMemoryStore(), log)
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	srv := httptest.NewServer(Handler(sess, log, nil))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var m types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func write(t *testing.T, ctx context.Context, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(raw)))
}

func TestHandler_SnapshotAndCommands(t *testing.T) {
	conn, ctx := dial(t)

	first := read(t, ctx, conn)
	assert.Equal(t, "StateSnapshot", first.Type)
	assert.EqualValues(t, 0, first.Version)
	require.NotNil(t, first.State)
	assert.Equal(t, bracket.StatusNotSetup, first.State.Bracket.Status)

	write(t, ctx, conn, `{"type":"AddRobot","robot":"Crash-Dummy"}`)
	got := map[string]types.ServerMessage{}
	for i := 0; i < 2; i++ {
		m := read(t, ctx, conn)
		got[m.Type] = m
	}
	assert.EqualValues(t, 1, got["Ack"].Version)
	require.NotNil(t, got["StateSnapshot"].State)
	assert.Contains(t, got["StateSnapshot"].State.Robots, "Crash-Dummy")

	write(t, ctx, conn, `{"type":"AdvanceWinner","match_id":"r1_m1","winner":"Kipp-Bot"}`)
	e := read(t, ctx, conn)
	assert.Equal(t, "Error", e.Type)
	assert.Equal(t, types.CodeNotFound, e.Code)

	write(t, ctx, conn, `{"type":`)
	e = read(t, ctx, conn)
	assert.Equal(t, types.CodeBadRequest, e.Code)

	write(t, ctx, conn, `{"type":"LockPick"}`)
	e = read(t, ctx, conn)
	assert.Equal(t, types.CodeBadRequest, e.Code)
}
