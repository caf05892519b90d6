package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/hebocon-control/internal/bracket"
	"github.com/DoyleJ11/hebocon-control/internal/store"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got version %d", within, s.Version)
	case <-time.After(within):
		// good: no snapshot
	}
}

type failingStore struct{ store.MemoryStore }

func (f *failingStore) Save(context.Context, store.Snapshot) error {
	return errors.New("disk full")
}

func openSession(t *testing.T, st store.Store) *Session {
	t.Helper()
	s, err := Open(context.Background(), st, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func subscribe(t *testing.T, s *Session, id string, buf int) chan Snapshot {
	t.Helper()
	out := make(chan Snapshot, buf)
	s.Inbox() <- Subscribe{ClientID: id, Outbox: out}
	return out
}

func TestSession_CommandPersistsAndBroadcasts(t *testing.T) {
	st := store.NewMemoryStore()
	s := openSession(t, st)
	out := subscribe(t, s, "overlay", 4)

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.EqualValues(t, 0, first.Version)
	assert.Equal(t, DefaultState().Robots, first.State.Robots)

	res, err := s.Execute(context.Background(), Command{Type: CmdAddRobot, Robot: "Crash-Dummy"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Version)

	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.EqualValues(t, 1, next.Version)
	assert.Contains(t, next.State.Robots, "Crash-Dummy")

	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Version)
	var saved State
	require.NoError(t, json.Unmarshal(snap.Payload, &saved))
	assert.Contains(t, saved.Robots, "Crash-Dummy")
}

func TestSession_RejectedCommandIsNoOp(t *testing.T) {
	st := store.NewMemoryStore()
	s := openSession(t, st)
	out := subscribe(t, s, "overlay", 4)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	_, err := s.Execute(context.Background(), Command{Type: CmdAddRobot, Robot: "Kipp-Bot"})
	require.ErrorIs(t, err, ErrRobotExists)

	_, err = s.Execute(context.Background(), Command{Type: CmdAdvanceWinner, MatchID: bracket.MatchR1M1, Robot: "Kipp-Bot"})
	require.ErrorIs(t, err, bracket.ErrUnknownMatch)

	recvNoSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, st.Saves())

	v, err := s.View(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, v.Version)
}

func TestSession_BracketFlowDrivesCurrentMatch(t *testing.T) {
	s := openSession(t, store.NewMemoryStore())
	ctx := context.Background()

	for _, cmd := range []Command{
		{Type: CmdGenerateTestRobots},
		{Type: CmdCreateBracket},
		{Type: CmdAssignRobots},
		{Type: CmdStartTournament},
	} {
		_, err := s.Execute(ctx, cmd)
		require.NoError(t, err, cmd.Type)
	}

	res, err := s.Execute(ctx, Command{Type: CmdAdvanceWinner, MatchID: bracket.MatchR1M1, Robot: TestRobots[1]})
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.Version)
	assert.Equal(t, bracket.StatusRunning, res.State.Bracket.Status)
	assert.Equal(t, bracket.Resolved(TestRobots[1]), res.State.Bracket.Matches[bracket.MatchQFM1].Robot1)
	assert.Equal(t, CurrentMatch{Robot1: TestRobots[2], Robot2: TestRobots[3], Round: "Vorrunde"}, res.State.CurrentMatch)

	res, err = s.Execute(ctx, Command{Type: CmdUndoMatch, MatchID: bracket.MatchR1M1})
	require.NoError(t, err)
	assert.Equal(t, bracket.PendingOn(bracket.MatchR1M1), res.State.Bracket.Matches[bracket.MatchQFM1].Robot1)
	assert.Equal(t, CurrentMatch{Robot1: TestRobots[0], Robot2: TestRobots[1], Round: "Vorrunde"}, res.State.CurrentMatch)
}

func TestSession_ReopenRestoresSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	s, err := Open(ctx, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = s.Execute(ctx, Command{Type: CmdCreateBracket})
	require.NoError(t, err)
	_, err = s.Execute(ctx, Command{Type: CmdSetTitle, Title: "Hebocon Berlin"})
	require.NoError(t, err)
	s.Close()

	reopened := openSession(t, st)
	v, err := reopened.View(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.Version)
	assert.Equal(t, "Hebocon Berlin", v.State.Settings.Title)
	assert.Equal(t, bracket.StatusSetup, v.State.Bracket.Status)
	assert.Len(t, v.State.Bracket.Matches, 15)
}

func TestSession_CorruptSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Save(context.Background(), store.Snapshot{Version: 4, Payload: []byte(`{"bracket":{"matches":{"r1_m1":{"robot1":{"state":"winner_r1_m1"}}}}}`)}))

	_, err := Open(context.Background(), st, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestSession_PersistFailureLeavesStateAlone(t *testing.T) {
	s := openSession(t, &failingStore{})
	out := subscribe(t, s, "c1", 2)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	_, err := s.Execute(context.Background(), Command{Type: CmdAddRobot, Robot: "Crash-Dummy"})
	require.ErrorIs(t, err, ErrPersist)
	recvNoSnapshot(t, out, 100*time.Millisecond)

	v, err := s.View(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, v.Version)
	assert.NotContains(t, v.State.Robots, "Crash-Dummy")
}

func TestSession_DropSlowClient(t *testing.T) {
	s := openSession(t, store.NewMemoryStore())

	out := make(chan Snapshot, 1)
	s.Inbox() <- Subscribe{ClientID: "ch1", Outbox: out}

	_, err := s.Execute(context.Background(), Command{Type: CmdHideWinner})
	require.NoError(t, err)

	v, err := s.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, v.NumClients, "expected slow client to be dropped")
}

func TestSession_UnsubscribeClosesOutbox(t *testing.T) {
	s := openSession(t, store.NewMemoryStore())
	out := subscribe(t, s, "c1", 2)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- Unsubscribe{ClientID: "c1"}
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("outbox not closed")
	}
}

func TestSession_TimerFires_ExpiresCountdown(t *testing.T) {
	s := openSession(t, store.NewMemoryStore())
	out := subscribe(t, s, "overlay", 4)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	_, err := s.Execute(context.Background(), Command{Type: CmdStartTimer, DurationSec: 1})
	require.NoError(t, err)
	started := recvSnapshot(t, out, 100*time.Millisecond)
	require.True(t, started.State.Timer.IsRunning)

	expired := recvSnapshot(t, out, 2*time.Second)
	assert.EqualValues(t, 2, expired.Version)
	assert.False(t, expired.State.Timer.IsRunning)
	assert.Equal(t, 0, expired.State.Timer.RemainingSec)
	assert.Equal(t, 1, expired.State.Timer.DurationSec)
}

func TestSession_TimerGen_DropsStaleFires(t *testing.T) {
	s := openSession(t, store.NewMemoryStore())
	out := subscribe(t, s, "overlay", 4)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	ctx := context.Background()
	_, err := s.Execute(ctx, Command{Type: CmdStartTimer, DurationSec: 1})
	require.NoError(t, err)
	_, err = s.Execute(ctx, Command{Type: CmdStopTimer})
	require.NoError(t, err)

	_ = recvSnapshot(t, out, 100*time.Millisecond) // start
	stopped := recvSnapshot(t, out, 100*time.Millisecond)
	assert.False(t, stopped.State.Timer.IsRunning)

	recvNoSnapshot(t, out, 1500*time.Millisecond)
}

func TestSession_Shutdown_StopsTimer_NoFire(t *testing.T) {
	s, err := Open(context.Background(), store.NewMemoryStore(), zaptest.NewLogger(t))
	require.NoError(t, err)

	out := subscribe(t, s, "c1", 2)
	_ = recvSnapshot(t, out, 500*time.Millisecond)

	_, err = s.Execute(context.Background(), Command{Type: CmdStartTimer, DurationSec: 1})
	require.NoError(t, err)
	_ = recvSnapshot(t, out, 500*time.Millisecond)
	s.Close()

	recvNoSnapshot(t, out, 1500*time.Millisecond)

	_, err = s.Execute(context.Background(), Command{Type: CmdHideWinner})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_UnbufferedReplyDoesNotStallLoop(t *testing.T) {
	s := openSession(t, store.NewMemoryStore())

	s.Inbox() <- Do{Cmd: Command{Type: CmdHideWinner}, Reply: make(chan Result)}
	s.Inbox() <- GetState{Reply: make(chan View)}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.View(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Version, "command still applied")
}

func TestSession_OpensLegacyDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "robots": ["Wackel-Bot 3000", "Rüttel-Rex", "Kipp-Bot"],
  "current_match": {"robot1": "Kipp-Bot", "robot2": "Rüttel-Rex", "round": "Finale"},
  "last_updated": "2025-06-01T14:03:22.123456"
}`), 0o644))

	s := openSession(t, store.NewFileStore(path))
	v, err := s.View(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 0, v.Version)
	assert.Equal(t, []string{"Wackel-Bot 3000", "Rüttel-Rex", "Kipp-Bot"}, v.State.Robots)
	assert.Equal(t, CurrentMatch{Robot1: "Kipp-Bot", Robot2: "Rüttel-Rex", Round: "Finale"}, v.State.CurrentMatch)
	assert.Equal(t, DefaultState().Timer, v.State.Timer)
	assert.Equal(t, OverlayMatch, v.State.Overlay.Mode)
	assert.Equal(t, bracket.StatusNotSetup, v.State.Bracket.Status)
	assert.True(t, time.Date(2025, 6, 1, 14, 3, 22, 123456000, time.Local).Equal(v.State.LastUpdated), v.State.LastUpdated)

	res, err := s.Execute(context.Background(), Command{Type: CmdAddRobot, Robot: "Crash-Dummy"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Version)

	snap, err := store.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Version, "first save upgrades the file to the envelope")
}
