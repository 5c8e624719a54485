package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

func snapshotWithScore(p1, p2 int) protocol.Snapshot {
	return protocol.Snapshot{
		MatchID: "m1",
		Status:  protocol.StatusActive,
		Ball:    protocol.Ball{X: 400, Y: 200, Radius: 5},
		Paddles: protocol.Paddles{
			Player1: protocol.Paddle{X: 0, Y: 160, Width: 10, Height: 80},
			Player2: protocol.Paddle{X: 790, Y: 160, Width: 10, Height: 80},
		},
		Score:  protocol.Score{Player1: p1, Player2: p2},
		Canvas: protocol.Canvas{Width: 800, Height: 400},
	}
}

func connected(id protocol.ID) State {
	return State{Phase: PhaseConnecting, Identity: protocol.Identity{ID: id, Username: "u" + string(id)}}
}

func containsEffect[T Effect](effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func TestApply_ConnectionEstablished(t *testing.T) {
	effects, s, err := Apply(NewState(), protocol.ConnectionEstablished{Identity: protocol.Identity{ID: "7", Username: "ana"}})
	require.NoError(t, err)
	assert.Equal(t, PhaseConnecting, s.Phase)
	assert.Equal(t, protocol.ID("7"), s.Identity.ID)
	assert.Contains(t, effects, Effect(ShowStatus{Key: StatusConnecting}))

	// a handshake after reconnect keeps the match going
	mid := connected("7")
	mid.Phase = PhaseInMatch
	mid.MatchID = "m1"
	effects, s, err = Apply(mid, protocol.ConnectionEstablished{Identity: protocol.Identity{ID: "7", Username: "ana"}})
	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.Equal(t, PhaseInMatch, s.Phase)
	assert.Equal(t, protocol.ID("m1"), s.MatchID)
}

func TestApply_MatchCreatedThenUpdates_ReplacesSnapshot(t *testing.T) {
	s := connected("a")

	effects, s, err := Apply(s, protocol.MatchCreated{MatchID: "m1", Snapshot: snapshotWithScore(0, 0)})
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingOpponent, s.Phase)
	assert.Equal(t, RolePlayer1, s.Role)
	assert.True(t, containsEffect[StartRender](effects))
	assert.Contains(t, effects, Effect(ShowStatus{Key: StatusWaiting}))

	first := snapshotWithScore(1, 0)
	first.Ball.VelocityX = 9
	_, s, err = Apply(s, protocol.StateUpdate{Snapshot: first})
	require.NoError(t, err)
	assert.Equal(t, PhaseInMatch, s.Phase)

	second := snapshotWithScore(1, 1)
	effects, s, err = Apply(s, protocol.StateUpdate{Snapshot: second})
	require.NoError(t, err)
	assert.Equal(t, PhaseInMatch, s.Phase)
	require.NotNil(t, s.Snapshot)
	assert.Equal(t, second, *s.Snapshot, "snapshot must be the second update, not a merge")
	assert.Zero(t, s.Snapshot.Ball.VelocityX)
	assert.Contains(t, effects, Effect(ShowScore{Score: protocol.Score{Player1: 1, Player2: 1}}))
}

func TestApply_SnapshotPointerIsNeverWrittenThrough(t *testing.T) {
	s := connected("a")
	_, s, err := Apply(s, protocol.MatchCreated{MatchID: "m1", Snapshot: snapshotWithScore(0, 0)})
	require.NoError(t, err)
	held := s.Snapshot

	_, next, err := Apply(s, protocol.StateUpdate{Snapshot: snapshotWithScore(5, 5)})
	require.NoError(t, err)
	assert.NotSame(t, held, next.Snapshot)
	assert.Equal(t, 0, held.Score.Player1)
}

func TestApply_MatchJoinedAssignsRole(t *testing.T) {
	cases := []struct {
		name     string
		self     protocol.ID
		wantRole Role
		wantDiag bool
	}{
		{name: "player1", self: "X", wantRole: RolePlayer1},
		{name: "player2", self: "Y", wantRole: RolePlayer2},
		{name: "stranger", self: "Z", wantRole: RoleNone, wantDiag: true},
		{name: "unknown identity", self: "", wantRole: RoleNone, wantDiag: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := protocol.MatchJoined{MatchID: "m1", Snapshot: snapshotWithScore(0, 0), Player1ID: "X", Player2ID: "Y"}
			effects, s, err := Apply(connected(tc.self), ev)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRole, s.Role)
			assert.Equal(t, PhaseInMatch, s.Phase)
			assert.Equal(t, protocol.ID("m1"), s.MatchID)
			assert.Equal(t, tc.wantDiag, containsEffect[Diagnostic](effects))
		})
	}
}

func TestApply_MatchOverOutcome(t *testing.T) {
	cases := []struct {
		name    string
		self    protocol.ID
		role    Role
		winner  protocol.ID
		wantKey string
	}{
		{"won", "a", RolePlayer1, "a", StatusWon},
		{"lost", "a", RolePlayer1, "b", StatusLost},
		{"no role", "c", RoleNone, "a", StatusFinished},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := connected(tc.self)
			s.Phase = PhaseInMatch
			s.Role = tc.role
			s.MatchID = "m1"
			snap := snapshotWithScore(3, 2)
			s.Snapshot = &snap

			effects, next, err := Apply(s, protocol.MatchOver{WinnerID: tc.winner})
			require.NoError(t, err)
			assert.Equal(t, PhaseFinished, next.Phase)
			assert.True(t, containsEffect[StopRender](effects))
			assert.Contains(t, effects, Effect(ShowStatus{Key: tc.wantKey}))
			assert.Empty(t, next.MatchID, "finished matches release the match id")
			assert.Same(t, s.Snapshot, next.Snapshot, "final snapshot stays readable")
			assert.True(t, next.CanRequestMatch())
		})
	}
}

func TestApply_ServerErrorKeepsPhase(t *testing.T) {
	s := connected("a")
	s.Pending = true

	effects, next, err := Apply(s, protocol.ServerError{Message: "match full"})
	require.NoError(t, err)
	assert.Equal(t, PhaseConnecting, next.Phase)
	assert.False(t, next.Pending)
	assert.Equal(t, []Effect{ShowStatus{Key: StatusServerError, Args: []any{"match full"}}}, effects)
}

func TestApply_RejectsOutOfPhaseEvents(t *testing.T) {
	cases := []struct {
		name  string
		phase Phase
		ev    protocol.Event
	}{
		{"update before match", PhaseConnecting, protocol.StateUpdate{Snapshot: snapshotWithScore(0, 0)}},
		{"update after finish", PhaseFinished, protocol.StateUpdate{Snapshot: snapshotWithScore(0, 0)}},
		{"second create", PhaseInMatch, protocol.MatchCreated{MatchID: "m2"}},
		{"match over while idle", PhaseConnecting, protocol.MatchOver{WinnerID: "a"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := connected("a")
			s.Phase = tc.phase
			effects, next, err := Apply(s, tc.ev)
			if err == nil || !errors.Is(err, ErrUnexpectedEvent) {
				t.Fatalf("want ErrUnexpectedEvent, got %v", err)
			}
			assert.Nil(t, effects)
			assert.Equal(t, s, next)
		})
	}
}

func TestApply_RejectsForeignEvents(t *testing.T) {
	s := connected("a")
	_, next, err := Apply(s, protocol.TournamentUpdate{})
	require.ErrorIs(t, err, ErrUnsupportedEvent)
	assert.Equal(t, s, next)

	_, _, err = Apply(s, nil)
	require.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestMachine_PublishesViewAndGuardsRequests(t *testing.T) {
	m := NewMachine(zaptest.NewLogger(t))
	require.NotNil(t, m.View())
	assert.Equal(t, PhaseUnassigned, m.View().Phase)

	require.ErrorIs(t, m.BeginMatchRequest(false), ErrChannelClosed)
	require.NoError(t, m.BeginMatchRequest(true))
	require.ErrorIs(t, m.BeginMatchRequest(true), ErrMatchHeld, "double click must not send twice")

	_, err := m.Handle(protocol.ConnectionEstablished{Identity: protocol.Identity{ID: "a"}})
	require.NoError(t, err)
	_, err = m.Handle(protocol.MatchCreated{MatchID: "m1", Snapshot: snapshotWithScore(0, 0)})
	require.NoError(t, err)

	v := m.View()
	assert.Equal(t, PhaseAwaitingOpponent, v.Phase)
	assert.Equal(t, RolePlayer1, v.Role)
	p, ok := v.LocalPaddle()
	require.True(t, ok)
	assert.Equal(t, 160.0, p.Y)
	require.ErrorIs(t, m.BeginMatchRequest(true), ErrMatchHeld)

	_, err = m.Handle(protocol.StateUpdate{Snapshot: snapshotWithScore(0, 1)})
	require.NoError(t, err)
	assert.NotSame(t, v, m.View())
	assert.Equal(t, 0, v.Snapshot.Score.Player2, "old views are immutable")
	assert.Equal(t, 1, m.Snapshot().Score.Player2)
}

func TestMachine_RejectedEventLeavesStateUnchanged(t *testing.T) {
	m := NewMachine(zaptest.NewLogger(t))
	before := m.State()

	ev, decodeErr := protocol.Decode([]byte(`{"type":"unknown_kind"}`))
	require.Error(t, decodeErr)
	assert.Nil(t, ev)

	_, err := m.Handle(protocol.StateUpdate{Snapshot: snapshotWithScore(1, 1)})
	require.ErrorIs(t, err, ErrUnexpectedEvent)
	assert.Equal(t, before, m.State())
	assert.Nil(t, m.Snapshot())
}

func TestAbandon(t *testing.T) {
	snap := snapshotWithScore(3, 2)
	live := connected("1")
	live.Phase = PhaseInMatch
	live.Role = RolePlayer1
	live.MatchID = "m1"
	live.Snapshot = &snap

	effects, next := Abandon(live)
	assert.Equal(t, PhaseConnecting, next.Phase)
	assert.Empty(t, next.MatchID)
	assert.Equal(t, RoleNone, next.Role)
	assert.Same(t, &snap, next.Snapshot, "last board stays visible")
	assert.True(t, next.CanRequestMatch())
	assert.True(t, containsEffect[StopRender](effects))
	assert.Contains(t, effects, Effect(ShowStatus{Key: StatusAbandoned}))

	for _, p := range []Phase{PhaseUnassigned, PhaseConnecting, PhaseFinished} {
		s := connected("1")
		s.Phase = p
		effects, next := Abandon(s)
		assert.Nil(t, effects, p)
		assert.Equal(t, s, next, p)
	}
}

func TestMachine_AbandonMatchOnlyDropsThatMatch(t *testing.T) {
	m := NewMachine(zaptest.NewLogger(t))
	m.SetIdentity(protocol.Identity{ID: "1"})
	_, err := m.Handle(protocol.MatchCreated{MatchID: "m1", Snapshot: snapshotWithScore(0, 0)})
	require.NoError(t, err)

	assert.Nil(t, m.AbandonMatch("m0"))
	assert.Equal(t, protocol.ID("m1"), m.View().MatchID)

	require.NotEmpty(t, m.AbandonMatch("m1"))
	assert.Equal(t, PhaseConnecting, m.View().Phase)
	assert.Empty(t, m.View().MatchID)
	assert.NoError(t, m.BeginMatchRequest(true))
}
