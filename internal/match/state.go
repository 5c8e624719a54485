package match

import "github.com/DoyleJ11/pong-client/internal/protocol"

type Phase string

const (
	PhaseUnassigned       Phase = "unassigned"
	PhaseConnecting       Phase = "connecting"
	PhaseAwaitingOpponent Phase = "awaiting_opponent"
	PhaseInMatch          Phase = "in_match"
	PhaseFinished         Phase = "finished"
)

// Live reports whether the phase has a match on screen.
func (p Phase) Live() bool {
	return p == PhaseAwaitingOpponent || p == PhaseInMatch
}

type Role string

const (
	RoleNone    Role = ""
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
)

// State is the client-local session state. Snapshot points at an immutable
// value: transitions swap the pointer, they never write through it.
type State struct {
	Phase    Phase
	Identity protocol.Identity
	Role     Role
	MatchID  protocol.ID
	Snapshot *protocol.Snapshot
	WinnerID protocol.ID
	Pending  bool // create/join sent, no match_created/match_joined yet
}

func NewState() State {
	return State{Phase: PhaseUnassigned}
}

// CanRequestMatch reports whether a create/join intent may be sent, ignoring
// channel state.
func (s State) CanRequestMatch() bool {
	return s.MatchID == "" && !s.Pending
}

// LocalPaddle returns the paddle controlled by this client.
func (s State) LocalPaddle() (protocol.Paddle, bool) {
	return localPaddle(s.Snapshot, s.Role)
}

func localPaddle(snap *protocol.Snapshot, role Role) (protocol.Paddle, bool) {
	if snap == nil {
		return protocol.Paddle{}, false
	}
	switch role {
	case RolePlayer1:
		return snap.Paddles.Player1, true
	case RolePlayer2:
		return snap.Paddles.Player2, true
	default:
		return protocol.Paddle{}, false
	}
}

func roleFor(self, p1, p2 protocol.ID) Role {
	if self == "" {
		return RoleNone
	}
	switch self {
	case p1:
		return RolePlayer1
	case p2:
		return RolePlayer2
	default:
		return RoleNone
	}
}
