package match

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

var ErrUnexpectedEvent = errors.New("event not valid in current phase")
var ErrUnsupportedEvent = errors.New("unsupported event")

// Status keys, resolved by the translator.
const (
	StatusConnecting  = "status.connecting"
	StatusWaiting     = "status.waiting"
	StatusInProgress  = "status.in_progress"
	StatusWon         = "status.won"
	StatusLost        = "status.lost"
	StatusFinished    = "status.finished"
	StatusServerError = "status.server_error"
	StatusAbandoned   = "status.abandoned"
)

type Effect interface{ isEffect() }

// ShowStatus asks the display to show a translated status line.
type ShowStatus struct {
	Key  string
	Args []any
}

type ShowScore struct {
	Score protocol.Score
}

type StartRender struct{}

type StopRender struct{}

// Diagnostic is something worth logging that is not an error.
type Diagnostic struct {
	Message string
}

func (ShowStatus) isEffect()  {}
func (ShowScore) isEffect()   {}
func (StartRender) isEffect() {}
func (StopRender) isEffect()  {}
func (Diagnostic) isEffect()  {}

// Apply computes the transition for one inbound event. On error the returned
// state is s, unchanged.
func Apply(s State, ev protocol.Event) ([]Effect, State, error) {
	if ev == nil {
		return nil, s, ErrUnsupportedEvent
	}
	if _, known := Accepts[ev.Kind()]; !known {
		return nil, s, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.Kind())
	}
	if !accepts(s.Phase, ev.Kind()) {
		return nil, s, fmt.Errorf("%w: %s during %s", ErrUnexpectedEvent, ev.Kind(), s.Phase)
	}

	next := s

	switch e := ev.(type) {
	case protocol.ConnectionEstablished:
		next.Identity = e.Identity
		if s.Phase == PhaseUnassigned {
			next.Phase = PhaseConnecting
			return []Effect{ShowStatus{Key: StatusConnecting}}, next, nil
		}
		return nil, next, nil

	case protocol.MatchCreated:
		snap := e.Snapshot
		next.Role = RolePlayer1
		next.MatchID = e.MatchID
		next.Snapshot = &snap
		next.WinnerID = ""
		next.Pending = false
		next.Phase = PhaseAwaitingOpponent
		return []Effect{
			ShowStatus{Key: StatusWaiting},
			ShowScore{Score: snap.Score},
			StartRender{},
		}, next, nil

	case protocol.MatchJoined:
		snap := e.Snapshot
		next.Role = roleFor(s.Identity.ID, e.Player1ID, e.Player2ID)
		next.MatchID = e.MatchID
		next.Snapshot = &snap
		next.WinnerID = ""
		next.Pending = false
		next.Phase = PhaseInMatch

		effects := []Effect{
			ShowStatus{Key: StatusInProgress},
			ShowScore{Score: snap.Score},
			StartRender{},
		}
		if next.Role == RoleNone {
			effects = append(effects, Diagnostic{Message: fmt.Sprintf(
				"local identity %q is neither player1 %q nor player2 %q",
				s.Identity.ID, e.Player1ID, e.Player2ID)})
		}
		return effects, next, nil

	case protocol.StateUpdate:
		snap := e.Snapshot
		next.Snapshot = &snap
		effects := []Effect{ShowScore{Score: snap.Score}}
		if s.Phase == PhaseAwaitingOpponent {
			// an update while waiting means the opponent is here
			next.Phase = PhaseInMatch
			effects = append(effects, ShowStatus{Key: StatusInProgress})
		}
		return effects, next, nil

	case protocol.MatchOver:
		next.Phase = PhaseFinished
		next.WinnerID = e.WinnerID
		next.MatchID = ""
		next.Pending = false
		if e.Snapshot != nil {
			snap := *e.Snapshot
			next.Snapshot = &snap
		}

		effects := []Effect{StopRender{}, ShowStatus{Key: outcomeKey(s, e.WinnerID)}}
		if next.Snapshot != nil {
			effects = append(effects, ShowScore{Score: next.Snapshot.Score})
		}
		return effects, next, nil

	case protocol.ServerError:
		next.Pending = false
		return []Effect{ShowStatus{Key: StatusServerError, Args: []any{e.Message}}}, next, nil

	default:
		return nil, s, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.Kind())
	}
}

// Abandon gives up on the held match after the server failed to resume it.
// Outside a match it returns s unchanged. The last snapshot stays readable.
func Abandon(s State) ([]Effect, State) {
	if !s.Phase.Live() {
		return nil, s
	}
	next := s
	next.Phase = PhaseConnecting
	next.MatchID = ""
	next.Role = RoleNone
	next.WinnerID = ""
	next.Pending = false
	return []Effect{StopRender{}, ShowStatus{Key: StatusAbandoned}}, next
}

func outcomeKey(s State, winner protocol.ID) string {
	switch {
	case s.Role == RoleNone || s.Identity.ID == "":
		return StatusFinished
	case winner == s.Identity.ID:
		return StatusWon
	default:
		return StatusLost
	}
}
