package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownKind = errors.New("unknown message kind")
var ErrMalformed = errors.New("malformed message")
var ErrInvalidIntent = errors.New("invalid intent")

// DecodeError describes an inbound payload that could not be turned into an
// Event. Callers log it and drop the message.
type DecodeError struct {
	Kind Kind // empty when the discriminator itself was unreadable
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func Encode(in Intent) ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidIntent)
	}
	msg := outbound{Type: in.Kind()}

	switch v := in.(type) {
	case CreateMatch, Heartbeat:
	case JoinMatch:
		msg.MatchID = v.MatchID
	case PaddleMove:
		if !v.Direction.Valid() {
			return nil, fmt.Errorf("%w: direction %q", ErrInvalidIntent, v.Direction)
		}
		msg.Direction = v.Direction
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidIntent, in)
	}
	return json.Marshal(msg)
}

func Decode(b []byte) (Event, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("%w: empty payload", ErrMalformed)}
	}
	var m inbound
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if m.Type == "" {
		return nil, &DecodeError{Err: fmt.Errorf("%w: missing type", ErrMalformed)}
	}

	missing := func(field string) error {
		return &DecodeError{Kind: m.Type, Err: fmt.Errorf("%w: missing %s", ErrMalformed, field)}
	}

	switch m.Type {
	case KindConnectionEstablished:
		if m.UserID == nil {
			return nil, missing("user_id")
		}
		return ConnectionEstablished{Identity: Identity{ID: *m.UserID, Username: m.Username}}, nil

	case KindMatchCreated:
		if m.MatchID == nil {
			return nil, missing("match_id")
		}
		if m.State == nil {
			return nil, missing("state")
		}
		return MatchCreated{MatchID: *m.MatchID, Snapshot: *m.State}, nil

	case KindMatchJoined:
		switch {
		case m.MatchID == nil:
			return nil, missing("match_id")
		case m.State == nil:
			return nil, missing("state")
		case m.Player1ID == nil:
			return nil, missing("player1_id")
		case m.Player2ID == nil:
			return nil, missing("player2_id")
		}
		return MatchJoined{
			MatchID:   *m.MatchID,
			Snapshot:  *m.State,
			Player1ID: *m.Player1ID,
			Player2ID: *m.Player2ID,
		}, nil

	case KindStateUpdate:
		if m.State == nil {
			return nil, missing("state")
		}
		return StateUpdate{Snapshot: *m.State}, nil

	case KindMatchOver:
		if m.WinnerID == nil {
			return nil, missing("winner_id")
		}
		return MatchOver{WinnerID: *m.WinnerID, Snapshot: m.State}, nil

	case KindError:
		if m.Message == nil {
			return nil, missing("message")
		}
		return ServerError{Message: *m.Message}, nil

	case KindTournamentUpdate:
		if m.Bracket == nil {
			return nil, missing("bracket")
		}
		ev := TournamentUpdate{Bracket: *m.Bracket}
		if m.TournamentID != nil {
			ev.TournamentID = *m.TournamentID
		}
		return ev, nil

	default:
		return nil, &DecodeError{Kind: m.Type, Err: ErrUnknownKind}
	}
}
