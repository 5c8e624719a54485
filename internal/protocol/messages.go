package protocol

// Kind is the value of the "type" discriminator on the wire.
type Kind string

// Outbound kinds
const (
	KindCreateMatch Kind = "create_match"
	KindJoinMatch   Kind = "join_match"
	KindPaddleMove  Kind = "paddle_move"
	KindHeartbeat   Kind = "heartbeat"
)

// Inbound kinds
const (
	KindConnectionEstablished Kind = "connection_established"
	KindMatchCreated          Kind = "match_created"
	KindMatchJoined           Kind = "match_joined"
	KindStateUpdate           Kind = "state_update"
	KindMatchOver             Kind = "match_over"
	KindError                 Kind = "error"
	KindTournamentUpdate      Kind = "tournament_update"
)

// Intent is a client request. It expresses what the player wants; the server
// decides what actually happens.
type Intent interface {
	Kind() Kind
}

type CreateMatch struct{}

type JoinMatch struct {
	MatchID ID // empty joins any waiting match
}

type PaddleMove struct {
	Direction Direction
}

type Heartbeat struct{}

func (CreateMatch) Kind() Kind { return KindCreateMatch }
func (JoinMatch) Kind() Kind   { return KindJoinMatch }
func (PaddleMove) Kind() Kind  { return KindPaddleMove }
func (Heartbeat) Kind() Kind   { return KindHeartbeat }

// Event is a decoded server message.
type Event interface {
	Kind() Kind
	isEvent()
}

type ConnectionEstablished struct {
	Identity Identity
}

type MatchCreated struct {
	MatchID  ID
	Snapshot Snapshot
}

type MatchJoined struct {
	MatchID   ID
	Snapshot  Snapshot
	Player1ID ID
	Player2ID ID
}

type StateUpdate struct {
	Snapshot Snapshot
}

type MatchOver struct {
	WinnerID ID
	Snapshot *Snapshot // final state, when the server sends one
}

// ServerError is an error reported by the server. It is informational and
// never ends the session by itself.
type ServerError struct {
	Message string
}

type TournamentUpdate struct {
	TournamentID ID
	Bracket      Bracket
}

func (ConnectionEstablished) Kind() Kind { return KindConnectionEstablished }
func (MatchCreated) Kind() Kind          { return KindMatchCreated }
func (MatchJoined) Kind() Kind           { return KindMatchJoined }
func (StateUpdate) Kind() Kind           { return KindStateUpdate }
func (MatchOver) Kind() Kind             { return KindMatchOver }
func (ServerError) Kind() Kind           { return KindError }
func (TournamentUpdate) Kind() Kind      { return KindTournamentUpdate }

func (ConnectionEstablished) isEvent() {}
func (MatchCreated) isEvent()          {}
func (MatchJoined) isEvent()           {}
func (StateUpdate) isEvent()           {}
func (MatchOver) isEvent()             {}
func (ServerError) isEvent()           {}
func (TournamentUpdate) isEvent()      {}

type Bracket struct {
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Round   int            `json:"round"`
	Matches []BracketMatch `json:"matches"`
}

type BracketMatch struct {
	ID      ID     `json:"id"`
	Round   int    `json:"round"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
	Winner  string `json:"winner,omitempty"`
}
