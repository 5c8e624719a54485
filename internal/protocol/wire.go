package protocol

// outbound is the flat shape of every client message.
type outbound struct {
	Type      Kind      `json:"type"`
	MatchID   ID        `json:"match_id,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// inbound is the union of every server payload. Which fields are required
// depends on Type.
type inbound struct {
	Type         Kind      `json:"type"`
	UserID       *ID       `json:"user_id,omitempty"`
	Username     string    `json:"username,omitempty"`
	MatchID      *ID       `json:"match_id,omitempty"`
	State        *Snapshot `json:"state,omitempty"`
	Player1ID    *ID       `json:"player1_id,omitempty"`
	Player2ID    *ID       `json:"player2_id,omitempty"`
	WinnerID     *ID       `json:"winner_id,omitempty"`
	Message      *string   `json:"message,omitempty"`
	TournamentID *ID       `json:"tournament_id,omitempty"`
	Bracket      *Bracket  `json:"bracket,omitempty"`
}
