package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode"
)

// ID is an opaque server identifier. The server is free to send it as a
// string or as a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

type Ball struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocity_x"`
	VelocityY float64 `json:"velocity_y"`
	Radius    float64 `json:"radius"`
}

type Paddle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Paddles struct {
	Player1 Paddle `json:"player1"`
	Player2 Paddle `json:"player2"`
}

type Score struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot is the authoritative match state at one instant. A new snapshot
// always replaces the previous one; it is never patched in place.
type Snapshot struct {
	MatchID ID      `json:"match_id"`
	Status  Status  `json:"status"`
	Ball    Ball    `json:"ball"`
	Paddles Paddles `json:"paddles"`
	Score   Score   `json:"score"`
	Canvas  Canvas  `json:"canvas"`
}

// Drawable reports whether the snapshot has enough geometry to be painted.
func (s *Snapshot) Drawable() bool {
	return s != nil && s.Canvas.Width > 0 && s.Canvas.Height > 0
}

// Identity is the local user as reported by the profile endpoint or the
// channel handshake.
type Identity struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

// Initial returns the upper-cased first rune of the username, used as an
// avatar placeholder.
func (i Identity) Initial() string {
	for _, r := range i.Username {
		return string(unicode.ToUpper(r))
	}
	return "?"
}
