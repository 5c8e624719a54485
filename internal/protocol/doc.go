// Package protocol maps client intents and server events to and from the JSON
// messages exchanged over the game channel.
//
// Client -> Server
//
//	create_match: {}
//	join_match:   match_id?: string
//	paddle_move:  direction: "up" | "down"
//	heartbeat:    {}
//
// Server -> Client
//
//	connection_established: user_id, username
//	match_created:          match_id, state
//	match_joined:           match_id, state, player1_id, player2_id
//	state_update:           state
//	match_over:             winner_id, state?
//	error:                  message
//	tournament_update:      tournament_id, bracket   (tournament channel only)
//
// state:
//
//	match_id: string
//	status:   "waiting" | "active" | "finished"
//	ball:     { x, y, velocity_x, velocity_y, radius }
//	paddles:  { player1: Paddle, player2: Paddle }   // Paddle = { x, y, width, height }
//	score:    { player1, player2 }
//	canvas:   { width, height }
//
// Ids may arrive as JSON strings or numbers.
package protocol
