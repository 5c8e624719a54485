package input

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/DoyleJ11/pong-client/internal/match"
	"github.com/DoyleJ11/pong-client/internal/protocol"
)

const DefaultInterval = 50 * time.Millisecond

// Sampler turns held keys into paddle moves, at most one per interval. It is
// only called from the render loop.
type Sampler struct {
	keys    *Keys
	limiter *rate.Limiter
}

func NewSampler(keys *Keys, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		keys:    keys,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Tick returns the intent to send for this frame, if any. A move is produced
// only while in a match on an open channel, with a key held, when the local
// paddle is not already at that edge and the interval since the last move
// has passed. Up wins when both keys are held.
func (s *Sampler) Tick(now time.Time, v *match.View, channelOpen bool) (protocol.PaddleMove, bool) {
	if !channelOpen || v == nil || v.Phase != match.PhaseInMatch {
		return protocol.PaddleMove{}, false
	}
	up, down := s.keys.Held()
	var d protocol.Direction
	switch {
	case up:
		d = protocol.DirectionUp
	case down:
		d = protocol.DirectionDown
	default:
		return protocol.PaddleMove{}, false
	}

	p, ok := v.LocalPaddle()
	if !ok || AtEdge(p, v.Snapshot.Canvas, d) {
		return protocol.PaddleMove{}, false
	}
	// The token is spent only when a move is actually sent.
	if !s.limiter.AllowN(now, 1) {
		return protocol.PaddleMove{}, false
	}
	return protocol.PaddleMove{Direction: d}, true
}

// AtEdge reports whether p cannot move further in d. An unknown canvas height
// never blocks downward moves.
func AtEdge(p protocol.Paddle, c protocol.Canvas, d protocol.Direction) bool {
	switch d {
	case protocol.DirectionUp:
		return p.Y <= 0
	case protocol.DirectionDown:
		return c.Height > 0 && p.Y >= c.Height-p.Height
	}
	return true
}
