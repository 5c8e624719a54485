package match

import (
	"slices"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

var anyPhase = []Phase{
	PhaseUnassigned,
	PhaseConnecting,
	PhaseAwaitingOpponent,
	PhaseInMatch,
	PhaseFinished,
}

// Accepts lists the phases in which each inbound kind is meaningful.
// match_joined is accepted while awaiting an opponent because the creator is
// told about the join the same way the joiner is.
var Accepts = map[protocol.Kind][]Phase{
	protocol.KindConnectionEstablished: anyPhase,
	protocol.KindMatchCreated:          {PhaseUnassigned, PhaseConnecting, PhaseFinished},
	protocol.KindMatchJoined:           {PhaseUnassigned, PhaseConnecting, PhaseAwaitingOpponent, PhaseFinished},
	protocol.KindStateUpdate:           {PhaseAwaitingOpponent, PhaseInMatch},
	protocol.KindMatchOver:             {PhaseAwaitingOpponent, PhaseInMatch},
	protocol.KindError:                 anyPhase,
}

func accepts(p Phase, k protocol.Kind) bool {
	return slices.Contains(Accepts[k], p)
}
