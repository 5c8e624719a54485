package match

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

var ErrChannelClosed = errors.New("channel is not open")
var ErrMatchHeld = errors.New("a match is already held or requested")

// View is a read-only copy of State published after every transition. Readers
// load it atomically and never see a half-applied update.
type View struct {
	Phase    Phase
	Identity protocol.Identity
	Role     Role
	MatchID  protocol.ID
	Snapshot *protocol.Snapshot
	WinnerID protocol.ID
}

// LocalPaddle returns the paddle this client controls in the published snapshot.
func (v *View) LocalPaddle() (protocol.Paddle, bool) {
	return localPaddle(v.Snapshot, v.Role)
}

// Machine is the single writer of session state.
type Machine struct {
	mu    sync.Mutex
	state State
	view  atomic.Pointer[View]
	log   *zap.Logger
}

func NewMachine(log *zap.Logger) *Machine {
	m := &Machine{state: NewState(), log: log.Named("match")}
	m.publish()
	return m
}

// Handle applies ev and returns the effects the caller should carry out.
// Rejected events leave the state untouched.
func (m *Machine) Handle(ev protocol.Event) ([]Effect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state.Phase
	effects, next, err := Apply(m.state, ev)
	if err != nil {
		m.log.Debug("event rejected", zap.String("kind", string(kindOf(ev))), zap.String("phase", string(prev)), zap.Error(err))
		return nil, err
	}
	m.state = next
	m.publish()

	for _, e := range effects {
		if d, ok := e.(Diagnostic); ok {
			m.log.Warn(d.Message, zap.String("match_id", string(next.MatchID)))
		}
	}
	if next.Phase != prev {
		m.log.Info("phase changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next.Phase)),
			zap.String("role", string(next.Role)),
			zap.String("match_id", string(next.MatchID)))
	}
	return effects, nil
}

// BeginMatchRequest reserves the right to send one create/join intent. It
// fails while the channel is down, while a match id is held, and while an
// earlier request is still unanswered.
func (m *Machine) BeginMatchRequest(channelOpen bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !channelOpen {
		return ErrChannelClosed
	}
	if !m.state.CanRequestMatch() {
		return ErrMatchHeld
	}
	m.state.Pending = true
	return nil
}

// CancelMatchRequest releases a reservation whose intent could not be sent,
// or that the server will never answer because the channel dropped.
func (m *Machine) CancelMatchRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Pending = false
}

// AbandonMatch drops the match with the given id if it is still held, and
// returns the effects to carry out. It returns nil when id is no longer the
// held match.
func (m *Machine) AbandonMatch(id protocol.ID) []Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" || m.state.MatchID != id {
		return nil
	}
	effects, next := Abandon(m.state)
	if len(effects) == 0 {
		return nil
	}
	m.state = next
	m.publish()
	m.log.Info("match abandoned", zap.String("match_id", string(id)))
	return effects
}

// SetIdentity records the identity confirmed by the session guard. The
// channel handshake may overwrite it later with the server's view.
func (m *Machine) SetIdentity(id protocol.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Identity = id
	m.publish()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View never returns nil.
func (m *Machine) View() *View {
	return m.view.Load()
}

func (m *Machine) Snapshot() *protocol.Snapshot {
	return m.view.Load().Snapshot
}

func (m *Machine) publish() {
	s := m.state
	m.view.Store(&View{
		Phase:    s.Phase,
		Identity: s.Identity,
		Role:     s.Role,
		MatchID:  s.MatchID,
		Snapshot: s.Snapshot,
		WinnerID: s.WinnerID,
	})
}

func kindOf(ev protocol.Event) protocol.Kind {
	if ev == nil {
		return ""
	}
	return ev.Kind()
}
