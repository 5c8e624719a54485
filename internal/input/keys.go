package input

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

// Keys tracks which of the two paddle keys are held. It is written by the
// keyboard goroutine and read by the render loop.
type Keys struct {
	mu    sync.Mutex
	clock clockwork.Clock
	up    key
	down  key
}

type key struct {
	held    bool
	gen     uint64
	release clockwork.Timer
}

func NewKeys(clock clockwork.Clock) *Keys {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Keys{clock: clock}
}

func (k *Keys) Press(d protocol.Direction) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if kk := k.key(d); kk != nil {
		kk.stop()
		kk.held = true
	}
}

// Release stops future intents for d. Nothing is sent.
func (k *Keys) Release(d protocol.Direction) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if kk := k.key(d); kk != nil {
		kk.stop()
		kk.held = false
	}
}

// Tap is Press for input devices that never report a release: d stays held
// until hold passes without another Tap. Tapping one direction releases the
// other.
func (k *Keys) Tap(d protocol.Direction, hold time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()

	kk := k.key(d)
	if kk == nil {
		return
	}
	if other := k.key(opposite(d)); other != nil {
		other.stop()
		other.held = false
	}
	kk.stop()
	kk.held = true
	gen := kk.gen
	kk.release = k.clock.AfterFunc(hold, func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		// A timer that fired while being replaced must not undo the new press.
		if kk.gen != gen {
			return
		}
		kk.held = false
		kk.release = nil
	})
}

// Held reports the current key state.
func (k *Keys) Held() (up, down bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.up.held, k.down.held
}

// Reset releases both keys.
func (k *Keys) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, kk := range []*key{&k.up, &k.down} {
		kk.stop()
		kk.held = false
	}
}

func (k *Keys) key(d protocol.Direction) *key {
	switch d {
	case protocol.DirectionUp:
		return &k.up
	case protocol.DirectionDown:
		return &k.down
	}
	return nil
}

func (kk *key) stop() {
	kk.gen++
	if kk.release != nil {
		kk.release.Stop()
		kk.release = nil
	}
}

func opposite(d protocol.Direction) protocol.Direction {
	if d == protocol.DirectionUp {
		return protocol.DirectionDown
	}
	return protocol.DirectionUp
}
