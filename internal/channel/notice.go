package channel

import (
	"time"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateRetrying // closed, reconnect timer pending
	StateClosed   // closed for good: explicit close or attempts exhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateRetrying:
		return "closed-pending-retry"
	case StateClosed:
		return "closed-final"
	default:
		return "unknown"
	}
}

// Notice is what the Manager reports upstream, in order.
type Notice interface{ isNotice() }

type Connected struct {
	URL string
}

// Received carries one inbound frame, undecoded.
type Received struct {
	Data []byte
}

type Disconnected struct {
	Err         error
	Intentional bool
}

type Reconnecting struct {
	Attempt int
	Delay   time.Duration
}

// ReconnectFailed is terminal: no further automatic retries will happen.
type ReconnectFailed struct {
	Attempts int
}

func (Connected) isNotice()       {}
func (Received) isNotice()        {}
func (Disconnected) isNotice()    {}
func (Reconnecting) isNotice()    {}
func (ReconnectFailed) isNotice() {}
