package channel

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

const (
	DefaultHeartbeat   = 30 * time.Second
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
)

type Options struct {
	Heartbeat    time.Duration
	Keepalive    []byte // payload sent on every heartbeat
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
	NoticeBuffer int
	Clock        clockwork.Clock
}

func DefaultOptions() Options {
	keepalive, _ := protocol.Encode(protocol.Heartbeat{})
	return Options{
		Heartbeat:    DefaultHeartbeat,
		Keepalive:    keepalive,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		MaxAttempts:  DefaultMaxAttempts,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,
		SendBuffer:   32,
		NoticeBuffer: 256,
		Clock:        clockwork.NewRealClock(),
	}
}

// withDefaults fills zero fields from DefaultOptions. MaxAttempts is taken
// as given: zero disables reconnects.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Heartbeat <= 0 {
		o.Heartbeat = d.Heartbeat
	}
	if o.Keepalive == nil {
		o.Keepalive = d.Keepalive
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = max(d.MaxDelay, o.BaseDelay)
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.NoticeBuffer <= 0 {
		o.NoticeBuffer = d.NoticeBuffer
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// newBackoff yields min(base*2^n, max) for n = 0, 1, ... and then
// backoff.Stop once MaxAttempts delays have been handed out.
func newBackoff(o Options) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = o.MaxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithMaxRetries(eb, uint64(o.MaxAttempts))
}
