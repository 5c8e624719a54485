package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/channel"
	"github.com/DoyleJ11/pong-client/internal/i18n"
	"github.com/DoyleJ11/pong-client/internal/input"
	"github.com/DoyleJ11/pong-client/internal/match"
	"github.com/DoyleJ11/pong-client/internal/protocol"
	"github.com/DoyleJ11/pong-client/internal/render"
)

var ErrReconnectFailed = errors.New("reconnect attempts exhausted")

// DefaultResumeGrace is how long a match interrupted by a reconnect is kept
// waiting for the server to carry on with it.
const DefaultResumeGrace = 5 * time.Second

type Guard interface {
	Validate(ctx context.Context) (protocol.Identity, error)
}

// Channel is the duplex link to the game server; *channel.Manager in
// production.
type Channel interface {
	Open(url string) error
	Close() error
	Send(data []byte) error
	Notices() <-chan channel.Notice
	State() channel.State
}

type Display interface {
	SetStatus(text string)
	SetScore(s protocol.Score)
}

type Translator interface {
	T(key string, args ...any) string
}

type Deps struct {
	Guard      Guard
	Channel    Channel
	Painter    render.Painter
	Display    Display
	Translator Translator
	Clock      clockwork.Clock
}

type Options struct {
	GameURL       string
	LoginURL      string
	Frame         time.Duration
	InputInterval time.Duration
	ResumeGrace   time.Duration
	// OnAuthFailure is called once when the session is rejected, with the
	// page the user should sign in at.
	OnAuthFailure func(loginURL string)
}

// Client runs one game session: it validates the session, keeps the game
// channel up, feeds server events to the state machine and drives the
// render loop and input sampling while a match is on screen.
type Client struct {
	deps    Deps
	opts    Options
	machine *match.Machine
	keys    *input.Keys
	sampler *input.Sampler
	loop    *render.Loop
	log     *zap.Logger

	mu          sync.Mutex
	interrupted protocol.ID // match held when the channel dropped
	resume      clockwork.Timer

	closeOnce sync.Once
	closeErr  error
}

func New(deps Deps, opts Options, log *zap.Logger) *Client {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if opts.ResumeGrace <= 0 {
		opts.ResumeGrace = DefaultResumeGrace
	}
	log = log.Named("client")
	c := &Client{
		deps:    deps,
		opts:    opts,
		machine: match.NewMachine(log),
		keys:    input.NewKeys(deps.Clock),
		log:     log,
	}
	c.sampler = input.NewSampler(c.keys, opts.InputInterval)
	c.loop = render.NewLoop(render.Config{
		Interval: opts.Frame,
		Clock:    deps.Clock,
		View:     c.machine.View,
		Painter:  deps.Painter,
		Input:    c.sampleInput,
	}, log)
	return c
}

// Run blocks until ctx is done, the session is rejected or reconnecting
// gives up. The channel is never opened for a rejected session.
func (c *Client) Run(ctx context.Context) error {
	id, err := c.deps.Guard.Validate(ctx)
	if err != nil {
		c.status(i18n.SessionInvalid, c.opts.LoginURL)
		if c.opts.OnAuthFailure != nil {
			c.opts.OnAuthFailure(c.opts.LoginURL)
		}
		return err
	}
	c.machine.SetIdentity(id)

	c.status(match.StatusConnecting)
	if err := c.deps.Channel.Open(c.opts.GameURL); err != nil {
		return fmt.Errorf("open %s: %w", c.opts.GameURL, err)
	}

	notices := c.deps.Channel.Notices()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-notices:
			if err := c.handleNotice(n); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handleNotice(n channel.Notice) error {
	switch n := n.(type) {
	case channel.Connected:
		c.status(i18n.Connected)
		c.awaitResume()

	case channel.Received:
		c.handleFrame(n.Data)

	case channel.Disconnected:
		if n.Intentional {
			return nil
		}
		// An unanswered create/join died with the connection.
		c.machine.CancelMatchRequest()
		c.noteInterrupted()
		c.keys.Reset()
		c.status(i18n.Disconnected)

	case channel.Reconnecting:
		c.status(i18n.Reconnecting, n.Attempt, n.Delay)

	case channel.ReconnectFailed:
		c.cancelResume()
		c.loop.Stop()
		c.keys.Reset()
		c.status(i18n.ReconnectFailed)
		return fmt.Errorf("%w after %d attempts", ErrReconnectFailed, n.Attempts)
	}
	return nil
}

func (c *Client) handleFrame(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		c.log.Warn("dropping undecodable message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	switch ev.(type) {
	case protocol.StateUpdate, protocol.MatchOver, protocol.MatchCreated, protocol.MatchJoined:
		c.cancelResume()
	}
	effects, err := c.machine.Handle(ev)
	if err != nil {
		c.log.Warn("dropping event", zap.String("kind", string(ev.Kind())), zap.Error(err))
		return
	}
	c.apply(effects)
}

func (c *Client) apply(effects []match.Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case match.ShowStatus:
			c.status(e.Key, e.Args...)
		case match.ShowScore:
			if c.deps.Display != nil {
				c.deps.Display.SetScore(e.Score)
			}
		case match.StartRender:
			c.loop.Start()
		case match.StopRender:
			c.loop.Stop()
			c.keys.Reset()
		}
	}
}

// CreateMatch asks the server for a new match. It fails without sending
// anything while the channel is down or a match is held or requested.
func (c *Client) CreateMatch() error {
	return c.requestMatch(protocol.CreateMatch{})
}

// JoinMatch joins id, or any open match when id is empty.
func (c *Client) JoinMatch(id protocol.ID) error {
	return c.requestMatch(protocol.JoinMatch{MatchID: id})
}

func (c *Client) requestMatch(intent protocol.Intent) error {
	if err := c.machine.BeginMatchRequest(c.channelOpen()); err != nil {
		switch {
		case errors.Is(err, match.ErrChannelClosed):
			c.status(i18n.ChannelClosed)
		case errors.Is(err, match.ErrMatchHeld):
			c.status(i18n.MatchHeld)
		}
		return err
	}
	if err := c.send(intent); err != nil {
		c.machine.CancelMatchRequest()
		return err
	}
	c.log.Info("match requested", zap.String("kind", string(intent.Kind())))
	return nil
}

func (c *Client) Press(d protocol.Direction) { c.keys.Press(d) }

func (c *Client) Release(d protocol.Direction) { c.keys.Release(d) }

// Tap holds d for hold, for keyboards that never report a release.
func (c *Client) Tap(d protocol.Direction, hold time.Duration) { c.keys.Tap(d, hold) }

func (c *Client) View() *match.View { return c.machine.View() }

func (c *Client) Snapshot() *protocol.Snapshot { return c.machine.Snapshot() }

func (c *Client) ChannelState() channel.State { return c.deps.Channel.State() }

func (c *Client) RenderStats() render.Stats { return c.loop.Stats() }

func (c *Client) Rendering() bool { return c.loop.Running() }

// Close tears the session down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancelResume()
		c.loop.Stop()
		c.keys.Reset()
		c.closeErr = c.deps.Channel.Close()
	})
	return c.closeErr
}

func (c *Client) noteInterrupted() {
	id := c.machine.View().MatchID
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopResumeLocked()
	if id != "" {
		c.interrupted = id
	}
}

// awaitResume gives the server ResumeGrace after a reconnect to continue the
// interrupted match before it is abandoned.
func (c *Client) awaitResume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.interrupted
	if id == "" {
		return
	}
	c.interrupted = ""
	c.stopResumeLocked()
	c.resume = c.deps.Clock.AfterFunc(c.opts.ResumeGrace, func() { c.abandon(id) })
}

func (c *Client) abandon(id protocol.ID) {
	effects := c.machine.AbandonMatch(id)
	if len(effects) == 0 {
		return
	}
	c.log.Warn("match not resumed after reconnect", zap.String("match_id", string(id)), zap.Duration("grace", c.opts.ResumeGrace))
	c.apply(effects)
}

func (c *Client) cancelResume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupted = ""
	c.stopResumeLocked()
}

func (c *Client) stopResumeLocked() {
	if c.resume != nil {
		c.resume.Stop()
		c.resume = nil
	}
}

func (c *Client) sampleInput(now time.Time, v *match.View) {
	mv, ok := c.sampler.Tick(now, v, c.channelOpen())
	if !ok {
		return
	}
	if err := c.send(mv); err != nil {
		c.log.Debug("paddle move not sent", zap.Error(err))
	}
}

func (c *Client) send(intent protocol.Intent) error {
	data, err := protocol.Encode(intent)
	if err != nil {
		return err
	}
	return c.deps.Channel.Send(data)
}

func (c *Client) channelOpen() bool {
	return c.deps.Channel.State() == channel.StateOpen
}

func (c *Client) status(key string, args ...any) {
	if c.deps.Display == nil {
		return
	}
	text := key
	if c.deps.Translator != nil {
		text = c.deps.Translator.T(key, args...)
	}
	c.deps.Display.SetStatus(text)
}
