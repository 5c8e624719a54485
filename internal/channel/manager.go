package channel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrNotOpen = errors.New("channel not open")
var ErrSendBufferFull = errors.New("channel send buffer full")
var ErrShutdown = errors.New("channel manager shut down")

type msg interface{ isManagerMsg() }

type openReq struct {
	url   string
	reply chan struct{}
}

type closeReq struct {
	reply chan struct{}
}

type dialDone struct {
	gen  uint64
	conn Conn
	err  error
}

type frame struct {
	gen  uint64
	data []byte
}

type linkDown struct {
	gen uint64
	err error
}

func (openReq) isManagerMsg()  {}
func (closeReq) isManagerMsg() {}
func (dialDone) isManagerMsg() {}
func (linkDown) isManagerMsg() {}

// link is one connection attempt and, once dialed, its reader and writer.
type link struct {
	id     string
	gen    uint64
	url    string
	conn   Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager owns the lifetime of a single duplex channel: dialing, keepalive,
// reconnecting with backoff and teardown. The loop-owned fields are touched
// only by the loop goroutine; other goroutines read the atomics.
type Manager struct {
	inbox  chan msg
	frames chan frame
	out    chan Notice
	opts   Options
	dialer Dialer
	clock  clockwork.Clock
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	live    atomic.Pointer[link]
	state   atomic.Int32
	attempt atomic.Int32

	// loop-owned
	url         string
	gen         uint64
	cur         *link
	backoff     backoff.BackOff
	retry       clockwork.Timer
	heartbeat   clockwork.Ticker
	intentional bool
	pending     []Notice // emitted, not yet taken by the consumer
}

func NewManager(parent context.Context, dialer Dialer, opts Options, log *zap.Logger) *Manager {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)

	m := &Manager{
		inbox:   make(chan msg, 64),
		frames:  make(chan frame),
		out:     make(chan Notice, opts.NoticeBuffer),
		opts:    opts,
		dialer:  dialer,
		clock:   opts.Clock,
		log:     log.Named("channel"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		backoff: newBackoff(opts),
	}

	go m.loop()
	return m
}

// Notices must be drained by the caller. Every notice is delivered, in order.
// While NoticeBuffer notices are waiting, the manager stops reading from the
// connection until the caller catches up.
func (m *Manager) Notices() <-chan Notice { return m.out }

func (m *Manager) State() State { return State(m.state.Load()) }

// Attempt is the number of reconnects scheduled since the last successful open.
func (m *Manager) Attempt() int { return int(m.attempt.Load()) }

// Open connects to url. It is a no-op while a channel is already open;
// otherwise any existing connection and pending timers are dropped first.
func (m *Manager) Open(url string) error {
	reply := make(chan struct{})
	if !m.post(openReq{url: url, reply: reply}) {
		return ErrShutdown
	}
	return m.wait(reply)
}

// Close tears the channel down on purpose. It cancels the pending heartbeat
// and reconnect timers and is safe to call any number of times, including
// after Shutdown.
func (m *Manager) Close() error {
	reply := make(chan struct{})
	if !m.post(closeReq{reply: reply}) {
		return nil
	}
	if err := m.wait(reply); err != nil && !errors.Is(err, ErrShutdown) {
		return err
	}
	return nil
}

// Shutdown closes the channel and stops the manager goroutine.
func (m *Manager) Shutdown() {
	_ = m.Close()
	m.cancel()
	<-m.done
}

// Done is closed when the manager goroutine has exited.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Send queues data on the open connection without blocking.
func (m *Manager) Send(data []byte) error {
	l := m.live.Load()
	if l == nil {
		return ErrNotOpen
	}
	select {
	case <-l.ctx.Done():
		return ErrNotOpen
	default:
	}
	select {
	case l.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (m *Manager) post(v msg) bool {
	select {
	case m.inbox <- v:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Manager) wait(reply <-chan struct{}) error {
	select {
	case <-reply:
		return nil
	case <-m.done:
		return ErrShutdown
	}
}

func (m *Manager) loop() {
	defer close(m.done)

	for {
		var tick, fire <-chan time.Time
		if m.heartbeat != nil {
			tick = m.heartbeat.Chan()
		}
		if m.retry != nil {
			fire = m.retry.Chan()
		}
		var out chan<- Notice
		var next Notice
		if len(m.pending) > 0 {
			out, next = m.out, m.pending[0]
		}
		var frames <-chan frame
		if len(m.pending) < m.opts.NoticeBuffer {
			frames = m.frames
		}

		select {
		case <-m.ctx.Done():
			m.dropLink()
			m.stopRetry()
			return

		case out <- next:
			m.pending[0] = nil
			m.pending = m.pending[1:]

		case f := <-frames:
			if m.cur != nil && f.gen == m.cur.gen && m.State() == StateOpen {
				m.emit(Received{Data: f.data})
			}

		case <-tick:
			m.sendHeartbeat()

		case <-fire:
			m.retry = nil
			if m.State() == StateRetrying {
				m.log.Info("reconnecting", zap.String("url", m.url), zap.Int("attempt", m.Attempt()))
				m.connect()
			}

		case v := <-m.inbox:
			switch msg := v.(type) {
			case openReq:
				m.handleOpen(msg.url)
				close(msg.reply)

			case closeReq:
				m.handleClose()
				close(msg.reply)

			case dialDone:
				m.handleDial(msg)

			case linkDown:
				m.handleLinkDown(msg)
			}
		}
	}
}

func (m *Manager) handleOpen(url string) {
	if m.State() == StateOpen && m.cur != nil {
		if url != m.url {
			m.log.Warn("open ignored, channel already open", zap.String("url", m.url), zap.String("requested", url))
		}
		return
	}
	m.dropLink()
	m.stopRetry()

	m.url = url
	m.intentional = false
	m.attempt.Store(0)
	m.backoff.Reset()
	m.connect()
}

func (m *Manager) connect() {
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	l := &link{
		id:     uuid.NewString(),
		gen:    m.gen,
		url:    m.url,
		send:   make(chan []byte, m.opts.SendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	m.cur = l
	m.setState(StateConnecting)
	m.log.Debug("dialing", zap.String("url", l.url), zap.String("link", l.id))

	go func() {
		dctx, dcancel := context.WithTimeout(l.ctx, m.opts.DialTimeout)
		defer dcancel()
		conn, err := m.dialer.Dial(dctx, l.url)
		if !m.post(dialDone{gen: l.gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (m *Manager) handleDial(d dialDone) {
	if m.cur == nil || d.gen != m.cur.gen {
		if d.conn != nil {
			go d.conn.Close()
		}
		return
	}
	l := m.cur
	if d.err != nil {
		m.log.Warn("dial failed", zap.String("url", l.url), zap.String("link", l.id), zap.Error(d.err))
		m.dropLink()
		m.emit(Disconnected{Err: d.err})
		m.scheduleRetry()
		return
	}

	l.conn = d.conn
	m.attempt.Store(0)
	m.backoff.Reset()
	m.setState(StateOpen)
	m.live.Store(l)
	m.heartbeat = m.clock.NewTicker(m.opts.Heartbeat)

	go m.readLoop(l)
	go m.writeLoop(l)

	m.log.Info("connected", zap.String("url", l.url), zap.String("link", l.id))
	m.emit(Connected{URL: l.url})
}

func (m *Manager) handleLinkDown(d linkDown) {
	if m.cur == nil || d.gen != m.cur.gen {
		return
	}
	l := m.cur
	if cleanClose(d.err) {
		m.log.Info("connection closed by peer", zap.String("link", l.id), zap.Error(d.err))
	} else {
		m.log.Warn("connection lost", zap.String("link", l.id), zap.Error(d.err))
	}
	m.dropLink()
	m.emit(Disconnected{Err: d.err})
	m.scheduleRetry()
}

func (m *Manager) handleClose() {
	m.intentional = true
	active := m.cur != nil || m.retry != nil
	m.stopRetry()

	if l := m.cur; l != nil && l.conn != nil {
		m.setState(StateClosing)
		m.live.Store(nil)
		if err := l.conn.Close(); err != nil {
			m.log.Debug("close", zap.String("link", l.id), zap.Error(err))
		}
	}
	m.dropLink()
	m.setState(StateClosed)

	if active {
		m.log.Info("channel closed", zap.String("url", m.url))
		m.emit(Disconnected{Intentional: true})
	}
}

// scheduleRetry arms the single reconnect timer, or gives up for good once
// the backoff policy is exhausted.
func (m *Manager) scheduleRetry() {
	if m.intentional {
		m.setState(StateClosed)
		return
	}
	if m.retry != nil {
		return
	}

	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		m.setState(StateClosed)
		attempts := m.Attempt()
		m.log.Error("reconnect attempts exhausted", zap.String("url", m.url), zap.Int("attempts", attempts))
		m.emit(ReconnectFailed{Attempts: attempts})
		return
	}

	attempt := int(m.attempt.Add(1))
	m.retry = m.clock.NewTimer(delay)
	m.setState(StateRetrying)
	m.log.Info("reconnect scheduled", zap.Int("attempt", attempt), zap.Duration("delay", delay))
	m.emit(Reconnecting{Attempt: attempt, Delay: delay})
}

func (m *Manager) sendHeartbeat() {
	l := m.live.Load()
	if l == nil {
		return
	}
	select {
	case l.send <- m.opts.Keepalive:
	default:
		m.log.Warn("heartbeat skipped, send buffer full", zap.String("link", l.id))
	}
}

// dropLink forgets the current link and stops its goroutines and heartbeat.
func (m *Manager) dropLink() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	m.live.Store(nil)
	if m.cur != nil {
		m.cur.cancel()
		m.cur = nil
	}
}

func (m *Manager) stopRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// emit queues n behind the notices the consumer has not taken yet.
func (m *Manager) emit(n Notice) {
	m.pending = append(m.pending, n)
}

func (m *Manager) readLoop(l *link) {
	for {
		data, err := l.conn.Read(l.ctx)
		if err != nil {
			m.post(linkDown{gen: l.gen, err: err})
			return
		}
		select {
		case m.frames <- frame{gen: l.gen, data: data}:
		case <-l.ctx.Done():
			return
		}
	}
}

func (m *Manager) writeLoop(l *link) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case data := <-l.send:
			ctx, cancel := context.WithTimeout(l.ctx, m.opts.WriteTimeout)
			err := l.conn.Write(ctx, data)
			cancel()
			if err != nil {
				if l.ctx.Err() == nil {
					m.post(linkDown{gen: l.gen, err: err})
				}
				return
			}
		}
	}
}
