package render

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/match"
)

const DefaultInterval = 16 * time.Millisecond

var ErrNotDrawable = errors.New("snapshot not drawable")

// Painter draws one frame. Returning an error skips the frame.
type Painter interface {
	Paint(v *match.View) error
}

type Config struct {
	Interval time.Duration
	Clock    clockwork.Clock
	// View supplies the latest published state for each frame.
	View    func() *match.View
	Painter Painter
	// Input runs at the start of every frame, before painting.
	Input func(now time.Time, v *match.View)
}

type Stats struct {
	Frames  uint64
	Skipped uint64
}

// Loop repaints at a fixed interval while a match is on screen. The next
// frame is scheduled only after the current one returns, so frames never
// overlap, and a failing frame never stops the loop.
type Loop struct {
	cfg   Config
	clock clockwork.Clock
	log   *zap.Logger

	mu      sync.Mutex
	running bool
	gen     uint64
	timer   clockwork.Timer

	frame   sync.Mutex
	frames  atomic.Uint64
	skipped atomic.Uint64
}

func NewLoop(cfg Config, log *zap.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Loop{cfg: cfg, clock: cfg.Clock, log: log.Named("render")}
}

// Start is a no-op while running.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.gen++
	l.schedule(l.gen)
	l.log.Debug("render started", zap.Duration("interval", l.cfg.Interval))
}

// Stop cancels the next scheduled frame. A frame already in progress
// finishes but does not reschedule.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) Stats() Stats {
	return Stats{Frames: l.frames.Load(), Skipped: l.skipped.Load()}
}

func (l *Loop) stopLocked() {
	if !l.running {
		return
	}
	l.running = false
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.log.Debug("render stopped")
}

func (l *Loop) schedule(gen uint64) {
	l.timer = l.clock.AfterFunc(l.cfg.Interval, func() { l.tick(gen) })
}

func (l *Loop) current(gen uint64) bool {
	return l.running && l.gen == gen
}

func (l *Loop) tick(gen uint64) {
	l.mu.Lock()
	if !l.current(gen) {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	v := l.view()
	if v != nil && !v.Phase.Live() {
		l.mu.Lock()
		if l.current(gen) {
			l.stopLocked()
		}
		l.mu.Unlock()
		return
	}

	l.frame.Lock()
	l.runFrame(v)
	l.frame.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current(gen) {
		l.schedule(gen)
	}
}

func (l *Loop) view() *match.View {
	if l.cfg.View == nil {
		return nil
	}
	return l.cfg.View()
}

func (l *Loop) runFrame(v *match.View) {
	l.frames.Add(1)
	if err := l.paint(v); err != nil {
		l.skipped.Add(1)
		l.log.Debug("frame skipped", zap.Error(err))
	}
}

func (l *Loop) paint(v *match.View) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame panicked: %v", r)
		}
	}()
	if l.cfg.Input != nil {
		l.cfg.Input(l.clock.Now(), v)
	}
	if v == nil {
		return ErrNotDrawable
	}
	if l.cfg.Painter == nil {
		return nil
	}
	return l.cfg.Painter.Paint(v)
}
