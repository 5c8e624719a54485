package tui

import (
	"context"
	"errors"
	"time"

	"github.com/nsf/termbox-go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pong-client/internal/protocol"
)

// ErrQuit is returned by Keyboard.Run when the user asks to leave.
var ErrQuit = errors.New("quit requested")

type EventSource interface {
	PollEvent() termbox.Event
	Interrupt()
}

// Actions is what the keyboard can ask of the game session.
type Actions interface {
	Tap(d protocol.Direction, hold time.Duration)
	CreateMatch() error
	JoinMatch(id protocol.ID) error
}

// Keyboard turns terminal key events into session actions. Terminals send
// repeats while a key is down but no release, so movement keys are tapped
// with a hold time instead of pressed.
type Keyboard struct {
	events  EventSource
	actions Actions
	hold    time.Duration
	redraw  func()
	log     *zap.Logger
}

func NewKeyboard(events EventSource, actions Actions, hold time.Duration, redraw func(), log *zap.Logger) *Keyboard {
	return &Keyboard{events: events, actions: actions, hold: hold, redraw: redraw, log: log.Named("keyboard")}
}

// Run polls events until ctx is done, the terminal fails or the user quits.
func (k *Keyboard) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			k.events.Interrupt()
		case <-stop:
		}
	}()

	for {
		ev := k.events.PollEvent()
		switch ev.Type {
		case termbox.EventInterrupt:
			if ctx.Err() != nil {
				return nil
			}
		case termbox.EventError:
			return ev.Err
		case termbox.EventResize:
			if k.redraw != nil {
				k.redraw()
			}
		case termbox.EventKey:
			if k.handleKey(ev) {
				return ErrQuit
			}
		}
	}
}

// handleKey reports whether the key asks to quit.
func (k *Keyboard) handleKey(ev termbox.Event) bool {
	switch ev.Key {
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return true
	case termbox.KeyArrowUp:
		k.actions.Tap(protocol.DirectionUp, k.hold)
		return false
	case termbox.KeyArrowDown:
		k.actions.Tap(protocol.DirectionDown, k.hold)
		return false
	}

	switch ev.Ch {
	case 'q', 'Q':
		return true
	case 'w', 'W':
		k.actions.Tap(protocol.DirectionUp, k.hold)
	case 's', 'S':
		k.actions.Tap(protocol.DirectionDown, k.hold)
	case 'c', 'C':
		if err := k.actions.CreateMatch(); err != nil {
			k.log.Debug("create refused", zap.Error(err))
		}
	case 'j', 'J':
		if err := k.actions.JoinMatch(""); err != nil {
			k.log.Debug("join refused", zap.Error(err))
		}
	}
	return false
}
