package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nsf/termbox-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pong-client/internal/match"
	"github.com/DoyleJ11/pong-client/internal/protocol"
	"github.com/DoyleJ11/pong-client/internal/render"
)

type memScreen struct {
	w, h    int
	cells   [][]rune
	flushes int
}

func newMemScreen(w, h int) *memScreen {
	m := &memScreen{w: w, h: h}
	m.Clear()
	return m
}

func (m *memScreen) Size() (int, int) { return m.w, m.h }

func (m *memScreen) Clear() {
	m.cells = make([][]rune, m.h)
	for y := range m.cells {
		m.cells[y] = []rune(strings.Repeat(" ", m.w))
	}
}

func (m *memScreen) SetCell(x, y int, ch rune, _, _ termbox.Attribute) {
	if x >= 0 && x < m.w && y >= 0 && y < m.h {
		m.cells[y][x] = ch
	}
}

func (m *memScreen) Flush() error { m.flushes++; return nil }

func (m *memScreen) row(y int) string { return string(m.cells[y]) }

func (m *memScreen) at(x, y int) rune { return m.cells[y][x] }

// 80x26 leaves a 24-row field; a 640x768 canvas maps to 8x32 units per cell.
func liveView() *match.View {
	return &match.View{
		Phase: match.PhaseInMatch,
		Role:  match.RolePlayer1,
		Snapshot: &protocol.Snapshot{
			Ball: protocol.Ball{X: 320, Y: 384, Radius: 8},
			Paddles: protocol.Paddles{
				Player1: protocol.Paddle{X: 0, Y: 0, Width: 16, Height: 128},
				Player2: protocol.Paddle{X: 624, Y: 640, Width: 16, Height: 128},
			},
			Score:  protocol.Score{Player1: 3, Player2: 1},
			Canvas: protocol.Canvas{Width: 640, Height: 768},
		},
	}
}

func TestSurface_PaintsBoard(t *testing.T) {
	scr := newMemScreen(80, 26)
	s := NewSurface(scr)
	s.ShowIdentity(protocol.Identity{ID: "1", Username: "ada"})
	s.SetScore(protocol.Score{Player1: 3, Player2: 1})

	require.NoError(t, s.Paint(liveView()))

	assert.Contains(t, scr.row(0), "[A] ada")
	assert.Contains(t, scr.row(1), "3 : 1")
	assert.Contains(t, scr.row(25), "q quit")

	// player1 spans canvas y 0..128, i.e. field rows 0..3
	for y := 1; y <= 4; y++ {
		assert.Equal(t, '█', scr.at(1, y), "row %d", y)
	}
	assert.NotEqual(t, '█', scr.at(1, 5))
	// player2 spans canvas y 640..768, i.e. field rows 20..23
	for y := 21; y <= 24; y++ {
		assert.Equal(t, '█', scr.at(79, y), "row %d", y)
	}
	assert.Equal(t, '●', scr.at(40, 13))
}

func TestSurface_UndrawableFrames(t *testing.T) {
	s := NewSurface(newMemScreen(80, 26))

	assert.ErrorIs(t, s.Paint(nil), render.ErrNotDrawable)
	v := liveView()
	v.Snapshot = nil
	assert.ErrorIs(t, s.Paint(v), render.ErrNotDrawable)
	v.Snapshot = &protocol.Snapshot{}
	assert.ErrorIs(t, s.Paint(v), render.ErrNotDrawable)
}

func TestSurface_StatusDuringMatchKeepsBoard(t *testing.T) {
	scr := newMemScreen(80, 26)
	s := NewSurface(scr)
	v := liveView()
	s.Follow(func() *match.View { return v })
	require.NoError(t, s.Paint(v))

	s.SetStatus("Match in progress")
	assert.Contains(t, scr.row(0), "Match in progress")
	assert.Equal(t, '●', scr.at(40, 13), "header update leaves the field alone")

	s.SetStatus("ok")
	assert.NotContains(t, scr.row(0), "progress")
}

func TestSurface_IdleShowsBrackets(t *testing.T) {
	scr := newMemScreen(60, 12)
	s := NewSurface(scr)
	s.Follow(func() *match.View { return &match.View{Phase: match.PhaseConnecting} })

	s.ShowBracket("b", protocol.Bracket{Name: "Second", Round: 1})
	s.ShowBracket("a", protocol.Bracket{Name: "Spring Cup", Status: "running", Round: 2, Matches: []protocol.BracketMatch{
		{ID: "1", Round: 1, Player1: "ada", Player2: "bob", Winner: "ada"},
		{ID: "2", Round: 2, Player1: "ada"},
	}})

	assert.Equal(t, "Spring Cup (a) round 2 · running", strings.TrimRight(scr.row(2), " "))
	assert.Equal(t, "  R1  ada vs bob → ada", strings.TrimRight(scr.row(3), " "))
	assert.Equal(t, "  R2  ada vs TBD", strings.TrimRight(scr.row(4), " "))
	assert.Contains(t, scr.row(6), "Second (b)")
}

func TestText_TruncatesWideRunes(t *testing.T) {
	scr := newMemScreen(10, 1)
	end := text(scr, 0, 0, 5, "日本語テキスト", termbox.ColorDefault)
	assert.LessOrEqual(t, end, 5)
	assert.True(t, strings.HasPrefix(scr.row(0), "日"))
}

type fakeEvents struct {
	ch chan termbox.Event
}

func (f *fakeEvents) PollEvent() termbox.Event { return <-f.ch }

func (f *fakeEvents) Interrupt() { f.ch <- termbox.Event{Type: termbox.EventInterrupt} }

type recordedActions struct {
	mu      sync.Mutex
	taps    []protocol.Direction
	creates int
	joins   int
}

func (a *recordedActions) Tap(d protocol.Direction, hold time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.taps = append(a.taps, d)
}

func (a *recordedActions) CreateMatch() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creates++
	return nil
}

func (a *recordedActions) JoinMatch(protocol.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joins++
	return errors.New("held")
}

func key(k termbox.Key) termbox.Event { return termbox.Event{Type: termbox.EventKey, Key: k} }

func char(c rune) termbox.Event { return termbox.Event{Type: termbox.EventKey, Ch: c} }

func TestKeyboard_MapsKeys(t *testing.T) {
	ev := &fakeEvents{ch: make(chan termbox.Event, 16)}
	acts := &recordedActions{}
	redraws := 0
	kb := NewKeyboard(ev, acts, 120*time.Millisecond, func() { redraws++ }, zaptest.NewLogger(t))

	for _, e := range []termbox.Event{
		key(termbox.KeyArrowUp), char('s'), key(termbox.KeyArrowDown), char('W'),
		char('c'), char('j'), {Type: termbox.EventResize}, char('x'), char('q'),
	} {
		ev.ch <- e
	}

	err := kb.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)
	assert.Equal(t, []protocol.Direction{protocol.DirectionUp, protocol.DirectionDown, protocol.DirectionDown, protocol.DirectionUp}, acts.taps)
	assert.Equal(t, 1, acts.creates)
	assert.Equal(t, 1, acts.joins)
	assert.Equal(t, 1, redraws)
}

func TestKeyboard_QuitKeys(t *testing.T) {
	for _, e := range []termbox.Event{key(termbox.KeyEsc), key(termbox.KeyCtrlC), char('Q')} {
		ev := &fakeEvents{ch: make(chan termbox.Event, 1)}
		ev.ch <- e
		err := NewKeyboard(ev, &recordedActions{}, time.Millisecond, nil, zaptest.NewLogger(t)).Run(context.Background())
		assert.ErrorIs(t, err, ErrQuit)
	}
}

func TestKeyboard_StopsOnCancel(t *testing.T) {
	ev := &fakeEvents{ch: make(chan termbox.Event, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewKeyboard(ev, &recordedActions{}, time.Millisecond, nil, zaptest.NewLogger(t)).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("keyboard did not stop")
	}
}

func TestKeyboard_TerminalError(t *testing.T) {
	ev := &fakeEvents{ch: make(chan termbox.Event, 1)}
	boom := errors.New("tty gone")
	ev.ch <- termbox.Event{Type: termbox.EventError, Err: boom}
	err := NewKeyboard(ev, &recordedActions{}, time.Millisecond, nil, zaptest.NewLogger(t)).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
