package tui

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"

	"github.com/DoyleJ11/pong-client/internal/match"
	"github.com/DoyleJ11/pong-client/internal/protocol"
	"github.com/DoyleJ11/pong-client/internal/render"
)

const help = "↑/↓ or w/s move · c create · j join · q quit"

// Surface draws the match and the status line. Every write to the screen
// happens under mu, so the render loop and the event handlers can share it.
type Surface struct {
	mu       sync.Mutex
	screen   Screen
	status   string
	score    protocol.Score
	identity protocol.Identity
	brackets map[string]protocol.Bracket
	view     func() *match.View
}

func NewSurface(screen Screen) *Surface {
	return &Surface{screen: screen, brackets: make(map[string]protocol.Bracket)}
}

// Follow lets the surface tell whether a match is on screen when it redraws
// outside the render loop.
func (s *Surface) Follow(view func() *match.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
}

func (s *Surface) SetStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = text
	s.redraw()
}

func (s *Surface) SetScore(sc protocol.Score) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = sc
}

func (s *Surface) ShowIdentity(id protocol.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.redraw()
}

func (s *Surface) ShowBracket(id string, b protocol.Bracket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brackets[id] = b
	s.redraw()
}

// Redraw repaints outside the render loop, e.g. after a terminal resize.
func (s *Surface) Redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redraw()
}

// Paint draws one frame of v. It returns render.ErrNotDrawable when the
// snapshot lacks the geometry to draw.
func (s *Surface) Paint(v *match.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v == nil || !v.Snapshot.Drawable() {
		return render.ErrNotDrawable
	}

	s.screen.Clear()
	w, h := s.screen.Size()
	s.header(w)
	s.field(w, h, v)
	s.footer(w, h)
	return s.screen.Flush()
}

// redraw refreshes only the header while the render loop owns the field.
// Otherwise it shows the brackets being followed, or the last board.
func (s *Surface) redraw() {
	w, h := s.screen.Size()
	var v *match.View
	if s.view != nil {
		v = s.view()
	}
	if v != nil && v.Phase.Live() {
		for x := 0; x < w; x++ {
			s.screen.SetCell(x, 0, ' ', termbox.ColorDefault, termbox.ColorDefault)
		}
		s.header(w)
		_ = s.screen.Flush()
		return
	}

	s.screen.Clear()
	s.header(w)
	switch {
	case len(s.brackets) > 0:
		s.bracketList(w, h)
	case v != nil && v.Snapshot.Drawable():
		s.field(w, h, v)
	}
	s.footer(w, h)
	_ = s.screen.Flush()
}

func (s *Surface) header(w int) {
	x := text(s.screen, 0, 0, w, "pong", termbox.ColorCyan|termbox.AttrBold)
	if s.identity.ID != "" {
		x = text(s.screen, x+1, 0, w-x-1, fmt.Sprintf("[%s] %s", s.identity.Initial(), s.identity.Username), termbox.ColorGreen)
	}
	if s.status != "" {
		text(s.screen, x+2, 0, w-x-2, s.status, termbox.ColorYellow)
	}
}

func (s *Surface) footer(w, h int) {
	if h < 2 {
		return
	}
	text(s.screen, 0, h-1, w, help, termbox.ColorDefault)
}

// field maps canvas coordinates onto the rows between header and footer.
func (s *Surface) field(w, h int, v *match.View) {
	top, bottom := 1, h-2
	fh := bottom - top + 1
	if w < 3 || fh < 3 {
		return
	}
	snap := v.Snapshot
	sx := float64(w) / snap.Canvas.Width
	sy := float64(fh) / snap.Canvas.Height

	for y := top; y <= bottom; y += 2 {
		s.screen.SetCell(w/2, y, '┊', termbox.ColorDefault, termbox.ColorDefault)
	}

	score := fmt.Sprintf("%d : %d", s.score.Player1, s.score.Player2)
	text(s.screen, (w-runewidth.StringWidth(score))/2, top, w, score, termbox.ColorWhite|termbox.AttrBold)

	paddles := []struct {
		role match.Role
		p    protocol.Paddle
	}{
		{match.RolePlayer1, snap.Paddles.Player1},
		{match.RolePlayer2, snap.Paddles.Player2},
	}
	for _, pd := range paddles {
		p := pd.p
		fg := termbox.ColorWhite
		if pd.role == v.Role {
			fg = termbox.ColorGreen
		}
		col := clamp(int(math.Round((p.X+p.Width/2)*sx)), 0, w-1)
		y0 := clamp(int(math.Floor(p.Y*sy)), 0, fh-1)
		y1 := clamp(int(math.Ceil((p.Y+p.Height)*sy))-1, y0, fh-1)
		for y := y0; y <= y1; y++ {
			s.screen.SetCell(col, top+y, '█', fg, termbox.ColorDefault)
		}
	}

	bx := clamp(int(math.Round(snap.Ball.X*sx)), 0, w-1)
	by := clamp(int(math.Round(snap.Ball.Y*sy)), 0, fh-1)
	s.screen.SetCell(bx, top+by, '●', termbox.ColorYellow, termbox.ColorDefault)
}

func (s *Surface) bracketList(w, h int) {
	y := 2
	for _, id := range slices.Sorted(maps.Keys(s.brackets)) {
		b := s.brackets[id]
		if y >= h-1 {
			return
		}
		title := fmt.Sprintf("%s (%s) round %d", b.Name, id, b.Round)
		if b.Status != "" {
			title += " · " + b.Status
		}
		text(s.screen, 0, y, w, title, termbox.ColorCyan)
		y++
		for _, m := range b.Matches {
			if y >= h-1 {
				return
			}
			line := fmt.Sprintf("  R%d  %s vs %s", m.Round, orTBD(m.Player1), orTBD(m.Player2))
			if m.Winner != "" {
				line += " → " + m.Winner
			}
			text(s.screen, 0, y, w, line, termbox.ColorDefault)
			y++
		}
		y++
	}
}

func orTBD(name string) string {
	if name == "" {
		return "TBD"
	}
	return name
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
