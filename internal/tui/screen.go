package tui

import (
	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"
)

// Screen is the cell grid the surface draws on.
type Screen interface {
	Size() (w, h int)
	Clear()
	SetCell(x, y int, ch rune, fg, bg termbox.Attribute)
	Flush() error
}

// Termbox is the terminal itself. Only one may exist per process.
type Termbox struct{}

func OpenTermbox() (*Termbox, error) {
	if err := termbox.Init(); err != nil {
		return nil, err
	}
	termbox.SetInputMode(termbox.InputEsc)
	termbox.HideCursor()
	return &Termbox{}, nil
}

func (*Termbox) Size() (int, int) { return termbox.Size() }

func (*Termbox) Clear() { _ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault) }

func (*Termbox) SetCell(x, y int, ch rune, fg, bg termbox.Attribute) {
	termbox.SetCell(x, y, ch, fg, bg)
}

func (*Termbox) Flush() error { return termbox.Flush() }

func (*Termbox) PollEvent() termbox.Event { return termbox.PollEvent() }

func (*Termbox) Interrupt() { termbox.Interrupt() }

func (*Termbox) Close() { termbox.Close() }

// text writes s from (x, y) and returns the column after it. Wide runes take
// two cells; anything past maxw cells is cut with an ellipsis.
func text(s Screen, x, y, maxw int, str string, fg termbox.Attribute) int {
	if maxw <= 0 {
		return x
	}
	if runewidth.StringWidth(str) > maxw {
		str = runewidth.Truncate(str, maxw, "…")
	}
	for _, r := range str {
		s.SetCell(x, y, r, fg, termbox.ColorDefault)
		x += runewidth.RuneWidth(r)
	}
	return x
}
