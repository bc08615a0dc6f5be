// Package term implements the render surface used by interactive sessions:
// a frame buffer painted by a draw callback and flushed as ANSI output.
package term

import (
	"fmt"
	"io"
	"strings"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Output is the buffered sink a Terminal writes to. Flush delivers everything
// written since the previous Flush.
type Output interface {
	io.Writer
	Flush() error
}

// Terminal redraws frames onto an Output, emitting only rows that changed
// since the previous frame. A Terminal is owned by one goroutine at a time.
type Terminal struct {
	out    Output
	width  int
	height int
	last   []string
	active bool
	full   bool
}

// New constructs a Terminal of the given size. Non-positive sizes fall back
// to 80x24.
func New(out Output, width, height int) *Terminal {
	t := &Terminal{out: out}
	t.Resize(width, height)
	return t
}

// Size returns the current width and height.
func (t *Terminal) Size() (int, int) {
	return t.width, t.height
}

// Resize changes the frame size and forces a full repaint on the next Draw.
func (t *Terminal) Resize(width, height int) {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if width == t.width && height == t.height {
		return
	}
	t.width = width
	t.height = height
	t.full = true
}

// Draw runs fn against a fresh frame and writes the difference to the output.
// Flush is always invoked so a dead output is reported even for unchanged
// frames.
func (t *Terminal) Draw(fn func(*Frame)) error {
	frame := newFrame(t.width, t.height)
	if fn != nil {
		fn(frame)
	}
	lines := frame.lines

	var b strings.Builder
	if !t.active {
		b.WriteString("\x1b[?1049h")
		t.active = true
		t.full = true
	}
	changed := t.full || len(t.last) != len(lines)
	if changed {
		b.WriteString("\x1b[?25l\x1b[H\x1b[2J")
		for i, line := range lines {
			if i > 0 {
				b.WriteString("\r\n")
			}
			b.WriteString(line)
		}
	} else {
		for i, line := range lines {
			if line == t.last[i] {
				continue
			}
			fmt.Fprintf(&b, "\x1b[%d;1H\x1b[2K%s", i+1, line)
		}
	}
	t.last = lines
	t.full = false
	if b.Len() > 0 {
		if _, err := io.WriteString(t.out, b.String()); err != nil {
			return err
		}
	}
	return t.out.Flush()
}

// Clear forgets the previous frame so the next Draw repaints everything.
func (t *Terminal) Clear() {
	t.full = true
}

// Close leaves the alternate screen and restores the cursor.
func (t *Terminal) Close() error {
	if !t.active {
		return nil
	}
	t.active = false
	if _, err := io.WriteString(t.out, "\x1b[?1049l\x1b[?25h"); err != nil {
		return err
	}
	return t.out.Flush()
}
