package term

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Frame is the buffer a draw callback paints into. Rows are addressed from
// zero; content wider than the frame is clipped.
type Frame struct {
	width  int
	height int
	lines  []string
}

func newFrame(width, height int) *Frame {
	return &Frame{width: width, height: height, lines: make([]string, height)}
}

// Width returns the frame width in cells.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in rows.
func (f *Frame) Height() int { return f.height }

// SetLine replaces a single row. Out of range rows are ignored.
func (f *Frame) SetLine(row int, text string) {
	if row < 0 || row >= f.height {
		return
	}
	f.lines[row] = clip(stripLineBreaks(text), f.width)
}

// Render paints multi-line content starting at the first row.
func (f *Frame) Render(content string) {
	for i, line := range strings.Split(content, "\n") {
		if i >= f.height {
			return
		}
		f.SetLine(i, line)
	}
}

// Lines returns a copy of the painted rows.
func (f *Frame) Lines() []string {
	return append([]string(nil), f.lines...)
}

func stripLineBreaks(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(text)
}

// clip cuts text to width terminal cells. Escape sequences are kept, so a
// trailing reset survives.
func clip(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(text) <= width {
		return text
	}
	return ansi.Truncate(text, width, "")
}
