package term

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

type recordingOutput struct {
	pending bytes.Buffer
	flushed []string
	err     error
}

func (o *recordingOutput) Write(p []byte) (int, error) {
	return o.pending.Write(p)
}

func (o *recordingOutput) Flush() error {
	if o.err != nil {
		return o.err
	}
	o.flushed = append(o.flushed, o.pending.String())
	o.pending.Reset()
	return nil
}

func TestDrawFirstFrameEntersAltScreen(t *testing.T) {
	out := &recordingOutput{}
	term := New(out, 20, 3)
	if err := term.Draw(func(f *Frame) {
		f.Render("hello\nworld")
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(out.flushed) != 1 {
		t.Fatalf("expected one flush, got %d", len(out.flushed))
	}
	got := out.flushed[0]
	if !strings.HasPrefix(got, "\x1b[?1049h") {
		t.Fatalf("expected alt screen enter, got %q", got)
	}
	if !strings.Contains(got, "hello\r\nworld") {
		t.Fatalf("expected frame content, got %q", got)
	}
}

func TestDrawOnlyRewritesChangedRows(t *testing.T) {
	out := &recordingOutput{}
	term := New(out, 20, 3)
	_ = term.Draw(func(f *Frame) { f.Render("a\nb\nc") })
	if err := term.Draw(func(f *Frame) { f.Render("a\nB\nc") }); err != nil {
		t.Fatalf("draw: %v", err)
	}
	got := out.flushed[1]
	if got != "\x1b[2;1H\x1b[2KB" {
		t.Fatalf("expected single row update, got %q", got)
	}
}

func TestDrawUnchangedFrameStillFlushes(t *testing.T) {
	out := &recordingOutput{}
	term := New(out, 10, 2)
	_ = term.Draw(func(f *Frame) { f.Render("same") })
	_ = term.Draw(func(f *Frame) { f.Render("same") })
	if len(out.flushed) != 2 {
		t.Fatalf("expected two flushes, got %d", len(out.flushed))
	}
	if out.flushed[1] != "" {
		t.Fatalf("expected empty second batch, got %q", out.flushed[1])
	}

	out.err = errors.New("gone")
	if err := term.Draw(func(f *Frame) { f.Render("same") }); err == nil {
		t.Fatalf("expected flush error to surface")
	}
}

func TestResizeForcesFullRepaint(t *testing.T) {
	out := &recordingOutput{}
	term := New(out, 10, 2)
	_ = term.Draw(func(f *Frame) { f.Render("x") })
	term.Resize(30, 4)
	_ = term.Draw(func(f *Frame) {
		if f.Width() != 30 || f.Height() != 4 {
			t.Fatalf("expected resized frame, got %dx%d", f.Width(), f.Height())
		}
		f.Render("x")
	})
	if !strings.Contains(out.flushed[1], "\x1b[2J") {
		t.Fatalf("expected full repaint after resize, got %q", out.flushed[1])
	}
}

func TestResizeDefaults(t *testing.T) {
	term := New(&recordingOutput{}, 0, -1)
	if w, h := term.Size(); w != 80 || h != 24 {
		t.Fatalf("expected 80x24 default, got %dx%d", w, h)
	}
}

func TestFrameClipsToWidthAndHeight(t *testing.T) {
	f := newFrame(4, 1)
	f.Render("\x1b[1mabcdef\x1b[0m\nsecond")
	lines := f.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 row, got %d", len(lines))
	}
	if ansi.StringWidth(lines[0]) != 4 {
		t.Fatalf("expected clipped width 4, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "\x1b[0m") {
		t.Fatalf("expected trailing reset to survive clipping, got %q", lines[0])
	}
}

func TestCloseLeavesAltScreen(t *testing.T) {
	out := &recordingOutput{}
	term := New(out, 10, 2)
	if err := term.Close(); err != nil {
		t.Fatalf("close before draw: %v", err)
	}
	if len(out.flushed) != 0 {
		t.Fatalf("expected no output before first draw")
	}
	_ = term.Draw(nil)
	if err := term.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := out.flushed[len(out.flushed)-1]; got != "\x1b[?1049l\x1b[?25h" {
		t.Fatalf("unexpected close sequence %q", got)
	}
}

func TestFrameClipsWideRunesByCells(t *testing.T) {
	f := newFrame(6, 1)
	f.SetLine(0, "日本語テキスト")
	line := f.Lines()[0]
	if w := ansi.StringWidth(line); w != 6 {
		t.Fatalf("expected 6 cells, got %d in %q", w, line)
	}
	if line != "日本語" {
		t.Fatalf("expected first three wide runes, got %q", line)
	}

	f = newFrame(5, 1)
	f.SetLine(0, "日本語")
	if w := ansi.StringWidth(f.Lines()[0]); w > 5 {
		t.Fatalf("a wide rune straddling the edge must be dropped, got %d cells", w)
	}
}
