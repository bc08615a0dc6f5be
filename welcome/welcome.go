// Package welcome renders the interactive welcome screen shown to clients
// that connect as the interactive user.
package welcome

import (
	"bytes"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mdp/qrterminal/v3"
	"github.com/muesli/termenv"

	"pkt.systems/culturessh/term"
)

const (
	// ExitHint is the token users type to leave the screen.
	ExitHint = "200"

	ruleLine  = "────────────────────────────────────────────────────"
	boxTop    = "╭─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─╮"
	boxBottom = "╰─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─╯"
	tailBars  = 29
)

// Model is the render state of one interactive session. It is owned by the
// session's update loop and is not safe for concurrent use.
type Model struct {
	showLink bool
	link     string
	pending  bool
	styles   styles

	qrLink  string
	qrLines []string
}

// New constructs a Model that shows link once revealed.
func New(link string) *Model {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.TrueColor)
	return &Model{
		link:   link,
		styles: newStyles(r),
	}
}

// Reveal shows the invite link. It reports true the first time only.
func (m *Model) Reveal() bool {
	if m.showLink {
		return false
	}
	m.showLink = true
	return true
}

// Revealed reports whether the link is visible.
func (m *Model) Revealed() bool {
	return m.showLink
}

// Link returns the link currently displayed once revealed.
func (m *Model) Link() string {
	return m.link
}

// SetLink replaces the displayed link.
func (m *Model) SetLink(link string) {
	if strings.TrimSpace(link) == "" {
		return
	}
	m.link = link
}

// SetPending marks whether a fresh link is being fetched.
func (m *Model) SetPending(pending bool) {
	m.pending = pending
}

// Draw paints the current view into the frame.
func (m *Model) Draw(f *term.Frame) {
	f.Render(m.View(f.Width(), f.Height()))
}

// View renders the full screen for the given size.
func (m *Model) View(width, height int) string {
	s := m.styles
	lines := make([]string, 0, height)
	lines = append(lines, s.logo()...)
	lines = append(lines, m.welcomeLines()...)
	lines = append(lines, m.tailLines(height-len(lines))...)
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = s.center(line, width)
	}
	return strings.Join(out, "\n")
}

func (m *Model) welcomeLines() []string {
	s := m.styles
	lines := []string{
		s.rule.Render(ruleLine),
		s.light.Render("Congratulations") + s.gray.Render(", your ") + s.lavender.Render("PublicKey"),
		s.gray.Render("has been ") + s.peach.Render("accepted"),
		"",
		s.box.Render(boxTop),
	}
	if m.showLink {
		link := m.link
		if m.pending {
			link += " …"
		}
		lines = append(lines, s.box.Render("|          ")+s.mintLink.Render(link)+s.box.Render("          |"))
	} else {
		lines = append(lines,
			s.box.Render("|         ")+
				s.mintHint.Render("press ")+
				s.mintKey.Render("'D' ")+
				s.mintHint.Render("to reveal your link")+
				s.box.Render("         |"))
	}
	lines = append(lines, s.box.Render(boxBottom))
	if m.showLink {
		lines = append(lines,
			"",
			s.italic.Render("This is the beginning — ")+
				s.lavender.Render("welcome ")+
				s.peach.Render("to ")+
				s.mint.Render("the ")+
				s.coral.Render("culture"),
			"",
			s.box.Render("to exit type: ")+s.light.Render("'"+ExitHint+"'"),
		)
	}
	return lines
}

func (m *Model) tailLines(room int) []string {
	s := m.styles
	if room <= 0 {
		return nil
	}
	lines := []string{s.rule.Render(ruleLine)}
	if m.showLink {
		if qr := m.qr(); len(qr) > 0 && len(qr)+1 <= room {
			for _, row := range qr {
				lines = append(lines, s.gray.Render(row))
			}
			return lines
		}
	}
	bar := s.colorBar("█")
	for i := 0; i < tailBars; i++ {
		lines = append(lines, bar)
	}
	return lines
}

func (m *Model) qr() []string {
	if !strings.HasPrefix(m.link, "http") {
		return nil
	}
	if m.qrLink == m.link {
		return m.qrLines
	}
	var buf bytes.Buffer
	qrterminal.GenerateHalfBlock(m.link, qrterminal.L, &buf)
	rows := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	m.qrLink = m.link
	m.qrLines = rows
	return rows
}
