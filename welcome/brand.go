package welcome

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Brand palette.
var (
	ColorLavender = lipgloss.Color("#c3bbe3")
	ColorPeach    = lipgloss.Color("#fad1a3")
	ColorMint     = lipgloss.Color("#ccebb1")
	ColorCoral    = lipgloss.Color("#f07777")
	ColorLight    = lipgloss.Color("#f4f1e6")
	ColorDark     = lipgloss.Color("#252322")
	ColorGray     = lipgloss.Color("#e1e1e1")
	ColorDarkGray = lipgloss.Color("#7c7c7c")
)

var barColors = []lipgloss.Color{ColorLavender, ColorPeach, ColorMint, ColorCoral}

// styles holds the per-renderer styles. Every style paints the dark
// background so inner resets do not punch holes in the screen.
type styles struct {
	base      lipgloss.Style
	rule      lipgloss.Style
	light     lipgloss.Style
	gray      lipgloss.Style
	lavender  lipgloss.Style
	peach     lipgloss.Style
	mint      lipgloss.Style
	mintLink  lipgloss.Style
	mintHint  lipgloss.Style
	mintKey   lipgloss.Style
	coral     lipgloss.Style
	box       lipgloss.Style
	italic    lipgloss.Style
	logoCode  lipgloss.Style
	barStyles []lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	base := r.NewStyle().Background(ColorDark)
	s := styles{
		base:     base,
		rule:     base.Foreground(ColorDarkGray).Bold(true),
		light:    base.Foreground(ColorLight).Bold(true),
		gray:     base.Foreground(ColorGray),
		lavender: base.Foreground(ColorLavender).Bold(true),
		peach:    base.Foreground(ColorPeach).Bold(true),
		mint:     base.Foreground(ColorMint).Bold(true),
		mintLink: base.Foreground(ColorMint).Bold(true).Underline(true),
		mintHint: base.Foreground(ColorMint).Italic(true).Blink(true),
		mintKey:  base.Foreground(ColorMint).Bold(true).Blink(true),
		coral:    base.Foreground(ColorCoral).Bold(true),
		box:      base.Foreground(ColorDarkGray),
		italic:   base.Foreground(ColorGray).Italic(true),
		logoCode: r.NewStyle().Foreground(ColorDark).Background(ColorLight),
	}
	for _, c := range barColors {
		s.barStyles = append(s.barStyles, base.Foreground(c))
	}
	return s
}

func (s styles) colorBar(block string) string {
	var b strings.Builder
	for _, st := range s.barStyles {
		b.WriteString(st.Render(block))
	}
	return b.String()
}

// center pads line with background cells so it sits in the middle of a row
// of the given width. Lines wider than the row are clipped.
func (s styles) center(line string, width int) string {
	w := lipgloss.Width(line)
	if w >= width {
		return ansi.Truncate(line, width, "")
	}
	left := (width - w) / 2
	right := width - w - left
	return s.base.Render(strings.Repeat(" ", left)) + line + s.base.Render(strings.Repeat(" ", right))
}

func (s styles) logo() []string {
	return []string{
		"",
		s.light.Render("culture") + s.logoCode.Render("code"),
		s.colorBar("█"),
	}
}
