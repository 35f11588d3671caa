package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	labelStyle   = lipgloss.NewStyle().Width(18)
)

// painter renders styles only when writing to a terminal.
type painter struct {
	enabled bool
}

func newPainter(w io.Writer) painter {
	f, ok := w.(*os.File)
	return painter{enabled: ok && term.IsTerminal(int(f.Fd()))}
}

func (p painter) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}

func (p painter) title(s string) string   { return p.render(titleStyle, s) }
func (p painter) success(s string) string { return p.render(successStyle, s) }
func (p painter) warning(s string) string { return p.render(warningStyle, s) }
func (p painter) failure(s string) string { return p.render(errorStyle, s) }
func (p painter) muted(s string) string   { return p.render(mutedStyle, s) }

// label pads a key column. Plain output uses a fixed-width format instead.
func (p painter) label(s string) string {
	if !p.enabled {
		return padRight(s, 18)
	}
	return labelStyle.Render(s)
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
