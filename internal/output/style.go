package output

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorGreen  = lipgloss.Color("#4dca7d")
	colorYellow = lipgloss.Color("#f5c800")
	colorRed    = lipgloss.Color("#f46251")
	colorBlue   = lipgloss.Color("#4cc8f1")
	colorGray   = lipgloss.Color("#808080")
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styles decorates console text. A plain Styles returns text unchanged.
type Styles struct {
	decorate bool

	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	hint    lipgloss.Style
	muted   lipgloss.Style
	code    lipgloss.Style
}

// NewStyles creates Styles; decorate is normally IsTerminal(stdout).
func NewStyles(decorate bool) *Styles {
	return &Styles{
		decorate: decorate,
		success:  lipgloss.NewStyle().Foreground(colorGreen),
		warning:  lipgloss.NewStyle().Foreground(colorYellow),
		failure:  lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		hint:     lipgloss.NewStyle().Foreground(colorBlue),
		muted:    lipgloss.NewStyle().Foreground(colorGray),
		code: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue),
	}
}

func (s *Styles) render(style lipgloss.Style, prefix, text string) string {
	if !s.decorate {
		return text
	}
	return style.Render(prefix + text)
}

// Success renders a completed step.
func (s *Styles) Success(text string) string {
	return s.render(s.success, "✓ ", text)
}

// Warning renders a warning.
func (s *Styles) Warning(text string) string {
	return s.render(s.warning, "⚠️  ", text)
}

// Failure renders an error.
func (s *Styles) Failure(text string) string {
	return s.render(s.failure, "❌ ", text)
}

// Hint renders a tip.
func (s *Styles) Hint(text string) string {
	return s.render(s.hint, "💡 ", text)
}

// Muted renders secondary text such as backend log lines.
func (s *Styles) Muted(text string) string {
	return s.render(s.muted, "", text)
}

// UserCode renders the device-flow code the user types into the browser.
func (s *Styles) UserCode(code, verificationURI string) string {
	if !s.decorate {
		return "Enter code " + code + " at " + verificationURI
	}
	var b strings.Builder
	b.WriteString(s.code.Render(code))
	b.WriteString("\n")
	b.WriteString(s.muted.Render("Enter this code at " + verificationURI))
	return b.String()
}
