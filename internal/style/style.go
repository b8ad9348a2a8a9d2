// Package style provides the lipgloss styles and status glyphs used in
// reap's terminal output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/steveyegge/reap/internal/ui"
)

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Status glyphs, pre-rendered. Plain markers stand in when
// ui.ShouldUseEmoji is false.
var (
	SuccessPrefix string
	WarningPrefix string
	ErrorPrefix   string
	SkipPrefix    string
)

type glyphSet struct {
	success, warning, failure, skip string
}

var (
	unicodeGlyphs = glyphSet{success: "✓", warning: "⚠", failure: "✗", skip: "○"}
	plainGlyphs   = glyphSet{success: "[ok]", warning: "[!]", failure: "[x]", skip: "[-]"}
)

func init() {
	if !ui.ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	setGlyphs(ui.ShouldUseEmoji())
}

func setGlyphs(emoji bool) {
	g := plainGlyphs
	if emoji {
		g = unicodeGlyphs
	}
	SuccessPrefix = Success.Render(g.success)
	WarningPrefix = Warning.Render(g.warning)
	ErrorPrefix = Error.Render(g.failure)
	SkipPrefix = Dim.Render(g.skip)
}
