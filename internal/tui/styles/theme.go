package styles

import (
	"github.com/charmbracelet/lipgloss"

	"waitroom/internal/render"
)

// Theme defines the kiosk chrome drawn around the slide area
var Theme = build(render.DefaultPalette())

type theme struct {
	App    lipgloss.Style
	Footer lipgloss.Style
	Help   lipgloss.Style
	Error  lipgloss.Style
}

// Apply rebuilds Theme from a configured palette.
func Apply(p render.Palette) {
	Theme = build(p)
}

func build(p render.Palette) theme {
	return theme{
		App: lipgloss.NewStyle().
			Padding(1, 2),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Border)).
			MarginTop(1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Emphasis)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Error)),
	}
}
