package render

import (
	"github.com/charmbracelet/lipgloss"

	"waitroom/internal/engine"
)

// Screen is the full state of the kiosk screen. Renderers mutate it from
// engine callbacks and draw it with View.
type Screen struct {
	Styles Styles
	Layout Options
	Box    Box
	Width  int

	Item     *engine.ItemView
	Hidden   bool
	Status   engine.StatusDisplay
	Message  engine.Message
	Fallback bool
	Err      string
}

// NewScreen returns an empty screen drawn with p.
func NewScreen(p Palette, layout Options, box Box) Screen {
	return Screen{
		Styles: NewStyles(p),
		Layout: layout,
		Box:    box,
		Width:  60,
		Status: engine.StatusDisplay{Mode: engine.StatusHidden},
	}
}

// SetItem shows v and clears the fallback panel.
func (s *Screen) SetItem(v engine.ItemView) {
	s.Item = &v
	s.Hidden = false
	s.Fallback = false
}

// HideItem keeps the category heading but blanks the slide.
func (s *Screen) HideItem() {
	s.Hidden = true
}

// SetFallback replaces the slide with the preparing panel.
func (s *Screen) SetFallback() {
	s.Item = nil
	s.Fallback = true
}

// View draws the screen. The error panel replaces everything else.
func (s Screen) View() string {
	if s.Err != "" {
		return s.Styles.ErrorPanel(s.Err)
	}

	var main []string
	switch {
	case s.Fallback || s.Item == nil:
		main = append(main, s.Styles.CategoryHeading("", ""))
		if s.Fallback {
			main = append(main, s.Styles.FallbackPanel())
		}
	default:
		main = append(main, s.Styles.CategoryHeading(s.Item.CategoryIcon, s.Item.Category))
		if !s.Hidden {
			main = append(main, s.Styles.Item(*s.Item, s.Width))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left, main...)
	if status := s.Styles.StatusPanel(s.Status, s.Box, s.Layout); status != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", status)
	}
	if banner := s.Styles.MessageBanner(s.Message); banner != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", banner)
	}
	return body
}
