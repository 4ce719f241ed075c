package components

import (
	"waitroom/internal/tui/styles"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBar is the one-line footer. It spins while nothing is on screen.
type StatusBar struct {
	text    string
	failed  bool
	style   lipgloss.Style
	spinner spinner.Model
	loading bool
}

func NewStatusBar() *StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Theme.Help

	return &StatusBar{
		style:   styles.Theme.Footer,
		spinner: s,
	}
}

// SetLoading toggles the spinner. The returned command restarts the tick
// loop when the spinner was idle.
func (s *StatusBar) SetLoading(loading bool) tea.Cmd {
	was := s.loading
	s.loading = loading
	if loading && !was {
		return s.spinner.Tick
	}
	return nil
}

func (s *StatusBar) Loading() bool {
	return s.loading
}

func (s *StatusBar) SetText(text string) {
	s.text = text
	s.failed = false
}

// SetError shows text in the error color until the next SetText.
func (s *StatusBar) SetError(text string) {
	s.text = text
	s.failed = true
}

func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	if s.loading {
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (s *StatusBar) View() string {
	if s.text == "" && !s.loading {
		return ""
	}

	text := s.text
	if s.failed {
		text = styles.Theme.Error.Render(text)
	}
	if s.loading {
		return s.style.Render(s.spinner.View() + " " + text)
	}
	return s.style.Render(text)
}
