package tui

import (
	"fmt"
	"time"

	"waitroom/internal/engine"
	"waitroom/internal/log"
	"waitroom/internal/render"
	"waitroom/internal/tui/common"
	"waitroom/internal/tui/components"
	"waitroom/internal/tui/messages"
	"waitroom/internal/tui/views"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Options tune the kiosk model.
type Options struct {
	// Fade blanks the outgoing slide this long before the next one appears
	Fade time.Duration
	// Start is run once the program is up, typically Engine.Init
	Start    func() error
	ShowKeys bool
}

type fadeDoneMsg struct {
	seq int
}

// Model is the bubbletea model for the waiting-room screen.
type Model struct {
	screen   render.Screen
	controls common.Controls
	opts     Options
	status   *components.StatusBar

	// Fade state
	fading  bool
	pending *engine.ItemView
	fadeSeq int

	quitting bool
}

func New(screen render.Screen, controls common.Controls, opts Options) *Model {
	return &Model{
		screen:   screen,
		controls: controls,
		opts:     opts,
		status:   components.NewStatusBar(),
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.status.SetLoading(true), m.startCmd())
}

func (m *Model) startCmd() tea.Cmd {
	if m.opts.Start == nil {
		return nil
	}
	start := m.opts.Start
	return func() tea.Msg {
		return messages.StartedMsg{Err: start()}
	}
}

// Screen returns the current screen state.
func (m *Model) Screen() render.Screen {
	return m.screen
}

// Fading reports whether a slide swap is in progress.
func (m *Model) Fading() bool {
	return m.fading
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	return views.RenderKiosk(m.screen, m.fading, m.status.View(), m.opts.ShowKeys)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.screen.Width = clamp(msg.Width/2, 30, 80)
		return m, nil

	case messages.StartedMsg:
		if msg.Err != nil {
			m.status.SetError("起動に失敗しました: " + msg.Err.Error())
		}
		return m, nil

	case messages.ItemMsg:
		if m.opts.Fade > 0 && m.screen.Item != nil && !m.screen.Hidden && !m.screen.Fallback {
			view := msg.View
			m.pending = &view
			m.fading = true
			m.fadeSeq++
			seq := m.fadeSeq
			return m, tea.Tick(m.opts.Fade, func(time.Time) tea.Msg {
				return fadeDoneMsg{seq: seq}
			})
		}
		return m, m.show(msg.View)

	case fadeDoneMsg:
		if msg.seq != m.fadeSeq || m.pending == nil {
			return m, nil
		}
		return m, m.show(*m.pending)

	case messages.HideMsg:
		cmd := m.flush()
		m.screen.HideItem()
		return m, cmd

	case messages.StatusMsg:
		m.screen.Status = msg.Status
		return m, nil

	case messages.NoticeMsg:
		m.screen.Message = msg.Message
		return m, nil

	case messages.FallbackMsg:
		m.pending, m.fading = nil, false
		m.screen.SetFallback()
		m.status.SetText(render.FallbackText)
		return m, m.status.SetLoading(true)

	case messages.ErrorMsg:
		m.pending, m.fading = nil, false
		m.screen.Err = msg.Text
		m.status.SetLoading(false)
		return m, nil

	case messages.ActionDoneMsg:
		if msg.Err != nil {
			log.LogWithFields(log.F("action", string(msg.Action))).WithError(msg.Err).Warn("Operator action failed")
			m.status.SetError(fmt.Sprintf("%s: %v", msg.Action, msg.Err))
			return m, nil
		}
		m.status.SetText(msg.Action.Label())
		return m, nil

	case spinner.TickMsg:
		return m, m.status.Update(msg)
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case " ", "enter", "right", "l":
		return m, m.run(common.ActionSkipItem)
	case "tab":
		return m, m.run(common.ActionSkipFile)
	case "r":
		return m, m.run(common.ActionReload)
	case "?":
		m.opts.ShowKeys = !m.opts.ShowKeys
	}
	return m, nil
}

// run performs an engine action on a command goroutine. Engine calls block
// on its loop, which in turn sends to this program.
func (m *Model) run(action common.Action) tea.Cmd {
	if m.controls == nil {
		return nil
	}
	c := m.controls
	return func() tea.Msg {
		var err error
		switch action {
		case common.ActionSkipItem:
			err = c.SkipItem()
		case common.ActionSkipFile:
			err = c.SkipFile()
		case common.ActionReload:
			err = c.Reload()
		}
		return messages.ActionDoneMsg{Action: action, Err: err}
	}
}

func (m *Model) show(view engine.ItemView) tea.Cmd {
	m.pending, m.fading = nil, false
	m.screen.SetItem(view)
	m.status.SetText(fmt.Sprintf("%s %d/%d", view.Filename, view.Index+1, view.Count))
	return m.status.SetLoading(false)
}

// flush applies a swap still waiting on its fade.
func (m *Model) flush() tea.Cmd {
	if m.pending == nil {
		return nil
	}
	return m.show(*m.pending)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
