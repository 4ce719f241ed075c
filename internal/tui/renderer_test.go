package tui

import (
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/tui/messages"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func TestRendererNotReadyUntilAttached(t *testing.T) {
	r := NewRenderer()
	assert.ErrorIs(t, r.Ready(), errors.ErrRendererMissing)

	// Output before attach is dropped
	r.ShowFallback()

	s := &recordingSender{}
	r.Attach(s)
	assert.NoError(t, r.Ready())
	assert.Empty(t, s.msgs)
}

func TestRendererForwardsEngineOutput(t *testing.T) {
	s := &recordingSender{}
	r := NewRenderer()
	r.Attach(s)

	view := engine.ItemView{Filename: "a.json", Item: engine.ContentItem{Title: "x"}}
	status := engine.StatusDisplay{Mode: engine.StatusHidden}
	notice := engine.Message{Text: "hi", Visible: true}

	r.ShowItem(view)
	r.HideItem()
	r.ShowStatus(status)
	r.ShowMessage(notice)
	r.ShowFallback()
	r.ShowError("boom")

	assert.Equal(t, []tea.Msg{
		messages.ItemMsg{View: view},
		messages.HideMsg{},
		messages.StatusMsg{Status: status},
		messages.NoticeMsg{Message: notice},
		messages.FallbackMsg{},
		messages.ErrorMsg{Text: "boom"},
	}, s.msgs)
}
