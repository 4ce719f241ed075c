package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/tui/messages"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Renderer forwards engine output to a bubbletea program. Send blocks until
// the program reads the message, so the program must be running before the
// engine is started.
type Renderer struct {
	mu      sync.RWMutex
	program Sender
}

var _ engine.Renderer = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Attach sets the program that receives engine output.
func (r *Renderer) Attach(p Sender) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

func (r *Renderer) Ready() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.program == nil {
		return errors.ErrRendererMissing
	}
	return nil
}

func (r *Renderer) ShowItem(view engine.ItemView) { r.send(messages.ItemMsg{View: view}) }
func (r *Renderer) HideItem()                     { r.send(messages.HideMsg{}) }
func (r *Renderer) ShowFallback()                 { r.send(messages.FallbackMsg{}) }
func (r *Renderer) ShowError(msg string)          { r.send(messages.ErrorMsg{Text: msg}) }

func (r *Renderer) ShowStatus(status engine.StatusDisplay) {
	r.send(messages.StatusMsg{Status: status})
}

func (r *Renderer) ShowMessage(msg engine.Message) {
	r.send(messages.NoticeMsg{Message: msg})
}

func (r *Renderer) send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}
