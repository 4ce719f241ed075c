package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// PlainRenderer writes a full frame to an io.Writer every time the screen
// changes. It suits kiosks driven over a serial console or a log pipe.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	screen Screen
	frames int
}

var _ engine.Renderer = (*PlainRenderer)(nil)

// NewPlainRenderer draws screen to out.
func NewPlainRenderer(out io.Writer, screen Screen) *PlainRenderer {
	return &PlainRenderer{out: out, screen: screen}
}

// Ready fails when there is nowhere to draw.
func (p *PlainRenderer) Ready() error {
	if p == nil || p.out == nil {
		return errors.ErrRendererMissing
	}
	return nil
}

func (p *PlainRenderer) ShowItem(view engine.ItemView) {
	p.update(func(s *Screen) { s.SetItem(view) })
}

func (p *PlainRenderer) HideItem() {
	p.update(func(s *Screen) { s.HideItem() })
}

func (p *PlainRenderer) ShowStatus(status engine.StatusDisplay) {
	p.update(func(s *Screen) { s.Status = status })
}

func (p *PlainRenderer) ShowMessage(msg engine.Message) {
	p.update(func(s *Screen) { s.Message = msg })
}

func (p *PlainRenderer) ShowFallback() {
	p.update(func(s *Screen) { s.SetFallback() })
}

func (p *PlainRenderer) ShowError(msg string) {
	p.update(func(s *Screen) { s.Err = msg })
}

// Frames returns how many frames have been written.
func (p *PlainRenderer) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *PlainRenderer) update(fn func(*Screen)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before := p.screen.View()
	fn(&p.screen)
	frame := p.screen.View()
	if frame == before && p.frames > 0 {
		return
	}

	p.frames++
	rule := strings.Repeat("─", p.screen.Width)
	if _, err := fmt.Fprintf(p.out, "%s\n%s\n", rule, frame); err != nil {
		log.LogWithError(err).Warn("Failed to write frame")
	}
}
