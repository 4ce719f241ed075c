package views

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"waitroom/internal/engine"
	"waitroom/internal/render"
)

func TestRenderKiosk(t *testing.T) {
	item := engine.ItemView{
		Category: "健康",
		Item:     engine.ContentItem{Title: "手洗い", Text: "こまめに"},
		Index:    0,
		Count:    2,
	}

	tests := []struct {
		name     string
		fading   bool
		footer   string
		showKeys bool
		contains []string // Strings that should be present in the output
		excludes []string // Strings that should not be present in the output
	}{
		{
			name:     "item with footer",
			footer:   "tips.json 1/2",
			contains: []string{"健康", "手洗い", "こまめに", "tips.json 1/2"},
			excludes: []string{"[Space]"},
		},
		{
			name:     "fading hides the slide",
			fading:   true,
			contains: []string{"健康"},
			excludes: []string{"手洗い"},
		},
		{
			name:     "key commands",
			showKeys: true,
			contains: []string{"[Space]", "[q]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen := render.NewScreen(render.DefaultPalette(), render.DefaultOptions(), render.Box{})
			screen.SetItem(item)

			output := RenderKiosk(screen, tt.fading, tt.footer, tt.showKeys)
			for _, s := range tt.contains {
				assert.Contains(t, output, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, output, s)
			}
			// The caller's screen is never mutated
			assert.False(t, screen.Hidden)
		})
	}
}
