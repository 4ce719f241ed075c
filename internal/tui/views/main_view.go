package views

import (
	"strings"

	"waitroom/internal/render"
	"waitroom/internal/tui/styles"
)

// RenderKiosk draws the screen followed by the footer. While fading the
// slide is blanked and only its heading stays.
func RenderKiosk(screen render.Screen, fading bool, footer string, showKeys bool) string {
	if fading {
		screen.HideItem()
	}

	var sb strings.Builder
	sb.WriteString(screen.View())
	if footer != "" {
		sb.WriteString("\n" + footer)
	}
	if showKeys {
		sb.WriteString("\n" + RenderKeyCommands())
	}
	return styles.Theme.App.Render(sb.String())
}

func RenderKeyCommands() string {
	return styles.Theme.Help.Render("[Space] 次へ  [Tab] 次のファイル  [r] 再読込  [q] 終了")
}
