package render

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom/internal/engine"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "こんにちは", "こんにちは"},
		{"ansi colors", "\x1b[31mred\x1b[0m text", "red text"},
		{"controls dropped", "a\x00b\x07c", "abc"},
		{"tabs become spaces", "a\tb", "a b"},
		{"newlines kept", "one\r\ntwo", "one\ntwo"},
		{"markup is literal", "<b>bold</b>", "<b>bold</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestWidth(t *testing.T) {
	assert.Equal(t, 4, Width("\x1b[1mabcd\x1b[0m"))
	assert.Equal(t, 4, Width("診察"))
}

func TestSplitStatusMessageShort(t *testing.T) {
	opts := DefaultOptions()
	assert.Nil(t, SplitStatusMessage("   ", opts))
	assert.Equal(t, []string{"お待ちください"}, SplitStatusMessage("お待ちください", opts))

	twenty := strings.Repeat("あ", 20)
	assert.Equal(t, []string{twenty}, SplitStatusMessage(twenty, opts))
}

func TestSplitStatusMessageExplicitNewlines(t *testing.T) {
	lines := SplitStatusMessage("本日は\n\n午後休診です\n", DefaultOptions())
	assert.Equal(t, []string{"本日は", "午後休診です"}, lines)
}

func TestSplitStatusMessageThirtyOneCharacters(t *testing.T) {
	opts := DefaultOptions()
	text := strings.Repeat("あ", 10) + "まで" + strings.Repeat("い", 19)
	require.Equal(t, 31, utf8.RuneCountInString(text))

	lines := SplitStatusMessage(text, opts)
	require.GreaterOrEqual(t, len(lines), 2)
	for _, l := range lines {
		assert.LessOrEqual(t, utf8.RuneCountInString(l), opts.SingleLineMax)
	}
	assert.Equal(t, strings.Repeat("あ", 10)+"まで", lines[0])
	assert.Equal(t, strings.Repeat("い", 19), lines[1])
}

func TestSplitStatusMessageMidpointWithoutBreakToken(t *testing.T) {
	text := strings.Repeat("か", 31)
	lines := SplitStatusMessage(text, DefaultOptions())
	require.Len(t, lines, 2)
	assert.Equal(t, 15, utf8.RuneCountInString(lines[0]))
	assert.Equal(t, 16, utf8.RuneCountInString(lines[1]))
}

func TestSplitStatusMessageIgnoresDistantBreakToken(t *testing.T) {
	// "まで" ends at rune 3, far from the midpoint of 15.
	text := "一まで" + strings.Repeat("か", 28)
	lines := SplitStatusMessage(text, DefaultOptions())
	require.Len(t, lines, 2)
	assert.Equal(t, 15, utf8.RuneCountInString(lines[0]))
}

func TestSplitStatusMessageRecursesUntilFits(t *testing.T) {
	opts := DefaultOptions()
	text := strings.Repeat("さ", 90)
	lines := SplitStatusMessage(text, opts)
	assert.GreaterOrEqual(t, len(lines), 5)
	total := 0
	for _, l := range lines {
		n := utf8.RuneCountInString(l)
		assert.LessOrEqual(t, n, opts.SingleLineMax)
		total += n
	}
	assert.Equal(t, 90, total)
}

func TestMessageLayoutFontTiers(t *testing.T) {
	opts := DefaultOptions()
	box := Box{Width: 440, Height: 460}

	short := MessageLayout("受付", box, opts)
	assert.Equal(t, 1, short.LineCount)
	assert.Equal(t, 180, short.FontSize) // 400/2*0.9
	assert.Equal(t, 1.0, short.LineHeight)

	medium := MessageLayout("診察は順番です", box, opts)
	assert.Equal(t, 7, medium.MaxChars)
	assert.Equal(t, 46, medium.FontSize) // min(400/7*0.8, 150)

	two := MessageLayout(strings.Repeat("あ", 10)+"まで"+strings.Repeat("い", 19), box, opts)
	assert.Equal(t, 2, two.LineCount)
	assert.Equal(t, 30, two.FontSize) // 400/19*0.65 clamps up to the minimum
	assert.Equal(t, 1.1, two.LineHeight)
}

func TestMessageLayoutClamp(t *testing.T) {
	opts := Options{SingleLineMax: 20, BreakWindow: 5, MinFont: 40, MaxFont: 60}
	big := MessageLayout("受付", Box{Width: 2000, Height: 2000}, opts)
	assert.Equal(t, 60, big.FontSize)

	small := MessageLayout(strings.Repeat("あ", 60), Box{Width: 100, Height: 100}, opts)
	assert.Equal(t, 40, small.FontSize)
	assert.Equal(t, 1.2, small.LineHeight)
}

func TestMessageLayoutDefaultBox(t *testing.T) {
	l := MessageLayout("あいう", Box{}, DefaultOptions())
	assert.Equal(t, 120, l.FontSize) // 400/3*0.9
}

func TestOptimizeTitle(t *testing.T) {
	assert.Equal(t, "💡 健康", OptimizeTitle("💡 健康", 15))
	assert.Equal(t, "💡 季節の\n健康情報とお知らせ", OptimizeTitle("💡 季節の 健康情報とお知らせ", 10))

	noSpace := OptimizeTitle(strings.Repeat("字", 20), 15)
	parts := strings.Split(noSpace, "\n")
	require.Len(t, parts, 2)
	assert.Equal(t, 10, utf8.RuneCountInString(parts[0]))
}

func TestRoomLabelClass(t *testing.T) {
	assert.Equal(t, LabelNormal, RoomLabelClass("受付"))
	assert.Equal(t, LabelTight, RoomLabelClass("処置室"))
	assert.Equal(t, LabelCompact, RoomLabelClass("第 1 診 察 室 A"))
}

func TestTitleClass(t *testing.T) {
	assert.Equal(t, TitleNormal, TitleClass(strings.Repeat("a", 22)))
	assert.Equal(t, TitleLong, TitleClass(strings.Repeat("a", 23)))
	assert.Equal(t, TitleXLong, TitleClass(strings.Repeat("a", 29)))
}

func TestScreenView(t *testing.T) {
	sc := NewScreen(DefaultPalette(), DefaultOptions(), Box{})

	assert.Contains(t, sc.View(), SystemTitle)

	sc.SetItem(engine.ItemView{
		Category:     "健康",
		CategoryIcon: "🍀",
		Item:         engine.ContentItem{Title: "手洗い", Text: "こまめに"},
		Index:        1,
		Count:        3,
	})
	view := sc.View()
	assert.Contains(t, view, "手洗い")
	assert.Contains(t, view, "2/3")
	assert.Contains(t, view, "健康")

	sc.HideItem()
	view = sc.View()
	assert.NotContains(t, view, "手洗い")
	assert.Contains(t, view, "健康")

	sc.Status = engine.StatusDisplay{Mode: engine.StatusRooms, Room1: engine.Room{Number: 12, Visible: true}}
	view = sc.View()
	assert.Contains(t, view, engine.DefaultRoom1Label)
	assert.Contains(t, view, "12")
	assert.NotContains(t, view, engine.DefaultRoom2Label)

	sc.Message = engine.Message{Text: "本日は午後休診", Visible: true}
	assert.Contains(t, sc.View(), "本日は午後休診")

	sc.Err = engine.InitErrorMessage
	view = sc.View()
	assert.Contains(t, view, engine.InitErrorMessage)
	assert.NotContains(t, view, "本日は午後休診")
}

func TestScreenRoomsHiddenWhenNothingVisible(t *testing.T) {
	s := NewStyles(DefaultPalette())
	st := engine.StatusDisplay{Mode: engine.StatusRooms, Room1: engine.Room{Number: 0, Visible: true}, Room2: engine.Room{Number: 5}}
	assert.Empty(t, s.StatusPanel(st, Box{}, DefaultOptions()))
	assert.Empty(t, s.StatusPanel(engine.StatusDisplay{Mode: engine.StatusHidden}, Box{}, DefaultOptions()))
	assert.Empty(t, s.StatusPanel(engine.StatusDisplay{Mode: engine.StatusMessage}, Box{}, DefaultOptions()))
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainRenderer(&buf, NewScreen(DefaultPalette(), DefaultOptions(), Box{}))
	require.NoError(t, p.Ready())

	p.ShowFallback()
	assert.Equal(t, 1, p.Frames())
	assert.Contains(t, buf.String(), FallbackText)

	p.ShowItem(engine.ItemView{Category: "案内", Item: engine.ContentItem{Title: "\x1b[31m受付\x1b[0m", Text: "本文"}})
	assert.Equal(t, 2, p.Frames())
	assert.NotContains(t, buf.String(), "\x1b[31m")

	// Unchanged state does not redraw.
	p.ShowStatus(engine.StatusDisplay{Mode: engine.StatusHidden})
	assert.Equal(t, 2, p.Frames())
}

func TestPlainRendererNotReady(t *testing.T) {
	var p *PlainRenderer
	assert.Error(t, p.Ready())
	assert.Error(t, NewPlainRenderer(nil, Screen{}).Ready())
}
