package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"waitroom/internal/engine"
)

// Fixed screen texts.
const (
	SystemTitle     = "待合室表示システム"
	FallbackText    = "システム準備中です"
	RoomsHeading    = "🩺 診察順のご案内"
	CategoryTitleAt = 15
)

// Palette is the set of theme colors a frame is drawn with.
type Palette struct {
	Primary  string
	Success  string
	Warning  string
	Error    string
	Info     string
	Emphasis string
	Border   string
}

// DefaultPalette matches the "default" config theme.
func DefaultPalette() Palette {
	return Palette{
		Primary:  "#7B61FF",
		Success:  "#73F59F",
		Warning:  "#F5A623",
		Error:    "#FF4D4F",
		Info:     "#E6E6E6",
		Emphasis: "#5AA9E6",
		Border:   "#626262",
	}
}

// Styles draw the individual screen regions.
type Styles struct {
	Category lipgloss.Style
	Title    lipgloss.Style
	Body     lipgloss.Style
	Card     lipgloss.Style
	Footer   lipgloss.Style
	Status   lipgloss.Style
	Heading  lipgloss.Style
	Label    lipgloss.Style
	Number   lipgloss.Style
	Notice   lipgloss.Style
	Banner   lipgloss.Style
	Alert    lipgloss.Style
}

// NewStyles builds the region styles for p.
func NewStyles(p Palette) Styles {
	return Styles{
		Category: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Primary)),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Primary)).
			MarginBottom(1),
		Body: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Info)),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Border)).
			Padding(1, 2),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Border)),
		Status: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(p.Success)).
			Padding(0, 2),
		Heading: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Info)),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Info)),
		Number: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Success)),
		Notice: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Warning)),
		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Emphasis)).
			Padding(0, 1),
		Alert: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.Error)).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Error)).
			Padding(1, 4),
	}
}

// CategoryHeading renders the category heading with its icon, broken onto two
// lines when long.
func (s Styles) CategoryHeading(icon, title string) string {
	if icon == "" {
		icon = engine.DefaultIcon
	}
	if title == "" {
		title = SystemTitle
	}
	return s.Category.Render(OptimizeTitle(icon+" "+Sanitize(title), CategoryTitleAt))
}

// Item renders one slide inside a card width columns wide. Long titles
// widen the card.
func (s Styles) Item(v engine.ItemView, width int) string {
	icon := v.Item.Icon
	if icon == "" {
		icon = engine.DefaultIcon
	}
	heading := icon + " " + Sanitize(v.Item.Title)

	cardWidth := width
	switch TitleClass(heading) {
	case TitleXLong:
		cardWidth = width + width/2
	case TitleLong:
		cardWidth = width + width/4
	}

	parts := []string{
		s.Title.Render(heading),
		s.Body.Width(cardWidth - 6).Render(Sanitize(v.Item.Text)),
	}
	if v.Count > 0 {
		parts = append(parts, s.Footer.Render(fmt.Sprintf("%d/%d", v.Index+1, v.Count)))
	}
	return s.Card.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// StatusPanel renders the queue numbers or the announcement. Hidden
// status, or rooms with nothing to show, render as an empty string.
func (s Styles) StatusPanel(st engine.StatusDisplay, box Box, opts Options) string {
	switch st.Mode {
	case engine.StatusHidden:
		return ""
	case engine.StatusMessage:
		return s.announcement(st.StatusMessage, box, opts)
	default:
		return s.rooms(st)
	}
}

func (s Styles) rooms(st engine.StatusDisplay) string {
	var rows []string
	for i, room := range []engine.Room{st.Room1, st.Room2} {
		if !room.Visible || room.Number <= 0 {
			continue
		}
		label := Sanitize(room.Label)
		if label == "" {
			label = engine.DefaultRoom1Label
			if i == 1 {
				label = engine.DefaultRoom2Label
			}
		}
		labelStyle := s.Label
		switch RoomLabelClass(label) {
		case LabelCompact:
			label = compact(label)
		case LabelTight:
			labelStyle = labelStyle.PaddingRight(1)
		default:
			labelStyle = labelStyle.PaddingRight(2)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Center,
			labelStyle.Render(label),
			s.Number.Render(fmt.Sprintf("%3d", room.Number)),
		))
	}
	if len(rows) == 0 {
		return ""
	}
	rows = append([]string{s.Heading.Render(RoomsHeading)}, rows...)
	return s.Status.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (s Styles) announcement(msg engine.StatusText, box Box, opts Options) string {
	if !msg.Visible || strings.TrimSpace(msg.Text) == "" {
		return ""
	}
	layout := MessageLayout(Sanitize(msg.Text), box, opts)
	style := s.Notice
	// Terminals have one type size; large layouts get extra air instead.
	if layout.FontSize >= 100 {
		style = style.Padding(1, 2)
	}
	return s.Status.Render(style.Render(strings.Join(layout.Lines, "\n")))
}

// MessageBanner renders the free-text banner, or "" when it is hidden.
func (s Styles) MessageBanner(m engine.Message) string {
	text := strings.TrimSpace(Sanitize(m.Text))
	if !m.Visible || text == "" {
		return ""
	}
	return s.Banner.Render("📢 " + text)
}

// FallbackPanel is shown while nothing is playable.
func (s Styles) FallbackPanel() string {
	return s.Card.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(engine.DefaultIcon+" "+SystemTitle),
		s.Body.Render(FallbackText),
	))
}

// ErrorPanel is the fixed system error screen.
func (s Styles) ErrorPanel(msg string) string {
	return s.Alert.Render("⚠ " + Sanitize(msg))
}
