package render

import (
	"math"
	"strings"
	"unicode"
)

// Box is the size of the announcement area in pixels. Zero dimensions
// fall back to a 400x400 usable area.
type Box struct {
	Width  int
	Height int
}

// Layout is the computed presentation of an announcement.
type Layout struct {
	Lines      []string
	LineCount  int
	MaxChars   int
	FontSize   int
	LineHeight float64
}

// MessageLayout splits text and picks a font size so the longest line
// fits the box. Fewer characters get larger type; the result is clamped
// to [opts.MinFont, opts.MaxFont].
func MessageLayout(text string, box Box, opts Options) Layout {
	opts = opts.normalized()
	lines := SplitStatusMessage(text, opts)
	if len(lines) == 0 {
		return Layout{FontSize: opts.MinFont, LineHeight: 1.0}
	}

	maxChars := 0
	for _, l := range lines {
		if n := runeLen(l); n > maxChars {
			maxChars = n
		}
	}

	height := 400.0
	if box.Height > 0 {
		height = float64(box.Height - 60)
	}
	width := 400.0
	if box.Width > 0 {
		width = float64(box.Width - 40)
	}
	perChar := height / float64(maxChars)

	var size, lineHeight float64
	switch len(lines) {
	case 1:
		switch {
		case maxChars <= 4:
			size = math.Min(perChar*0.9, 200)
		case maxChars <= 8:
			size = math.Min(perChar*0.8, 150)
		default:
			size = math.Min(perChar*0.7, 120)
		}
		lineHeight = 1.0
	case 2:
		size = math.Min(perChar*0.65, width/2.5)
		lineHeight = 1.1
	default:
		size = math.Min(perChar*0.5, width/3.2)
		lineHeight = 1.2
	}

	size = math.Max(float64(opts.MinFont), math.Min(size, float64(opts.MaxFont)))

	return Layout{
		Lines:      lines,
		LineCount:  len(lines),
		MaxChars:   maxChars,
		FontSize:   int(math.Round(size)),
		LineHeight: lineHeight,
	}
}

// OptimizeTitle breaks a category title longer than max characters onto
// two lines, preferring the whitespace closest to the middle.
func OptimizeTitle(title string, max int) string {
	title = strings.TrimSpace(title)
	r := []rune(title)
	if max <= 0 || len(r) <= max {
		return title
	}

	mid := len(r) / 2
	best := -1
	for i, c := range r {
		if i == 0 || i == len(r)-1 || !unicode.IsSpace(c) {
			continue
		}
		if best < 0 || abs(i-mid) < abs(best-mid) {
			best = i
		}
	}
	if best < 0 {
		best = breakPoint(r, max/2)
	}

	first := strings.TrimSpace(string(r[:best]))
	second := strings.TrimSpace(string(r[best:]))
	if first == "" || second == "" {
		return title
	}
	return first + "\n" + second
}

// LabelSize is how tightly a room label has to be set.
type LabelSize int

const (
	LabelNormal LabelSize = iota
	LabelTight
	LabelCompact
)

// RoomLabelClass grades a room label by its length without whitespace.
func RoomLabelClass(label string) LabelSize {
	n := runeLen(compact(label))
	switch {
	case n >= 6:
		return LabelCompact
	case n >= 3:
		return LabelTight
	}
	return LabelNormal
}

// TitleSize grades a slide title.
type TitleSize int

const (
	TitleNormal TitleSize = iota
	TitleLong
	TitleXLong
)

// TitleClass grades the full slide heading (icon, space and title).
func TitleClass(heading string) TitleSize {
	n := runeLen(heading)
	switch {
	case n > 28:
		return TitleXLong
	case n > 22:
		return TitleLong
	}
	return TitleNormal
}
