package render

import "strings"

// Options are the layout budgets for status announcements.
type Options struct {
	SingleLineMax int // characters that fit on one line
	BreakWindow   int // search radius around the midpoint for a natural break
	MinFont       int
	MaxFont       int
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{SingleLineMax: 20, BreakWindow: 5, MinFont: 30, MaxFont: 200}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.SingleLineMax < 2 {
		o.SingleLineMax = d.SingleLineMax
	}
	if o.BreakWindow < 0 {
		o.BreakWindow = d.BreakWindow
	}
	if o.MinFont <= 0 {
		o.MinFont = d.MinFont
	}
	if o.MaxFont < o.MinFont {
		o.MaxFont = d.MaxFont
		if o.MaxFont < o.MinFont {
			o.MaxFont = o.MinFont
		}
	}
	return o
}

// naturalBreaks are the phrase endings a line may be broken after, in
// order of preference.
var naturalBreaks = []string{"まで", "から", "です", "ます", "した", "ください"}

// SplitStatusMessage breaks an announcement into display lines.
// Explicit newlines are honoured first. A line longer than
// opts.SingleLineMax is broken after a natural phrase ending close to its
// middle, or at the middle when there is none, and the halves are split
// again until every line fits.
func SplitStatusMessage(text string, opts Options) []string {
	opts = opts.normalized()
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if clean == "" {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, splitLine([]rune(line), opts)...)
	}
	return lines
}

func splitLine(r []rune, opts Options) []string {
	if len(r) <= opts.SingleLineMax {
		return []string{string(r)}
	}

	at := breakPoint(r, opts.BreakWindow)
	var out []string
	for _, part := range [][]rune{r[:at], r[at:]} {
		s := strings.TrimSpace(string(part))
		if s == "" {
			continue
		}
		out = append(out, splitLine([]rune(s), opts)...)
	}
	return out
}

// breakPoint returns the rune offset to split r at. It is always inside
// (0, len(r)) so both halves are shorter than r.
func breakPoint(r []rune, window int) int {
	mid := len(r) / 2
	for _, token := range naturalBreaks {
		tr := []rune(token)
		for i := 1; i+len(tr) < len(r); i++ {
			if !hasPrefixAt(r, tr, i) {
				continue
			}
			end := i + len(tr)
			if abs(end-mid) <= window {
				return end
			}
		}
	}
	if mid < 1 {
		mid = 1
	}
	return mid
}

func hasPrefixAt(r, prefix []rune, at int) bool {
	if at+len(prefix) > len(r) {
		return false
	}
	for i, c := range prefix {
		if r[at+i] != c {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
