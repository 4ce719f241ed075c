package engine

import (
	"fmt"
	"io"
	"math/rand"
	"testing"

	"waitroom/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewLogger(log.WithOutput(io.Discard))
}

func makeFile(name string, mode DisplayMode, n int) *ContentFile {
	f := &ContentFile{Filename: name, Meta: ContentMeta{Title: name, DisplayMode: mode}}
	for i := 0; i < n; i++ {
		f.Items = append(f.Items, ContentItem{Title: fmt.Sprintf("%s-%d", name, i), Text: "text"})
	}
	return f
}

func planFor(files map[string]*ContentFile, settings Settings) *Plan {
	return BuildPlan(PlanInput{
		Settings: settings,
		Files:    files,
		Rand:     rand.New(rand.NewSource(7)),
		Logger:   quietLogger(),
	})
}

func countEntries(q []QueueEntry) map[QueueEntry]int {
	out := map[QueueEntry]int{}
	for _, e := range q {
		out[e]++
	}
	return out
}

func TestRandomWeightMultiplicity(t *testing.T) {
	for w := 1; w <= 10; w++ {
		t.Run(fmt.Sprintf("weight %d", w), func(t *testing.T) {
			settings := DefaultSettings()
			settings.Files = map[string]FileSettings{"tips.json": {Weight: w}}
			p := planFor(map[string]*ContentFile{"tips.json": makeFile("tips.json", ModeRandom, 3)}, settings)

			require.Equal(t, PlanQueue, p.Kind)
			require.Len(t, p.Queue, 3*w)

			seen := map[int]int{}
			for i := 0; i < 3*w; i++ {
				sel, ok := p.Next()
				require.True(t, ok)
				seen[sel.Index]++
			}
			for i := 0; i < 3; i++ {
				assert.Equal(t, w, seen[i], "item %d", i)
			}
			assert.Equal(t, 1, p.Reshuffles)
		})
	}
}

func TestWeightIsClamped(t *testing.T) {
	assert.Equal(t, 1, FileSettings{Weight: 0}.EffectiveWeight())
	assert.Equal(t, 10, FileSettings{Weight: 99}.EffectiveWeight())
	assert.Equal(t, 4, FileSettings{Weight: 4}.EffectiveWeight())
}

func TestReshuffleKeepsMultiset(t *testing.T) {
	p := planFor(map[string]*ContentFile{"tips.json": makeFile("tips.json", ModeRandom, 2)}, DefaultSettings())
	require.Len(t, p.Queue, 2)
	before := countEntries(p.Queue)

	_, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, 0, p.Reshuffles)
	_, ok = p.Next()
	require.True(t, ok)
	assert.Equal(t, 1, p.Reshuffles)

	assert.Equal(t, before, countEntries(p.Queue))
}

func TestOrderEntriesKeepPositions(t *testing.T) {
	settings := DefaultSettings()
	settings.Files = map[string]FileSettings{"b-random.json": {Weight: 3}}
	p := planFor(map[string]*ContentFile{
		"a-order.json":  makeFile("a-order.json", ModeOrder, 3),
		"b-random.json": makeFile("b-random.json", ModeRandom, 4),
	}, settings)
	require.Equal(t, PlanQueue, p.Kind)
	require.Len(t, p.Queue, 3+4*3)

	orderPositions := func() map[int]QueueEntry {
		out := map[int]QueueEntry{}
		for i, e := range p.Queue {
			if !e.Random {
				out[i] = e
			}
		}
		return out
	}
	want := orderPositions()
	require.Len(t, want, 3)
	multiset := countEntries(p.Queue)

	for pass := 0; pass < 5; pass++ {
		for i := 0; i < len(p.Queue); i++ {
			_, ok := p.Next()
			require.True(t, ok)
		}
		assert.Equal(t, want, orderPositions())
		assert.Equal(t, multiset, countEntries(p.Queue))
	}
	assert.Equal(t, 5, p.Reshuffles)
}

func TestSequenceFullCycle(t *testing.T) {
	p := planFor(map[string]*ContentFile{
		"a.json": makeFile("a.json", ModeSequence, 2),
		"b.json": makeFile("b.json", ModeSequence, 3),
	}, DefaultSettings())
	require.Equal(t, PlanSequence, p.Kind)
	assert.Equal(t, 5, p.Len())

	var got []string
	for i := 0; i < 5; i++ {
		sel, ok := p.Next()
		require.True(t, ok)
		got = append(got, sel.Item().Title)
	}
	assert.Equal(t, []string{"a.json-0", "a.json-1", "b.json-0", "b.json-1", "b.json-2"}, got)
	assert.Equal(t, map[string]int{"a.json": 0, "b.json": 0}, p.Progress())
	assert.Equal(t, 1, p.SequenceCycles)

	sel, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "a.json-0", sel.Item().Title)
}

func TestSequenceResumesFromProgress(t *testing.T) {
	p := BuildPlan(PlanInput{
		Settings: DefaultSettings(),
		Files: map[string]*ContentFile{
			"a.json": makeFile("a.json", ModeSequence, 2),
			"b.json": makeFile("b.json", ModeSequence, 3),
		},
		Progress: map[string]int{"a.json": 2, "b.json": 1},
		Logger:   quietLogger(),
	})

	sel, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "b.json-1", sel.Item().Title)
}

func TestEffectiveModePrecedence(t *testing.T) {
	f := makeFile("x.json", ModeOrder, 1)
	assert.Equal(t, ModeSequence, EffectiveMode(f, FileSettings{DisplayMode: ModeSequence}))
	assert.Equal(t, ModeOrder, EffectiveMode(f, FileSettings{}))
	assert.Equal(t, ModeRandom, EffectiveMode(makeFile("y.json", "", 1), FileSettings{DisplayMode: "bogus"}))
}

func TestDisabledFilesExcluded(t *testing.T) {
	off := false
	settings := DefaultSettings()
	settings.Files = map[string]FileSettings{"off.json": {Enabled: &off}}
	p := planFor(map[string]*ContentFile{
		"off.json": makeFile("off.json", ModeOrder, 4),
		"on.json":  makeFile("on.json", ModeOrder, 2),
	}, settings)
	assert.Len(t, p.Queue, 2)
	for _, e := range p.Queue {
		assert.Equal(t, "on.json", e.File)
	}
}

func TestMixedPlanAlternates(t *testing.T) {
	p := planFor(map[string]*ContentFile{
		"order.json": makeFile("order.json", ModeOrder, 2),
		"seq.json":   makeFile("seq.json", ModeSequence, 2),
	}, DefaultSettings())
	require.Equal(t, PlanMixed, p.Kind)

	var got []string
	for i := 0; i < 4; i++ {
		sel, ok := p.Next()
		require.True(t, ok)
		got = append(got, sel.Item().Title)
	}
	assert.Equal(t, []string{"order.json-0", "seq.json-0", "order.json-1", "seq.json-1"}, got)
}

func TestPlaylistTakesPrecedence(t *testing.T) {
	files := map[string]*ContentFile{
		"a.json": makeFile("a.json", ModeSequence, 2),
		"b.json": makeFile("b.json", ModeRandom, 1),
	}
	p := BuildPlan(PlanInput{
		Settings: DefaultSettings(),
		Files:    files,
		Playlist: PlaylistStatus{
			HasPlaylist: true,
			Playlist:    []PlaylistEntry{{Filename: "b.json"}, {Filename: "a.json"}},
		},
		Logger: quietLogger(),
	})
	require.Equal(t, PlanPlaylist, p.Kind)

	var got []string
	for i := 0; i < 4; i++ {
		sel, ok := p.Next()
		require.True(t, ok)
		got = append(got, sel.Item().Title)
	}
	assert.Equal(t, []string{"b.json-0", "a.json-0", "a.json-1", "b.json-0"}, got)
	assert.Equal(t, Cursor{PlaylistIndex: 1, FileIndex: 0}, p.Cursor)
}

func TestPlaylistSkipsBadReferences(t *testing.T) {
	files := map[string]*ContentFile{
		"empty.json": {Filename: "empty.json"},
		"good.json":  makeFile("good.json", ModeOrder, 1),
	}
	p := BuildPlan(PlanInput{
		Files: files,
		Playlist: PlaylistStatus{
			HasPlaylist: true,
			Playlist:    []PlaylistEntry{{Filename: "missing.json"}, {Filename: "empty.json"}, {Filename: "good.json"}},
		},
		Logger: quietLogger(),
	})

	sel, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "good.json", sel.File.Filename)
	assert.Equal(t, Cursor{}, p.Cursor, "single-item file wraps back to slot 0")
}

func TestPlaylistClampsCursor(t *testing.T) {
	files := map[string]*ContentFile{
		"a.json": makeFile("a.json", ModeOrder, 2),
		"b.json": makeFile("b.json", ModeOrder, 2),
	}
	pl := PlaylistStatus{HasPlaylist: true, Playlist: []PlaylistEntry{{Filename: "a.json"}, {Filename: "b.json"}}}

	t.Run("item index past end of shrunken file", func(t *testing.T) {
		p := BuildPlan(PlanInput{Files: files, Playlist: pl, Cursor: Cursor{PlaylistIndex: 0, FileIndex: 9}, Logger: quietLogger()})
		sel, ok := p.Next()
		require.True(t, ok)
		assert.Equal(t, "b.json-0", sel.Item().Title)
	})

	t.Run("playlist index past end", func(t *testing.T) {
		p := BuildPlan(PlanInput{Files: files, Playlist: pl, Cursor: Cursor{PlaylistIndex: 7, FileIndex: 1}, Logger: quietLogger()})
		sel, ok := p.Next()
		require.True(t, ok)
		assert.Equal(t, "a.json-0", sel.Item().Title)
	})
}

func TestPlaylistAllBad(t *testing.T) {
	p := BuildPlan(PlanInput{
		Files:    map[string]*ContentFile{},
		Playlist: PlaylistStatus{HasPlaylist: true, Playlist: []PlaylistEntry{{Filename: "gone.json"}}},
		Logger:   quietLogger(),
	})
	_, ok := p.Next()
	assert.False(t, ok)
}

func TestPlaylistSkipFile(t *testing.T) {
	files := map[string]*ContentFile{
		"a.json": makeFile("a.json", ModeOrder, 3),
		"b.json": makeFile("b.json", ModeOrder, 1),
	}
	p := BuildPlan(PlanInput{
		Files:    files,
		Playlist: PlaylistStatus{HasPlaylist: true, Playlist: []PlaylistEntry{{Filename: "a.json"}, {Filename: "b.json"}}},
		Logger:   quietLogger(),
	})
	_, _ = p.Next()
	p.SkipFile()
	sel, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "b.json-0", sel.Item().Title)
}

func TestEmptyPlan(t *testing.T) {
	p := planFor(nil, DefaultSettings())
	assert.Equal(t, PlanEmpty, p.Kind)
	_, ok := p.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
}

func TestParseContentFile(t *testing.T) {
	t.Run("object form", func(t *testing.T) {
		f, err := ParseContentFile("tips.json", []byte(`{
			"meta": {"title": "健康のヒント", "icon": "🩺", "displayMode": "order"},
			"defaultTiming": {"waitTime": 30, "duration": 12},
			"items": [{"icon": "💧", "title": "水分補給", "text": "こまめに", "displayTime": 5}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, "tips.json", f.Filename)
		assert.Equal(t, ModeOrder, f.Meta.DisplayMode)
		require.NotNil(t, f.DefaultTiming)
		assert.Equal(t, Timing{WaitTime: 30, DisplayTime: 12}, *f.DefaultTiming)
		assert.Equal(t, 5, f.Items[0].DisplayTime)
	})

	t.Run("legacy array", func(t *testing.T) {
		f, err := ParseContentFile("old.json", []byte(`[{"icon":"a","title":"b","text":"c"}]`))
		require.NoError(t, err)
		assert.Len(t, f.Items, 1)
		assert.Equal(t, DisplayMode(""), f.Meta.DisplayMode)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseContentFile("bad.json", []byte(`{"items": [`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.json")
	})
}

func TestSettingsShowTipsDefaultsTrue(t *testing.T) {
	var s Settings
	require.NoError(t, s.UnmarshalJSON([]byte(`{"interval": 30, "duration": 10}`)))
	assert.True(t, s.ShowTips)
	assert.Equal(t, 30, s.Interval)

	require.NoError(t, s.UnmarshalJSON([]byte(`{"interval": 30, "showTips": false}`)))
	assert.False(t, s.ShowTips)
}
