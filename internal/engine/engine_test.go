package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"waitroom/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu          sync.Mutex
	settings    Settings
	settingsErr error
	message     Message
	status      StatusDisplay
	playlist    PlaylistStatus
	files       map[string]*ContentFile
	polls       int
}

func newFakeSource(files ...*ContentFile) *fakeSource {
	s := &fakeSource{settings: Settings{Interval: 20, Duration: 8, ShowTips: true}, status: DefaultStatus(), files: map[string]*ContentFile{}}
	for _, f := range files {
		s.files[f.Filename] = f
	}
	return s
}

func (s *fakeSource) update(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeSource) Settings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.settingsErr != nil {
		return Settings{}, s.settingsErr
	}
	return s.settings, nil
}

func (s *fakeSource) Message(ctx context.Context) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message, nil
}

func (s *fakeSource) Status(ctx context.Context) (StatusDisplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *fakeSource) Playlist(ctx context.Context) (PlaylistStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist, nil
}

func (s *fakeSource) ContentFiles(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeSource) ContentFile(ctx context.Context, name string) (*ContentFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return nil, errors.NewContentError("content file not found", name, errors.ContentNotFound, nil)
	}
	return f, nil
}

type recorder struct {
	mu        sync.Mutex
	notReady  error
	items     []ItemView
	hides     int
	fallbacks int
	errs      []string
	statuses  int
	messages  int
}

func (r *recorder) Ready() error { return r.notReady }

func (r *recorder) ShowItem(v ItemView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

func (r *recorder) HideItem() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hides++
}

func (r *recorder) ShowStatus(StatusDisplay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses++
}

func (r *recorder) ShowMessage(Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages++
}

func (r *recorder) ShowFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func (r *recorder) ShowError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	for i, v := range r.items {
		out[i] = v.Item.Title
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type harness struct {
	e       *Engine
	clock   *FakeClock
	r       *recorder
	cursors *MemoryCursors
	store   CursorStore
	src     *fakeSource
}

func newHarness(t *testing.T, src *fakeSource, opts Options) *harness {
	t.Helper()
	return newHarnessWithStore(t, src, opts, nil)
}

// newHarnessWithStore wraps the harness's memory cursors before they are
// handed to the engine.
func newHarnessWithStore(t *testing.T, src *fakeSource, opts Options, wrap func(*MemoryCursors) CursorStore) *harness {
	t.Helper()
	h := &harness{
		clock:   NewFakeClock(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)),
		r:       &recorder{},
		cursors: NewMemoryCursors(),
		src:     src,
	}
	h.store = h.cursors
	if wrap != nil {
		h.store = wrap(h.cursors)
	}
	h.e = h.engine(opts)
	t.Cleanup(h.e.Destroy)
	return h
}

func (h *harness) engine(opts Options) *Engine {
	opts.Clock = h.clock
	opts.Rand = rand.New(rand.NewSource(3))
	opts.Logger = quietLogger()
	return New(h.src, h.store, h.r, opts)
}

// step advances the clock in poll-sized increments so re-armed timers
// are picked up.
func (h *harness) step(t *testing.T, d time.Duration) {
	t.Helper()
	for d > 0 {
		inc := 5 * time.Second
		if d < inc {
			inc = d
		}
		h.clock.Advance(inc)
		require.NoError(t, h.e.Sync())
		d -= inc
	}
}

func TestInitShowsFirstItemAndArmsTimers(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 3)), Options{})
	require.NoError(t, h.e.Init(context.Background()))

	assert.Equal(t, []string{"tips.json-0"}, h.r.titles())
	assert.Equal(t, 3, h.e.ActiveTimers(), "display, hide and poll")
	assert.True(t, h.e.timers.Armed(timerDisplay))
	assert.True(t, h.e.timers.Armed(timerHide))
	assert.True(t, h.e.timers.Armed(timerPoll))
	assert.Equal(t, 1, h.r.statuses)

	snap, err := h.e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, StateShowing, snap.State)
	assert.Equal(t, PlanQueue, snap.Plan)
	require.NotNil(t, snap.Current)
	assert.Equal(t, Timing{WaitTime: 20, DisplayTime: 8}, snap.Current.Timing)
	assert.Equal(t, "tips.json", snap.Current.Category)
}

func TestTickCycle(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 3)), Options{})
	require.NoError(t, h.e.Init(context.Background()))

	h.clock.Advance(8 * time.Second)
	require.NoError(t, h.e.Sync())
	h.r.mu.Lock()
	assert.Equal(t, 1, h.r.hides)
	h.r.mu.Unlock()
	snap, _ := h.e.Snapshot()
	assert.Equal(t, StateHidden, snap.State)

	h.step(t, 12*time.Second)
	assert.Equal(t, []string{"tips.json-0", "tips.json-1"}, h.r.titles())

	h.step(t, 40*time.Second)
	assert.Equal(t, []string{"tips.json-0", "tips.json-1", "tips.json-2", "tips.json-0"}, h.r.titles())
}

func TestItemTimingOverridesDriveTimers(t *testing.T) {
	f := makeFile("tips.json", ModeOrder, 2)
	f.Items[0].WaitTime = 7
	h := newHarness(t, newFakeSource(f), Options{})
	require.NoError(t, h.e.Init(context.Background()))

	h.clock.Advance(7 * time.Second)
	require.NoError(t, h.e.Sync())
	assert.Equal(t, 2, h.r.count())
}

func TestDestroyIsIdempotent(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 2)), Options{})
	require.NoError(t, h.e.Init(context.Background()))
	require.Equal(t, 3, h.e.ActiveTimers())

	assert.NotPanics(t, h.e.Destroy)
	assert.NotPanics(t, h.e.Destroy)
	assert.Equal(t, 0, h.e.ActiveTimers())
	assert.Equal(t, 0, h.clock.Pending())

	assert.ErrorIs(t, h.e.SkipItem(), ErrDestroyed)
	_, err := h.e.Snapshot()
	assert.ErrorIs(t, err, ErrDestroyed)

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.r.count())
}

func TestDestroyBeforeInit(t *testing.T) {
	h := newHarness(t, newFakeSource(), Options{})
	assert.NotPanics(t, h.e.Destroy)
	assert.ErrorIs(t, h.e.Init(context.Background()), ErrDestroyed)
	assert.Equal(t, 0, h.e.ActiveTimers())
}

func TestInitFailureShowsErrorPanel(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 2)), Options{})
	h.r.notReady = errors.ErrRendererMissing

	err := h.e.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{InitErrorMessage}, h.r.errs)
	assert.Equal(t, 0, h.e.ActiveTimers())
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 0, h.r.count())
}

func TestSettingsFetchFailureFallsBackToDefaults(t *testing.T) {
	src := newFakeSource(makeFile("tips.json", ModeOrder, 3))
	src.settingsErr = errors.NewRemoteError("request failed", "/api/settings", 0, context.DeadlineExceeded)
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))

	snap, err := h.e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), snap.Settings)
	assert.Equal(t, 1, h.r.count())

	h.step(t, 20*time.Second)
	assert.Equal(t, 2, h.r.count(), "keeps ticking on the default interval")
}

func TestShowTipsPauseAndResume(t *testing.T) {
	src := newFakeSource(makeFile("tips.json", ModeOrder, 3))
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))
	require.Equal(t, []string{"tips.json-0"}, h.r.titles())

	src.update(func(s *fakeSource) { s.settings.ShowTips = false })
	h.step(t, 5*time.Second)

	assert.False(t, h.e.timers.Armed(timerDisplay))
	assert.False(t, h.e.timers.Armed(timerHide))
	assert.True(t, h.e.timers.Armed(timerPoll))
	before, _ := h.e.Snapshot()
	assert.Equal(t, StateHidden, before.State)

	h.step(t, 2*time.Minute)
	assert.Equal(t, 1, h.r.count(), "no renders while paused")

	src.update(func(s *fakeSource) { s.settings.ShowTips = true })
	h.step(t, 5*time.Second)
	assert.Equal(t, []string{"tips.json-0", "tips.json-1"}, h.r.titles())
	after, _ := h.e.Snapshot()
	assert.Equal(t, before.QueuePos+1, after.QueuePos)
}

func TestIntervalChangeRebuildsTimers(t *testing.T) {
	src := newFakeSource(makeFile("tips.json", ModeOrder, 3))
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))

	src.update(func(s *fakeSource) { s.settings.Interval = 60 })
	h.step(t, 5*time.Second)

	h.step(t, 55*time.Second)
	assert.Equal(t, 1, h.r.count(), "old 20s deadline no longer applies")

	h.step(t, 5*time.Second)
	assert.Equal(t, 2, h.r.count())
	snap, _ := h.e.Snapshot()
	assert.Equal(t, 60, snap.Current.Timing.WaitTime)
}

func TestManualAdvanceMode(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 3)), Options{ManualAdvance: true})
	require.NoError(t, h.e.Init(context.Background()))

	assert.Equal(t, 1, h.e.ActiveTimers(), "only the poll timer")
	h.step(t, time.Minute)
	assert.Equal(t, 1, h.r.count())

	require.NoError(t, h.e.SkipItem())
	assert.Equal(t, []string{"tips.json-0", "tips.json-1"}, h.r.titles())
	assert.False(t, h.e.timers.Armed(timerDisplay))
}

func TestSkipItemRearmsAutomaticTimers(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 3)), Options{})
	require.NoError(t, h.e.Init(context.Background()))

	h.step(t, 15*time.Second)
	require.NoError(t, h.e.SkipItem())
	assert.Equal(t, 2, h.r.count())

	h.step(t, 10*time.Second)
	assert.Equal(t, 2, h.r.count(), "wait restarts from the skip")
	h.step(t, 10*time.Second)
	assert.Equal(t, 3, h.r.count())
}

func playlistSource() *fakeSource {
	src := newFakeSource(makeFile("a.json", ModeOrder, 2), makeFile("b.json", ModeOrder, 2))
	src.playlist = PlaylistStatus{
		HasPlaylist: true,
		Playlist:    []PlaylistEntry{{Filename: "a.json", DisplayName: "A"}, {Filename: "b.json", DisplayName: "B"}},
		Revision:    "r1",
	}
	return src
}

func TestSkipFileInPlaylist(t *testing.T) {
	h := newHarness(t, playlistSource(), Options{})
	require.NoError(t, h.e.Init(context.Background()))

	require.NoError(t, h.e.SkipFile())
	assert.Equal(t, []string{"a.json-0", "b.json-0"}, h.r.titles())
}

func TestCursorRoundTrip(t *testing.T) {
	src := playlistSource()
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))
	h.step(t, 20*time.Second)
	require.Equal(t, []string{"a.json-0", "a.json-1"}, h.r.titles())

	snap, err := h.e.Snapshot()
	require.NoError(t, err)
	h.e.Destroy()

	stored, err := h.cursors.LoadCursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Cursor, stored)
	assert.Equal(t, Cursor{PlaylistIndex: 1, FileIndex: 0}, stored)

	reloaded := h.engine(Options{})
	defer reloaded.Destroy()
	require.NoError(t, reloaded.Init(context.Background()))
	assert.Equal(t, "b.json-0", h.r.titles()[2])
}

func TestExternalCursorAdopted(t *testing.T) {
	src := playlistSource()
	src.settings.Interval = 120
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))

	require.Eventually(t, func() bool { return h.cursors.Saves() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.cursors.SaveCursor(context.Background(), Cursor{PlaylistIndex: 1, FileIndex: 1}))

	require.Eventually(t, func() bool {
		h.clock.Advance(5 * time.Second)
		snap, err := h.e.Snapshot()
		return err == nil && snap.Cursor == Cursor{PlaylistIndex: 1, FileIndex: 1}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.e.SkipItem())
	titles := h.r.titles()
	assert.Equal(t, "b.json-1", titles[len(titles)-1])
}

func TestPlaylistChangeReloadsPlan(t *testing.T) {
	src := playlistSource()
	src.files["c.json"] = makeFile("c.json", ModeOrder, 1)
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))

	src.update(func(s *fakeSource) {
		s.playlist = PlaylistStatus{HasPlaylist: true, Playlist: []PlaylistEntry{{Filename: "c.json"}}, Revision: "r2"}
	})
	h.step(t, 5*time.Second)

	assert.Equal(t, []string{"a.json-0", "c.json-0"}, h.r.titles())
}

func TestMissingPlaylistFileIsSkipped(t *testing.T) {
	src := playlistSource()
	src.playlist.Playlist = append([]PlaylistEntry{{Filename: "gone.json"}}, src.playlist.Playlist...)
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))
	assert.Equal(t, []string{"a.json-0"}, h.r.titles())
}

func TestNoContentShowsFallbackAndRecovers(t *testing.T) {
	src := newFakeSource()
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))

	h.r.mu.Lock()
	assert.Equal(t, 1, h.r.fallbacks)
	h.r.mu.Unlock()
	snap, _ := h.e.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, PlanEmpty, snap.Plan)

	src.update(func(s *fakeSource) { s.files["new.json"] = makeFile("new.json", ModeOrder, 1) })
	h.step(t, 5*time.Second)
	assert.Equal(t, []string{"new.json-0"}, h.r.titles())
}

func TestOverlayRenderedEveryPoll(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("tips.json", ModeOrder, 1)), Options{})
	require.NoError(t, h.e.Init(context.Background()))

	h.step(t, 15*time.Second)
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	assert.Equal(t, 4, h.r.statuses)
	assert.Equal(t, 4, h.r.messages)
}

func TestSequenceProgressPersisted(t *testing.T) {
	h := newHarness(t, newFakeSource(makeFile("steps.json", ModeSequence, 3)), Options{})
	require.NoError(t, h.e.Init(context.Background()))
	h.step(t, 20*time.Second)
	h.e.Destroy()

	progress, err := h.cursors.LoadSequenceProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"steps.json": 2}, progress)

	reloaded := h.engine(Options{})
	defer reloaded.Destroy()
	require.NoError(t, reloaded.Init(context.Background()))
	titles := h.r.titles()
	assert.Equal(t, "steps.json-2", titles[len(titles)-1])
}

func TestNudgeTriggersPoll(t *testing.T) {
	src := newFakeSource(makeFile("tips.json", ModeOrder, 1))
	h := newHarness(t, src, Options{})
	require.NoError(t, h.e.Init(context.Background()))

	src.mu.Lock()
	before := src.polls
	src.mu.Unlock()

	h.e.Nudge()
	require.NoError(t, h.e.Sync())

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, before+1, src.polls)
}

// gatedCursors holds every SaveCursor until open is called or the write
// times out.
type gatedCursors struct {
	*MemoryCursors
	release chan struct{}
	once    sync.Once
	pending atomic.Int32
}

func gate(m *MemoryCursors) *gatedCursors {
	return &gatedCursors{MemoryCursors: m, release: make(chan struct{})}
}

func (g *gatedCursors) SaveCursor(ctx context.Context, c Cursor) error {
	g.pending.Add(1)
	defer g.pending.Add(-1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.MemoryCursors.SaveCursor(ctx, c)
}

func (g *gatedCursors) open() {
	g.once.Do(func() { close(g.release) })
}

func newGatedHarness(t *testing.T, src *fakeSource, opts Options) (*harness, *gatedCursors) {
	t.Helper()
	var g *gatedCursors
	h := newHarnessWithStore(t, src, opts, func(m *MemoryCursors) CursorStore {
		g = gate(m)
		return g
	})
	t.Cleanup(g.open)
	return h, g
}

func TestStuckCursorWriteDoesNotBlockPlayback(t *testing.T) {
	h, g := newGatedHarness(t, playlistSource(), Options{FetchTimeout: 5 * time.Second})
	require.NoError(t, h.e.Init(context.Background()))
	require.Eventually(t, func() bool { return g.pending.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- h.e.SkipItem() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("SkipItem waited on a pending cursor write")
	}
	assert.Equal(t, []string{"a.json-0", "a.json-1"}, h.r.titles())

	snap, err := h.e.Snapshot()
	require.NoError(t, err)

	g.open()
	require.Eventually(t, func() bool {
		stored, err := h.cursors.LoadCursor(context.Background())
		return err == nil && stored == snap.Cursor
	}, 2*time.Second, 5*time.Millisecond)
}

func TestExternalCursorIgnoredWhileWritePending(t *testing.T) {
	src := playlistSource()
	src.settings.Interval = 120
	h, g := newGatedHarness(t, src, Options{FetchTimeout: 5 * time.Second})
	require.NoError(t, h.e.Init(context.Background()))
	require.Eventually(t, func() bool { return g.pending.Load() == 1 }, time.Second, 5*time.Millisecond)

	external := Cursor{PlaylistIndex: 1, FileIndex: 1}
	require.NoError(t, h.cursors.SaveCursor(context.Background(), external))
	require.NoError(t, h.e.Poll())

	snap, err := h.e.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, external, snap.Cursor)

	g.open()
	require.Eventually(t, func() bool {
		if err := h.cursors.SaveCursor(context.Background(), external); err != nil {
			return false
		}
		if err := h.e.Poll(); err != nil {
			return false
		}
		snap, err := h.e.Snapshot()
		return err == nil && snap.Cursor == external
	}, 2*time.Second, 10*time.Millisecond)
}
