// Package engine drives the waiting-room slideshow. An Engine loads
// content from a Source, builds a play plan, and cycles through it on
// timers while polling the store for admin edits. All mutable state is
// owned by a single loop goroutine; timers, operator input and polls
// reach it as queued closures.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"waitroom/internal/errors"
	"waitroom/internal/log"

	"github.com/oklog/ulid/v2"
)

// InitErrorMessage is shown when the display cannot start.
const InitErrorMessage = "システムの初期化に失敗しました"

// DefaultIcon is used for content files without an icon.
const DefaultIcon = "💡"

// ErrDestroyed is returned by operations on a stopped engine.
var ErrDestroyed = errors.New("display engine is not running")

// State is the slideshow state.
type State int

const (
	StateIdle State = iota
	StateShowing
	StateHidden
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateShowing:
		return "showing"
	case StateHidden:
		return "hidden"
	case StateDestroyed:
		return "destroyed"
	}
	return "idle"
}

// Options tune an Engine. Zero values select defaults.
type Options struct {
	PollInterval  time.Duration
	FetchTimeout  time.Duration
	ManualAdvance bool
	Clock         Clock
	Rand          *rand.Rand
	Logger        *log.Logger
}

// Snapshot is a copy of the engine's observable state.
type Snapshot struct {
	State          State
	Plan           PlanKind
	Cursor         Cursor
	QueuePos       int
	Queue          []QueueEntry
	Progress       map[string]int
	Reshuffles     int
	SequenceCycles int
	Settings       Settings
	Current        *ItemView
}

// Engine is the slideshow scheduler.
type Engine struct {
	src     Source
	cursors CursorStore
	r       Renderer
	opts    Options
	log     *log.Logger
	id      string

	ctx         context.Context
	cancel      context.CancelFunc
	cmds        chan func()
	quit        chan struct{}
	exited      chan struct{}
	running     atomic.Bool
	initialized atomic.Bool
	destroyed   atomic.Bool
	destroyOnce sync.Once
	writes      sync.WaitGroup
	writeMu     sync.Mutex
	writeSeq    map[string]uint64
	writeLocks  map[string]*sync.Mutex
	timers      *scheduler

	// owned by the loop goroutine
	state       State
	settings    Settings
	message     Message
	status      StatusDisplay
	playlist    PlaylistStatus
	files       map[string]*ContentFile
	plan        *Plan
	current     *ItemView
	lastWritten Cursor
	inFlight    int
}

// New creates an engine. cursors may be nil, in which case positions are
// kept in memory only.
func New(src Source, cursors CursorStore, r Renderer, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cursors == nil {
		cursors = NewMemoryCursors()
	}

	id := ulid.Make().String()
	logger := opts.Logger
	if logger == nil {
		logger = log.LogWithFields()
	}
	logger = logger.With(log.F("session", id))

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		src:        src,
		cursors:    cursors,
		r:          r,
		opts:       opts,
		log:        logger,
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		cmds:       make(chan func(), 64),
		quit:       make(chan struct{}),
		exited:     make(chan struct{}),
		settings:   DefaultSettings(),
		status:     DefaultStatus(),
		files:      map[string]*ContentFile{},
		writeSeq:   map[string]uint64{},
		writeLocks: map[string]*sync.Mutex{},
	}
	e.timers = newScheduler(opts.Clock, e.post)
	e.plan = BuildPlan(PlanInput{Rand: opts.Rand, Logger: logger})
	return e
}

// ID identifies this engine instance in logs.
func (e *Engine) ID() string { return e.id }

// Init loads the initial data, shows the first item and starts polling.
// If the renderer is not ready the error panel is shown, no timers are
// armed and the error is returned.
func (e *Engine) Init(ctx context.Context) error {
	if e.destroyed.Load() {
		return ErrDestroyed
	}
	if !e.initialized.CompareAndSwap(false, true) {
		return errors.New("display engine already initialized")
	}

	if err := e.r.Ready(); err != nil {
		e.log.WithError(err).Error("renderer not ready, display engine not started")
		e.r.ShowError(InitErrorMessage)
		return errors.Wrap(err, "initialize display")
	}

	e.running.Store(true)
	go e.run()
	return e.call(func() { e.bootstrap(ctx) })
}

// Destroy stops every timer and the loop. It is idempotent and returns
// once pending cursor writes have finished. It must not be called from a
// Renderer method.
func (e *Engine) Destroy() {
	e.destroyOnce.Do(func() {
		e.destroyed.Store(true)
		e.timers.Close()
		e.cancel()
		close(e.quit)
		if e.running.Load() {
			<-e.exited
		}
		e.writes.Wait()
		e.state = StateDestroyed
		e.log.Info("display engine destroyed")
	})
}

// ActiveTimers returns the number of armed timers.
func (e *Engine) ActiveTimers() int {
	return e.timers.Active()
}

// SkipItem advances to the next item immediately.
func (e *Engine) SkipItem() error {
	return e.call(func() { e.manualAdvance(false) })
}

// SkipFile abandons the current file and shows the next one.
func (e *Engine) SkipFile() error {
	return e.call(func() { e.manualAdvance(true) })
}

// Reload refetches the playlist and content files and restarts playback.
func (e *Engine) Reload() error {
	return e.call(func() {
		e.loadContent(e.ctx)
		e.restart()
	})
}

// Poll runs a reconcile pass now and restarts the poll period.
func (e *Engine) Poll() error {
	return e.call(e.poll)
}

// Nudge requests a poll without waiting for it. Requests made while the
// command queue is full are dropped.
func (e *Engine) Nudge() {
	if !e.running.Load() || e.destroyed.Load() {
		return
	}
	select {
	case e.cmds <- e.poll:
	default:
	}
}

// Sync waits until every previously queued command has run.
func (e *Engine) Sync() error {
	return e.call(func() {})
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := e.call(func() {
		snap = Snapshot{
			State:          e.state,
			Plan:           e.plan.Kind,
			Cursor:         e.plan.Cursor,
			QueuePos:       e.plan.QueuePos,
			Queue:          append([]QueueEntry(nil), e.plan.Queue...),
			Progress:       e.plan.Progress(),
			Reshuffles:     e.plan.Reshuffles,
			SequenceCycles: e.plan.SequenceCycles,
			Settings:       e.settings,
		}
		if e.current != nil {
			view := *e.current
			snap.Current = &view
		}
	})
	if err != nil {
		return Snapshot{State: StateDestroyed}, err
	}
	return snap, nil
}

func (e *Engine) run() {
	defer close(e.exited)
	for {
		select {
		case <-e.quit:
			return
		case fn := <-e.cmds:
			if e.destroyed.Load() {
				return
			}
			fn()
		}
	}
}

func (e *Engine) post(fn func()) bool {
	select {
	case e.cmds <- fn:
		return true
	case <-e.quit:
		return false
	}
}

func (e *Engine) call(fn func()) error {
	if !e.running.Load() || e.destroyed.Load() {
		return ErrDestroyed
	}
	done := make(chan struct{})
	if !e.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrDestroyed
	}
	select {
	case <-done:
		return nil
	case <-e.exited:
		return ErrDestroyed
	}
}

func (e *Engine) bootstrap(ctx context.Context) {
	e.settings = e.fetchSettings(ctx)
	e.message = e.fetchMessage(ctx)
	e.status = e.fetchStatus(ctx)
	e.renderOverlay()

	e.loadContent(ctx)
	e.log.With(
		log.F("plan", e.plan.Kind.String()),
		log.F("items", e.plan.Len()),
		log.F("manual", e.opts.ManualAdvance),
	).Info("display engine started")

	e.restart()
	e.armPoll()
}

// restart begins playback from the plan's current position.
func (e *Engine) restart() {
	e.current = nil
	if !e.settings.ShowTips {
		e.timers.Stop(timerDisplay)
		e.timers.Stop(timerHide)
		e.state = StateHidden
		e.log.Info("slideshow disabled in settings, waiting")
		return
	}
	e.showNext()
}

// showNext renders the next item and arms the hide and display timers.
func (e *Engine) showNext() {
	e.timers.Stop(timerDisplay)
	e.timers.Stop(timerHide)
	if e.destroyed.Load() || !e.settings.ShowTips {
		return
	}

	sel, ok := e.plan.Next()
	if !ok {
		e.current = nil
		e.state = StateIdle
		e.r.ShowFallback()
		if !e.opts.ManualAdvance {
			e.timers.Set(timerDisplay, ResolveTiming(ContentItem{}, nil, e.settings).Wait(), e.showNext)
		}
		return
	}

	timing := ResolveTiming(sel.Item(), sel.File, e.settings)
	view := e.view(sel, timing)
	e.current = &view
	e.r.ShowItem(view)
	e.state = StateShowing
	e.persist(sel)
	e.armCycle(timing, true)

	e.log.With(
		log.F("file", sel.File.Filename),
		log.F("index", sel.Index),
		log.F("wait", timing.WaitTime),
		log.F("display", timing.DisplayTime),
	).Debug("item displayed")
}

func (e *Engine) armCycle(t Timing, showing bool) {
	if e.opts.ManualAdvance {
		return
	}
	if showing {
		e.timers.Set(timerHide, t.Display(), e.hide)
	}
	e.timers.Set(timerDisplay, t.Wait(), e.showNext)
}

func (e *Engine) hide() {
	e.r.HideItem()
	e.state = StateHidden
}

func (e *Engine) manualAdvance(wholeFile bool) {
	if !e.settings.ShowTips {
		return
	}
	if wholeFile {
		e.plan.SkipFile()
	}
	e.showNext()
}

func (e *Engine) view(sel Selection, timing Timing) ItemView {
	name := sel.File.Filename
	category := sel.File.Meta.Title
	if category == "" && sel.Entry != nil {
		category = sel.Entry.DisplayName
	}
	if category == "" {
		category = e.settings.File(name).DisplayName
	}
	if category == "" {
		category = name
	}
	icon := sel.File.Meta.Icon
	if icon == "" {
		icon = DefaultIcon
	}
	return ItemView{
		Filename:     name,
		Category:     category,
		CategoryIcon: icon,
		Item:         sel.Item(),
		Index:        sel.Index,
		Count:        len(sel.File.Items),
		Mode:         sel.Mode,
		Timing:       timing,
	}
}

// persist writes the advanced position without waiting for the result.
func (e *Engine) persist(sel Selection) {
	switch {
	case e.plan.Kind == PlanPlaylist:
		cur := e.plan.Cursor
		e.lastWritten = cur
		e.write("cursor", func(ctx context.Context) error {
			return e.cursors.SaveCursor(ctx, cur)
		})
	case sel.Mode == ModeSequence:
		progress := e.plan.Progress()
		e.write("sequence progress", func(ctx context.Context) error {
			return e.cursors.SaveSequenceProgress(ctx, progress)
		})
	}
}

// write runs fn on its own goroutine. Writes of the same kind are
// serialized and a write overtaken by a newer one is dropped. writeMu is
// never held across the store call.
func (e *Engine) write(what string, fn func(context.Context) error) {
	e.inFlight++
	e.writes.Add(1)
	e.writeMu.Lock()
	e.writeSeq[what]++
	seq := e.writeSeq[what]
	lk, ok := e.writeLocks[what]
	if !ok {
		lk = &sync.Mutex{}
		e.writeLocks[what] = lk
	}
	e.writeMu.Unlock()

	go func() {
		defer e.writes.Done()
		defer e.post(func() { e.inFlight-- })

		lk.Lock()
		defer lk.Unlock()
		if !e.latestWrite(what, seq) {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), e.opts.FetchTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.log.WithError(err).With(log.F("what", what)).Warn("position write failed")
		}
	}()
}

func (e *Engine) latestWrite(what string, seq uint64) bool {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.writeSeq[what] == seq
}

func (e *Engine) renderOverlay() {
	e.r.ShowStatus(e.status)
	e.r.ShowMessage(e.message)
}
