package engine

import (
	"context"

	"waitroom/internal/log"
)

func (e *Engine) fetchCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = e.ctx
	}
	return context.WithTimeout(parent, e.opts.FetchTimeout)
}

// fetchSettings returns the stored settings, or the last known settings
// when the fetch fails.
func (e *Engine) fetchSettings(ctx context.Context) Settings {
	c, cancel := e.fetchCtx(ctx)
	defer cancel()
	s, err := e.src.Settings(c)
	if err != nil {
		e.log.WithError(err).Warn("settings fetch failed, keeping last known settings")
		return e.settings
	}
	return s
}

func (e *Engine) fetchMessage(ctx context.Context) Message {
	c, cancel := e.fetchCtx(ctx)
	defer cancel()
	m, err := e.src.Message(c)
	if err != nil {
		e.log.WithError(err).Warn("message fetch failed, keeping last known message")
		return e.message
	}
	return m
}

func (e *Engine) fetchStatus(ctx context.Context) StatusDisplay {
	c, cancel := e.fetchCtx(ctx)
	defer cancel()
	s, err := e.src.Status(c)
	if err != nil {
		e.log.WithError(err).Warn("status fetch failed, keeping last known status")
		return e.status
	}
	return s
}

// loadContent fetches the playlist, the content files it needs, and the
// persisted positions, then rebuilds the plan.
func (e *Engine) loadContent(ctx context.Context) {
	c, cancel := e.fetchCtx(ctx)
	pl, err := e.src.Playlist(c)
	cancel()
	if err != nil {
		e.log.WithError(err).Warn("playlist fetch failed, keeping last known playlist")
		pl = e.playlist
	}
	e.playlist = pl

	var names []string
	if pl.Active() {
		seen := map[string]bool{}
		for _, entry := range pl.Playlist {
			if !seen[entry.Filename] {
				seen[entry.Filename] = true
				names = append(names, entry.Filename)
			}
		}
	} else {
		c, cancel := e.fetchCtx(ctx)
		names, err = e.src.ContentFiles(c)
		cancel()
		if err != nil {
			e.log.WithError(err).Warn("content scan failed, keeping loaded content")
			names = nil
			for name := range e.files {
				names = append(names, name)
			}
		}
	}

	files := make(map[string]*ContentFile, len(names))
	for _, name := range names {
		c, cancel := e.fetchCtx(ctx)
		f, err := e.src.ContentFile(c, name)
		cancel()
		if err != nil {
			if prev, ok := e.files[name]; ok {
				e.log.WithError(err).Warn("content fetch failed, keeping previous copy")
				files[name] = prev
				continue
			}
			e.log.WithError(err).Warn("content fetch failed, file will be skipped")
			continue
		}
		files[name] = f
	}
	e.files = files

	c, cancel = e.fetchCtx(ctx)
	progress, err := e.cursors.LoadSequenceProgress(c)
	cancel()
	if err != nil {
		e.log.WithError(err).Warn("sequence progress unavailable, starting from the top")
		progress = e.plan.Progress()
	}

	cursor := pl.Cursor
	if pl.Active() {
		c, cancel := e.fetchCtx(ctx)
		stored, err := e.cursors.LoadCursor(c)
		cancel()
		if err != nil {
			e.log.WithError(err).Warn("cursor unavailable, using playlist position")
		} else {
			cursor = stored
		}
	}
	e.lastWritten = cursor

	e.plan = BuildPlan(PlanInput{
		Settings: e.settings,
		Files:    files,
		Playlist: pl,
		Cursor:   cursor,
		Progress: progress,
		Rand:     e.opts.Rand,
		Logger:   e.log,
	})
	e.log.With(
		log.F("plan", e.plan.Kind.String()),
		log.F("files", len(files)),
		log.F("items", e.plan.Len()),
	).Info("play plan built")
}

func (e *Engine) armPoll() {
	e.timers.Set(timerPoll, e.opts.PollInterval, e.poll)
}

// poll reconciles with the store and re-arms itself.
func (e *Engine) poll() {
	if e.destroyed.Load() {
		return
	}
	prev := e.settings
	e.settings = e.fetchSettings(e.ctx)
	e.message = e.fetchMessage(e.ctx)
	e.status = e.fetchStatus(e.ctx)
	e.renderOverlay()

	if !e.reconcilePlaylist() {
		e.reconcileSettings(prev)
	}
	e.armPoll()
}

// reconcilePlaylist reloads the plan when the playlist changed and adopts
// a cursor written by someone else. It reports whether playback was
// restarted.
func (e *Engine) reconcilePlaylist() bool {
	c, cancel := e.fetchCtx(e.ctx)
	pl, err := e.src.Playlist(c)
	cancel()
	if err != nil {
		e.log.WithError(err).Warn("playlist poll failed")
		return false
	}

	wasEmpty := e.plan.Kind == PlanEmpty
	if !pl.SameContents(e.playlist) || wasEmpty {
		if !wasEmpty {
			e.log.With(log.F("revision", pl.Revision)).Info("playlist changed, reloading content")
		}
		e.loadContent(e.ctx)
		if wasEmpty && e.plan.Kind == PlanEmpty {
			return false
		}
		e.restart()
		return true
	}
	e.playlist = pl

	if e.plan.Kind != PlanPlaylist || e.inFlight > 0 {
		return false
	}
	c, cancel = e.fetchCtx(e.ctx)
	stored, err := e.cursors.LoadCursor(c)
	cancel()
	if err != nil {
		e.log.WithError(err).Warn("cursor poll failed")
		return false
	}
	if stored != e.lastWritten {
		e.log.With(
			log.F("playlist_index", stored.PlaylistIndex),
			log.F("file_index", stored.FileIndex),
		).Info("adopting cursor written by another client")
		e.plan.SetCursor(stored)
		e.lastWritten = stored
	}
	return false
}

// reconcileSettings rebuilds the display timers after a settings change.
// The plan and cursor are left alone.
func (e *Engine) reconcileSettings(prev Settings) {
	cur := e.settings
	switch {
	case prev.ShowTips && !cur.ShowTips:
		e.timers.Stop(timerDisplay)
		e.timers.Stop(timerHide)
		if e.state == StateShowing {
			e.r.HideItem()
		}
		e.state = StateHidden
		e.log.Info("slideshow paused")
	case !prev.ShowTips && cur.ShowTips:
		e.log.Info("slideshow resumed")
		e.showNext()
	case cur.ShowTips && (prev.Interval != cur.Interval || prev.Duration != cur.Duration):
		e.retime()
	}
}

// retime re-arms the pending timers from now using the new settings.
func (e *Engine) retime() {
	if e.opts.ManualAdvance {
		return
	}
	e.log.With(log.F("interval", e.settings.Interval), log.F("duration", e.settings.Duration)).Info("timing changed, rebuilding timers")

	if e.current == nil {
		e.timers.Stop(timerHide)
		e.timers.Set(timerDisplay, ResolveTiming(ContentItem{}, nil, e.settings).Wait(), e.showNext)
		return
	}

	f := e.files[e.current.Filename]
	timing := ResolveTiming(e.current.Item, f, e.settings)
	e.current.Timing = timing
	e.armCycle(timing, e.state == StateShowing)
}
