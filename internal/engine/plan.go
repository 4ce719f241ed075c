package engine

import (
	"math/rand"
	"sort"

	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// PlanKind identifies how the plan iterates.
type PlanKind int

const (
	PlanEmpty PlanKind = iota
	PlanPlaylist
	PlanQueue
	PlanSequence
	PlanMixed
)

func (k PlanKind) String() string {
	switch k {
	case PlanPlaylist:
		return "playlist"
	case PlanQueue:
		return "queue"
	case PlanSequence:
		return "sequence"
	case PlanMixed:
		return "mixed"
	}
	return "empty"
}

// QueueEntry references one item of the flat queue.
type QueueEntry struct {
	File   string
	Index  int
	Random bool
}

// Selection is an item chosen by the plan.
type Selection struct {
	File  *ContentFile
	Index int
	Mode  DisplayMode
	Entry *PlaylistEntry
}

// Item returns the selected item.
func (s Selection) Item() ContentItem {
	return s.File.Items[s.Index]
}

// PlanInput is everything BuildPlan needs.
type PlanInput struct {
	Settings Settings
	Files    map[string]*ContentFile
	Playlist PlaylistStatus
	Cursor   Cursor
	Progress map[string]int
	Rand     *rand.Rand
	Logger   *log.Logger
}

// Plan is the iteration state derived from the loaded content. It is not
// safe for concurrent use.
type Plan struct {
	Kind PlanKind

	Playlist []PlaylistEntry
	Cursor   Cursor

	Queue      []QueueEntry
	QueuePos   int
	Reshuffles int

	SeqFiles       []string
	SeqPos         map[string]int
	SeqCurrent     int
	SequenceCycles int

	files       map[string]*ContentFile
	rng         *rand.Rand
	log         *log.Logger
	sequenceDue bool
}

// BuildPlan classifies the loaded files and produces a plan. An active
// playlist takes precedence over per-file display modes.
func BuildPlan(in PlanInput) *Plan {
	p := &Plan{
		files:  in.Files,
		rng:    in.Rand,
		log:    in.Logger,
		SeqPos: map[string]int{},
	}
	if p.files == nil {
		p.files = map[string]*ContentFile{}
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(1))
	}
	if p.log == nil {
		p.log = log.LogWithFields()
	}

	if in.Playlist.Active() {
		p.Kind = PlanPlaylist
		p.Playlist = append([]PlaylistEntry(nil), in.Playlist.Playlist...)
		p.Cursor = in.Cursor
		return p
	}

	names := make([]string, 0, len(in.Files))
	for name := range in.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := in.Files[name]
		fs := in.Settings.File(name)
		if f == nil || !fs.IsEnabled() || len(f.Items) == 0 {
			continue
		}

		switch EffectiveMode(f, fs) {
		case ModeSequence:
			p.SeqFiles = append(p.SeqFiles, name)
			pos := in.Progress[name]
			if pos < 0 || pos > len(f.Items) {
				pos = 0
			}
			p.SeqPos[name] = pos
		case ModeOrder:
			for i := range f.Items {
				p.Queue = append(p.Queue, QueueEntry{File: name, Index: i})
			}
		default:
			weight := fs.EffectiveWeight()
			for i := range f.Items {
				for w := 0; w < weight; w++ {
					p.Queue = append(p.Queue, QueueEntry{File: name, Index: i, Random: true})
				}
			}
		}
	}

	switch {
	case len(p.Queue) > 0 && len(p.SeqFiles) > 0:
		p.Kind = PlanMixed
	case len(p.Queue) > 0:
		p.Kind = PlanQueue
	case len(p.SeqFiles) > 0:
		p.Kind = PlanSequence
	default:
		p.Kind = PlanEmpty
	}

	p.shuffleRandom()
	p.SeqCurrent = p.resumeSequence()
	return p
}

// EffectiveMode resolves a file's display mode: per-file settings first,
// then the file's own meta, then random.
func EffectiveMode(f *ContentFile, fs FileSettings) DisplayMode {
	if fs.DisplayMode.Valid() {
		return fs.DisplayMode
	}
	if f != nil && f.Meta.DisplayMode.Valid() {
		return f.Meta.DisplayMode
	}
	return ModeRandom
}

// Next returns the item to show and advances past it. Unusable
// references are skipped; ok is false when one full lap found nothing.
func (p *Plan) Next() (Selection, bool) {
	switch p.Kind {
	case PlanPlaylist:
		return p.nextPlaylist()
	case PlanQueue:
		return p.nextQueue()
	case PlanSequence:
		return p.nextSequence()
	case PlanMixed:
		first, second := p.nextQueue, p.nextSequence
		if p.sequenceDue {
			first, second = second, first
		}
		p.sequenceDue = !p.sequenceDue
		if sel, ok := first(); ok {
			return sel, true
		}
		return second()
	}
	return Selection{}, false
}

// SkipFile abandons the rest of the current file.
func (p *Plan) SkipFile() {
	switch p.Kind {
	case PlanPlaylist:
		if len(p.Playlist) > 0 {
			p.nextSlot()
		}
	case PlanSequence:
		p.passSequenceFile()
	case PlanMixed:
		if p.sequenceDue {
			p.passSequenceFile()
		}
	}
}

// SetCursor replaces the playlist cursor.
func (p *Plan) SetCursor(c Cursor) {
	p.Cursor = c
}

// Progress returns a copy of the sequence counters.
func (p *Plan) Progress() map[string]int {
	out := make(map[string]int, len(p.SeqPos))
	for k, v := range p.SeqPos {
		out[k] = v
	}
	return out
}

// Len is the number of items in one full pass.
func (p *Plan) Len() int {
	switch p.Kind {
	case PlanPlaylist:
		n := 0
		for _, e := range p.Playlist {
			if f := p.files[e.Filename]; f != nil {
				n += len(f.Items)
			}
		}
		return n
	case PlanQueue:
		return len(p.Queue)
	case PlanSequence:
		return p.sequenceLen()
	case PlanMixed:
		return len(p.Queue) + p.sequenceLen()
	}
	return 0
}

func (p *Plan) sequenceLen() int {
	n := 0
	for _, name := range p.SeqFiles {
		n += len(p.files[name].Items)
	}
	return n
}

func (p *Plan) nextPlaylist() (Selection, bool) {
	n := len(p.Playlist)
	if p.Cursor.PlaylistIndex < 0 || p.Cursor.PlaylistIndex >= n {
		p.log.With(log.F("playlist_index", p.Cursor.PlaylistIndex), log.F("length", n)).Warn("playlist cursor out of range, restarting")
		p.Cursor = Cursor{}
	}

	for attempt := 0; attempt <= n; attempt++ {
		entry := &p.Playlist[p.Cursor.PlaylistIndex]
		f := p.files[entry.Filename]
		switch {
		case f == nil:
			p.log.WithError(errors.NewContentError("content not loaded", entry.Filename, errors.ContentNotFound, nil)).Warn("skipping playlist slot")
			p.nextSlot()
			continue
		case len(f.Items) == 0:
			p.log.WithError(errors.NewContentError("content has no items", entry.Filename, errors.ContentEmpty, nil)).Warn("skipping playlist slot")
			p.nextSlot()
			continue
		case p.Cursor.FileIndex < 0 || p.Cursor.FileIndex >= len(f.Items):
			p.log.With(log.F("file", entry.Filename), log.F("file_index", p.Cursor.FileIndex)).Warn("item cursor out of range, moving to next file")
			p.nextSlot()
			continue
		}

		sel := Selection{File: f, Index: p.Cursor.FileIndex, Mode: EffectiveMode(f, FileSettings{}), Entry: entry}
		p.Cursor.FileIndex++
		if p.Cursor.FileIndex >= len(f.Items) {
			p.nextSlot()
		}
		return sel, true
	}
	return Selection{}, false
}

func (p *Plan) nextSlot() {
	p.Cursor.FileIndex = 0
	p.Cursor.PlaylistIndex++
	if p.Cursor.PlaylistIndex >= len(p.Playlist) {
		p.Cursor.PlaylistIndex = 0
		p.log.Info("playlist completed, restarting from beginning")
	}
}

func (p *Plan) nextQueue() (Selection, bool) {
	n := len(p.Queue)
	for attempt := 0; attempt < n; attempt++ {
		if p.QueuePos < 0 || p.QueuePos >= n {
			p.QueuePos = 0
		}
		e := p.Queue[p.QueuePos]
		p.QueuePos++
		if p.QueuePos >= n {
			p.QueuePos = 0
			p.shuffleRandom()
			p.Reshuffles++
			p.log.With(log.F("length", n)).Debug("queue pass complete, random entries reshuffled")
		}

		f := p.files[e.File]
		if f == nil || e.Index >= len(f.Items) {
			p.log.With(log.F("file", e.File), log.F("index", e.Index)).Warn("queue entry no longer available, skipping")
			continue
		}
		mode := ModeOrder
		if e.Random {
			mode = ModeRandom
		}
		return Selection{File: f, Index: e.Index, Mode: mode}, true
	}
	return Selection{}, false
}

// shuffleRandom permutes the random entries among the positions they
// occupy. Order entries keep their positions.
func (p *Plan) shuffleRandom() {
	var slots []int
	for i, e := range p.Queue {
		if e.Random {
			slots = append(slots, i)
		}
	}
	p.rng.Shuffle(len(slots), func(i, j int) {
		a, b := slots[i], slots[j]
		p.Queue[a], p.Queue[b] = p.Queue[b], p.Queue[a]
	})
}

func (p *Plan) nextSequence() (Selection, bool) {
	m := len(p.SeqFiles)
	for attempt := 0; attempt <= m; attempt++ {
		if p.SeqCurrent < 0 || p.SeqCurrent >= m {
			p.SeqCurrent = 0
		}
		name := p.SeqFiles[p.SeqCurrent]
		f := p.files[name]
		pos := p.SeqPos[name]
		if f == nil || pos < 0 || pos >= len(f.Items) {
			p.passSequenceFile()
			continue
		}

		p.SeqPos[name] = pos + 1
		sel := Selection{File: f, Index: pos, Mode: ModeSequence}
		if pos+1 >= len(f.Items) {
			p.passSequenceFile()
		}
		return sel, true
	}
	return Selection{}, false
}

// passSequenceFile hands control to the next sequence file. Passing the
// last file completes a full cycle and resets every counter.
func (p *Plan) passSequenceFile() {
	if len(p.SeqFiles) == 0 {
		return
	}
	p.SeqCurrent++
	if p.SeqCurrent >= len(p.SeqFiles) {
		p.SeqCurrent = 0
		for name := range p.SeqPos {
			p.SeqPos[name] = 0
		}
		p.SequenceCycles++
		p.log.With(log.F("files", len(p.SeqFiles)), log.F("cycle", p.SequenceCycles)).Info("sequence cycle complete, positions reset")
	}
}

// resumeSequence returns the first sequence file with items left.
func (p *Plan) resumeSequence() int {
	for i, name := range p.SeqFiles {
		if p.SeqPos[name] < len(p.files[name].Items) {
			return i
		}
	}
	for name := range p.SeqPos {
		p.SeqPos[name] = 0
	}
	return 0
}
