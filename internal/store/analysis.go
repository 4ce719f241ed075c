package store

import (
	"context"

	"waitroom/internal/engine"
)

// Primary display modes reported by DisplayStatus.
const (
	PrimarySequence = "sequence"
	PrimaryMixed    = "mixed"
	PrimaryOrder    = "order"
	PrimaryRandom   = "random"
	PrimaryPlaylist = "playlist"
	PrimaryUnknown  = "unknown"
)

// FileAnalysis is DisplayStatus's view of one content file.
type FileAnalysis struct {
	Filename    string             `json:"filename"`
	Title       string             `json:"title"`
	Enabled     bool               `json:"enabled"`
	ItemCount   int                `json:"itemCount"`
	DisplayMode engine.DisplayMode `json:"displayMode"`
	Weight      int                `json:"weight"`
	Duration    int                `json:"duration"`
}

// DisplayStatus is an overview of what the display will play.
type DisplayStatus struct {
	DisplayMode      string          `json:"displayMode"`
	IsSequentialMode bool            `json:"isSequentialMode"`
	HasPlaylist      bool            `json:"hasPlaylist"`
	Files            []FileAnalysis  `json:"contentFiles"`
	TotalItems       int             `json:"totalItems"`
	QueueLength      int             `json:"queueLength"`
	Sequence         SequenceStatus  `json:"sequential"`
	Settings         engine.Settings `json:"settings"`
}

// DisplayStatus classifies the content and computes the queue length:
// each enabled order item once, each enabled random item weight times.
func (s *FileStore) DisplayStatus(ctx context.Context) (DisplayStatus, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return DisplayStatus{}, err
	}
	names, err := s.ContentFiles(ctx)
	if err != nil {
		return DisplayStatus{}, err
	}
	playlist, err := s.Playlist(ctx)
	if err != nil {
		return DisplayStatus{}, err
	}
	seq, err := s.SequenceStatus(ctx)
	if err != nil {
		return DisplayStatus{}, err
	}

	out := DisplayStatus{
		Files:       []FileAnalysis{},
		HasPlaylist: playlist.Active(),
		Sequence:    seq,
		Settings:    settings,
	}

	var hasSeq, hasOrder, hasRandom bool
	for _, name := range names {
		f, err := s.ContentFile(ctx, name)
		if err != nil {
			continue
		}
		fs := settings.File(name)
		mode := engine.EffectiveMode(f, fs)
		title := name
		if f.Meta.Title != "" {
			title = f.Meta.Title
		}
		duration := fs.Duration
		if duration <= 0 {
			duration = engine.FallbackDisplay
		}
		fa := FileAnalysis{
			Filename:    name,
			Title:       title,
			Enabled:     fs.IsEnabled(),
			ItemCount:   len(f.Items),
			DisplayMode: mode,
			Weight:      fs.EffectiveWeight(),
			Duration:    duration,
		}
		out.Files = append(out.Files, fa)
		out.TotalItems += fa.ItemCount

		if !fa.Enabled || fa.ItemCount == 0 {
			continue
		}
		switch mode {
		case engine.ModeSequence:
			hasSeq = true
		case engine.ModeOrder:
			hasOrder = true
			out.QueueLength += fa.ItemCount
		default:
			hasRandom = true
			out.QueueLength += fa.ItemCount * fa.Weight
		}
	}

	switch {
	case out.HasPlaylist:
		out.DisplayMode = PrimaryPlaylist
	case hasSeq && (hasOrder || hasRandom):
		out.DisplayMode = PrimaryMixed
	case hasSeq:
		out.DisplayMode = PrimarySequence
	case hasOrder && hasRandom:
		out.DisplayMode = PrimaryMixed
	case hasOrder:
		out.DisplayMode = PrimaryOrder
	case hasRandom:
		out.DisplayMode = PrimaryRandom
	default:
		out.DisplayMode = PrimaryUnknown
	}
	out.IsSequentialMode = hasSeq
	return out, nil
}
