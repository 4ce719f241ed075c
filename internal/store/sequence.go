package store

import (
	"context"
	"math"
	"sort"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// progressEntry is one file's record in sequential_progress.json.
type progressEntry struct {
	CurrentIndex int    `json:"currentIndex"`
	LastReset    string `json:"lastReset,omitempty"`
	LastUpdated  string `json:"lastUpdated,omitempty"`
}

// SequenceFile reports the position of one sequence-mode file.
type SequenceFile struct {
	Filename        string `json:"filename"`
	DisplayName     string `json:"displayName"`
	CurrentIndex    int    `json:"currentIndex"`
	CurrentPosition int    `json:"currentPosition"`
	TotalItems      int    `json:"totalItems"`
}

// SequenceStatus summarizes sequence-mode playback. The main file is the
// first sequence file in name order.
type SequenceStatus struct {
	HasSequentialFiles bool           `json:"hasSequentialFiles"`
	MainFile           string         `json:"mainFile,omitempty"`
	CurrentPosition    int            `json:"currentPosition"`
	TotalItems         int            `json:"totalItems"`
	Progress           float64        `json:"progress"`
	Files              []SequenceFile `json:"allFiles,omitempty"`
	LastReset          string         `json:"lastReset,omitempty"`
}

func (s *FileStore) loadProgress(ctx context.Context) (map[string]progressEntry, error) {
	progress := map[string]progressEntry{}
	if err := s.readJSON(ctx, ProgressFile, &progress); err != nil {
		if errors.IsNotFound(err) {
			return map[string]progressEntry{}, nil
		}
		return nil, err
	}
	return progress, nil
}

// LoadSequenceProgress returns each file's next sequence index.
func (s *FileStore) LoadSequenceProgress(ctx context.Context) (map[string]int, error) {
	progress, err := s.loadProgress(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(progress))
	for name, p := range progress {
		out[name] = p.CurrentIndex
	}
	return out, nil
}

// SaveSequenceProgress records new positions. Files not mentioned keep
// their records, and reset times survive.
func (s *FileStore) SaveSequenceProgress(ctx context.Context, positions map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress, err := s.loadProgress(ctx)
	if err != nil {
		return err
	}
	now := s.timestamp()
	changed := false
	for name, idx := range positions {
		if idx < 0 {
			idx = 0
		}
		p := progress[name]
		if p.CurrentIndex == idx && p.LastUpdated != "" {
			continue
		}
		p.CurrentIndex = idx
		p.LastUpdated = now
		progress[name] = p
		changed = true
	}
	if !changed {
		return nil
	}
	return s.writeJSON(ctx, ProgressFile, progress)
}

// ResetSequence rewinds every recorded file to its first item and returns
// the files that were reset.
func (s *FileStore) ResetSequence(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress, err := s.loadProgress(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(progress))
	for name := range progress {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := s.resetProgressLocked(ctx, names); err != nil {
		return nil, err
	}
	s.log.With(log.F("files", len(names))).Info("Sequence progress reset")
	return names, nil
}

// resetProgressLocked rewinds the named files. The caller holds s.mu.
func (s *FileStore) resetProgressLocked(ctx context.Context, names []string) error {
	progress, err := s.loadProgress(ctx)
	if err != nil {
		return err
	}
	now := s.timestamp()
	for _, name := range names {
		progress[name] = progressEntry{CurrentIndex: 0, LastReset: now}
	}
	return s.writeJSON(ctx, ProgressFile, progress)
}

// SequenceStatus reports where each sequence-mode file is up to.
func (s *FileStore) SequenceStatus(ctx context.Context) (SequenceStatus, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return SequenceStatus{}, err
	}
	progress, err := s.loadProgress(ctx)
	if err != nil {
		return SequenceStatus{}, err
	}
	names, err := s.ContentFiles(ctx)
	if err != nil {
		return SequenceStatus{}, err
	}

	var files []SequenceFile
	for _, name := range names {
		f, err := s.ContentFile(ctx, name)
		if err != nil {
			continue
		}
		fs := settings.File(name)
		if engine.EffectiveMode(f, fs) != engine.ModeSequence {
			continue
		}
		display := name
		switch {
		case f.Meta.Title != "":
			display = f.Meta.Title
		case fs.DisplayName != "":
			display = fs.DisplayName
		}
		idx := progress[name].CurrentIndex
		files = append(files, SequenceFile{
			Filename:        name,
			DisplayName:     display,
			CurrentIndex:    idx,
			CurrentPosition: idx + 1,
			TotalItems:      len(f.Items),
		})
	}

	if len(files) == 0 {
		return SequenceStatus{CurrentPosition: 1}, nil
	}

	main := files[0]
	position := main.CurrentPosition
	if main.TotalItems > 0 && position > main.TotalItems {
		position = 1
	}
	var pct float64
	if main.TotalItems > 0 {
		pct = math.Round(float64(position)/float64(main.TotalItems)*1000) / 10
	}

	return SequenceStatus{
		HasSequentialFiles: true,
		MainFile:           main.Filename,
		CurrentPosition:    position,
		TotalItems:         main.TotalItems,
		Progress:           pct,
		Files:              files,
		LastReset:          progress[main.Filename].LastReset,
	}, nil
}
