package store

import (
	"context"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// playlistDoc is playlist.json: the engine's view plus the shortcut
// letters that were in effect when the playlist was saved.
type playlistDoc struct {
	engine.PlaylistStatus
	ShortcutMap map[string]string `json:"shortcutMap,omitempty"`
}

// Playlist returns the stored playlist. A missing document means no
// playlist is configured.
func (s *FileStore) Playlist(ctx context.Context) (engine.PlaylistStatus, error) {
	doc, err := s.loadPlaylist(ctx)
	if err != nil {
		if errors.IsNotFound(err) {
			return engine.PlaylistStatus{Playlist: []engine.PlaylistEntry{}}, nil
		}
		return engine.PlaylistStatus{}, err
	}
	return doc.PlaylistStatus, nil
}

func (s *FileStore) loadPlaylist(ctx context.Context) (playlistDoc, error) {
	var doc playlistDoc
	if err := s.readJSON(ctx, PlaylistFile, &doc); err != nil {
		return playlistDoc{}, err
	}
	return doc, nil
}

// SavePlaylist resolves a comma-separated playlist string and stores the
// result with the cursor reset to the start. Each token is a shortcut
// letter, a content file name with or without ".json", or a glob pattern
// that expands to every matching file in name order.
func (s *FileStore) SavePlaylist(ctx context.Context, playlistString string) (engine.PlaylistStatus, error) {
	playlistString = strings.TrimSpace(playlistString)
	if playlistString == "" {
		return engine.PlaylistStatus{}, errors.NewValidationError("playlistString", "playlist string is empty")
	}
	tokens := splitTokens(playlistString)
	if len(tokens) == 0 {
		return engine.PlaylistStatus{}, errors.NewValidationError("playlistString", "playlist has no usable entries")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	available, names, err := s.playlistCandidates(ctx)
	if err != nil {
		return engine.PlaylistStatus{}, err
	}
	if len(names) == 0 {
		return engine.PlaylistStatus{}, errors.NewContentError("no content files available", "", errors.ContentNotFound, nil)
	}
	shortcuts := shortcutMap(names)

	var entries []engine.PlaylistEntry
	for _, token := range tokens {
		resolved, err := resolveToken(token, shortcuts, available, names)
		if err != nil {
			return engine.PlaylistStatus{}, err
		}
		for _, name := range resolved {
			entries = append(entries, available[name])
		}
	}

	total := 0
	for _, e := range entries {
		total += e.ItemCount
	}

	doc := playlistDoc{
		PlaylistStatus: engine.PlaylistStatus{
			HasPlaylist:    true,
			Playlist:       entries,
			TotalFiles:     len(entries),
			TotalItems:     total,
			Revision:       ulid.Make().String(),
			PlaylistString: playlistString,
			UpdatedAt:      s.timestamp(),
		},
		ShortcutMap: shortcuts,
	}
	if err := s.writeJSON(ctx, PlaylistFile, doc); err != nil {
		return engine.PlaylistStatus{}, err
	}

	s.log.With(
		log.F("playlist", playlistString),
		log.F("files", len(entries)),
		log.F("items", total),
		log.F("revision", doc.Revision),
	).Info("Playlist saved")
	return doc.PlaylistStatus, nil
}

func splitTokens(s string) []string {
	var tokens []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func resolveToken(token string, shortcuts map[string]string, available map[string]engine.PlaylistEntry, names []string) ([]string, error) {
	if name, ok := shortcuts[token]; ok && len(token) == 1 {
		return []string{name}, nil
	}
	if _, ok := available[token]; ok {
		return []string{token}, nil
	}
	if _, ok := available[token+".json"]; ok {
		return []string{token + ".json"}, nil
	}

	if strings.ContainsAny(token, "*?[{") {
		pattern := token
		if !strings.HasSuffix(pattern, ".json") && !strings.HasSuffix(pattern, "*") {
			pattern += ".json"
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewValidationError("playlistString", "invalid pattern %q: %v", token, err)
		}
		var matched []string
		for _, name := range names {
			if g.Match(name) {
				matched = append(matched, name)
			}
		}
		if len(matched) == 0 {
			return nil, errors.NewValidationError("playlistString", "pattern %q matches no content file", token)
		}
		return matched, nil
	}

	return nil, errors.NewValidationError("playlistString", "invalid playlist entry: %s", token)
}

// ClearPlaylist removes the playlist so the display falls back to the
// settings-driven queue.
func (s *FileStore) ClearPlaylist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(PlaylistFile)); err != nil && !os.IsNotExist(err) {
		return errors.NewFileError("failed to remove playlist", s.path(PlaylistFile), errors.FileOperationFailed, err)
	}
	s.log.Info("Playlist cleared")
	return nil
}

// LoadCursor returns the stored playlist position.
func (s *FileStore) LoadCursor(ctx context.Context) (engine.Cursor, error) {
	doc, err := s.loadPlaylist(ctx)
	if err != nil {
		if errors.IsNotFound(err) {
			return engine.Cursor{}, nil
		}
		return engine.Cursor{}, err
	}
	return doc.Cursor, nil
}

// SaveCursor stores the playlist position. Without a playlist there is
// nothing to record.
func (s *FileStore) SaveCursor(ctx context.Context, c engine.Cursor) error {
	if c.PlaylistIndex < 0 || c.FileIndex < 0 {
		return errors.NewValidationError("cursor", "cursor indexes must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadPlaylist(ctx)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if doc.Cursor == c {
		return nil
	}
	doc.Cursor = c
	return s.writeJSON(ctx, PlaylistFile, doc)
}
