package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// MaxShortcuts is how many files get a playlist shortcut letter (A-Z).
const MaxShortcuts = 26

// FileInfo describes one content file for the control panel.
type FileInfo struct {
	Filename    string             `json:"filename"`
	DisplayName string             `json:"displayName"`
	Title       string             `json:"title,omitempty"`
	Shortcut    string             `json:"shortcut,omitempty"`
	ItemCount   int                `json:"itemCount"`
	DisplayMode engine.DisplayMode `json:"displayMode"`
	Size        int64              `json:"size"`
	Modified    string             `json:"lastModified"`
}

// ContentFiles lists the content file names in sorted order.
func (s *FileStore) ContentFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.ContentsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewFileError("failed to list content files", s.ContentsPath(), errors.FileOperationFailed, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !ValidFilename(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ContentFile loads and parses one content file.
func (s *FileStore) ContentFile(ctx context.Context, filename string) (*engine.ContentFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidFilename(filename) {
		return nil, errors.NewValidationError("filename", "invalid content file name: %s", filename)
	}
	data, err := os.ReadFile(filepath.Join(s.ContentsPath(), filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewContentError("content file not found", filename, errors.ContentNotFound, err)
		}
		return nil, errors.NewContentError("failed to read content file", filename, errors.FileOperationFailed, err)
	}
	return engine.ParseContentFile(filename, data)
}

// SaveContentFile writes a content file, replacing any existing one.
func (s *FileStore) SaveContentFile(ctx context.Context, f *engine.ContentFile) error {
	if f == nil || !ValidFilename(f.Filename) {
		return errors.NewValidationError("filename", "invalid content file name")
	}
	if f.Meta.DisplayMode != "" && !f.Meta.DisplayMode.Valid() {
		return errors.NewValidationError("displayMode", "unknown display mode %q", f.Meta.DisplayMode)
	}
	doc := *f
	doc.Filename = ""

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(ctx, filepath.Join(ContentsDir, f.Filename), doc)
}

// ListFiles describes every readable content file, with shortcut letters
// assigned in filename order.
func (s *FileStore) ListFiles(ctx context.Context) ([]FileInfo, error) {
	names, err := s.ContentFiles(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	shortcuts := shortcutMap(names)
	letters := make(map[string]string, len(shortcuts))
	for letter, name := range shortcuts {
		letters[name] = letter
	}

	infos := make([]FileInfo, 0, len(names))
	for _, name := range names {
		info := FileInfo{
			Filename:    name,
			DisplayName: displayNameFromFilename(name),
			Shortcut:    letters[name],
		}
		if st, err := os.Stat(filepath.Join(s.ContentsPath(), name)); err == nil {
			info.Size = st.Size()
			info.Modified = st.ModTime().Format(TimeLayout)
		}

		f, err := s.ContentFile(ctx, name)
		if err != nil {
			log.LogWithError(err).Warn("Skipping unreadable content file")
			info.DisplayMode = engine.EffectiveMode(nil, settings.File(name))
			infos = append(infos, info)
			continue
		}
		info.ItemCount = len(f.Items)
		info.Title = f.Meta.Title
		info.DisplayMode = engine.EffectiveMode(f, settings.File(name))
		infos = append(infos, info)
	}
	return infos, nil
}

// playlistCandidates are the content files a playlist may reference,
// keyed by filename. Unparseable files are left out.
func (s *FileStore) playlistCandidates(ctx context.Context) (map[string]engine.PlaylistEntry, []string, error) {
	names, err := s.ContentFiles(ctx)
	if err != nil {
		return nil, nil, err
	}
	entries := make(map[string]engine.PlaylistEntry, len(names))
	var usable []string
	for _, name := range names {
		f, err := s.ContentFile(ctx, name)
		if err != nil {
			continue
		}
		display := name
		if f.Meta.Title != "" {
			display = f.Meta.Title
		}
		entries[name] = engine.PlaylistEntry{Filename: name, DisplayName: display, ItemCount: len(f.Items)}
		usable = append(usable, name)
	}
	return entries, usable, nil
}

// shortcutMap assigns A, B, C... to the first 26 sorted names.
func shortcutMap(names []string) map[string]string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	m := make(map[string]string)
	for i, name := range sorted {
		if i >= MaxShortcuts {
			break
		}
		m[string(rune('A'+i))] = name
	}
	return m
}

// displayNameFromFilename turns "health_tips.json" into "Health Tips".
func displayNameFromFilename(name string) string {
	base := strings.ReplaceAll(strings.TrimSuffix(name, ".json"), "_", " ")
	words := strings.Fields(base)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// SaveDisplayMode sets a file's display mode in the settings, resets its
// sequence progress and mirrors the mode into the file's own meta.
func (s *FileStore) SaveDisplayMode(ctx context.Context, filename string, mode engine.DisplayMode) error {
	if !ValidFilename(filename) {
		return errors.NewValidationError("filename", "invalid content file name: %s", filename)
	}
	if !mode.Valid() {
		return errors.NewValidationError("displayMode", "unknown display mode %q", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return err
	}
	if settings.Files == nil {
		settings.Files = map[string]engine.FileSettings{}
	}
	fs, ok := settings.Files[filename]
	if !ok {
		enabled := true
		fs = engine.FileSettings{
			Enabled:     &enabled,
			Duration:    engine.FallbackDisplay,
			Weight:      1,
			DisplayName: displayNameFromFilename(filename),
		}
	}
	fs.DisplayMode = mode
	settings.Files[filename] = fs
	settings.LastUpdated = s.timestamp()
	if err := s.writeJSON(ctx, SettingsFile, settings); err != nil {
		return err
	}

	if err := s.resetProgressLocked(ctx, []string{filename}); err != nil {
		return err
	}

	if err := s.updateContentMeta(ctx, filename, mode); err != nil {
		log.LogWithError(err).Warn("Failed to mirror display mode into content file")
	}

	s.log.With(log.F("filename", filename), log.F("display_mode", string(mode))).Info("Display mode saved")
	return nil
}

// updateContentMeta rewrites meta.displayMode of an object-form content
// file. Legacy array files have no meta and are left alone.
func (s *FileStore) updateContentMeta(ctx context.Context, filename string, mode engine.DisplayMode) error {
	rel := filepath.Join(ContentsDir, filename)
	var doc interface{}
	if err := s.readJSON(ctx, rel, &doc); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil
	}
	meta, ok := obj["meta"].(map[string]interface{})
	if !ok {
		return nil
	}
	meta["displayMode"] = string(mode)
	meta["lastUpdated"] = s.timestamp()
	return s.writeJSON(ctx, rel, obj)
}
