// Package store is the content store behind the display: a directory of
// JSON documents written by the control panel and read by the display
// engine. Every write replaces the whole document atomically, so the last
// writer wins and readers never see a partial file.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// Document names inside the data directory.
const (
	SettingsFile     = "settings.json"
	MessageFile      = "message.json"
	StatusFile       = "status.json"
	PlaylistFile     = "playlist.json"
	ProgressFile     = "sequential_progress.json"
	LabelHistoryFile = "label_history.json"
	StatusLogFile    = "status_log.json"
	ContentsDir      = "contents"
)

// TimeLayout is the timestamp format written into documents.
const TimeLayout = "2006-01-02 15:04:05"

var filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+\.json$`)

// ValidFilename reports whether name may be used as a content file name.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name) && name != ".json"
}

// FileStore implements engine.Source and engine.CursorStore on a data
// directory, plus the write operations of the control panel.
type FileStore struct {
	dir string
	// mu serializes read-modify-write cycles within this process.
	mu  sync.Mutex
	now func() time.Time
	log *log.Logger
}

var (
	_ engine.Source      = (*FileStore)(nil)
	_ engine.CursorStore = (*FileStore)(nil)
)

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// New returns a store rooted at dir. The directory is not touched until
// the first write or an explicit Init.
func New(dir string, opts ...Option) *FileStore {
	s := &FileStore{
		dir: dir,
		now: time.Now,
		log: log.LogWithFields(log.F("data_dir", dir)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

// ContentsPath returns the directory holding content files.
func (s *FileStore) ContentsPath() string { return filepath.Join(s.dir, ContentsDir) }

// Init creates the data and contents directories.
func (s *FileStore) Init() error {
	if err := os.MkdirAll(s.ContentsPath(), 0o755); err != nil {
		return errors.NewFileError("failed to create data directory", s.ContentsPath(), errors.FileOperationFailed, err)
	}
	return nil
}

func (s *FileStore) timestamp() string {
	return s.now().Format(TimeLayout)
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// readJSON decodes the named document into v. A missing document is
// reported as a FileNotFound error.
func (s *FileStore) readJSON(ctx context.Context, name string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(name)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileError("document not found", p, errors.FileNotFound, err)
		}
		if os.IsPermission(err) {
			return errors.NewFileError("document not readable", p, errors.FileAccessDenied, err)
		}
		return errors.NewFileError("failed to read document", p, errors.FileOperationFailed, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.NewFileError("document is empty", p, errors.FileNotFound, nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewFileError("failed to parse document", p, errors.FileOperationFailed, err)
	}
	return nil
}

// writeJSON replaces the named document with v via a temp file and
// rename.
func (s *FileStore) writeJSON(ctx context.Context, name string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(name)
	data, err := marshal(v)
	if err != nil {
		return errors.NewFileError("failed to encode document", p, errors.FileOperationFailed, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.NewFileError("failed to create data directory", filepath.Dir(p), errors.FileOperationFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return errors.NewFileError("failed to create temp file", p, errors.FileOperationFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewFileError("failed to write document", p, errors.FileOperationFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewFileError("failed to write document", p, errors.FileOperationFailed, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.NewFileError("failed to set permissions", p, errors.FileOperationFailed, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.NewFileError("failed to replace document", p, errors.FileOperationFailed, err)
	}

	log.LogWithFields(log.F("file", name), log.F("bytes", len(data))).Debug("document written")
	return nil
}

// marshal pretty-prints v without escaping HTML characters, matching the
// documents the control panel has always produced.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StripTags removes markup from s and trims the result. Text between
// tags is kept, so "<b>休診</b>" becomes "休診".
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func runeLen(s string) int {
	return len([]rune(s))
}
