package engine

import (
	"bytes"
	"context"
	"encoding/json"

	"waitroom/internal/errors"
)

// DisplayMode controls how a content file's items enter the play plan.
type DisplayMode string

const (
	ModeRandom   DisplayMode = "random"
	ModeOrder    DisplayMode = "order"
	ModeSequence DisplayMode = "sequence"
)

// Valid reports whether m is one of the known modes.
func (m DisplayMode) Valid() bool {
	switch m {
	case ModeRandom, ModeOrder, ModeSequence:
		return true
	}
	return false
}

// ContentItem is one slide. Zero timing fields mean "not set".
type ContentItem struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	WaitTime    int    `json:"waitTime,omitempty"`
	DisplayTime int    `json:"displayTime,omitempty"`
}

// ContentMeta describes a content file as a whole.
type ContentMeta struct {
	Title       string      `json:"title,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	DisplayMode DisplayMode `json:"displayMode,omitempty"`
}

// Timing is a pair of durations in seconds.
type Timing struct {
	WaitTime    int `json:"waitTime,omitempty"`
	DisplayTime int `json:"displayTime,omitempty"`
}

// UnmarshalJSON accepts "duration" as an alias of "displayTime".
func (t *Timing) UnmarshalJSON(data []byte) error {
	var aux struct {
		WaitTime    int `json:"waitTime"`
		DisplayTime int `json:"displayTime"`
		Duration    int `json:"duration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.WaitTime = aux.WaitTime
	t.DisplayTime = aux.DisplayTime
	if t.DisplayTime <= 0 {
		t.DisplayTime = aux.Duration
	}
	return nil
}

// ContentFile is a named collection of items.
type ContentFile struct {
	Filename      string        `json:"filename,omitempty"`
	Meta          ContentMeta   `json:"meta"`
	Items         []ContentItem `json:"items"`
	DefaultTiming *Timing       `json:"defaultTiming,omitempty"`
}

// ParseContentFile decodes a content document. Both the object form
// {meta, items, defaultTiming} and the legacy bare item array are accepted.
func ParseContentFile(name string, data []byte) (*ContentFile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewContentError("content file is empty", name, errors.ContentEmpty, nil)
	}

	if trimmed[0] == '[' {
		var items []ContentItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errors.NewContentError("malformed content file", name, errors.ContentMalformed, err)
		}
		return &ContentFile{Filename: name, Items: items}, nil
	}

	var f ContentFile
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, errors.NewContentError("malformed content file", name, errors.ContentMalformed, err)
	}
	f.Filename = name
	return &f, nil
}

// PlaylistEntry is one slot of the admin-authored playlist.
type PlaylistEntry struct {
	Filename    string `json:"filename"`
	DisplayName string `json:"displayName"`
	ItemCount   int    `json:"itemCount"`
}

// Cursor points at the next playlist item to show.
type Cursor struct {
	PlaylistIndex int `json:"currentPlaylistIndex"`
	FileIndex     int `json:"currentFileIndex"`
}

// PlaylistStatus is the persisted playlist descriptor.
type PlaylistStatus struct {
	HasPlaylist bool            `json:"hasPlaylist"`
	Playlist    []PlaylistEntry `json:"playlist"`
	Cursor
	TotalFiles     int    `json:"totalFiles"`
	TotalItems     int    `json:"totalItems"`
	Revision       string `json:"revision,omitempty"`
	PlaylistString string `json:"playlistString,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

// Active reports whether the playlist should drive playback.
func (p PlaylistStatus) Active() bool {
	return p.HasPlaylist && len(p.Playlist) > 0
}

// SameContents reports whether p and other describe the same playlist.
func (p PlaylistStatus) SameContents(other PlaylistStatus) bool {
	if p.Active() != other.Active() || p.Revision != other.Revision {
		return false
	}
	if len(p.Playlist) != len(other.Playlist) {
		return false
	}
	for i := range p.Playlist {
		if p.Playlist[i].Filename != other.Playlist[i].Filename {
			return false
		}
	}
	return true
}

// FileSettings are per-content-file overrides from settings.json.
type FileSettings struct {
	Enabled     *bool       `json:"enabled,omitempty"`
	Duration    int         `json:"duration,omitempty"`
	Weight      int         `json:"weight,omitempty"`
	DisplayMode DisplayMode `json:"displayMode,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
}

// IsEnabled defaults to true when unset.
func (f FileSettings) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// EffectiveWeight clamps the weight to [1,10].
func (f FileSettings) EffectiveWeight() int {
	switch {
	case f.Weight < 1:
		return 1
	case f.Weight > 10:
		return 10
	}
	return f.Weight
}

// Settings are the global slideshow settings.
type Settings struct {
	Interval int                     `json:"interval"`
	Duration int                     `json:"duration"`
	ShowTips bool                    `json:"showTips"`
	Files    map[string]FileSettings `json:"files,omitempty"`

	MessageMode string `json:"messageMode,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// UnmarshalJSON treats a missing showTips as true.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	aux := struct {
		plain
		ShowTips *bool `json:"showTips"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Settings(aux.plain)
	s.ShowTips = aux.ShowTips == nil || *aux.ShowTips
	return nil
}

// File returns the overrides for filename, or the zero value.
func (s Settings) File(filename string) FileSettings {
	if s.Files == nil {
		return FileSettings{}
	}
	return s.Files[filename]
}

// Fallback timing and default settings.
const (
	FallbackWait    = 20
	FallbackDisplay = 8
)

// DefaultSettings is used when settings cannot be fetched.
func DefaultSettings() Settings {
	return Settings{Interval: FallbackWait, Duration: FallbackDisplay, ShowTips: true}
}

// Message is the banner shown independently of the slideshow.
type Message struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// StatusMode selects which status overlay is active.
type StatusMode string

const (
	StatusRooms   StatusMode = "rooms"
	StatusMessage StatusMode = "message"
	StatusHidden  StatusMode = "hidden"
)

// Room is a consultation room's queue number.
type Room struct {
	Label   string `json:"label"`
	Number  int    `json:"number"`
	Visible bool   `json:"visible"`
}

// StatusText is the free-form announcement shown in message mode.
type StatusText struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// StatusDisplay is the queue/announcement overlay. Only the fields of the
// active Mode are rendered.
type StatusDisplay struct {
	Mode          StatusMode `json:"mode"`
	Room1         Room       `json:"room1"`
	Room2         Room       `json:"room2"`
	StatusMessage StatusText `json:"statusMessage"`
	LastUpdated   string     `json:"lastUpdated,omitempty"`
}

// Default room labels.
const (
	DefaultRoom1Label = "第1診察室"
	DefaultRoom2Label = "第2診察室"
)

// DefaultStatus is used when the status cannot be fetched.
func DefaultStatus() StatusDisplay {
	return StatusDisplay{
		Mode:  StatusRooms,
		Room1: Room{Label: DefaultRoom1Label},
		Room2: Room{Label: DefaultRoom2Label},
	}
}

// Source provides read-only snapshots of the content store.
type Source interface {
	Settings(ctx context.Context) (Settings, error)
	Message(ctx context.Context) (Message, error)
	Status(ctx context.Context) (StatusDisplay, error)
	Playlist(ctx context.Context) (PlaylistStatus, error)
	ContentFiles(ctx context.Context) ([]string, error)
	ContentFile(ctx context.Context, filename string) (*ContentFile, error)
}

// CursorStore persists playback positions between engine lifetimes.
type CursorStore interface {
	LoadCursor(ctx context.Context) (Cursor, error)
	SaveCursor(ctx context.Context, c Cursor) error
	LoadSequenceProgress(ctx context.Context) (map[string]int, error)
	SaveSequenceProgress(ctx context.Context, progress map[string]int) error
}

// ItemView is everything a renderer needs to draw one slide.
type ItemView struct {
	Filename     string
	Category     string
	CategoryIcon string
	Item         ContentItem
	Index        int
	Count        int
	Mode         DisplayMode
	Timing       Timing
}

// Renderer draws engine output. Methods are called from the engine's
// loop goroutine and must not call back into the engine synchronously.
type Renderer interface {
	Ready() error
	ShowItem(view ItemView)
	HideItem()
	ShowStatus(status StatusDisplay)
	ShowMessage(msg Message)
	ShowFallback()
	ShowError(msg string)
}
