package store

import (
	"context"
	"strings"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// Limits enforced on settings writes.
const (
	MinInterval       = 5
	MaxInterval       = 600
	MinDuration       = 1
	MaxDuration       = 60
	MinWeight         = 1
	MaxWeight         = 10
	MaxDisplayNameLen = 50
	MaxMessageLen     = 200
	MessageModeAlways = "always"
	MessageModeSync   = "sync"
)

// FilePatch changes the per-file settings of one content file. Nil fields
// are left as they are.
type FilePatch struct {
	Enabled     *bool               `json:"enabled,omitempty"`
	Duration    *int                `json:"duration,omitempty"`
	Weight      *int                `json:"weight,omitempty"`
	DisplayMode *engine.DisplayMode `json:"displayMode,omitempty"`
	DisplayName *string             `json:"displayName,omitempty"`
}

// SettingsPatch is a partial settings update. A Message, when present,
// is saved alongside the settings.
type SettingsPatch struct {
	Interval    *int                 `json:"interval,omitempty"`
	Duration    *int                 `json:"duration,omitempty"`
	ShowTips    *bool                `json:"showTips,omitempty"`
	MessageMode *string              `json:"messageMode,omitempty"`
	Files       map[string]FilePatch `json:"files,omitempty"`
	Message     *engine.Message      `json:"message,omitempty"`
}

// Settings returns the stored settings, or the defaults when none have
// been saved.
func (s *FileStore) Settings(ctx context.Context) (engine.Settings, error) {
	return s.loadSettings(ctx)
}

func (s *FileStore) loadSettings(ctx context.Context) (engine.Settings, error) {
	var settings engine.Settings
	if err := s.readJSON(ctx, SettingsFile, &settings); err != nil {
		if errors.IsNotFound(err) {
			return engine.DefaultSettings(), nil
		}
		return engine.Settings{}, err
	}
	return settings, nil
}

// SaveSettings validates p and merges it into the stored settings.
// Nothing is written when any field is invalid.
func (s *FileStore) SaveSettings(ctx context.Context, p SettingsPatch) (engine.Settings, error) {
	if err := p.validate(); err != nil {
		return engine.Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return engine.Settings{}, err
	}

	if p.Interval != nil {
		settings.Interval = *p.Interval
	}
	if p.Duration != nil {
		settings.Duration = *p.Duration
	}
	if p.ShowTips != nil {
		settings.ShowTips = *p.ShowTips
	}
	if p.MessageMode != nil {
		settings.MessageMode = strings.TrimSpace(*p.MessageMode)
	}
	if len(p.Files) > 0 && settings.Files == nil {
		settings.Files = make(map[string]engine.FileSettings, len(p.Files))
	}
	for name, fp := range p.Files {
		settings.Files[name] = fp.apply(settings.Files[name])
	}
	settings.LastUpdated = s.timestamp()

	if err := s.writeJSON(ctx, SettingsFile, settings); err != nil {
		return engine.Settings{}, err
	}

	if p.Message != nil {
		if _, err := s.saveMessageLocked(ctx, p.Message.Text, p.Message.Visible); err != nil {
			return engine.Settings{}, err
		}
	}

	s.log.With(
		log.F("interval", settings.Interval),
		log.F("duration", settings.Duration),
		log.F("show_tips", settings.ShowTips),
		log.F("files", len(p.Files)),
	).Info("Settings saved")
	return settings, nil
}

func (p SettingsPatch) validate() error {
	if p.Interval != nil && (*p.Interval < MinInterval || *p.Interval > MaxInterval) {
		return errors.NewValidationError("interval", "interval must be between %d and %d seconds", MinInterval, MaxInterval)
	}
	if p.Duration != nil && (*p.Duration < MinDuration || *p.Duration > MaxDuration) {
		return errors.NewValidationError("duration", "duration must be between %d and %d seconds", MinDuration, MaxDuration)
	}
	if p.MessageMode != nil {
		switch strings.TrimSpace(*p.MessageMode) {
		case MessageModeAlways, MessageModeSync:
		default:
			return errors.NewValidationError("messageMode", "message mode must be %q or %q", MessageModeAlways, MessageModeSync)
		}
	}
	for name, fp := range p.Files {
		if !ValidFilename(name) {
			return errors.NewValidationError("files", "invalid file name: %s", name)
		}
		if err := fp.validate(name); err != nil {
			return err
		}
	}
	if p.Message != nil {
		if runeLen(StripTags(p.Message.Text)) > MaxMessageLen {
			return errors.NewValidationError("message", "message must be at most %d characters", MaxMessageLen)
		}
	}
	return nil
}

func (fp FilePatch) validate(name string) error {
	if fp.Duration != nil && (*fp.Duration < MinDuration || *fp.Duration > MaxDuration) {
		return errors.NewValidationError("duration", "duration must be between %d and %d seconds: %s", MinDuration, MaxDuration, name)
	}
	if fp.Weight != nil && (*fp.Weight < MinWeight || *fp.Weight > MaxWeight) {
		return errors.NewValidationError("weight", "weight must be between %d and %d: %s", MinWeight, MaxWeight, name)
	}
	if fp.DisplayMode != nil && !fp.DisplayMode.Valid() {
		return errors.NewValidationError("displayMode", "display mode must be random, order or sequence: %s", name)
	}
	if fp.DisplayName != nil && runeLen(StripTags(*fp.DisplayName)) > MaxDisplayNameLen {
		return errors.NewValidationError("displayName", "display name must be at most %d characters: %s", MaxDisplayNameLen, name)
	}
	return nil
}

func (fp FilePatch) apply(fs engine.FileSettings) engine.FileSettings {
	if fp.Enabled != nil {
		enabled := *fp.Enabled
		fs.Enabled = &enabled
	}
	if fp.Duration != nil {
		fs.Duration = *fp.Duration
	}
	if fp.Weight != nil {
		fs.Weight = *fp.Weight
	}
	if fp.DisplayMode != nil {
		fs.DisplayMode = *fp.DisplayMode
	}
	if fp.DisplayName != nil {
		fs.DisplayName = StripTags(*fp.DisplayName)
	}
	return fs
}
