package store

import (
	"context"
	"strings"

	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// Status limits.
const (
	MaxLabelLen         = 20
	MaxRoomNumber       = 999
	MaxStatusMessageLen = 30
	MaxStatusLog        = 50
	MaxLabelHistory     = 10
)

// MessageUpdate sets the announcement shown in message mode. A nil
// Visible means visible.
type MessageUpdate struct {
	Text    string `json:"text"`
	Visible *bool  `json:"visible,omitempty"`
}

// StatusUpdate is a status write from the control panel. Rooms left nil
// keep their stored values outside rooms mode and reset to defaults in
// rooms mode.
type StatusUpdate struct {
	Mode          engine.StatusMode `json:"mode"`
	Room1         *engine.Room      `json:"room1,omitempty"`
	Room2         *engine.Room      `json:"room2,omitempty"`
	StatusMessage *MessageUpdate    `json:"statusMessage,omitempty"`
}

// StatusLogEntry records one status write.
type StatusLogEntry struct {
	Timestamp string            `json:"timestamp"`
	Mode      engine.StatusMode `json:"mode"`
	Room1     engine.Room       `json:"room1"`
	Room2     engine.Room       `json:"room2"`
}

type labelHistoryDoc struct {
	History     []string `json:"history"`
	LastUpdated string   `json:"lastUpdated"`
	Count       int      `json:"count"`
}

// Message returns the banner message. A missing document is a hidden,
// empty message.
func (s *FileStore) Message(ctx context.Context) (engine.Message, error) {
	var m engine.Message
	if err := s.readJSON(ctx, MessageFile, &m); err != nil {
		if errors.IsNotFound(err) {
			return engine.Message{}, nil
		}
		return engine.Message{}, err
	}
	return m, nil
}

// SaveMessage strips markup from text and stores the banner message.
func (s *FileStore) SaveMessage(ctx context.Context, text string, visible bool) (engine.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveMessageLocked(ctx, text, visible)
}

func (s *FileStore) saveMessageLocked(ctx context.Context, text string, visible bool) (engine.Message, error) {
	clean := StripTags(text)
	if runeLen(clean) > MaxMessageLen {
		return engine.Message{}, errors.NewValidationError("text", "message must be at most %d characters", MaxMessageLen)
	}
	m := engine.Message{Text: clean, Visible: visible}
	if err := s.writeJSON(ctx, MessageFile, m); err != nil {
		return engine.Message{}, err
	}
	s.log.With(log.F("length", runeLen(clean)), log.F("visible", visible)).Info("Message saved")
	return m, nil
}

// Status returns the queue/announcement overlay, defaulting to rooms mode
// with the default labels.
func (s *FileStore) Status(ctx context.Context) (engine.StatusDisplay, error) {
	st := engine.DefaultStatus()
	if err := s.readJSON(ctx, StatusFile, &st); err != nil {
		if errors.IsNotFound(err) {
			return engine.DefaultStatus(), nil
		}
		return engine.StatusDisplay{}, err
	}
	switch st.Mode {
	case engine.StatusRooms, engine.StatusMessage, engine.StatusHidden:
	default:
		st.Mode = engine.StatusRooms
	}
	return st, nil
}

// SaveStatus validates u, stores it, appends it to the status log and
// records any custom room labels in the label history.
func (s *FileStore) SaveStatus(ctx context.Context, u StatusUpdate) (engine.StatusDisplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.Status(ctx)
	if err != nil {
		return engine.StatusDisplay{}, err
	}

	mode := engine.StatusMode(strings.TrimSpace(string(u.Mode)))
	switch mode {
	case engine.StatusRooms, engine.StatusMessage, engine.StatusHidden:
	default:
		mode = engine.StatusRooms
	}

	st := engine.StatusDisplay{Mode: mode, Room1: prev.Room1, Room2: prev.Room2}

	if mode == engine.StatusRooms || u.Room1 != nil {
		if st.Room1, err = validateRoom(u.Room1, engine.DefaultRoom1Label); err != nil {
			return engine.StatusDisplay{}, err
		}
	}
	if mode == engine.StatusRooms || u.Room2 != nil {
		if st.Room2, err = validateRoom(u.Room2, engine.DefaultRoom2Label); err != nil {
			return engine.StatusDisplay{}, err
		}
	}

	if mode == engine.StatusMessage && u.StatusMessage != nil {
		visible := u.StatusMessage.Visible == nil || *u.StatusMessage.Visible
		st.StatusMessage = engine.StatusText{
			Text:    truncate(StripTags(u.StatusMessage.Text), MaxStatusMessageLen),
			Visible: visible,
		}
	}
	st.LastUpdated = s.timestamp()

	if err := s.writeJSON(ctx, StatusFile, st); err != nil {
		return engine.StatusDisplay{}, err
	}

	if err := s.appendStatusLog(ctx, st); err != nil {
		log.LogWithError(err).Warn("Failed to append status log")
	}
	if err := s.rememberLabels(ctx, st); err != nil {
		log.LogWithError(err).Warn("Failed to update label history")
	}

	s.log.With(
		log.F("mode", string(st.Mode)),
		log.F("room1", st.Room1.Number),
		log.F("room2", st.Room2.Number),
	).Info("Status saved")
	return st, nil
}

func validateRoom(r *engine.Room, defaultLabel string) (engine.Room, error) {
	if r == nil {
		return engine.Room{Label: defaultLabel}, nil
	}
	label := StripTags(r.Label)
	if runeLen(label) > MaxLabelLen {
		return engine.Room{}, errors.NewValidationError("label", "room label must be at most %d characters", MaxLabelLen)
	}
	if label == "" {
		label = defaultLabel
	}
	if r.Number < 0 || r.Number > MaxRoomNumber {
		return engine.Room{}, errors.NewValidationError("number", "room number must be between 0 and %d", MaxRoomNumber)
	}
	return engine.Room{Label: label, Number: r.Number, Visible: r.Visible}, nil
}

// StatusLog returns the recorded status writes, oldest first.
func (s *FileStore) StatusLog(ctx context.Context) ([]StatusLogEntry, error) {
	var entries []StatusLogEntry
	if err := s.readJSON(ctx, StatusLogFile, &entries); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) appendStatusLog(ctx context.Context, st engine.StatusDisplay) error {
	entries, err := s.StatusLog(ctx)
	if err != nil {
		// A corrupt log is replaced rather than blocking status writes.
		log.LogWithError(err).Warn("Discarding unreadable status log")
		entries = nil
	}
	entries = append(entries, StatusLogEntry{
		Timestamp: st.LastUpdated,
		Mode:      st.Mode,
		Room1:     st.Room1,
		Room2:     st.Room2,
	})
	if len(entries) > MaxStatusLog {
		entries = entries[len(entries)-MaxStatusLog:]
	}
	return s.writeJSON(ctx, StatusLogFile, entries)
}

// LabelHistory returns recently used custom room labels, newest first.
func (s *FileStore) LabelHistory(ctx context.Context) ([]string, error) {
	var doc labelHistoryDoc
	if err := s.readJSON(ctx, LabelHistoryFile, &doc); err != nil {
		if errors.IsNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	if doc.History == nil {
		return []string{}, nil
	}
	return doc.History, nil
}

// SaveLabelHistory replaces the label history. Labels are cleaned,
// de-duplicated and capped; invalid ones are dropped.
func (s *FileStore) SaveLabelHistory(ctx context.Context, labels []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(labels))
	history := make([]string, 0, len(labels))
	for _, l := range labels {
		l = StripTags(l)
		if l == "" || runeLen(l) > MaxLabelLen || seen[l] {
			continue
		}
		seen[l] = true
		history = append(history, l)
	}
	if len(history) > MaxLabelHistory {
		history = history[:MaxLabelHistory]
	}
	if err := s.writeLabelHistory(ctx, history); err != nil {
		return nil, err
	}
	return history, nil
}

// rememberLabels moves the custom labels of st to the front of the
// history. Default labels are never recorded.
func (s *FileStore) rememberLabels(ctx context.Context, st engine.StatusDisplay) error {
	history, err := s.LabelHistory(ctx)
	if err != nil {
		history = []string{}
	}

	var fresh []string
	if l := strings.TrimSpace(st.Room1.Label); l != "" && l != engine.DefaultRoom1Label {
		fresh = append(fresh, l)
	}
	if l := strings.TrimSpace(st.Room2.Label); l != "" && l != engine.DefaultRoom2Label {
		fresh = append(fresh, l)
	}
	if len(fresh) == 0 {
		return nil
	}

	for _, label := range fresh {
		kept := []string{label}
		for _, h := range history {
			if h != label {
				kept = append(kept, h)
			}
		}
		history = kept
	}
	if len(history) > MaxLabelHistory {
		history = history[:MaxLabelHistory]
	}
	return s.writeLabelHistory(ctx, history)
}

func (s *FileStore) writeLabelHistory(ctx context.Context, history []string) error {
	return s.writeJSON(ctx, LabelHistoryFile, labelHistoryDoc{
		History:     history,
		LastUpdated: s.timestamp(),
		Count:       len(history),
	})
}
