package store

import (
	"context"
	"os"
	"path/filepath"

	"waitroom/internal/engine"
	"waitroom/internal/log"
)

// sampleContent is written by Scaffold into an empty data directory.
var sampleContent = []*engine.ContentFile{
	{
		Filename: "health_tips.json",
		Meta:     engine.ContentMeta{Title: "健康のヒント", Icon: "🍀", DisplayMode: engine.ModeRandom},
		Items: []engine.ContentItem{
			{Icon: "🧼", Title: "手洗い", Text: "石けんで30秒、指の間まで丁寧に洗いましょう。"},
			{Icon: "💧", Title: "水分補給", Text: "のどが渇く前に、こまめに水分をとりましょう。"},
			{Icon: "😴", Title: "睡眠", Text: "毎日同じ時間に寝起きすると体内時計が整います。"},
		},
	},
	{
		Filename: "clinic_guide.json",
		Meta:     engine.ContentMeta{Title: "当院のご案内", Icon: "🏥", DisplayMode: engine.ModeOrder},
		Items: []engine.ContentItem{
			{Icon: "🕘", Title: "受付時間", Text: "午前 9:00-12:00 / 午後 15:00-18:00"},
			{Icon: "💳", Title: "お支払い", Text: "各種クレジットカードがご利用いただけます。", DisplayTime: 10},
		},
		DefaultTiming: &engine.Timing{WaitTime: 15, DisplayTime: 8},
	},
}

// Scaffold prepares an empty data directory: default settings, a hidden
// message, the default status and sample content. Existing documents are
// never overwritten.
func (s *FileStore) Scaffold(ctx context.Context) ([]string, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	var created []string
	write := func(name string, v interface{}) error {
		if s.exists(name) {
			return nil
		}
		if err := s.writeJSON(ctx, name, v); err != nil {
			return err
		}
		created = append(created, name)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := engine.DefaultSettings()
	settings.MessageMode = MessageModeSync
	settings.LastUpdated = s.timestamp()
	if err := write(SettingsFile, settings); err != nil {
		return created, err
	}
	if err := write(MessageFile, engine.Message{}); err != nil {
		return created, err
	}
	status := engine.DefaultStatus()
	status.LastUpdated = s.timestamp()
	if err := write(StatusFile, status); err != nil {
		return created, err
	}

	names, err := s.ContentFiles(ctx)
	if err != nil {
		return created, err
	}
	if len(names) == 0 {
		for _, f := range sampleContent {
			doc := *f
			doc.Filename = ""
			rel := filepath.Join(ContentsDir, f.Filename)
			if err := write(rel, doc); err != nil {
				return created, err
			}
		}
	}

	s.log.With(log.F("created", len(created))).Info("Data directory scaffolded")
	return created, nil
}

func (s *FileStore) exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}
