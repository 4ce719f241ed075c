package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"waitroom/internal/engine"
	"waitroom/internal/store"
)

func (s *Server) getSettings(r *http.Request) (result, error) {
	settings, err := s.store.Settings(r.Context())
	return result{data: settings}, err
}

func (s *Server) saveSettings(r *http.Request) (result, error) {
	var patch store.SettingsPatch
	if err := decode(r, &patch); err != nil {
		return result{}, err
	}
	settings, err := s.store.SaveSettings(r.Context(), patch)
	if err != nil {
		return result{}, err
	}
	s.Notify(store.SettingsFile)
	if patch.Message != nil {
		s.Notify(store.MessageFile)
	}
	return result{data: settings, msg: "設定を保存しました"}, nil
}

func (s *Server) getMessage(r *http.Request) (result, error) {
	m, err := s.store.Message(r.Context())
	return result{data: m}, err
}

func (s *Server) saveMessage(r *http.Request) (result, error) {
	var req engine.Message
	if err := decode(r, &req); err != nil {
		return result{}, err
	}
	m, err := s.store.SaveMessage(r.Context(), req.Text, req.Visible)
	if err != nil {
		return result{}, err
	}
	s.Notify(store.MessageFile)
	return result{data: m, msg: "メッセージを保存しました"}, nil
}

func (s *Server) getStatus(r *http.Request) (result, error) {
	st, err := s.store.Status(r.Context())
	return result{data: st}, err
}

func (s *Server) saveStatus(r *http.Request) (result, error) {
	var u store.StatusUpdate
	if err := decode(r, &u); err != nil {
		return result{}, err
	}
	st, err := s.store.SaveStatus(r.Context(), u)
	if err != nil {
		return result{}, err
	}
	s.Notify(store.StatusFile)
	return result{data: st, msg: "ステータスを更新しました"}, nil
}

func (s *Server) getStatusLog(r *http.Request) (result, error) {
	entries, err := s.store.StatusLog(r.Context())
	if entries == nil {
		entries = []store.StatusLogEntry{}
	}
	return result{data: entries}, err
}

func (s *Server) getLabels(r *http.Request) (result, error) {
	labels, err := s.store.LabelHistory(r.Context())
	return result{data: labels}, err
}

type labelsRequest struct {
	Labels []string `json:"labels"`
}

func (s *Server) saveLabels(r *http.Request) (result, error) {
	var req labelsRequest
	if err := decode(r, &req); err != nil {
		return result{}, err
	}
	labels, err := s.store.SaveLabelHistory(r.Context(), req.Labels)
	return result{data: labels, msg: "ラベル履歴を保存しました"}, err
}

func (s *Server) getPlaylist(r *http.Request) (result, error) {
	pl, err := s.store.Playlist(r.Context())
	return result{data: pl}, err
}

type playlistRequest struct {
	PlaylistString string `json:"playlistString"`
}

func (s *Server) savePlaylist(r *http.Request) (result, error) {
	var req playlistRequest
	if err := decode(r, &req); err != nil {
		return result{}, err
	}
	pl, err := s.store.SavePlaylist(r.Context(), req.PlaylistString)
	if err != nil {
		return result{}, err
	}
	s.Notify(store.PlaylistFile)
	return result{data: pl, msg: "プレイリストを保存しました"}, nil
}

func (s *Server) clearPlaylist(r *http.Request) (result, error) {
	if err := s.store.ClearPlaylist(r.Context()); err != nil {
		return result{}, err
	}
	s.Notify(store.PlaylistFile)
	return result{msg: "プレイリストを解除しました"}, nil
}

func (s *Server) getCursor(r *http.Request) (result, error) {
	c, err := s.store.LoadCursor(r.Context())
	return result{data: c}, err
}

// saveCursor is called by displays as they advance. It is not broadcast.
func (s *Server) saveCursor(r *http.Request) (result, error) {
	var c engine.Cursor
	if err := decode(r, &c); err != nil {
		return result{}, err
	}
	return result{data: c}, s.store.SaveCursor(r.Context(), c)
}

func (s *Server) reload(r *http.Request) (result, error) {
	s.hub.Broadcast(Event{Type: EventReload, Timestamp: timestamp(s.now)})
	return result{data: map[string]int{"subscribers": s.hub.Subscribers()}, msg: "再読み込みを要求しました"}, nil
}

func (s *Server) listFiles(r *http.Request) (result, error) {
	files, err := s.store.ListFiles(r.Context())
	return result{data: files}, err
}

func (s *Server) contentNames(r *http.Request) (result, error) {
	names, err := s.store.ContentFiles(r.Context())
	if names == nil {
		names = []string{}
	}
	return result{data: names}, err
}

func (s *Server) getContent(r *http.Request) (result, error) {
	f, err := s.store.ContentFile(r.Context(), mux.Vars(r)["name"])
	return result{data: f}, err
}

func (s *Server) saveContent(r *http.Request) (result, error) {
	name := mux.Vars(r)["name"]
	var f engine.ContentFile
	if err := decode(r, &f); err != nil {
		return result{}, err
	}
	f.Filename = name
	if err := s.store.SaveContentFile(r.Context(), &f); err != nil {
		return result{}, err
	}
	s.Notify(store.ContentsDir + "/" + name)
	return result{data: f, msg: "コンテンツを保存しました"}, nil
}

type displayModeRequest struct {
	DisplayMode engine.DisplayMode `json:"displayMode"`
}

func (s *Server) saveDisplayMode(r *http.Request) (result, error) {
	name := mux.Vars(r)["name"]
	var req displayModeRequest
	if err := decode(r, &req); err != nil {
		return result{}, err
	}
	if err := s.store.SaveDisplayMode(r.Context(), name, req.DisplayMode); err != nil {
		return result{}, err
	}
	s.Notify(store.SettingsFile)
	return result{
		data: map[string]string{"filename": name, "displayMode": string(req.DisplayMode)},
		msg:  "表示モードを保存しました",
	}, nil
}

func (s *Server) getSequence(r *http.Request) (result, error) {
	st, err := s.store.SequenceStatus(r.Context())
	return result{data: st}, err
}

func (s *Server) getProgress(r *http.Request) (result, error) {
	p, err := s.store.LoadSequenceProgress(r.Context())
	return result{data: p}, err
}

// saveProgress is called by displays as they advance. It is not broadcast.
func (s *Server) saveProgress(r *http.Request) (result, error) {
	var p map[string]int
	if err := decode(r, &p); err != nil {
		return result{}, err
	}
	return result{data: p}, s.store.SaveSequenceProgress(r.Context(), p)
}

func (s *Server) resetSequence(r *http.Request) (result, error) {
	names, err := s.store.ResetSequence(r.Context())
	if err != nil {
		return result{}, err
	}
	if names == nil {
		names = []string{}
	}
	s.Notify(store.ProgressFile)
	return result{
		data: map[string]interface{}{"resetFiles": names, "count": len(names)},
		msg:  "シーケンスをリセットしました",
	}, nil
}

func (s *Server) getDisplayStatus(r *http.Request) (result, error) {
	ds, err := s.store.DisplayStatus(r.Context())
	return result{data: ds}, err
}
