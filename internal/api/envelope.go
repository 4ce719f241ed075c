package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"waitroom/internal/errors"
	"waitroom/internal/store"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// maxBody caps request bodies; content files are the largest documents.
const maxBody = 1 << 20

// Envelope is the wrapper around every gateway response. Data is left
// raw so clients can decode it into the type they expect.
type Envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func (s *Server) respond(w http.ResponseWriter, code int, msg string, data interface{}) {
	status := StatusSuccess
	if code >= http.StatusBadRequest {
		status = StatusError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(response{
		Status:    status,
		Message:   msg,
		Data:      data,
		Timestamp: s.now().Format(store.TimeLayout),
	}); err != nil {
		s.log.WithError(err).Warn("Failed to write response")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	l := s.log.WithError(err)
	if code >= http.StatusInternalServerError {
		l.Error(r.Method + " " + r.URL.Path + " failed")
	} else {
		l.Debug(r.Method + " " + r.URL.Path + " rejected")
	}
	s.respond(w, code, err.Error(), nil)
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsContentError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		return errors.NewValidationError("body", "invalid JSON request: %v", err)
	}
	return nil
}

func timestamp(now func() time.Time) string {
	return now().Format(store.TimeLayout)
}
