// Package api is the HTTP gateway in front of the content store. The
// control panel writes through it, remote displays read through it, and
// displays subscribe to /ws for change notifications.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"waitroom/internal/errors"
	"waitroom/internal/log"
	"waitroom/internal/store"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Server serves the gateway routes for one FileStore.
type Server struct {
	store  *store.FileStore
	hub    *Hub
	router *mux.Router
	now    func() time.Time
	log    *log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer wires the routes. The hub must be running for push
// notifications to be delivered.
func NewServer(st *store.FileStore, hub *Hub, opts ...Option) *Server {
	s := &Server{
		store: st,
		hub:   hub,
		now:   time.Now,
		log:   log.LogWithFields(log.F("component", "api")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the push hub.
func (s *Server) Hub() *Hub { return s.hub }

// Notify tells subscribers that file changed.
func (s *Server) Notify(file string) {
	s.hub.Broadcast(Event{Type: EventChanged, File: file, Timestamp: timestamp(s.now)})
}

// ListenAndServe runs the hub and the HTTP server until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.With(log.F("addr", addr), log.F("data_dir", s.store.Dir())).Info("Gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "gateway server")
	case <-ctx.Done():
	}

	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shut down gateway")
	}
	s.log.Info("Gateway stopped")
	return nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.hub.ServeWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.logRequests)

	api.HandleFunc("/settings", s.handle(s.getSettings)).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handle(s.saveSettings)).Methods(http.MethodPost)
	api.HandleFunc("/message", s.handle(s.getMessage)).Methods(http.MethodGet)
	api.HandleFunc("/message", s.handle(s.saveMessage)).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handle(s.getStatus)).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handle(s.saveStatus)).Methods(http.MethodPost)
	api.HandleFunc("/status/log", s.handle(s.getStatusLog)).Methods(http.MethodGet)
	api.HandleFunc("/labels", s.handle(s.getLabels)).Methods(http.MethodGet)
	api.HandleFunc("/labels", s.handle(s.saveLabels)).Methods(http.MethodPost)

	api.HandleFunc("/playlist", s.handle(s.getPlaylist)).Methods(http.MethodGet)
	api.HandleFunc("/playlist", s.handle(s.savePlaylist)).Methods(http.MethodPost)
	api.HandleFunc("/playlist", s.handle(s.clearPlaylist)).Methods(http.MethodDelete)
	api.HandleFunc("/playlist/cursor", s.handle(s.getCursor)).Methods(http.MethodGet)
	api.HandleFunc("/playlist/cursor", s.handle(s.saveCursor)).Methods(http.MethodPut)
	api.HandleFunc("/reload", s.handle(s.reload)).Methods(http.MethodPost)

	api.HandleFunc("/files", s.handle(s.listFiles)).Methods(http.MethodGet)
	api.HandleFunc("/contents", s.handle(s.contentNames)).Methods(http.MethodGet)
	api.HandleFunc("/contents/{name}", s.handle(s.getContent)).Methods(http.MethodGet)
	api.HandleFunc("/contents/{name}", s.handle(s.saveContent)).Methods(http.MethodPut)
	api.HandleFunc("/contents/{name}/mode", s.handle(s.saveDisplayMode)).Methods(http.MethodPost)

	api.HandleFunc("/sequence", s.handle(s.getSequence)).Methods(http.MethodGet)
	api.HandleFunc("/sequence/progress", s.handle(s.getProgress)).Methods(http.MethodGet)
	api.HandleFunc("/sequence/progress", s.handle(s.saveProgress)).Methods(http.MethodPut)
	api.HandleFunc("/sequence/reset", s.handle(s.resetSequence)).Methods(http.MethodPost)
	api.HandleFunc("/display", s.handle(s.getDisplayStatus)).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, http.StatusNotFound, "unknown endpoint: "+r.URL.Path, nil)
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method, nil)
	})
	return r
}

// result is what a route produces: the payload and a human message.
type result struct {
	data interface{}
	msg  string
}

type routeFunc func(r *http.Request) (result, error)

func (s *Server) handle(fn routeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, res.msg, res.data)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.With(
			log.F("method", r.Method),
			log.F("path", r.URL.Path),
			log.F("status", rec.code),
			log.F("duration", time.Since(start).String()),
		).Debug("request")
	})
}
