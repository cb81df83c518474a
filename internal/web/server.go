// Package web serves the live frame stream and the reader status over HTTP.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/farouk15160/canread/internal/poller"
)

// StatusSource is what the status endpoints report on.
type StatusSource interface {
	State() poller.State
	Stats() poller.Stats
}

// Status is the body of GET /status.
type Status struct {
	App       string       `json:"app"`
	Interface string       `json:"interface"`
	PeriodMs  int64        `json:"poll_period_ms"`
	Uptime    string       `json:"uptime"`
	Poller    poller.Stats `json:"poller"`
}

// Server exposes /ws, /status and /healthz.
type Server struct {
	App       string
	Interface string
	Period    time.Duration

	status  StatusSource
	stream  http.Handler
	started time.Time
	http    *http.Server
}

// NewServer builds the router; stream handles websocket upgrades on /ws.
func NewServer(addr string, status StatusSource, stream http.Handler) *Server {
	s := &Server{status: status, stream: stream, started: time.Now()}
	s.http = &http.Server{Addr: addr, Handler: s.Routes()}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/status", s.statusHandler)
	if s.stream != nil {
		r.Get("/ws", s.stream.ServeHTTP)
	}
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.status.State() == poller.Stopped {
		render.Status(r, http.StatusServiceUnavailable)
		render.PlainText(w, r, "stopped")
		return
	}
	render.PlainText(w, r, "ok")
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Status{
		App:       s.App,
		Interface: s.Interface,
		PeriodMs:  s.Period.Milliseconds(),
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Poller:    s.status.Stats(),
	})
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Printf("Web: Listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
