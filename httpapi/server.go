// Package httpapi serves read-only diagnostics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pkt.systems/culturessh/internal/authlog"
	"pkt.systems/culturessh/schema"
	"pkt.systems/pslog"
)

const shutdownTimeout = 5 * time.Second

// SessionLister reports live sessions.
type SessionLister interface {
	Sessions() []schema.SessionInfo
}

// AttemptLister reports recorded authentication attempts.
type AttemptLister interface {
	All(ctx context.Context) (iter.Seq[authlog.Attempt], error)
}

// Server routes diagnostics requests.
type Server struct {
	sessions SessionLister
	attempts AttemptLister
	router   chi.Router
}

// NewServer builds the diagnostics router.
func NewServer(sessions SessionLister, attempts AttemptLister) *Server {
	s := &Server{sessions: sessions, attempts: attempts}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/sessions", s.handleSessions)
		r.Get("/auth-attempts", s.handleAttempts)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return withRequestLogging(s.router)
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: len(s.sessions.Sessions())})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Sessions())
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	seq, err := s.attempts.All(r.Context())
	if err != nil {
		pslog.Ctx(r.Context()).Warn("http auth attempts failed", "err", err)
		writeError(w, http.StatusInternalServerError, "auth log unavailable")
		return
	}
	out := []authlog.Attempt{}
	for attempt := range seq {
		out = append(out, attempt)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
