package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/routing"
	"github.com/soyeahso/annabot/internal/version"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string               `json:"status"`
	Session domain.SessionStatus `json:"session"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Session     domain.SessionStatus `json:"session"`
	Self        string               `json:"self,omitempty"`
	ConnectedAt *time.Time           `json:"connectedAt,omitempty"`
	Reconnects  int                  `json:"reconnects"`
	Uptime      string               `json:"uptime"`
	Messages    *routing.Stats       `json:"messages,omitempty"`
	Version     string               `json:"version"`
}

// handleHealth answers 200 while the session is open and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sess := s.session.Status()
	if sess.Status != domain.StatusOpen {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Session: sess.Status})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Session: sess.Status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.session.Status()
	resp := StatusResponse{
		Session:    sess.Status,
		Self:       s.session.SelfID(),
		Reconnects: sess.Reconnects,
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Version:    version.Version,
	}
	if !sess.ConnectedAt.IsZero() {
		resp.ConnectedAt = &sess.ConnectedAt
	}
	if s.stats != nil {
		stats := s.stats.Stats()
		resp.Messages = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error":  "method not allowed",
		"method": r.Method,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
