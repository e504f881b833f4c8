package mcp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mveroni/taskpilot/internal/httpjson"
	"github.com/mveroni/taskpilot/internal/observability"
	"github.com/mveroni/taskpilot/internal/session"
)

// Server is the tool-layer HTTP surface, mounted under /mcp by the main
// router.
type Server struct {
	sessions *session.Manager
	gateway  *Gateway
	metrics  *observability.Metrics
}

func NewServer(sessions *session.Manager, gateway *Gateway, metrics *observability.Metrics) *Server {
	return &Server{
		sessions: sessions,
		gateway:  gateway,
		metrics:  metrics,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tools", s.handleListTools)
	r.Post("/session", s.handleCreateSession)
	r.Post("/session/{id}/end", s.handleEndSession)
	r.Post("/tools/call", s.handleCallTool)
	return r
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	httpjson.Respond(w, http.StatusOK, map[string]any{"tools": Catalog()})
}

type createSessionRequest struct {
	ClientName string `json:"client_name"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := httpjson.Decode(r, &req); err != nil && !errors.Is(err, httpjson.ErrEmptyBody) {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ClientName) == "" {
		req.ClientName = "anonymous"
	}

	sess := s.sessions.Create(req.ClientName)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	httpjson.Respond(w, http.StatusCreated, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	sess, err := s.sessions.End(id)
	if err != nil {
		httpjson.RespondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	httpjson.Respond(w, http.StatusOK, sess)
}

type callToolRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req callToolRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", "tool name is required")
		return
	}

	// A session is optional, but a stale one is a client bug worth a hard
	// signal rather than a silently sessionless call.
	if id := strings.TrimSpace(req.SessionID); id != "" {
		if err := s.sessions.Touch(id); err != nil {
			httpjson.RespondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
	}

	start := time.Now()
	result := s.gateway.Call(r.Context(), req.Name, req.Arguments)
	outcome := "success"
	if ok, _ := result["success"].(bool); !ok {
		outcome = "error"
	}
	s.metrics.ObserveToolCall(req.Name, outcome, time.Since(start))

	httpjson.Respond(w, http.StatusOK, result)
}
