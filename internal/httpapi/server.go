package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mveroni/taskpilot/internal/config"
	"github.com/mveroni/taskpilot/internal/httpjson"
	"github.com/mveroni/taskpilot/internal/mcp"
	"github.com/mveroni/taskpilot/internal/observability"
	"github.com/mveroni/taskpilot/internal/session"
	"github.com/mveroni/taskpilot/internal/tasks"
)

type Server struct {
	cfg      config.Config
	manager  *tasks.Manager
	sessions *session.Manager
	mcp      *mcp.Server
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, manager *tasks.Manager, sessions *session.Manager, mcpServer *mcp.Server, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		manager:  manager,
		sessions: sessions,
		mcp:      mcpServer,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.countRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/tasks", s.handleCreateTask)
	r.Get("/v1/tasks", s.handleListTasks)
	r.Get("/v1/tasks/search", s.handleSearchTasks)
	r.Get("/v1/tasks/{id}", s.handleGetTask)
	r.Patch("/v1/tasks/{id}", s.handleUpdateTask)
	r.Delete("/v1/tasks/{id}", s.handleDeleteTask)
	r.Get("/v1/events", s.handleEventsWS)

	r.Mount("/mcp", s.mcp.Routes())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpjson.Respond(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	httpjson.Respond(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) storeMode() string {
	if strings.TrimSpace(s.cfg.DatabaseURL) == "" {
		return "in-memory"
	}
	return "postgres"
}
