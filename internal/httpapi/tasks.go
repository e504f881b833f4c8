package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mveroni/taskpilot/internal/httpjson"
	"github.com/mveroni/taskpilot/internal/tasks"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	task, err := s.manager.Create(r.Context(), req)
	if err != nil {
		httpjson.RespondError(w, http.StatusBadRequest, "task_create_failed", err.Error())
		return
	}
	s.metrics.TaskEvents.WithLabelValues(string(tasks.EventTaskCreated)).Inc()
	httpjson.Respond(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "id"))
	if taskID == "" {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_task_id", "missing task id")
		return
	}
	task, err := s.manager.Get(taskID)
	if err != nil {
		httpjson.RespondError(w, http.StatusNotFound, "task_not_found", err.Error())
		return
	}
	httpjson.Respond(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := tasks.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid status filter")
		return
	}
	limit, ok := limitParam(w, r, 200)
	if !ok {
		return
	}
	httpjson.Respond(w, http.StatusOK, map[string]any{
		"tasks": s.manager.List(status, limit),
	})
}

func (s *Server) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", "q query param is required")
		return
	}
	limit, ok := limitParam(w, r, 200)
	if !ok {
		return
	}
	httpjson.Respond(w, http.StatusOK, map[string]any{
		"query": query,
		"tasks": s.manager.Search(query, limit),
	})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "id"))
	if taskID == "" {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_task_id", "missing task id")
		return
	}

	var req tasks.UpdateRequest
	if err := httpjson.Decode(r, &req); err != nil && !errors.Is(err, httpjson.ErrEmptyBody) {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	task, err := s.manager.Update(r.Context(), taskID, req)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			httpjson.RespondError(w, http.StatusNotFound, "task_not_found", err.Error())
			return
		}
		httpjson.RespondError(w, http.StatusBadRequest, "task_update_failed", err.Error())
		return
	}
	s.metrics.TaskEvents.WithLabelValues(string(tasks.EventTaskUpdated)).Inc()
	httpjson.Respond(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "id"))
	if taskID == "" {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_task_id", "missing task id")
		return
	}

	deleted, err := s.manager.Delete(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			httpjson.RespondError(w, http.StatusNotFound, "task_not_found", err.Error())
			return
		}
		httpjson.RespondError(w, http.StatusBadRequest, "task_delete_failed", err.Error())
		return
	}
	s.metrics.TaskEvents.WithLabelValues(string(tasks.EventTaskDeleted)).Inc()
	httpjson.Respond(w, http.StatusOK, map[string]any{
		"message": "Deleted task \"" + deleted.Title + "\".",
	})
}

func limitParam(w http.ResponseWriter, r *http.Request, max int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		httpjson.RespondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}
