package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mveroni/taskpilot/internal/tasks"
	"github.com/mveroni/taskpilot/internal/timeparse"
)

// Result is the normalized tool envelope: success plus action-keyed result
// fields, or success=false with a single error string. Domain failures stay
// inside the envelope so callers only see transport errors as HTTP errors.
type Result map[string]any

func success(fields map[string]any) Result {
	out := Result{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func failure(format string, args ...any) Result {
	return Result{"success": false, "error": fmt.Sprintf(format, args...)}
}

// Gateway maps a tool name and argument object onto exactly one manager
// call.
type Gateway struct {
	manager *tasks.Manager
	now     func() time.Time
}

func NewGateway(manager *tasks.Manager) *Gateway {
	return &Gateway{manager: manager, now: time.Now}
}

func (g *Gateway) Call(ctx context.Context, name string, args map[string]any) Result {
	if args == nil {
		args = map[string]any{}
	}
	switch name {
	case ToolCreateTask:
		return g.createTask(ctx, args)
	case ToolListTasks:
		return g.listTasks(args)
	case ToolSearchTask:
		return g.searchTasks(args)
	case ToolUpdateTask:
		return g.updateTask(ctx, args)
	case ToolDeleteTask:
		return g.deleteTask(ctx, args)
	default:
		return failure("unknown tool %q", name)
	}
}

func (g *Gateway) createTask(ctx context.Context, args map[string]any) Result {
	title, _ := args["title"].(string)
	if title == "" {
		return failure("title is required")
	}
	req := tasks.CreateRequest{Title: title}
	if notes, ok := args["notes"].(string); ok {
		req.Notes = notes
	}
	if p, ok := args["priority"].(string); ok && p != "" {
		req.Priority = tasks.Priority(p)
	}
	if due, ok := args["due"].(string); ok && due != "" {
		resolved, ok := timeparse.Resolve(due, g.now())
		if !ok {
			return failure("could not understand due time %q", due)
		}
		req.DueAt = &resolved
	}

	task, err := g.manager.Create(ctx, req)
	if err != nil {
		return failure("create task: %v", err)
	}
	return success(map[string]any{"task": task})
}

func (g *Gateway) listTasks(args map[string]any) Result {
	status := tasks.Status("")
	if s, ok := args["status"].(string); ok && s != "" {
		status = tasks.Status(s)
		if !status.Valid() {
			return failure("invalid status %q", s)
		}
	}
	list := g.manager.List(status, intArg(args, "limit"))
	return success(map[string]any{"tasks": list})
}

func (g *Gateway) searchTasks(args map[string]any) Result {
	query, _ := args["query"].(string)
	if query == "" {
		return failure("query is required")
	}
	list := g.manager.Search(query, intArg(args, "limit"))
	return success(map[string]any{"tasks": list})
}

func (g *Gateway) updateTask(ctx context.Context, args map[string]any) Result {
	taskID, _ := args["task_id"].(string)
	if taskID == "" {
		return failure("task_id is required")
	}

	var req tasks.UpdateRequest
	if title, ok := args["title"].(string); ok {
		req.Title = &title
	}
	if notes, ok := args["notes"].(string); ok {
		req.Notes = &notes
	}
	if clear, ok := args["clear_due"].(bool); ok {
		req.ClearDue = clear
	}
	if due, ok := args["due"].(string); ok && due != "" {
		resolved, ok := timeparse.Resolve(due, g.now())
		if !ok {
			return failure("could not understand due time %q", due)
		}
		req.DueAt = &resolved
	}
	if p, ok := args["priority"].(string); ok && p != "" {
		priority := tasks.Priority(p)
		req.Priority = &priority
	}
	if s, ok := args["status"].(string); ok && s != "" {
		status := tasks.Status(s)
		req.Status = &status
	}

	task, err := g.manager.Update(ctx, taskID, req)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return failure("task %s not found", taskID)
		}
		return failure("update task: %v", err)
	}
	return success(map[string]any{"task": task})
}

func (g *Gateway) deleteTask(ctx context.Context, args map[string]any) Result {
	taskID, _ := args["task_id"].(string)
	if taskID == "" {
		return failure("task_id is required")
	}
	deleted, err := g.manager.Delete(ctx, taskID)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return failure("task %s not found", taskID)
		}
		return failure("delete task: %v", err)
	}
	return success(map[string]any{"message": fmt.Sprintf("Deleted task %q.", deleted.Title)})
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
