// Package mcp exposes the task CRUD operations as named tools over a small
// hand-rolled HTTP dispatcher: a static catalog with JSON schemas, a session
// handshake, and a single call endpoint that answers with a normalized
// success/error envelope.
package mcp

// Tool describes one callable operation for catalog consumers.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

const (
	ToolCreateTask = "create_task"
	ToolListTasks  = "list_tasks"
	ToolSearchTask = "search_tasks"
	ToolUpdateTask = "update_task"
	ToolDeleteTask = "delete_task"
)

// Catalog returns the static tool definitions. The schemas are plain JSON
// schema objects; nothing here is generated.
func Catalog() []Tool {
	dueProp := map[string]any{
		"type":        "string",
		"description": "Due time, RFC 3339 or a natural phrase like 'tomorrow at 5pm'.",
	}
	priorityProp := map[string]any{
		"type": "string",
		"enum": []string{"low", "normal", "high"},
	}

	return []Tool{
		{
			Name:        ToolCreateTask,
			Description: "Create a new task.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":    map[string]any{"type": "string"},
					"notes":    map[string]any{"type": "string"},
					"due":      dueProp,
					"priority": priorityProp,
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        ToolListTasks,
			Description: "List tasks, newest first, optionally filtered by status.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type": "string",
						"enum": []string{"open", "done", "cancelled"},
					},
					"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
				},
			},
		},
		{
			Name:        ToolSearchTask,
			Description: "Search tasks by substring over title and notes.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolUpdateTask,
			Description: "Update fields on an existing task.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id":   map[string]any{"type": "string"},
					"title":     map[string]any{"type": "string"},
					"notes":     map[string]any{"type": "string"},
					"due":       dueProp,
					"clear_due": map[string]any{"type": "boolean"},
					"priority":  priorityProp,
					"status": map[string]any{
						"type": "string",
						"enum": []string{"open", "done", "cancelled"},
					},
				},
				"required": []string{"task_id"},
			},
		},
		{
			Name:        ToolDeleteTask,
			Description: "Delete a task by id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{"type": "string"},
				},
				"required": []string{"task_id"},
			},
		},
	}
}
