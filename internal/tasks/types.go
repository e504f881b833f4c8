package tasks

import "time"

type Status string

const (
	StatusOpen      Status = "open"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	default:
		return false
	}
}

// Task is the scheduling document the whole service revolves around.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	Priority  Priority   `json:"priority"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CreateRequest struct {
	Title    string     `json:"title"`
	Notes    string     `json:"notes,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Priority Priority   `json:"priority,omitempty"`
}

// UpdateRequest carries partial updates. Nil fields are left untouched;
// ClearDue removes an existing due date.
type UpdateRequest struct {
	Title    *string    `json:"title,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	ClearDue bool       `json:"clear_due,omitempty"`
	Priority *Priority  `json:"priority,omitempty"`
	Status   *Status    `json:"status,omitempty"`
}

type EventType string

const (
	EventTaskCreated EventType = "task_created"
	EventTaskUpdated EventType = "task_updated"
	EventTaskDeleted EventType = "task_deleted"
)

type Event struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id"`
	Title  string    `json:"title"`
	At     time.Time `json:"at"`
}

func (t Task) Clone() Task {
	out := t
	if t.DueAt != nil {
		due := *t.DueAt
		out.DueAt = &due
	}
	return out
}
