package tasks

import (
	"context"
	"strings"
)

// Store persists the task documents behind the in-process Manager. The
// Manager is authoritative at runtime; the store is a write-through mirror
// used to survive restarts.
type Store interface {
	SaveTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, taskID string) error
	ListTasks(ctx context.Context) ([]Task, error)
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
