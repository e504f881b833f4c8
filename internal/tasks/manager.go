package tasks

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrTaskNotFound = errors.New("task not found")

const (
	defaultEventHistoryLimit = 256
	defaultListLimit         = 50
)

// Manager is the authoritative in-process task state. A Store, when
// attached, mirrors every mutation so state survives restarts; store
// failures are logged, not surfaced, so the API keeps working when the
// database is down.
type Manager struct {
	mu sync.RWMutex

	store Store

	tasks           map[string]*Task
	events          []Event
	eventHistoryMax int

	subscribers map[int]chan Event
	nextSubID   int
}

func NewManager() *Manager {
	return &Manager{
		tasks:           make(map[string]*Task),
		eventHistoryMax: defaultEventHistoryLimit,
		subscribers:     make(map[int]chan Event),
	}
}

func (m *Manager) SetStore(store Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// Hydrate loads persisted tasks into the manager. Call once at startup,
// before serving requests.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return nil
	}

	persisted, err := store.ListTasks(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range persisted {
		task := t.Clone()
		m.tasks[task.ID] = &task
	}
	return nil
}

// Subscribe registers a task-event listener. The returned cancel func must
// be called to release the channel. Slow subscribers lose events rather
// than blocking mutations.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	_, ch, cancel := m.SubscribeWithHistory()
	return ch, cancel
}

// SubscribeWithHistory snapshots the retained event history and registers
// the listener under one lock, so a caller that replays the snapshot and
// then drains the channel sees every event exactly once.
func (m *Manager) SubscribeWithHistory() ([]Event, <-chan Event, func()) {
	ch := make(chan Event, 64)
	m.mu.Lock()
	history := make([]Event, len(m.events))
	copy(history, m.events)
	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = ch
	m.mu.Unlock()

	return history, ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(c)
		}
	}
}

func (m *Manager) Create(ctx context.Context, req CreateRequest) (Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.Title == "" {
		return Task{}, errors.New("title is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return Task{}, errors.New("invalid priority")
	}

	now := time.Now().UTC()
	task := Task{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Notes:     req.Notes,
		DueAt:     req.DueAt,
		Priority:  req.Priority,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	stored := task.Clone()
	m.tasks[task.ID] = &stored
	m.publishLocked(Event{Type: EventTaskCreated, TaskID: task.ID, Title: task.Title, At: now})
	store := m.store
	m.mu.Unlock()

	m.persist(ctx, store, task)
	return task, nil
}

func (m *Manager) Get(taskID string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// List returns tasks newest first, optionally filtered by status.
func (m *Manager) List(status Status, limit int) []Task {
	if limit <= 0 {
		limit = defaultListLimit
	}

	m.mu.RLock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search matches the query as a case-insensitive substring of title or
// notes, newest first.
func (m *Manager) Search(query string, limit int) []Task {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	m.mu.RLock()
	out := make([]Task, 0, 8)
	for _, t := range m.tasks {
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Notes), query) {
			out = append(out, t.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Manager) Update(ctx context.Context, taskID string, req UpdateRequest) (Task, error) {
	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return Task{}, ErrTaskNotFound
	}

	// Validate the whole request before touching stored state: a rejected
	// update must leave the task exactly as it was.
	var title string
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			m.mu.Unlock()
			return Task{}, errors.New("title cannot be empty")
		}
	}
	if req.Priority != nil && !req.Priority.Valid() {
		m.mu.Unlock()
		return Task{}, errors.New("invalid priority")
	}
	if req.Status != nil && !req.Status.Valid() {
		m.mu.Unlock()
		return Task{}, errors.New("invalid status")
	}

	if req.Title != nil {
		task.Title = title
	}
	if req.Notes != nil {
		task.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.ClearDue {
		task.DueAt = nil
	} else if req.DueAt != nil {
		due := *req.DueAt
		task.DueAt = &due
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	task.UpdatedAt = time.Now().UTC()

	updated := task.Clone()
	m.publishLocked(Event{Type: EventTaskUpdated, TaskID: updated.ID, Title: updated.Title, At: updated.UpdatedAt})
	store := m.store
	m.mu.Unlock()

	m.persist(ctx, store, updated)
	return updated, nil
}

func (m *Manager) Delete(ctx context.Context, taskID string) (Task, error) {
	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return Task{}, ErrTaskNotFound
	}
	deleted := task.Clone()
	delete(m.tasks, taskID)
	m.publishLocked(Event{Type: EventTaskDeleted, TaskID: deleted.ID, Title: deleted.Title, At: time.Now().UTC()})
	store := m.store
	m.mu.Unlock()

	if store != nil {
		if err := store.DeleteTask(ctx, taskID); err != nil {
			log.Printf("task store delete %s failed: %v", taskID, err)
		}
	}
	return deleted, nil
}

// Events returns the most recent events, oldest first.
func (m *Manager) Events(limit int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]Event, limit)
	copy(out, m.events[len(m.events)-limit:])
	return out
}

func (m *Manager) publishLocked(evt Event) {
	m.events = append(m.events, evt)
	if len(m.events) > m.eventHistoryMax {
		m.events = append(m.events[:0], m.events[len(m.events)-m.eventHistoryMax:]...)
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (m *Manager) persist(ctx context.Context, store Store, task Task) {
	if store == nil {
		return
	}
	if err := store.SaveTask(ctx, task); err != nil {
		log.Printf("task store save %s failed: %v", task.ID, err)
	}
}
