package taskstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Ensure MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-process Store used when no database is configured.
// Records live until restart. Safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	tasks         map[string]Task
	projects      map[string]Project
	notifications map[string]Notification
	now           func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:         make(map[string]Task),
		projects:      make(map[string]Project),
		notifications: make(map[string]Notification),
		now:           time.Now,
	}
}

// CreateTask implements Store.
func (s *MemoryStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	if t.UserID == "" || t.Title == "" {
		return Task{}, fmt.Errorf("memory store: create task: user ID and title are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t.ID = NewID()
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return t, nil
}

// UpdateTask implements Store.
func (s *MemoryStore) UpdateTask(ctx context.Context, userID, taskID string, upd TaskUpdate) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return Task{}, fmt.Errorf("memory store: update task %q: %w", taskID, ErrNotFound)
	}

	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.DueDate != nil {
		t.DueDate = *upd.DueDate
	}
	if upd.Assignee != nil {
		t.Assignee = *upd.Assignee
	}
	t.UpdatedAt = s.now()
	s.tasks[taskID] = t
	return t, nil
}

// FindTaskByTitle implements Store.
func (s *MemoryStore) FindTaskByTitle(ctx context.Context, userID, title string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tasks {
		if t.UserID == userID && strings.EqualFold(t.Title, title) {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("memory store: task %q: %w", title, ErrNotFound)
}

// ListTaskTitles implements Store.
func (s *MemoryStore) ListTaskTitles(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var titles []string
	for _, t := range s.tasks {
		if t.UserID == userID && t.Status != StatusCompleted && t.Status != StatusCancelled {
			titles = append(titles, t.Title)
		}
	}
	sort.Strings(titles)
	return titles, nil
}

// QueryTasks implements Store.
func (s *MemoryStore) QueryTasks(ctx context.Context, userID string, f TaskFilter) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Project != "" && t.ProjectID != f.Project {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// CreateProject implements Store.
func (s *MemoryStore) CreateProject(ctx context.Context, p Project) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}
	if p.UserID == "" || p.Name == "" {
		return Project{}, fmt.Errorf("memory store: create project: user ID and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.projects {
		if existing.UserID == p.UserID && strings.EqualFold(existing.Name, p.Name) {
			return Project{}, fmt.Errorf("memory store: project %q: %w", p.Name, ErrDuplicate)
		}
	}

	now := s.now()
	p.ID = NewID()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.projects[p.ID] = p
	return p, nil
}

// UpdateProject implements Store.
func (s *MemoryStore) UpdateProject(ctx context.Context, userID, projectID string, upd ProjectUpdate) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return Project{}, fmt.Errorf("memory store: update project %q: %w", projectID, ErrNotFound)
	}

	if upd.Name != nil {
		p.Name = *upd.Name
	}
	p.UpdatedAt = s.now()
	s.projects[projectID] = p
	return p, nil
}

// FindProjectByName implements Store.
func (s *MemoryStore) FindProjectByName(ctx context.Context, userID, name string) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.UserID == userID && strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("memory store: project %q: %w", name, ErrNotFound)
}

// QueryProjects implements Store.
func (s *MemoryStore) QueryProjects(ctx context.Context, userID string) ([]Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// CreateNotification implements Store.
func (s *MemoryStore) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	if err := ctx.Err(); err != nil {
		return Notification{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = NewID()
	n.CreatedAt = s.now()
	s.notifications[n.ID] = n
	return n, nil
}
