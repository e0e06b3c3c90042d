// Package mock provides a recording test double for the taskstore.Store
// interface.
//
// The zero value behaves like an empty store that succeeds on every call. Set
// Err to force every operation to fail, or one of the per-operation error
// fields for targeted failures. All fields are safe to set before calling any
// method; mutating them during a concurrent call is the caller's
// responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/voxtask/voxtask/internal/taskstore"
)

// Call records a single store invocation.
type Call struct {
	// Op is the method name, e.g. "CreateTask".
	Op string
	// UserID is the user the call was scoped to, where applicable.
	UserID string
	// Arg is the primary argument: the record for creates, the title or
	// name for lookups, the ID for updates.
	Arg any
}

// Store is a mock implementation of taskstore.Store.
type Store struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every operation.
	Err error

	// CreateErr, if non-nil, is returned by CreateTask and CreateProject.
	CreateErr error

	// FindErr, if non-nil, is returned by FindTaskByTitle and
	// FindProjectByName.
	FindErr error

	// Tasks is returned by QueryTasks; the first entry is also returned by
	// FindTaskByTitle when FindErr is nil.
	Tasks []taskstore.Task

	// Projects is returned by QueryProjects; the first entry is also
	// returned by FindProjectByName when FindErr is nil.
	Projects []taskstore.Project

	// Titles is returned by ListTaskTitles.
	Titles []string

	// Calls records every invocation in order.
	Calls []Call
}

func (s *Store) record(op, userID string, arg any) {
	s.Calls = append(s.Calls, Call{Op: op, UserID: userID, Arg: arg})
}

// CallsTo returns how many recorded calls hit the named operation.
func (s *Store) CallsTo(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}

// CreateTask implements taskstore.Store.
func (s *Store) CreateTask(_ context.Context, t taskstore.Task) (taskstore.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateTask", t.UserID, t)
	if s.Err != nil {
		return taskstore.Task{}, s.Err
	}
	if s.CreateErr != nil {
		return taskstore.Task{}, s.CreateErr
	}
	t.ID = taskstore.NewID()
	return t, nil
}

// UpdateTask implements taskstore.Store.
func (s *Store) UpdateTask(_ context.Context, userID, taskID string, upd taskstore.TaskUpdate) (taskstore.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateTask", userID, taskID)
	if s.Err != nil {
		return taskstore.Task{}, s.Err
	}
	t := taskstore.Task{ID: taskID, UserID: userID}
	if len(s.Tasks) > 0 {
		t = s.Tasks[0]
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
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	return t, nil
}

// FindTaskByTitle implements taskstore.Store.
func (s *Store) FindTaskByTitle(_ context.Context, userID, title string) (taskstore.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindTaskByTitle", userID, title)
	if s.Err != nil {
		return taskstore.Task{}, s.Err
	}
	if s.FindErr != nil {
		return taskstore.Task{}, s.FindErr
	}
	if len(s.Tasks) == 0 {
		return taskstore.Task{}, taskstore.ErrNotFound
	}
	return s.Tasks[0], nil
}

// ListTaskTitles implements taskstore.Store.
func (s *Store) ListTaskTitles(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListTaskTitles", userID, nil)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Titles, nil
}

// QueryTasks implements taskstore.Store.
func (s *Store) QueryTasks(_ context.Context, userID string, f taskstore.TaskFilter) ([]taskstore.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("QueryTasks", userID, f)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Tasks, nil
}

// CreateProject implements taskstore.Store.
func (s *Store) CreateProject(_ context.Context, p taskstore.Project) (taskstore.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateProject", p.UserID, p)
	if s.Err != nil {
		return taskstore.Project{}, s.Err
	}
	if s.CreateErr != nil {
		return taskstore.Project{}, s.CreateErr
	}
	p.ID = taskstore.NewID()
	return p, nil
}

// UpdateProject implements taskstore.Store.
func (s *Store) UpdateProject(_ context.Context, userID, projectID string, upd taskstore.ProjectUpdate) (taskstore.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateProject", userID, projectID)
	if s.Err != nil {
		return taskstore.Project{}, s.Err
	}
	p := taskstore.Project{ID: projectID, UserID: userID}
	if len(s.Projects) > 0 {
		p = s.Projects[0]
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	return p, nil
}

// FindProjectByName implements taskstore.Store.
func (s *Store) FindProjectByName(_ context.Context, userID, name string) (taskstore.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindProjectByName", userID, name)
	if s.Err != nil {
		return taskstore.Project{}, s.Err
	}
	if s.FindErr != nil {
		return taskstore.Project{}, s.FindErr
	}
	if len(s.Projects) == 0 {
		return taskstore.Project{}, taskstore.ErrNotFound
	}
	return s.Projects[0], nil
}

// QueryProjects implements taskstore.Store.
func (s *Store) QueryProjects(_ context.Context, userID string) ([]taskstore.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("QueryProjects", userID, nil)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Projects, nil
}

// CreateNotification implements taskstore.Store.
func (s *Store) CreateNotification(_ context.Context, n taskstore.Notification) (taskstore.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateNotification", n.UserID, n)
	if s.Err != nil {
		return taskstore.Notification{}, s.Err
	}
	n.ID = taskstore.NewID()
	return n, nil
}

// Ensure Store implements taskstore.Store at compile time.
var _ taskstore.Store = (*Store)(nil)
