package taskstore

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when the named task or project does not exist
	// for the requesting user.
	ErrNotFound = errors.New("taskstore: not found")

	// ErrDuplicate is returned when a create collides with an existing title
	// or name for the same user.
	ErrDuplicate = errors.New("taskstore: already exists")
)

// TaskUpdate describes a partial task mutation. Nil fields are left unchanged.
type TaskUpdate struct {
	Title    *string
	Status   *TaskStatus
	Priority *Priority
	DueDate  *string
	Assignee *string
}

// ProjectUpdate describes a partial project mutation. Nil fields are left
// unchanged.
type ProjectUpdate struct {
	Name *string
}

// TaskFilter narrows a task query. Zero values mean no filtering.
type TaskFilter struct {
	Status   TaskStatus
	Priority Priority
	Project  string
}

// Store is the persistence boundary the dispatcher calls out to.
//
// All operations are scoped to a user ID: a user can only ever see or mutate
// their own records. Implementations must be safe for concurrent use and must
// respect context cancellation on every call.
type Store interface {
	// CreateTask persists t with a fresh ID and timestamps and returns the
	// stored record.
	CreateTask(ctx context.Context, t Task) (Task, error)

	// UpdateTask applies upd to the task with the given ID.
	// Returns ErrNotFound when no such task exists for userID.
	UpdateTask(ctx context.Context, userID, taskID string, upd TaskUpdate) (Task, error)

	// FindTaskByTitle returns the user's task whose title equals title,
	// compared case-insensitively. Returns ErrNotFound when absent.
	FindTaskByTitle(ctx context.Context, userID, title string) (Task, error)

	// ListTaskTitles returns the titles of the user's unfinished tasks,
	// used for fuzzy voice-name resolution.
	ListTaskTitles(ctx context.Context, userID string) ([]string, error)

	// QueryTasks returns the user's tasks matching f, newest first.
	QueryTasks(ctx context.Context, userID string, f TaskFilter) ([]Task, error)

	// CreateProject persists p with a fresh ID and timestamps and returns
	// the stored record.
	CreateProject(ctx context.Context, p Project) (Project, error)

	// UpdateProject applies upd to the project with the given ID.
	// Returns ErrNotFound when no such project exists for userID.
	UpdateProject(ctx context.Context, userID, projectID string, upd ProjectUpdate) (Project, error)

	// FindProjectByName returns the user's project whose name equals name,
	// compared case-insensitively. Returns ErrNotFound when absent.
	FindProjectByName(ctx context.Context, userID, name string) (Project, error)

	// QueryProjects returns all of the user's projects, newest first.
	QueryProjects(ctx context.Context, userID string) ([]Project, error)

	// CreateNotification persists n with a fresh ID and timestamp.
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
}
