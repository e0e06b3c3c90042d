// Package taskstore defines the persistence boundary for tasks, projects,
// and notifications, plus the in-memory reference implementation.
//
// The dispatcher treats these records as opaque: it creates and updates them
// by calling out and never owns their storage. A PostgreSQL implementation
// lives in the postgres subpackage; a recording test double in mock.
package taskstore

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// IsValid reports whether s is a recognised task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid reports whether p is a recognised priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task is a single unit of work owned by a user.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ProjectID   string     `json:"project_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     string     `json:"due_date,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Project groups tasks under a name.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification records a state change pushed to the owning user's live
// connections and kept for later retrieval.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	EntityKind string    `json:"entity_kind"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entity_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewID returns a fresh lexicographically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}
