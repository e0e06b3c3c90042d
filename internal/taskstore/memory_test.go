package taskstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/voxtask/voxtask/internal/taskstore"
)

func TestMemoryStore_TaskLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := taskstore.NewMemoryStore()

	created, err := store.CreateTask(ctx, taskstore.Task{UserID: "u1", Title: "Buy groceries"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created task has no ID")
	}
	if created.Status != taskstore.StatusPending || created.Priority != taskstore.PriorityMedium {
		t.Errorf("defaults not applied: %+v", created)
	}

	found, err := store.FindTaskByTitle(ctx, "u1", "buy GROCERIES")
	if err != nil {
		t.Fatalf("FindTaskByTitle: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found %q, want %q", found.ID, created.ID)
	}

	done := taskstore.StatusCompleted
	updated, err := store.UpdateTask(ctx, "u1", created.ID, taskstore.TaskUpdate{Status: &done})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != taskstore.StatusCompleted {
		t.Errorf("status = %v, want completed", updated.Status)
	}

	titles, err := store.ListTaskTitles(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTaskTitles: %v", err)
	}
	if len(titles) != 0 {
		t.Errorf("completed task still listed: %v", titles)
	}
}

func TestMemoryStore_UpdateScopedToUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := taskstore.NewMemoryStore()

	created, err := store.CreateTask(ctx, taskstore.Task{UserID: "u1", Title: "Private"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	high := taskstore.PriorityHigh
	if _, err := store.UpdateTask(ctx, "u2", created.ID, taskstore.TaskUpdate{Priority: &high}); !errors.Is(err, taskstore.ErrNotFound) {
		t.Errorf("cross-user update error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_QueryTasksFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := taskstore.NewMemoryStore()

	mustCreate := func(task taskstore.Task) {
		t.Helper()
		if _, err := store.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	mustCreate(taskstore.Task{UserID: "u1", Title: "a", Priority: taskstore.PriorityHigh})
	mustCreate(taskstore.Task{UserID: "u1", Title: "b", Priority: taskstore.PriorityLow})
	mustCreate(taskstore.Task{UserID: "u2", Title: "c", Priority: taskstore.PriorityHigh})

	got, err := store.QueryTasks(ctx, "u1", taskstore.TaskFilter{Priority: taskstore.PriorityHigh})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(got) != 1 || got[0].Title != "a" {
		t.Errorf("filtered tasks = %+v, want only u1's high-priority task", got)
	}
}

func TestMemoryStore_ProjectDuplicateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := taskstore.NewMemoryStore()

	if _, err := store.CreateProject(ctx, taskstore.Project{UserID: "u1", Name: "Website"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := store.CreateProject(ctx, taskstore.Project{UserID: "u1", Name: "website"}); !errors.Is(err, taskstore.ErrDuplicate) {
		t.Errorf("duplicate create error = %v, want ErrDuplicate", err)
	}
	// Same name under a different user is fine.
	if _, err := store.CreateProject(ctx, taskstore.Project{UserID: "u2", Name: "Website"}); err != nil {
		t.Errorf("cross-user duplicate should succeed, got %v", err)
	}
}

func TestMemoryStore_FindMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := taskstore.NewMemoryStore()

	if _, err := store.FindTaskByTitle(ctx, "u1", "nope"); !errors.Is(err, taskstore.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := store.FindProjectByName(ctx, "u1", "nope"); !errors.Is(err, taskstore.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := taskstore.NewMemoryStore()

	if _, err := store.CreateTask(ctx, taskstore.Task{UserID: "u1", Title: "x"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
