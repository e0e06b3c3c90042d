package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxtask/voxtask/internal/nlu"
	"github.com/voxtask/voxtask/internal/taskstore"
)

// execute carries out one fully-resolved command. The returned ActionResult
// holds the response and payload; the caller fills in intent, confidence,
// entities, and the success flag. A non-nil error marks the command failed;
// when the result already carries a response, it is the user-facing
// explanation for that failure.
func (d *Dispatcher) execute(ctx context.Context, userID string, intent nlu.Intent, entities nlu.EntitySet, text string) (ActionResult, error) {
	switch intent {
	case nlu.IntentCreateTask:
		return d.createTask(ctx, userID, entities)
	case nlu.IntentCompleteTask:
		return d.completeTask(ctx, userID, entities)
	case nlu.IntentUpdateTask:
		return d.updateTask(ctx, userID, entities)
	case nlu.IntentAssignTask:
		return d.assignTask(ctx, userID, entities)
	case nlu.IntentCreateProject:
		return d.createProject(ctx, userID, entities)
	case nlu.IntentUpdateProject:
		return d.updateProject(ctx, userID, entities)
	case nlu.IntentQueryTasks:
		return d.queryTasks(ctx, userID, entities)
	case nlu.IntentQueryProjects:
		return d.queryProjects(ctx, userID)
	case nlu.IntentNavigate:
		return navigate(text), nil
	case nlu.IntentHelp:
		return ActionResult{
			Response: "Here's what you can say:",
			Payload:  &Payload{Commands: Catalog()},
		}, nil
	}
	return ActionResult{}, fmt.Errorf("dispatch: unhandled intent %q", intent)
}

// ─── Task commands ───────────────────────────────────────────────────────────

func (d *Dispatcher) createTask(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	t := taskstore.Task{
		UserID:   userID,
		Title:    entities[nlu.SlotTaskName],
		Status:   taskstore.StatusPending,
		Priority: taskstore.PriorityMedium,
		DueDate:  entities[nlu.SlotDueDate],
		Assignee: entities[nlu.SlotAssignee],
	}
	if p := taskstore.Priority(entities[nlu.SlotPriority]); p.IsValid() {
		t.Priority = p
	}
	if s := taskstore.TaskStatus(entities[nlu.SlotStatus]); s.IsValid() {
		t.Status = s
	}

	if name := entities[nlu.SlotProjectName]; name != "" {
		p, err := d.store.FindProjectByName(ctx, userID, name)
		switch {
		case err == nil:
			t.ProjectID = p.ID
		case errors.Is(err, taskstore.ErrNotFound):
			// Unknown project; the task is created uncategorised.
		default:
			return ActionResult{}, fmt.Errorf("dispatch: look up project %q: %w", name, err)
		}
	}

	created, err := d.store.CreateTask(ctx, t)
	if err != nil {
		return ActionResult{}, fmt.Errorf("dispatch: create task: %w", err)
	}

	resp := fmt.Sprintf("Created task %q", created.Title)
	if created.Priority != taskstore.PriorityMedium {
		resp += fmt.Sprintf(" with %s priority", created.Priority)
	}
	if created.DueDate != "" {
		resp += ", due " + created.DueDate
	}
	resp += "."

	d.notify(ctx, userID, "task", "created", created.ID, resp)
	return ActionResult{Response: resp, Payload: &Payload{Task: &created}}, nil
}

func (d *Dispatcher) completeTask(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	spoken := entities[nlu.SlotTaskName]
	task, err := d.resolveTask(ctx, userID, spoken)
	if err != nil {
		return taskLookupFailure(spoken, err)
	}

	status := taskstore.StatusCompleted
	updated, err := d.store.UpdateTask(ctx, userID, task.ID, taskstore.TaskUpdate{Status: &status})
	if err != nil {
		return ActionResult{}, fmt.Errorf("dispatch: complete task %q: %w", task.Title, err)
	}

	resp := fmt.Sprintf("Marked %q as complete.", updated.Title)
	d.notify(ctx, userID, "task", "completed", updated.ID, resp)
	return ActionResult{Response: resp, Payload: &Payload{Task: &updated}}, nil
}

func (d *Dispatcher) updateTask(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	spoken := entities[nlu.SlotTaskName]
	task, err := d.resolveTask(ctx, userID, spoken)
	if err != nil {
		return taskLookupFailure(spoken, err)
	}

	var upd taskstore.TaskUpdate
	var changes []string
	if s := taskstore.TaskStatus(entities[nlu.SlotStatus]); s.IsValid() {
		upd.Status = &s
		changes = append(changes, "status "+strings.ReplaceAll(string(s), "_", " "))
	}
	if p := taskstore.Priority(entities[nlu.SlotPriority]); p.IsValid() {
		upd.Priority = &p
		changes = append(changes, string(p)+" priority")
	}
	if due := entities[nlu.SlotDueDate]; due != "" {
		upd.DueDate = &due
		changes = append(changes, "due "+due)
	}

	updated, err := d.store.UpdateTask(ctx, userID, task.ID, upd)
	if err != nil {
		return ActionResult{}, fmt.Errorf("dispatch: update task %q: %w", task.Title, err)
	}

	resp := fmt.Sprintf("Updated %q: %s.", updated.Title, strings.Join(changes, ", "))
	d.notify(ctx, userID, "task", "updated", updated.ID, resp)
	return ActionResult{Response: resp, Payload: &Payload{Task: &updated}}, nil
}

func (d *Dispatcher) assignTask(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	spoken := entities[nlu.SlotTaskName]
	task, err := d.resolveTask(ctx, userID, spoken)
	if err != nil {
		return taskLookupFailure(spoken, err)
	}

	assignee := entities[nlu.SlotAssignee]
	updated, err := d.store.UpdateTask(ctx, userID, task.ID, taskstore.TaskUpdate{Assignee: &assignee})
	if err != nil {
		return ActionResult{}, fmt.Errorf("dispatch: assign task %q: %w", task.Title, err)
	}

	resp := fmt.Sprintf("Assigned %q to %s.", updated.Title, assignee)
	d.notify(ctx, userID, "task", "assigned", updated.ID, resp)
	return ActionResult{Response: resp, Payload: &Payload{Task: &updated}}, nil
}

// resolveTask finds the user's task meant by a spoken title: an exact
// case-insensitive lookup first, then phonetic resolution against the user's
// unfinished titles when the matcher is configured.
func (d *Dispatcher) resolveTask(ctx context.Context, userID, spoken string) (taskstore.Task, error) {
	task, err := d.store.FindTaskByTitle(ctx, userID, spoken)
	if err == nil || !errors.Is(err, taskstore.ErrNotFound) || d.titles == nil {
		return task, err
	}

	titles, listErr := d.store.ListTaskTitles(ctx, userID)
	if listErr != nil || len(titles) == 0 {
		return taskstore.Task{}, err
	}
	corrected, score, matched := d.titles.Match(spoken, titles)
	if !matched {
		return taskstore.Task{}, err
	}

	slog.Debug("dispatch: resolved spoken title",
		"spoken", spoken,
		"corrected", corrected,
		"score", score,
	)
	return d.store.FindTaskByTitle(ctx, userID, corrected)
}

// taskLookupFailure converts a failed task resolution into a user-facing
// result plus the underlying error.
func taskLookupFailure(spoken string, err error) (ActionResult, error) {
	if errors.Is(err, taskstore.ErrNotFound) {
		return ActionResult{
			Response: fmt.Sprintf("I couldn't find a task called %q. Could you try the exact name?", spoken),
		}, fmt.Errorf("dispatch: find task %q: %w", spoken, err)
	}
	return ActionResult{}, fmt.Errorf("dispatch: find task %q: %w", spoken, err)
}

// ─── Project commands ────────────────────────────────────────────────────────

func (d *Dispatcher) createProject(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	name := entities[nlu.SlotProjectName]
	created, err := d.store.CreateProject(ctx, taskstore.Project{UserID: userID, Name: name})
	if err != nil {
		if errors.Is(err, taskstore.ErrDuplicate) {
			return ActionResult{
				Response: fmt.Sprintf("You already have a project called %q.", name),
			}, fmt.Errorf("dispatch: create project %q: %w", name, err)
		}
		return ActionResult{}, fmt.Errorf("dispatch: create project %q: %w", name, err)
	}

	resp := fmt.Sprintf("Created project %q.", created.Name)
	d.notify(ctx, userID, "project", "created", created.ID, resp)
	return ActionResult{Response: resp, Payload: &Payload{Project: &created}}, nil
}

func (d *Dispatcher) updateProject(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	name := entities[nlu.SlotProjectName]
	project, err := d.store.FindProjectByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return ActionResult{
				Response: fmt.Sprintf("I couldn't find a project called %q.", name),
			}, fmt.Errorf("dispatch: find project %q: %w", name, err)
		}
		return ActionResult{}, fmt.Errorf("dispatch: find project %q: %w", name, err)
	}

	newName := entities[slotNewName]
	updated, err := d.store.UpdateProject(ctx, userID, project.ID, taskstore.ProjectUpdate{Name: &newName})
	if err != nil {
		if errors.Is(err, taskstore.ErrDuplicate) {
			return ActionResult{
				Response: fmt.Sprintf("You already have a project called %q.", newName),
			}, fmt.Errorf("dispatch: rename project %q: %w", name, err)
		}
		return ActionResult{}, fmt.Errorf("dispatch: rename project %q: %w", name, err)
	}

	resp := fmt.Sprintf("Renamed project %q to %q.", project.Name, updated.Name)
	d.notify(ctx, userID, "project", "updated", updated.ID, resp)
	return ActionResult{Response: resp, Payload: &Payload{Project: &updated}}, nil
}

// ─── Queries, navigation ─────────────────────────────────────────────────────

func (d *Dispatcher) queryTasks(ctx context.Context, userID string, entities nlu.EntitySet) (ActionResult, error) {
	var f taskstore.TaskFilter
	if s := taskstore.TaskStatus(entities[nlu.SlotStatus]); s.IsValid() {
		f.Status = s
	}
	if p := taskstore.Priority(entities[nlu.SlotPriority]); p.IsValid() {
		f.Priority = p
	}
	f.Project = entities[nlu.SlotProjectName]

	tasks, err := d.store.QueryTasks(ctx, userID, f)
	if err != nil {
		return ActionResult{}, fmt.Errorf("dispatch: query tasks: %w", err)
	}

	filtered := f != (taskstore.TaskFilter{})
	var resp string
	switch {
	case len(tasks) == 0 && filtered:
		resp = "You don't have any tasks matching that."
	case len(tasks) == 0:
		resp = "You don't have any tasks yet."
	case len(tasks) == 1:
		resp = fmt.Sprintf("You have 1 task: %q.", tasks[0].Title)
	case len(tasks) <= 3:
		resp = fmt.Sprintf("You have %d tasks: %s.", len(tasks), joinTitles(taskTitles(tasks)))
	default:
		resp = fmt.Sprintf("You have %d tasks.", len(tasks))
	}

	return ActionResult{Response: resp, Payload: &Payload{Tasks: tasks}}, nil
}

func (d *Dispatcher) queryProjects(ctx context.Context, userID string) (ActionResult, error) {
	projects, err := d.store.QueryProjects(ctx, userID)
	if err != nil {
		return ActionResult{}, fmt.Errorf("dispatch: query projects: %w", err)
	}

	var resp string
	switch {
	case len(projects) == 0:
		resp = "You don't have any projects yet."
	case len(projects) == 1:
		resp = fmt.Sprintf("You have 1 project: %q.", projects[0].Name)
	case len(projects) <= 3:
		resp = fmt.Sprintf("You have %d projects: %s.", len(projects), joinTitles(projectNames(projects)))
	default:
		resp = fmt.Sprintf("You have %d projects.", len(projects))
	}

	return ActionResult{Response: resp, Payload: &Payload{Projects: projects}}, nil
}

// navigate resolves the spoken destination. It touches no state; an
// unrecognised destination falls back to the dashboard.
func navigate(text string) ActionResult {
	lower := strings.ToLower(text)
	target := "dashboard"
	switch {
	case strings.Contains(lower, "project"):
		target = "projects"
	case strings.Contains(lower, "task"):
		target = "tasks"
	}

	resp := "Opening the " + target
	if target != "dashboard" {
		resp += " page"
	}
	resp += "."
	return ActionResult{Response: resp, Payload: &Payload{Navigation: target}}
}

// ─── Notifications, formatting ───────────────────────────────────────────────

// notify persists a state-change notification and pushes it to the user's
// live connections. Both halves are best effort: a dropped notification never
// fails the command that produced it.
func (d *Dispatcher) notify(ctx context.Context, userID, kind, action, entityID, message string) {
	n := taskstore.Notification{
		UserID:     userID,
		EntityKind: kind,
		Action:     action,
		EntityID:   entityID,
		Message:    message,
	}

	stored, err := d.store.CreateNotification(ctx, n)
	if err != nil {
		slog.Warn("dispatch: persist notification",
			"user", userID,
			"kind", kind,
			"error", err,
		)
		if d.metrics != nil {
			d.metrics.RecordStoreError(ctx, "create_notification")
		}
		stored = n
	}

	if d.notifier != nil {
		d.notifier.Push(userID, stored)
	}
}

func taskTitles(tasks []taskstore.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func projectNames(projects []taskstore.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Name
	}
	return out
}

// joinTitles renders quoted names as a spoken list: `"a", "b" and "c"`.
func joinTitles(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	if len(quoted) <= 1 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
}
