package dispatch

import "github.com/voxtask/voxtask/internal/nlu"

// CommandDoc describes one supported voice command for help output and the
// command discovery endpoint.
type CommandDoc struct {
	Intent      nlu.Intent `json:"intent"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Examples    []string   `json:"examples"`
}

// catalog is the fixed set of documented commands, in display order.
var catalog = []CommandDoc{
	{
		Intent:      nlu.IntentCreateTask,
		Title:       "Create a task",
		Description: "Add a new task, optionally with a due date, priority, or project.",
		Examples: []string{
			"Create a task called Review proposal",
			"Add a task called Buy groceries due tomorrow with high priority",
		},
	},
	{
		Intent:      nlu.IntentCompleteTask,
		Title:       "Complete a task",
		Description: "Mark an existing task as done.",
		Examples: []string{
			"Mark the grocery shopping task as complete",
			"Finish the quarterly report",
		},
	},
	{
		Intent:      nlu.IntentUpdateTask,
		Title:       "Update a task",
		Description: "Change a task's status, priority, or due date.",
		Examples: []string{
			"Set the launch checklist task priority to high",
			"Move the design review task to in progress",
		},
	},
	{
		Intent:      nlu.IntentAssignTask,
		Title:       "Assign a task",
		Description: "Hand a task to someone.",
		Examples: []string{
			"Assign the onboarding doc to Alice",
		},
	},
	{
		Intent:      nlu.IntentCreateProject,
		Title:       "Create a project",
		Description: "Start a new project to group tasks under.",
		Examples: []string{
			"Create a project called Website Redesign",
		},
	},
	{
		Intent:      nlu.IntentQueryTasks,
		Title:       "Show tasks",
		Description: "List your tasks, optionally filtered by status or priority.",
		Examples: []string{
			"Show my tasks",
			"List my urgent tasks",
		},
	},
	{
		Intent:      nlu.IntentQueryProjects,
		Title:       "Show projects",
		Description: "List your projects.",
		Examples: []string{
			"What are my projects",
		},
	},
	{
		Intent:      nlu.IntentNavigate,
		Title:       "Navigate",
		Description: "Jump to a page in the app.",
		Examples: []string{
			"Go to the dashboard",
			"Open the projects page",
		},
	},
}

// Catalog returns the documented command set. The returned slice is a copy;
// callers may reorder it freely.
func Catalog() []CommandDoc {
	out := make([]CommandDoc, len(catalog))
	copy(out, catalog)
	return out
}

// Suggestions returns one example phrasing per core command, used when an
// utterance is rejected for low confidence.
func Suggestions() []string {
	out := make([]string, 0, len(catalog))
	for _, c := range catalog {
		if len(c.Examples) > 0 {
			out = append(out, c.Examples[0])
		}
	}
	return out
}
