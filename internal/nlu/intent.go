// Package nlu turns transcribed utterances into structured commands.
//
// It has two synchronous, CPU-only stages: intent classification against a
// fixed pattern table ([Classify]) and slot extraction from free text
// ([Extract]). Both are pure functions of their inputs. An optional LLM
// fallback ([LLMFallback]) refines low-confidence classifications; it is the
// only part of the package that touches the network.
package nlu

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of an utterance. The set is closed; the
// dispatcher matches it exhaustively.
type Intent string

const (
	IntentCreateTask    Intent = "create_task"
	IntentUpdateTask    Intent = "update_task"
	IntentCompleteTask  Intent = "complete_task"
	IntentAssignTask    Intent = "assign_task"
	IntentCreateProject Intent = "create_project"
	IntentUpdateProject Intent = "update_project"
	IntentQueryTasks    Intent = "query_tasks"
	IntentQueryProjects Intent = "query_projects"
	IntentNavigate      Intent = "navigate"
	IntentHelp          Intent = "help"
	IntentUnknown       Intent = "unknown"
)

// IsValid reports whether i is a recognised intent.
func (i Intent) IsValid() bool {
	switch i {
	case IntentCreateTask, IntentUpdateTask, IntentCompleteTask, IntentAssignTask,
		IntentCreateProject, IntentUpdateProject, IntentQueryTasks, IntentQueryProjects,
		IntentNavigate, IntentHelp, IntentUnknown:
		return true
	}
	return false
}

// ParseIntent maps a wire-format intent name to an Intent.
// Unrecognised names map to IntentUnknown.
func ParseIntent(s string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if i.IsValid() {
		return i
	}
	return IntentUnknown
}

// tieRank orders intents for tie-breaking when two patterns match with equal
// specificity. Lower rank wins: task mutations beat task queries, which beat
// project mutations, and so on down to help.
func tieRank(i Intent) int {
	switch i {
	case IntentCreateTask, IntentUpdateTask, IntentCompleteTask, IntentAssignTask:
		return 0
	case IntentQueryTasks:
		return 1
	case IntentCreateProject, IntentUpdateProject:
		return 2
	case IntentQueryProjects:
		return 3
	case IntentNavigate:
		return 4
	case IntentHelp:
		return 5
	}
	return 6
}

// Pattern pairs a compiled regex with the intent it signals.
type Pattern struct {
	// Regex is the compiled pattern, matched case-insensitively against the
	// trimmed utterance.
	Regex *regexp.Regexp

	// Intent is assigned when Regex matches.
	Intent Intent

	// Keywords counts the distinct command keywords the pattern anchors on.
	// More keywords means a more specific match and a higher confidence.
	Keywords int

	// Name is a human-readable label for logging.
	Name string
}

// Classify maps an utterance to an intent with a confidence score in [0, 1].
//
// Confidence is derived from pattern specificity: each anchored keyword adds
// 0.1 on top of a 0.6 base, capped at three keywords. Ties between candidate
// patterns are broken by keyword count first and by [tieRank] second.
// Unrecognised input yields (IntentUnknown, 0).
func Classify(text string) (Intent, float64) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return IntentUnknown, 0
	}

	var best *Pattern
	for i := range intentPatterns {
		p := &intentPatterns[i]
		if !p.Regex.MatchString(trimmed) {
			continue
		}
		if best == nil ||
			p.Keywords > best.Keywords ||
			(p.Keywords == best.Keywords && tieRank(p.Intent) < tieRank(best.Intent)) {
			best = p
		}
	}
	if best == nil {
		return IntentUnknown, 0
	}
	return best.Intent, patternConfidence(best.Keywords)
}

// patternConfidence converts a keyword count into a confidence score.
func patternConfidence(keywords int) float64 {
	if keywords > 3 {
		keywords = 3
	}
	if keywords < 1 {
		keywords = 1
	}
	return 0.6 + 0.1*float64(keywords)
}

// intentPatterns is the built-in classification table. Order does not matter;
// [Classify] scans every pattern and keeps the most specific match.
var intentPatterns = []Pattern{
	// ─── Task mutations ──────────────────────────────────────────────────────
	{
		Name:     "create-task-called",
		Intent:   IntentCreateTask,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\b(create|add|new)\b.*\btask\b.*\bcalled\b\s+\S`),
	},
	{
		Name:     "create-task",
		Intent:   IntentCreateTask,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(create|add|new)\b.*\btask\b`),
	},
	{
		Name:     "mark-task-complete",
		Intent:   IntentCompleteTask,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\bmark\b\s+.+\s+(as\s+)?(complete|completed|done)\b`),
	},
	{
		Name:     "complete-task",
		Intent:   IntentCompleteTask,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)^(complete|finish)\s+\S`),
	},
	{
		Name:     "assign-task-to",
		Intent:   IntentAssignTask,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\bassign\b\s+.+\s+\bto\b\s+\S`),
	},
	{
		Name:     "assign-task",
		Intent:   IntentAssignTask,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\bassign\b\s+\S`),
	},
	{
		Name:     "update-task-field",
		Intent:   IntentUpdateTask,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\b(update|change|set|move)\b.*\btask\b.*\b(priority|status|due)\b`),
	},
	{
		Name:     "update-task",
		Intent:   IntentUpdateTask,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(update|change|set|move)\b.*\btask\b`),
	},

	// ─── Project mutations ───────────────────────────────────────────────────
	{
		Name:     "create-project-called",
		Intent:   IntentCreateProject,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\b(create|new|start)\b.*\bproject\b.*\bcalled\b\s+\S`),
	},
	{
		Name:     "create-project",
		Intent:   IntentCreateProject,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(create|new|start)\b.*\bproject\b`),
	},
	{
		Name:     "update-project",
		Intent:   IntentUpdateProject,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(update|change|rename)\b.*\bproject\b`),
	},

	// ─── Queries ─────────────────────────────────────────────────────────────
	{
		Name:     "list-my-tasks",
		Intent:   IntentQueryTasks,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\b(show|list|display|get|what)\b.*\bmy\b.*\btasks\b`),
	},
	{
		Name:     "list-tasks",
		Intent:   IntentQueryTasks,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(show|list|display|get|what)\b.*\btasks\b`),
	},
	{
		Name:     "list-my-projects",
		Intent:   IntentQueryProjects,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)\b(show|list|display|get|what)\b.*\bmy\b.*\bprojects\b`),
	},
	{
		Name:     "list-projects",
		Intent:   IntentQueryProjects,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(show|list|display|get|what)\b.*\bprojects\b`),
	},

	// ─── Navigation ──────────────────────────────────────────────────────────
	{
		Name:     "navigate",
		Intent:   IntentNavigate,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(go\s+to|open|take\s+me\s+to)\b\s+(the\s+)?(dashboard|board|tasks?\s+(page|view|list)|projects?\s+(page|view|list))`),
	},

	// ─── Help ────────────────────────────────────────────────────────────────
	{
		Name:     "help-exact",
		Intent:   IntentHelp,
		Keywords: 3,
		Regex:    regexp.MustCompile(`(?i)^help$`),
	},
	{
		Name:     "help-phrases",
		Intent:   IntentHelp,
		Keywords: 2,
		Regex:    regexp.MustCompile(`(?i)\b(what\s+can\s+i\s+(do|say)|show\s+commands|available\s+commands|voice\s+commands)\b`),
	},
}
