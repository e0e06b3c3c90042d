package nlu

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Slot names used as EntitySet keys.
const (
	SlotTaskName    = "task_name"
	SlotProjectName = "project_name"
	SlotDueDate     = "due_date"
	SlotPriority    = "priority"
	SlotAssignee    = "assignee"
	SlotStatus      = "status"
)

// Priority values produced by [Extract].
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Status values produced by [Extract].
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// DateLayout is the normalised format for extracted due dates.
const DateLayout = "2006-01-02"

// EntitySet maps slot names to extracted values. Absent keys mean the slot
// was not found; extraction never fails, it only returns a smaller mapping.
type EntitySet map[string]string

// Clone returns a copy of e. A nil set clones to an empty, non-nil set.
func (e EntitySet) Clone() EntitySet {
	out := make(EntitySet, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into e, overwriting existing keys.
func (e EntitySet) Merge(other EntitySet) {
	for k, v := range other {
		e[k] = v
	}
}

var (
	reCalled     = regexp.MustCompile(`(?i)\bcalled\s+(.+)$`)
	reFor        = regexp.MustCompile(`(?i)\bfor\s+(.+)$`)
	reAssignTo   = regexp.MustCompile(`(?i)\bassign\s+(?:the\s+)?(.+?)\s+to\s+(.+)$`)
	reMarkDone   = regexp.MustCompile(`(?i)\bmark\s+(?:the\s+)?(.+?)\s+(?:as\s+)?(?:complete|completed|done)\b`)
	reFinish     = regexp.MustCompile(`(?i)^(?:complete|finish)\s+(?:the\s+)?(.+)$`)
	reCreateTask = regexp.MustCompile(`(?i)\b(?:create|add|new)\b.*?\btask\s+(.+)$`)
	reUpdateTask = regexp.MustCompile(`(?i)\b(?:update|change|set|move)\s+(?:the\s+)?(.+?)\s+task\b`)
	reTaskNamed  = regexp.MustCompile(`(?i)\btask\s+(.+?)\s+(?:to|priority|status|due)\b`)

	rePriority = regexp.MustCompile(`(?i)\b(urgent|high|medium|low)\b(?:\s+priority)?`)
	reStatus   = regexp.MustCompile(`(?i)\b(pending|in[\s_-]?progress|completed|done|cancelled|canceled)\b`)

	reDateNumeric = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reNextWeekday = regexp.MustCompile(`(?i)\b(?:next\s+|on\s+|this\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

	// reSlotTail matches trailing qualifier clauses that belong to other
	// slots, so "Review proposal with high priority due tomorrow" yields the
	// bare name "Review proposal".
	reSlotTail = regexp.MustCompile(`(?i)\s+(?:with\b|due\b|by\b|before\b|assigned\b|(?:urgent|high|medium|low)(?:\s+priority)?\b).*$`)
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Extract pulls typed slots out of free text. It is a pure function: the same
// text, hint, and reference time always yield the same EntitySet. now anchors
// relative date phrases ("today", "next friday").
//
// The hint steers ambiguous trigger phrases — "called X" names a project for
// project intents and a task otherwise — but extraction never depends on the
// hint being correct. Missing slots are simply absent from the result.
func Extract(text string, hint Intent, now time.Time) EntitySet {
	entities := EntitySet{}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return entities
	}

	if v, ok := extractDueDate(trimmed, now); ok {
		entities[SlotDueDate] = v
	}
	if v, ok := extractPriority(trimmed); ok {
		entities[SlotPriority] = v
	}
	if v, ok := extractStatus(trimmed, hint); ok {
		entities[SlotStatus] = v
	}
	extractNames(trimmed, hint, entities)

	// A task creation without a stated priority defaults to medium, matching
	// the task model's default.
	if hint == IntentCreateTask {
		if _, ok := entities[SlotPriority]; !ok {
			entities[SlotPriority] = PriorityMedium
		}
	}

	return entities
}

// extractNames fills task_name, project_name, and assignee from trigger
// phrases. Values keep their original casing; only surrounding qualifier
// clauses are trimmed.
func extractNames(text string, hint Intent, entities EntitySet) {
	nameSlot := SlotTaskName
	if hint == IntentCreateProject || hint == IntentUpdateProject || hint == IntentQueryProjects {
		nameSlot = SlotProjectName
	}

	if m := reAssignTo.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			entities[SlotTaskName] = strings.TrimSuffix(name, " task")
		}
		if who := cleanSpan(m[2]); who != "" {
			entities[SlotAssignee] = who
		}
		return
	}

	if m := reCalled.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			entities[nameSlot] = name
		}
	} else if m := reMarkDone.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			entities[SlotTaskName] = strings.TrimSuffix(name, " task")
		}
	} else if m := reFinish.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			entities[SlotTaskName] = strings.TrimSuffix(name, " task")
		}
	} else if m := reUpdateTask.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			entities[SlotTaskName] = name
		}
	} else if m := reTaskNamed.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			entities[SlotTaskName] = name
		}
	} else if m := reCreateTask.FindStringSubmatch(text); m != nil && hint != IntentCreateProject {
		if name := cleanSpan(m[1]); name != "" {
			entities[SlotTaskName] = name
		}
	}

	// "for X" names the containing project when a task name is already known,
	// otherwise it names whatever the hinted intent is creating.
	if m := reFor.FindStringSubmatch(text); m != nil {
		if name := cleanSpan(m[1]); name != "" {
			if _, ok := entities[nameSlot]; ok && nameSlot == SlotTaskName {
				entities[SlotProjectName] = name
			} else if _, ok := entities[nameSlot]; !ok {
				entities[nameSlot] = name
			}
		}
	}
}

// cleanSpan trims a captured free-text span: qualifier clauses for other
// slots, leading articles, and stray punctuation.
func cleanSpan(s string) string {
	s = reSlotTail.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t.,!?\"'")
	lower := strings.ToLower(s)
	for _, article := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(lower, article) {
			s = s[len(article):]
			break
		}
	}
	return strings.TrimSpace(s)
}

func extractPriority(text string) (string, bool) {
	m := rePriority.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// extractStatus recognises status keywords. Bare "done"/"completed" only
// count as a status for update and query intents; for completion commands the
// word is the verb, not a slot.
func extractStatus(text string, hint Intent) (string, bool) {
	m := reStatus.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	raw := strings.ToLower(m[1])
	raw = strings.NewReplacer(" ", "_", "-", "_").Replace(raw)
	var status string
	switch raw {
	case "pending":
		status = StatusPending
	case "in_progress", "inprogress":
		status = StatusInProgress
	case "completed", "done":
		status = StatusCompleted
	case "cancelled", "canceled":
		status = StatusCancelled
	default:
		return "", false
	}
	if status == StatusCompleted && hint == IntentCompleteTask {
		return "", false
	}
	return status, true
}

// extractDueDate normalises relative and absolute date phrases to DateLayout.
func extractDueDate(text string, now time.Time) (string, bool) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format(DateLayout), true
	case strings.Contains(lower, "today"):
		return now.Format(DateLayout), true
	}

	if m := reDateNumeric.FindStringSubmatch(text); m != nil {
		date, err := time.ParseInLocation("1/2/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3]), now.Location())
		if err == nil {
			return date.Format(DateLayout), true
		}
	}

	if m := reNextWeekday.FindStringSubmatch(lower); m != nil {
		target := weekdays[m[1]]
		offset := (int(target) - int(now.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		return now.AddDate(0, 0, offset).Format(DateLayout), true
	}

	return "", false
}
