package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxtask/voxtask/pkg/provider/llm"
)

// fallbackSystemPrompt instructs the model to emit a single JSON object.
const fallbackSystemPrompt = `You classify voice commands for a task manager.
Respond with exactly one JSON object and nothing else:
{"intent": "...", "confidence": 0.0, "entities": {"task_name": "", "project_name": "", "assignee": "", "status": "", "priority": "", "due_date": ""}}
Valid intents: create_task, update_task, complete_task, assign_task, create_project, update_project, query_tasks, query_projects, navigate, help, unknown.
Omit entity keys you did not find. due_date must be YYYY-MM-DD. confidence is your certainty in [0,1].`

// Classification is the refined result produced by [LLMFallback.Classify].
type Classification struct {
	Intent     Intent
	Confidence float64
	Entities   EntitySet
}

// LLMFallback refines low-confidence pattern classifications by asking a
// language model for a structured {intent, confidence, entities} verdict.
//
// It is the dispatcher's decision when to consult the fallback; the fallback
// itself never blocks the pattern path. Safe for concurrent use.
type LLMFallback struct {
	provider llm.Provider
}

// NewLLMFallback wraps provider. provider must not be nil.
func NewLLMFallback(provider llm.Provider) *LLMFallback {
	return &LLMFallback{provider: provider}
}

// Classify asks the model to classify text. Malformed or unparseable model
// output is returned as an error so the caller can degrade to the pattern
// result instead of trusting garbage.
func (f *LLMFallback) Classify(ctx context.Context, text string) (Classification, error) {
	resp, err := f.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fallbackSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("Voice command: %q", text)},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("nlu: llm fallback: %w", err)
	}

	var parsed struct {
		Intent     string            `json:"intent"`
		Confidence float64           `json:"confidence"`
		Entities   map[string]string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &parsed); err != nil {
		return Classification{}, fmt.Errorf("nlu: llm fallback: parse response: %w", err)
	}

	result := Classification{
		Intent:     ParseIntent(parsed.Intent),
		Confidence: clamp01(parsed.Confidence),
		Entities:   EntitySet{},
	}
	for slot, value := range parsed.Entities {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch slot {
		case SlotTaskName, SlotProjectName, SlotDueDate, SlotPriority, SlotAssignee, SlotStatus:
			result.Entities[slot] = value
		}
	}
	return result, nil
}

// stripCodeFence removes a surrounding markdown code fence, which several
// models add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
