// Package dispatch turns classified utterances into task-manager actions.
//
// The [Dispatcher] is the heart of the voice pipeline: it runs the
// classifier and extractor, keeps per-user multi-turn state in the session
// store, gates on confidence, and calls the persistence collaborator exactly
// once per executed command. Every failure mode it owns is converted into a
// user-facing [ActionResult]; nothing escapes to the transport except
// connection-level faults.
package dispatch

import (
	"time"

	"github.com/voxtask/voxtask/internal/nlu"
	"github.com/voxtask/voxtask/internal/taskstore"
)

// ErrorKind labels the failure modes surfaced in an [ActionResult].
type ErrorKind string

const (
	// ErrTranscriptionFailure means speech-to-text failed or produced no
	// usable text. Surfaced as a clarification prompt, never fatal.
	ErrTranscriptionFailure ErrorKind = "transcription_failure"

	// ErrClassificationLowConfidence means no intent cleared the clarify
	// threshold. The user is asked to rephrase; nothing is stored.
	ErrClassificationLowConfidence ErrorKind = "classification_low_confidence"

	// ErrActionExecution means the persistence collaborator call failed.
	// Pending context is discarded so the user restates the command.
	ErrActionExecution ErrorKind = "action_execution_error"
)

// Utterance is one transcribed voice (or typed) input. Immutable once built.
type Utterance struct {
	// Text is the transcription.
	Text string

	// Confidence is the transcription confidence in [0, 1].
	Confidence float64

	// Timestamp is when the input arrived.
	Timestamp time.Time

	// SessionID identifies the originating connection, for logging.
	SessionID string
}

// ActionResult is the outcome of one dispatch.
type ActionResult struct {
	// Success is true when the utterance was handled as intended: a command
	// executed, a query answered, or a conversation cleanly advanced or
	// cancelled.
	Success bool `json:"success"`

	// Response is the sentence spoken/shown back to the user.
	Response string `json:"response"`

	// Intent is the classified intent this result belongs to.
	Intent nlu.Intent `json:"intent"`

	// Confidence is the classification confidence behind Intent.
	Confidence float64 `json:"confidence"`

	// Entities holds the slots known at the time of the result.
	Entities nlu.EntitySet `json:"entities,omitempty"`

	// AwaitingSlot names the slot the dispatcher is waiting for, when the
	// conversation is mid slot-filling.
	AwaitingSlot string `json:"awaiting_slot,omitempty"`

	// ErrorKind labels the failure, when Success is false.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Suggestions lists example commands, included on low-confidence
	// rejections for discoverability.
	Suggestions []string `json:"suggestions,omitempty"`

	// Payload carries the structured result of an executed command.
	Payload *Payload `json:"payload,omitempty"`
}

// Payload is the structured portion of a successful dispatch. Exactly the
// fields relevant to the executed intent are set.
type Payload struct {
	Task       *taskstore.Task     `json:"task,omitempty"`
	Project    *taskstore.Project  `json:"project,omitempty"`
	Tasks      []taskstore.Task    `json:"tasks,omitempty"`
	Projects   []taskstore.Project `json:"projects,omitempty"`
	Navigation string              `json:"navigation,omitempty"`
	Commands   []CommandDoc        `json:"commands,omitempty"`
}

// TranscriptionFailureResult is the canonical result for failed or empty
// transcriptions. The session channel uses it when the speech-to-text
// collaborator errors before dispatch is possible.
func TranscriptionFailureResult() ActionResult {
	return ActionResult{
		Success:   false,
		Intent:    nlu.IntentUnknown,
		ErrorKind: ErrTranscriptionFailure,
		Response:  "I didn't catch that. Could you say it again?",
	}
}
