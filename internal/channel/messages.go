// Package channel is the WebSocket session layer: it authenticates a user,
// receives voice input, runs it through transcription and dispatch, and
// streams responses and notifications back.
//
// One connection serves exactly one authenticated user. Messages from a
// connection are handled strictly in arrival order; the dispatch for
// utterance N completes before utterance N+1 is read. A user holding several
// connections still gets one utterance at a time, serialised by the
// dispatcher. Different users proceed independently.
package channel

import (
	"github.com/voxtask/voxtask/internal/dispatch"
	"github.com/voxtask/voxtask/internal/taskstore"
)

// Client message types.
const (
	typeVoiceInput = "voice_input"
	typePing       = "ping"
)

// Server message types.
const (
	typeResponse     = "response"
	typeNotification = "notification"
	typeError        = "error"
	typePong         = "pong"
)

// Error codes carried in error messages.
const (
	codeBadMessage     = "bad_message"
	codeAudioTooLarge  = "audio_too_large"
	codeSTTUnavailable = "stt_unavailable"
)

// clientMessage is one inbound frame. Exactly one of Text or Audio is set on
// a voice_input frame; Audio is a base64-encoded clip. Confidence optionally
// reports how sure a client-side recogniser was of Text; absent means 1.0.
type clientMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Audio      string  `json:"audio,omitempty"`
	Language   string  `json:"language,omitempty"`
	MIMEType   string  `json:"mime_type,omitempty"`
}

// serverMessage is one outbound frame. The populated fields depend on Type.
type serverMessage struct {
	Type string `json:"type"`

	// Transcription echoes the text the dispatch ran on, for response frames.
	// Confidence is how sure the transcription is: the provider's score for
	// audio input, the client's own score (or 1.0) for text input.
	Transcription string  `json:"transcription,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`

	// Result is the dispatch outcome, for response frames.
	Result *dispatch.ActionResult `json:"result,omitempty"`

	// Notification carries a pushed state change, for notification frames.
	Notification *taskstore.Notification `json:"notification,omitempty"`

	// Code and Message describe a protocol-level problem, for error frames.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
