// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a hosted transcription service (e.g., the OpenAI
// Whisper API) and exposes a uniform batch interface: one audio clip in, one
// transcript out. Voice input in the task manager arrives as short recorded
// utterances rather than a continuous stream, so the interface is
// request/response instead of streaming.
//
// Implementations must be safe for concurrent use. Multiple transcriptions may
// be in flight simultaneously (one per connected user).
package stt

import "context"

// ClipConfig describes the audio clip submitted for transcription.
type ClipConfig struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// MIMEType describes the clip encoding (e.g., "audio/wav", "audio/webm").
	// Providers that only accept specific containers may return an error for
	// unsupported types.
	MIMEType string
}

// Transcript is the result of transcribing a single audio clip.
type Transcript struct {
	// Text is the transcribed speech content. May be empty when the clip
	// contained no recognisable speech.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Providers that do
	// not report confidence should fill in a documented default rather than
	// zero, since downstream dispatch gates on this value.
	Confidence float64

	// Language is the language the provider detected or was configured with.
	Language string
}

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation: when ctx is cancelled the call returns promptly with ctx's
// error.
type Provider interface {
	// Transcribe converts one recorded audio clip into text. The audio slice is
	// the raw clip bytes in the container format declared by cfg.MIMEType.
	//
	// Returns an error when the provider cannot produce a transcript at all
	// (authentication failure, malformed audio, timeout). An empty-but-valid
	// recognition result is not an error; it yields a Transcript with empty Text.
	Transcribe(ctx context.Context, audio []byte, cfg ClipConfig) (Transcript, error)
}
