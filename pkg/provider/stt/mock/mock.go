// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts without a live
// transcription backend. All fields are safe to set before calling any method;
// mutating them during a concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/voxtask/voxtask/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Audio is the clip passed to Transcribe.
	Audio []byte
	// Cfg is the ClipConfig passed to Transcribe.
	Cfg stt.ClipConfig
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return an empty Transcript and nil error.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe.
	Result stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(_ context.Context, audio []byte, cfg stt.ClipConfig) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clip := make([]byte, len(audio))
	copy(clip, audio)
	p.Calls = append(p.Calls, TranscribeCall{Audio: clip, Cfg: cfg})
	return p.Result, p.Err
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
