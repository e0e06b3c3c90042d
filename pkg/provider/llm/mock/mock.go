// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to feed controlled completions without a live
// model backend. All fields are safe to set before calling any method;
// mutating them during a concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/voxtask/voxtask/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
// Zero values cause Complete to return an empty response and nil error.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Complete when Err is nil.
	Response *llm.CompletionResponse

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Calls records every request passed to Complete in order.
	Calls []llm.CompletionRequest
}

// Complete records the call and returns Response, Err.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Response == nil {
		return &llm.CompletionResponse{}, nil
	}
	resp := *p.Response
	return &resp, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
