// Package oracle wraps the external text-generation capability behind a
// minimal completion interface. The client carries no retry logic of its
// own: retries and backoff are pipeline-controller policy, so transport
// behavior stays uniform and testable independent of the provider.
package oracle

import "context"

// Client is the single capability the pipeline requires from a provider.
type Client interface {
	// Complete sends one prompt and returns the raw response text.
	// Fails with *Error on transport failure, timeout, quota exhaustion,
	// or empty response.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the client identifier (e.g. "gemini").
	Name() string
}
