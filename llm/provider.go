// Package llm provides vision-language model provider abstractions.
//
// Vision Provider interface - the abstract interface for VLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Image and prompt encoding for the provider's wire format
// - Response text extraction and token accounting
//
// Providers never retry. Retry policy belongs to the caller.

package llm

import (
	"context"
)

// Provider defines the abstract interface for VLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for image + text questions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Ask sends one image and one prompt and returns the model's text answer.
	Ask(ctx context.Context, req VisionRequest) (LLMResponse, error)
}
