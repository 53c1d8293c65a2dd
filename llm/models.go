// Package llm provides shared data models for VLM providers.
package llm

import (
	"time"

	"github.com/richinex/firemaker/model"
)

// VisionRequest is the provider-level request: encoded image bytes plus prompt.
type VisionRequest struct {
	Image     []byte
	MediaType string
	Prompt    string
}

// LLMResponse represents a response from a provider.
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// Query is one question about one frame.
type Query struct {
	Frame  *model.Frame
	Prompt string
	// SchemaHint optionally describes the answer format. It is appended to
	// the prompt; no provider-side schema is enforced.
	SchemaHint string
}

// Response is the answer to exactly one Query. Responses are never cached.
type Response struct {
	Text     string
	Provider string
	Model    string
	// Latency covers the provider round-trip only, not pacing waits.
	Latency time.Duration
	Usage   *TokenUsage
}

func (q Query) promptText() string {
	if q.SchemaHint == "" {
		return q.Prompt
	}
	return q.Prompt + "\n\n" + q.SchemaHint
}
