// Local Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses an OpenAI-compatible API (Ollama, llama.cpp server, vLLM) at a configurable base URL
// - No API key required; a placeholder is sent when none is configured

package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultLocalBaseURL is Ollama's OpenAI-compatible endpoint.
const DefaultLocalBaseURL = "http://localhost:11434/v1"

// LocalProvider implements the Provider interface for a local vision model.
type LocalProvider struct {
	client      *openai.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
}

// NewLocalProvider creates a provider for an OpenAI-compatible server at baseURL.
func NewLocalProvider(apiKey, baseURL, model string, maxTokens uint32, temperature float32) *LocalProvider {
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
	}
	if apiKey == "" {
		apiKey = "local"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &LocalProvider{
		client:      openai.NewClientWithConfig(config),
		baseURL:     baseURL,
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *LocalProvider) Name() string {
	return "local"
}

// Model returns the current model.
func (p *LocalProvider) Model() string {
	return p.model
}

// BaseURL returns the server endpoint.
func (p *LocalProvider) BaseURL() string {
	return p.baseURL
}

// Ask sends a single user message holding the prompt and the image.
func (p *LocalProvider) Ask(ctx context.Context, req VisionRequest) (LLMResponse, error) {
	return askChatCompletion(ctx, p.client, p.Name(), p.model, p.maxTokens, p.temperature, req)
}

// Verify LocalProvider implements Provider
var _ Provider = (*LocalProvider)(nil)
