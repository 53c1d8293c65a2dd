package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Transient provider failures. The caller decides whether to retry.
var (
	ErrProviderUnavailable = errors.New("vision provider unavailable")
	ErrRateLimited         = errors.New("vision provider rate limited")
	ErrTimeout             = errors.New("vision request timed out")
)

// IsTransient reports whether err is one of the transient provider failures.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}

// classify wraps an SDK error with the matching taxonomy sentinel.
// A cancelled context is passed through untouched: it means the run is
// stopping, not that the provider misbehaved.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return fmt.Errorf("%w: %s: %w", sentinelFor(err), provider, err)
}

func sentinelFor(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if status, ok := statusCode(err); ok {
		return sentinelForStatus(status)
	}
	return ErrProviderUnavailable
}

func sentinelForStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		return ErrProviderUnavailable
	}
}

// statusCode digs the HTTP status out of the SDK error types.
func statusCode(err error) (int, bool) {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}
	var openaiAPIErr *openai.APIError
	if errors.As(err, &openaiAPIErr) {
		return openaiAPIErr.HTTPStatusCode, true
	}
	var openaiReqErr *openai.RequestError
	if errors.As(err, &openaiReqErr) {
		return openaiReqErr.HTTPStatusCode, true
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.Code, true
	}
	var geminiPtrErr *genai.APIError
	if errors.As(err, &geminiPtrErr) {
		return geminiPtrErr.Code, true
	}
	return 0, false
}
