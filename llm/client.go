// VisionClient - wrapper around providers that owns timeouts, pacing and
// latency accounting.

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout bounds each provider call. Zero means no extra timeout.
	Timeout time.Duration
	// MinInterval is the minimum spacing between provider calls. Zero disables pacing.
	MinInterval time.Duration
	// Frames receives a copy of every queried frame. May be nil.
	Frames FrameSink
}

// Client wraps a Provider. It never retries.
type Client struct {
	provider Provider
	cfg      ClientConfig
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewClient creates a new vision client from a provider.
func NewClient(provider Provider, cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("vlm"),
	}
	if cfg.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return c
}

// Ask sends one frame and prompt to the provider and returns its answer.
// Failures are wrapped with ErrProviderUnavailable, ErrRateLimited or ErrTimeout.
func (c *Client) Ask(ctx context.Context, q Query) (Response, error) {
	if q.Frame == nil || len(q.Frame.Image) == 0 {
		return Response{}, errors.New("vision query has no frame")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("waiting for vision rate limiter: %w", err)
		}
	}

	if c.cfg.Frames != nil {
		c.cfg.Frames.Submit(q.Frame)
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	mediaType := q.Frame.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}

	start := time.Now()
	resp, err := c.provider.Ask(callCtx, VisionRequest{
		Image:     q.Frame.Image,
		MediaType: mediaType,
		Prompt:    q.promptText(),
	})
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, c.cfg.Timeout, err)
		}
		c.logger.Warn("vision request failed",
			zap.String("provider", c.provider.Name()),
			zap.Duration("latency", latency),
			zap.Error(err))
		return Response{}, err
	}

	c.logger.Debug("vision answer",
		zap.String("provider", c.provider.Name()),
		zap.String("model", c.provider.Model()),
		zap.Duration("latency", latency),
		zap.String("answer", truncate(resp.Content, 160)))

	return Response{
		Text:     resp.Content,
		Provider: c.provider.Name(),
		Model:    c.provider.Model(),
		Latency:  latency,
		Usage:    resp.Usage,
	}, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
