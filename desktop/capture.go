package desktop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/richinex/firemaker/model"
)

// ScreenCapturer grabs a screen region and encodes it as PNG.
type ScreenCapturer struct {
	grab func(x, y, width, height int) (*image.RGBA, error)
	now  func() time.Time
}

// NewScreenCapturer creates a capturer over the X root window.
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{grab: screenshot.Capture, now: time.Now}
}

// Capture returns a PNG frame of rect.
func (c *ScreenCapturer) Capture(ctx context.Context, rect model.WindowRect) (*model.Frame, error) {
	if !rect.Valid() {
		return nil, fmt.Errorf("capture: invalid rectangle %s", rect)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := c.grab(rect.X, rect.Y, rect.Width, rect.Height)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", rect, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rect, err)
	}
	return &model.Frame{
		Image:      buf.Bytes(),
		MediaType:  "image/png",
		Rect:       rect,
		CapturedAt: c.now(),
	}, nil
}
