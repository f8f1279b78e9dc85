package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// NativeBackend captures in-process through the OS screenshot primitive.
// It works whenever the current process holds the display entitlements,
// which covers interactive terminal sessions but often not daemons.
type NativeBackend struct {
	display int
	logger  *zap.Logger
}

// NewNativeBackend builds a backend for the given display index (0 is
// the primary display).
func NewNativeBackend(display int, logger *zap.Logger) *NativeBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NativeBackend{
		display: display,
		logger:  logger.Named("capture.native"),
	}
}

// Name implements Capturer.
func (b *NativeBackend) Name() string {
	return backendNative
}

// Capture implements Capturer. The underlying primitive is synchronous
// and fast; the context is only consulted before starting.
func (b *NativeBackend) Capture(ctx context.Context) (*schemas.Screenshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	active := screenshot.NumActiveDisplays()
	if active == 0 {
		return nil, errors.New("no active displays detected")
	}
	if b.display < 0 || b.display >= active {
		return nil, fmt.Errorf("display %d out of range (%d active)", b.display, active)
	}

	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(b.display))
	if err != nil {
		return nil, fmt.Errorf("native capture failed: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding captured frame: %w", err)
	}
	bounds := img.Bounds()
	return &schemas.Screenshot{
		PNG:    buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
