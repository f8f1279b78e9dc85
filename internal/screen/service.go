package screen

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// ScreenshotClient is the slice of the privileged-service client the
// capture chain needs. Declaring it here keeps this package independent
// of the service package; the concrete loopback client satisfies it.
type ScreenshotClient interface {
	Screenshot(ctx context.Context) (*schemas.Screenshot, error)
}

// ServiceBackend captures through the privileged loopback daemon. The
// daemon runs in a foreground session that holds the screen-recording
// entitlement, which background execution contexts typically lack, so
// this backend is tried first.
type ServiceBackend struct {
	client ScreenshotClient
	logger *zap.Logger
}

// NewServiceBackend wraps a service client as a capture backend.
func NewServiceBackend(client ScreenshotClient, logger *zap.Logger) *ServiceBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceBackend{
		client: client,
		logger: logger.Named("capture.service"),
	}
}

// Name implements Capturer.
func (b *ServiceBackend) Name() string {
	return backendService
}

// Capture implements Capturer by delegating to the daemon's screenshot
// endpoint. The client applies its own request timeout; an unreachable
// or slow daemon simply fails this backend and the chain moves on.
func (b *ServiceBackend) Capture(ctx context.Context) (*schemas.Screenshot, error) {
	if b.client == nil {
		return nil, errors.New("no service client configured")
	}
	return b.client.Screenshot(ctx)
}
