package screen

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/observability"
)

// Backend names used in logs and the capture failure metric.
const (
	backendService    = "service"
	backendNative     = "native"
	backendSubprocess = "subprocess"
)

// Capturer produces a fresh screenshot of the display. Implementations
// must be safe to call repeatedly; the loop captures before every
// planning step and never reuses a frame.
type Capturer interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Capture grabs the current frame, PNG-encoded with its dimensions.
	Capture(ctx context.Context) (*schemas.Screenshot, error)
}

// CaptureError is returned by the chain only after every configured
// backend has failed. Attempts records the backends tried in order; Err
// joins their individual failures.
type CaptureError struct {
	Attempts []string
	Err      error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("all capture backends failed [%s]: %v", strings.Join(e.Attempts, ", "), e.Err)
}

// Unwrap provides the joined backend errors for errors.Is/As.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// NewCaptureError creates a new CaptureError.
func NewCaptureError(attempts []string, err error) *CaptureError {
	return &CaptureError{Attempts: attempts, Err: err}
}

// Chain tries a fixed priority order of capture backends, falling through
// to the next on any failure. Individual failures are logged with a
// remediation hint but only surface as an error once every backend is
// exhausted.
type Chain struct {
	backends []Capturer
	logger   *zap.Logger
}

// NewChain builds a chain over the given backends, tried in argument
// order.
func NewChain(logger *zap.Logger, backends ...Capturer) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		backends: backends,
		logger:   logger.Named("capture"),
	}
}

// NewDefaultChain assembles the standard backend order: the privileged
// loopback service (when enabled and a client is supplied), then the
// in-process capture primitive, then the external capture utility. The
// service daemon itself assembles a chain without the service backend,
// otherwise a capture would recurse into its own endpoint.
func NewDefaultChain(cfg config.CaptureConfig, client ScreenshotClient, logger *zap.Logger) *Chain {
	var backends []Capturer
	if cfg.ServiceEnabled && client != nil {
		backends = append(backends, NewServiceBackend(client, logger))
	}
	backends = append(backends,
		NewNativeBackend(cfg.Display, logger),
		NewSubprocessBackend(cfg.SubprocessTimeout, logger),
	)
	return NewChain(logger, backends...)
}

// Capture runs the backend chain and returns the first successful frame.
// It fails with a *CaptureError only when all backends fail, or with the
// context error when the caller cancels mid-chain.
func (c *Chain) Capture(ctx context.Context) (*schemas.Screenshot, error) {
	var (
		attempts []string
		failures []error
	)
	for _, backend := range c.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shot, err := backend.Capture(ctx)
		if err == nil {
			c.logger.Debug("Screenshot captured",
				zap.String("backend", backend.Name()),
				zap.Int("width", shot.Width),
				zap.Int("height", shot.Height),
				zap.Int("bytes", len(shot.PNG)))
			return shot, nil
		}
		observability.CaptureFailures.WithLabelValues(backend.Name()).Inc()
		fields := []zap.Field{
			zap.String("backend", backend.Name()),
			zap.Error(err),
		}
		if hint := remediationHint(backend.Name()); hint != "" {
			fields = append(fields, zap.String("hint", hint))
		}
		c.logger.Warn("Capture backend failed, falling through", fields...)
		attempts = append(attempts, backend.Name())
		failures = append(failures, fmt.Errorf("%s: %w", backend.Name(), err))
	}
	return nil, NewCaptureError(attempts, errors.Join(failures...))
}

// Name implements Capturer, so a chain can itself serve as a backend.
func (c *Chain) Name() string {
	return "chain"
}

// remediationHint maps a failed backend to the action most likely to fix
// it on the current platform. Capture failures are almost always a
// permissions or environment problem, not a code problem.
func remediationHint(backend string) string {
	switch backend {
	case backendService:
		return "start the privileged service with 'marionette service' or enable service.autostart"
	case backendNative:
		if runtime.GOOS == "darwin" {
			return "grant screen-recording permission under System Settings > Privacy & Security > Screen Recording, then restart"
		}
		return "run inside a graphical session (DISPLAY must be set on X11)"
	case backendSubprocess:
		if runtime.GOOS == "darwin" {
			return "grant screen-recording permission to the invoking terminal so /usr/sbin/screencapture can see the display"
		}
		return "install a capture utility (scrot) or run inside a graphical session"
	}
	return ""
}
