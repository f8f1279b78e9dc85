package screen

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Seams for tests; production code never reassigns these.
var (
	execCommandContext = exec.CommandContext
	uuidNewString      = uuid.NewString
)

// SubprocessBackend shells out to the platform capture utility. It is
// the last resort: slower than the other backends, but the external
// binary sometimes holds entitlements the current process does not.
// The frame is written to a uniquely named temp file that is removed on
// every path, success or failure.
type SubprocessBackend struct {
	timeout time.Duration
	tempDir string
	logger  *zap.Logger
}

// NewSubprocessBackend builds a backend bounded by the given per-attempt
// timeout.
func NewSubprocessBackend(timeout time.Duration, logger *zap.Logger) *SubprocessBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubprocessBackend{
		timeout: timeout,
		tempDir: os.TempDir(),
		logger:  logger.Named("capture.subprocess"),
	}
}

// Name implements Capturer.
func (b *SubprocessBackend) Name() string {
	return backendSubprocess
}

// Capture implements Capturer by invoking the capture utility and
// reading back its output file.
func (b *SubprocessBackend) Capture(ctx context.Context) (*schemas.Screenshot, error) {
	path := filepath.Join(b.tempDir, "marionette-"+uuidNewString()+".png")
	defer os.Remove(path)

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd, err := b.command(runCtx, path)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Invoking capture utility", zap.Strings("args", cmd.Args))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("capture utility failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture output: %w", err)
	}
	dims, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding capture output: %w", err)
	}
	return &schemas.Screenshot{
		PNG:    data,
		Width:  dims.Width,
		Height: dims.Height,
	}, nil
}

// command selects the platform utility. Both utilities take the output
// path as their final argument, which the tests rely on.
func (b *SubprocessBackend) command(ctx context.Context, path string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		// -x suppresses the shutter sound.
		return execCommandContext(ctx, "screencapture", "-x", path), nil
	case "linux":
		return execCommandContext(ctx, "scrot", path), nil
	default:
		return nil, fmt.Errorf("no capture utility configured for %s", runtime.GOOS)
	}
}
