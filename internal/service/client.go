// Package service contains both sides of the privileged GUI boundary:
// the loopback HTTP daemon that performs capture and input injection from
// a process holding the screen-recording/accessibility entitlements, the
// typed client the agent uses to reach it, and the supervisor that starts
// the daemon on demand.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// Client is the typed loopback client for the privileged GUI service.
// Every call carries its own short timeout; a slow or unreachable daemon
// is indistinguishable from a missing one and callers fall back to direct
// injection rather than wait. Errors from this client are routing
// signals, never task failures.
type Client struct {
	baseURL string
	httpc   *http.Client
	cfg     config.ServiceConfig
	logger  *zap.Logger
}

// NewClient creates a client for the daemon at cfg.Addr.
func NewClient(cfg config.ServiceConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: "http://" + cfg.Addr,
		httpc:   &http.Client{},
		cfg:     cfg,
		logger:  logger.Named("service_client"),
	}
}

// Health probes the daemon. A nil return means the daemon is serving.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/health", c.cfg.HealthTimeout)
	return err
}

// Screenshot requests a fresh frame from the daemon and decodes the
// base64 payload back into PNG bytes.
func (c *Client) Screenshot(ctx context.Context) (*schemas.Screenshot, error) {
	resp, err := c.get(ctx, "/screenshot", c.cfg.ScreenshotTimeout)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("service returned undecodable image data: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("service returned an empty image")
	}
	return &schemas.Screenshot{PNG: raw, Width: resp.Width, Height: resp.Height}, nil
}

// Move travels the pointer to the given logical coordinates.
func (c *Client) Move(ctx context.Context, x, y int) error {
	_, err := c.post(ctx, "/move", schemas.PointRequest{X: x, Y: y}, c.cfg.ActionTimeout)
	return err
}

// Click moves to the coordinates and presses the primary button.
func (c *Client) Click(ctx context.Context, x, y int) error {
	_, err := c.post(ctx, "/click", schemas.PointRequest{X: x, Y: y}, c.cfg.ActionTimeout)
	return err
}

// Type injects text character-by-character with the given delay. The
// wire contract expresses the interval in seconds.
func (c *Client) Type(ctx context.Context, text string, interval time.Duration) error {
	_, err := c.post(ctx, "/type", schemas.TypeRequest{
		Text:     text,
		Interval: interval.Seconds(),
	}, c.cfg.TypeTimeout)
	return err
}

// PressKey sends one named key event.
func (c *Client) PressKey(ctx context.Context, key string) error {
	_, err := c.post(ctx, "/press_key", schemas.KeyRequest{Key: key}, c.cfg.ActionTimeout)
	return err
}

func (c *Client) get(ctx context.Context, path string, timeout time.Duration) (*schemas.ServiceResponse, error) {
	return c.do(ctx, http.MethodGet, path, nil, timeout)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, timeout time.Duration) (*schemas.ServiceResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, body, timeout)
}

// do issues one request against the daemon. A non-200 status or a
// Success=false envelope both mean "unavailable" to the caller.
func (c *Client) do(ctx context.Context, method, path string, body []byte, timeout time.Duration) (*schemas.ServiceResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("service unreachable at %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}

	var envelope schemas.ServiceResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("service returned malformed response for %s (status %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		reason := envelope.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("service rejected %s (status %d): %s", path, resp.StatusCode, reason)
	}
	return &envelope, nil
}

// maxResponseBytes bounds a service response read. Screenshots of large
// displays dominate; 64 MiB of base64 covers anything real.
const maxResponseBytes = 64 << 20
