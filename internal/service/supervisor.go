package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/internal/config"
)

// Seams for tests; production code never reassigns these.
var (
	osExecutable = os.Executable
	execCommand  = exec.Command
)

// healthPollInterval paces the post-spawn readiness probe.
const healthPollInterval = 250 * time.Millisecond

// HealthChecker is the slice of the client the supervisor needs.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Supervisor starts the privileged daemon on demand. The CLI calls
// EnsureRunning before a task when the service route is enabled; a
// daemon that cannot be started only degrades the task to direct
// injection, it never fails it.
type Supervisor struct {
	client HealthChecker
	cfg    config.ServiceConfig
	logger *zap.Logger
}

// NewSupervisor creates a Supervisor probing through the given client.
func NewSupervisor(client HealthChecker, cfg config.ServiceConfig, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		client: client,
		cfg:    cfg,
		logger: logger.Named("supervisor"),
	}
}

// EnsureRunning reports nil when the daemon is serving, spawning it
// first when it is not. The spawned process is the current executable
// re-invoked with the service command, detached so it outlives the
// caller.
func (s *Supervisor) EnsureRunning(ctx context.Context) error {
	if err := s.client.Health(ctx); err == nil {
		s.logger.Debug("Privileged service already running", zap.String("addr", s.cfg.Addr))
		return nil
	}

	if !s.cfg.Autostart {
		return fmt.Errorf("privileged service at %s is not running and autostart is disabled", s.cfg.Addr)
	}

	if err := s.spawn(); err != nil {
		return fmt.Errorf("starting privileged service: %w", err)
	}
	return s.awaitHealthy(ctx)
}

// spawn launches the daemon process and releases it.
func (s *Supervisor) spawn() error {
	exe, err := osExecutable()
	if err != nil {
		return fmt.Errorf("locating current executable: %w", err)
	}

	cmd := execCommand(exe, "service", "--addr", s.cfg.Addr)
	// No inherited stdio: the daemon logs through its own file sink and
	// must not block on the caller's terminal.
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning %s service: %w", exe, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		s.logger.Warn("Failed to release spawned service process", zap.Int("pid", pid), zap.Error(err))
	}

	s.logger.Info("Spawned privileged service",
		zap.String("addr", s.cfg.Addr),
		zap.Int("pid", pid))
	return nil
}

// awaitHealthy polls the daemon's health endpoint until it answers or
// the startup deadline passes.
func (s *Supervisor) awaitHealthy(ctx context.Context) error {
	deadline := s.cfg.StartupDeadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = s.client.Health(waitCtx); lastErr == nil {
			s.logger.Info("Privileged service is healthy", zap.String("addr", s.cfg.Addr))
			return nil
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("privileged service did not become healthy within %s: %w", deadline, lastErr)
		case <-ticker.C:
		}
	}
}
