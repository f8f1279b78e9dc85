// -- cmd/components.go --
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/agent"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/input"
	"github.com/xkilldash9x/marionette/internal/llmclient"
	"github.com/xkilldash9x/marionette/internal/observability"
	"github.com/xkilldash9x/marionette/internal/parse"
	"github.com/xkilldash9x/marionette/internal/screen"
	"github.com/xkilldash9x/marionette/internal/service"
)

// components is the assembled automation stack shared by the run,
// locate, and click commands.
type components struct {
	cfg      *config.Config
	llm      schemas.LLMClient
	capture  *screen.Chain
	mapper   *screen.Mapper
	detector *agent.Detector
	executor *input.Executor
	runner   *agent.Runner
	logger   *zap.Logger
}

// buildComponents wires the full stack from the finalized viper state.
// When the privileged service route is enabled, the daemon is started on
// demand; a daemon that will not start only degrades execution to direct
// injection.
func buildComponents(ctx context.Context) (*components, error) {
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger := observability.GetLogger()

	llm, err := llmclient.NewClient(cfg.Agent, logger)
	if err != nil {
		return nil, fmt.Errorf("building vision model client: %w", err)
	}

	// The service client slots are interface-typed; they stay nil unless
	// the route is enabled so the fallbacks engage cleanly.
	var (
		shotClient screen.ScreenshotClient
		svcActions input.ServiceActions
	)
	if cfg.Capture.ServiceEnabled {
		client := service.NewClient(cfg.Service, logger)
		supervisor := service.NewSupervisor(client, cfg.Service, logger)
		if err := supervisor.EnsureRunning(ctx); err != nil {
			logger.Warn("Privileged service unavailable, continuing with direct injection",
				zap.Error(err))
		}
		shotClient = client
		svcActions = client
	}

	injector := input.NewRobotInjector(cfg.Input, logger)

	// The mapper needs the logical input-space dimensions. Without a
	// usable display report it falls back to treating image pixels as
	// logical pixels.
	logicalW, logicalH := 0, 0
	if w, h, err := injector.ScreenSize(); err == nil {
		logicalW, logicalH = w, h
	} else {
		logger.Warn("Could not determine logical screen size", zap.Error(err))
	}
	mapper := screen.NewMapper(logicalW, logicalH, logger)

	capture := screen.NewDefaultChain(cfg.Capture, shotClient, logger)
	parser := parse.NewParser(logger)
	limiter := agent.NewLimiter(cfg.Agent.RequestsPerMinute)

	detector := agent.NewDetector(capture, llm, parser, mapper, limiter, logger)
	executor := input.NewExecutor(cfg.Input, injector, svcActions, detector, logger)
	runner := agent.NewRunner(cfg.Agent, capture, llm, parser, mapper, executor, limiter, logger)

	return &components{
		cfg:      cfg,
		llm:      llm,
		capture:  capture,
		mapper:   mapper,
		detector: detector,
		executor: executor,
		runner:   runner,
		logger:   logger,
	}, nil
}

// Close releases the stack's resources.
func (c *components) Close() {
	if err := c.llm.Close(); err != nil {
		c.logger.Warn("Closing model client", zap.Error(err))
	}
}
