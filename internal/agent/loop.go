// internal/agent/loop.go

// Package agent contains the autonomous execution core: the closed
// capture -> plan -> parse -> act -> observe cycle that drives a GUI
// toward a natural-language goal, the loop guard that stops the agent
// from repeating itself, and the element detector that turns textual
// target descriptions into pixel coordinates.
package agent

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/observability"
	"github.com/xkilldash9x/marionette/internal/parse"
	"github.com/xkilldash9x/marionette/internal/screen"
)

// Allows for mocking in tests.
var uuidNewString = uuid.NewString

// Executor dispatches one parsed decision to the input subsystem.
// input.Executor is the production implementation.
type Executor interface {
	Execute(ctx context.Context, decision schemas.Decision, target *image.Point, shot *schemas.Screenshot) schemas.ExecutionResult
}

// NewLimiter builds the rate limiter shared by planning and detection
// calls, sized from the configured requests-per-minute budget.
func NewLimiter(requestsPerMinute float64) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1)
}

// Runner is the execution loop orchestrator. One Runner executes one
// task at a time; the surrounding system serializes task submissions.
type Runner struct {
	cfg      config.AgentConfig
	capture  screen.Capturer
	llm      schemas.LLMClient
	parser   *parse.Parser
	mapper   *screen.Mapper
	executor Executor
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu    sync.RWMutex
	state TaskState

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner assembles the loop. limiter may be nil to disable pacing;
// normally it is shared with the Detector so planning and detection draw
// from one request budget.
func NewRunner(
	cfg config.AgentConfig,
	capture screen.Capturer,
	llm schemas.LLMClient,
	parser *parse.Parser,
	mapper *screen.Mapper,
	executor Executor,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		capture:  capture,
		llm:      llm,
		parser:   parser,
		mapper:   mapper,
		executor: executor,
		limiter:  limiter,
		logger:   logger.Named("loop"),
		state:    StateRunning,
		sleep:    sleepContext,
	}
}

// State returns the loop's current lifecycle state.
func (r *Runner) State() TaskState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// updateState transitions the loop state. Terminal states are sticky: a
// finished task cannot be revived by a late transition.
func (r *Runner) updateState(next TaskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == next {
		return
	}
	if r.state.Terminal() {
		r.logger.Warn("Ignoring transition out of a terminal state",
			zap.String("current", string(r.state)),
			zap.String("attempted", string(next)))
		return
	}
	r.logger.Debug("Task state transition",
		zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.state = next
}

// ExecuteTask runs the full step/decide/act/observe cycle for one goal,
// bounded by the configured step budget. It always returns a result; the
// only errors it can produce are embedded in the result's status and
// reason. Context cancellation aborts immediately without executing
// further actions.
func (r *Runner) ExecuteTask(ctx context.Context, goal string) TaskResult {
	start := time.Now()
	taskID := uuidNewString()
	guard := NewGuard(r.logger)
	var history []string

	r.mu.Lock()
	r.state = StateRunning
	r.mu.Unlock()

	r.logger.Info("Task started",
		zap.String("task_id", taskID),
		zap.String("goal", goal),
		zap.Int("max_steps", r.cfg.MaxSteps))

	steps := 0
	for step := 1; step <= r.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return r.finish(taskID, goal, steps, start, StateFailed, StatusError, ReasonCancelled, "")
		}
		steps = step

		// 1. Observe: a fresh frame before every decision.
		shot, err := r.capture.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.finish(taskID, goal, steps, start, StateFailed, StatusError, ReasonCancelled, "")
			}
			r.logger.Error("Screenshot capture failed, aborting task", zap.Error(err))
			return r.finish(taskID, goal, steps, start, StateFailed, StatusFailed, ReasonCaptureFailed, "")
		}

		// 2+3. Decide: ask the powerful tier what happens next.
		raw, err := r.plan(ctx, goal, history, guard.Last(), shot)
		if err != nil {
			if ctx.Err() != nil {
				return r.finish(taskID, goal, steps, start, StateFailed, StatusError, ReasonCancelled, "")
			}
			return r.finish(taskID, goal, steps, start, StateFailed, StatusError,
				fmt.Sprintf("planning call failed: %v", err), "")
		}

		decision, err := r.parser.Decision(raw)
		if err != nil {
			// No silent continuation on unparseable output: the model and
			// the loop have lost their shared contract.
			r.logger.Error("Planning response unparsable, aborting task", zap.Error(err))
			return r.finish(taskID, goal, steps, start, StateFailed, StatusFailed, ReasonParseFailed, "")
		}

		// 4. Completion wins over everything else.
		if decision.Complete {
			r.logger.Info("Model declared the goal achieved",
				zap.String("task_id", taskID), zap.Int("steps", steps))
			return r.finish(taskID, goal, steps, start, StateComplete, StatusCompleted, "", decision.Description)
		}

		// 5. Loop guard: abort before acting when the agent is stuck.
		assessment := guard.Assess(decision.Description)
		if assessment.TightLoop || assessment.LoopCount >= loopFailThreshold {
			return r.finish(taskID, goal, steps, start, StateFailed, StatusFailed, ReasonStuckInLoop, "")
		}

		// 6. Act: resolve coordinates and dispatch.
		var target *image.Point
		if decision.Point != nil {
			pt := r.mapper.Map(*decision.Point, shot.Width, shot.Height)
			target = &pt
			if guard.NearRecent(pt) {
				// Same spot again: give the UI longer to settle before
				// re-clicking, the previous click may still be landing.
				if err := r.sleep(ctx, r.cfg.RepeatSettle); err != nil {
					return r.finish(taskID, goal, steps, start, StateFailed, StatusError, ReasonCancelled, "")
				}
			}
		}

		result := r.executor.Execute(ctx, decision, target, shot)
		observability.StepsTotal.WithLabelValues(string(decision.Kind)).Inc()

		entry := decision.Description
		if entry == "" {
			entry = string(decision.Kind)
		}
		if !result.OK {
			entry = fmt.Sprintf("%s (failed: %s)", entry, result.Detail)
		}
		history = appendBounded(history, entry, r.cfg.HistoryDepth)
		guard.Record(decision.Description, target)

		r.logger.Info("Step executed",
			zap.String("task_id", taskID),
			zap.Int("step", step),
			zap.String("action", string(decision.Kind)),
			zap.String("description", decision.Description),
			zap.Bool("ok", result.OK))

		// 7. Let the UI settle so the next capture observes the effect.
		if err := r.sleep(ctx, r.settleFor(decision.Kind)); err != nil {
			return r.finish(taskID, goal, steps, start, StateFailed, StatusError, ReasonCancelled, "")
		}
	}

	return r.finish(taskID, goal, steps, start, StateMaxStepsReached, StatusFailed, ReasonMaxSteps, "")
}

// plan issues one rate-limited planning call and returns the raw model
// text.
func (r *Runner) plan(ctx context.Context, goal string, history []string, last Assessment, shot *schemas.Screenshot) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	started := time.Now()
	raw, err := r.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: planningSystemPrompt,
		UserPrompt:   buildPlanningPrompt(goal, history, last),
		Images:       []schemas.ImageData{{MIMEType: "image/png", Data: shot.PNG}},
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true, Temperature: 0.2},
	})
	observability.PlanningDuration.Observe(time.Since(started).Seconds())
	return raw, err
}

// settleFor returns the post-action delay for one action kind. Clicks
// get the longest delay because their effects (navigation, dialogs,
// animations) take the longest to become observable.
func (r *Runner) settleFor(kind schemas.ActionKind) time.Duration {
	switch kind {
	case schemas.ActionClick:
		return r.cfg.SettleClick
	case schemas.ActionTypeText:
		return r.cfg.SettleType
	default:
		return r.cfg.SettleKey
	}
}

// finish stamps the terminal state and builds the task result.
func (r *Runner) finish(taskID, goal string, steps int, start time.Time, state TaskState, status TaskStatus, reason, summary string) TaskResult {
	r.updateState(state)
	observability.TasksTotal.WithLabelValues(string(state)).Inc()

	result := TaskResult{
		TaskID:   taskID,
		Goal:     goal,
		Status:   status,
		State:    state,
		Reason:   reason,
		Steps:    steps,
		Duration: time.Since(start),
		Summary:  summary,
	}

	switch status {
	case StatusCompleted:
		r.logger.Info("Task completed",
			zap.String("task_id", taskID),
			zap.Int("steps", steps),
			zap.Duration("duration", result.Duration))
	default:
		r.logger.Warn("Task did not complete",
			zap.String("task_id", taskID),
			zap.String("status", string(status)),
			zap.String("reason", reason),
			zap.Int("steps", steps),
			zap.Duration("duration", result.Duration))
	}
	return result
}

// appendBounded appends entry and keeps only the most recent depth
// entries.
func appendBounded(history []string, entry string, depth int) []string {
	history = append(history, entry)
	if depth > 0 && len(history) > depth {
		history = history[len(history)-depth:]
	}
	return history
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
