// Package input turns parsed decisions into real input events. The
// executor owns action routing: it prefers the privileged loopback
// service, falls back transparently to direct in-process injection, and
// resolves targets through the element locator when the planner supplied
// a description instead of coordinates.
package input

import (
	"context"
	"image"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// Locator resolves a textual element description to device pixel
// coordinates, normally by asking the fast vision model. Declared here so
// the executor does not depend on the agent package that implements it.
type Locator interface {
	Locate(ctx context.Context, description string, shot *schemas.Screenshot) (image.Point, error)
}

// ServiceActions is the slice of the privileged-service client the
// executor routes through first. Any error from it means "unavailable"
// and triggers the direct-injection fallback, never a task failure.
type ServiceActions interface {
	Click(ctx context.Context, x, y int) error
	Type(ctx context.Context, text string, interval time.Duration) error
	PressKey(ctx context.Context, key string) error
}

// actionRequest carries one decision through a handler along with its
// pre-resolved target (when the planner supplied coordinates) and the
// screenshot the decision was made against (for description lookups).
type actionRequest struct {
	decision schemas.Decision
	target   *image.Point
	shot     *schemas.Screenshot
}

type actionHandler func(ctx context.Context, req actionRequest) schemas.ExecutionResult

// Executor dispatches decisions to the input subsystem through a handler
// table keyed by action kind. All outcomes are structured results; only
// programming errors surface as Go errors.
type Executor struct {
	cfg      config.InputConfig
	injector Injector
	service  ServiceActions // nil when the privileged service is disabled
	locator  Locator        // nil disables description-based targeting
	logger   *zap.Logger
	rng      *rand.Rand
	sleep    func(ctx context.Context, d time.Duration) error
	handlers map[schemas.ActionKind]actionHandler
}

// NewExecutor creates an Executor. service and locator may be nil; the
// corresponding routes are then skipped.
func NewExecutor(cfg config.InputConfig, injector Injector, service ServiceActions, locator Locator, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		cfg:      cfg,
		injector: injector,
		service:  service,
		locator:  locator,
		logger:   logger.Named("executor"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepContext,
		handlers: make(map[schemas.ActionKind]actionHandler),
	}
	e.registerHandlers()
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[schemas.ActionClick] = e.handleClick
	e.handlers[schemas.ActionTypeText] = e.handleType
	e.handlers[schemas.ActionPressKey] = e.handlePressKey
}

// Execute looks up and runs the handler for the decision's kind. target
// carries pre-resolved pixel coordinates when the planner supplied a
// point, nil otherwise; shot is the screenshot the decision was planned
// against.
func (e *Executor) Execute(ctx context.Context, decision schemas.Decision, target *image.Point, shot *schemas.Screenshot) schemas.ExecutionResult {
	handler, ok := e.handlers[decision.Kind]
	if !ok {
		return schemas.Failure(schemas.ErrCodeUnknownAction, "no handler for action type %q", decision.Kind)
	}

	result := handler(ctx, actionRequest{decision: decision, target: target, shot: shot})
	if !result.OK {
		e.logger.Warn("Action execution failed",
			zap.String("action", string(decision.Kind)),
			zap.String("error_code", string(result.ErrorCode)),
			zap.String("detail", result.Detail))
	}
	return result
}

func (e *Executor) handleClick(ctx context.Context, req actionRequest) schemas.ExecutionResult {
	target := req.target
	if target == nil {
		resolved, result := e.resolveByDescription(ctx, req, "click target")
		if resolved == nil {
			return result
		}
		target = resolved
	}

	click := e.applyJitter(*target)
	if err := e.deliverClick(ctx, click); err != nil {
		return schemas.Failure(schemas.ErrCodeInjectionFailure, "click at (%d, %d) failed: %v", click.X, click.Y, err)
	}
	return schemas.Success("clicked at (%d, %d)", click.X, click.Y)
}

func (e *Executor) handleType(ctx context.Context, req actionRequest) schemas.ExecutionResult {
	if req.decision.Text == "" {
		return schemas.Failure(schemas.ErrCodeInvalidParameters, "type action carries no text payload")
	}

	// Focus the field first when we know where it is; without point or
	// description the text goes to whatever already holds focus.
	target := req.target
	if target == nil && req.decision.Description != "" {
		resolved, result := e.resolveByDescription(ctx, req, "input field")
		if resolved == nil {
			return result
		}
		target = resolved
	}
	if target != nil {
		if err := e.deliverClick(ctx, *target); err != nil {
			return schemas.Failure(schemas.ErrCodeInjectionFailure, "focus click at (%d, %d) failed: %v", target.X, target.Y, err)
		}
		if err := e.sleep(ctx, e.cfg.FocusDelay); err != nil {
			return schemas.Failure(schemas.ErrCodeExecutionFailure, "interrupted while waiting for focus: %v", err)
		}
	}

	if err := e.deliverType(ctx, req.decision.Text); err != nil {
		return schemas.Failure(schemas.ErrCodeInjectionFailure, "typing failed: %v", err)
	}
	return schemas.Success("typed %d characters", len([]rune(req.decision.Text)))
}

func (e *Executor) handlePressKey(ctx context.Context, req actionRequest) schemas.ExecutionResult {
	if req.decision.Key == "" {
		return schemas.Failure(schemas.ErrCodeInvalidParameters, "press_key action carries no key name")
	}

	key := NormalizeKey(req.decision.Key)
	if err := e.deliverKey(ctx, key); err != nil {
		return schemas.Failure(schemas.ErrCodeInjectionFailure, "key press %q failed: %v", key, err)
	}
	return schemas.Success("pressed %s", key)
}

// resolveByDescription locates an element by its description. On success
// it returns the point and an empty result; on failure it returns nil and
// the structured failure to hand back to the caller.
func (e *Executor) resolveByDescription(ctx context.Context, req actionRequest, what string) (*image.Point, schemas.ExecutionResult) {
	desc := req.decision.Description
	if desc == "" {
		return nil, schemas.Failure(schemas.ErrCodeTargetNotResolved, "%s has neither coordinates nor a description", what)
	}
	if e.locator == nil {
		return nil, schemas.Failure(schemas.ErrCodeTargetNotResolved, "no locator available to resolve %s %q", what, desc)
	}
	pt, err := e.locator.Locate(ctx, desc, req.shot)
	if err != nil {
		return nil, schemas.Failure(schemas.ErrCodeTargetNotResolved, "could not locate %s %q: %v", what, desc, err)
	}
	e.logger.Debug("Resolved target by description",
		zap.String("description", desc),
		zap.Int("x", pt.X), zap.Int("y", pt.Y))
	return &pt, schemas.ExecutionResult{}
}

// applyJitter offsets the click point by up to JitterPx in each axis so
// repeated clicks on one target do not land on the identical pixel,
// clamped back into the screen.
func (e *Executor) applyJitter(pt image.Point) image.Point {
	if e.cfg.JitterPx <= 0 {
		return pt
	}
	span := 2*e.cfg.JitterPx + 1
	jittered := image.Point{
		X: pt.X + e.rng.Intn(span) - e.cfg.JitterPx,
		Y: pt.Y + e.rng.Intn(span) - e.cfg.JitterPx,
	}
	if jittered.X < 0 {
		jittered.X = 0
	}
	if jittered.Y < 0 {
		jittered.Y = 0
	}
	if w, h, err := e.injector.ScreenSize(); err == nil {
		if jittered.X > w-1 {
			jittered.X = w - 1
		}
		if jittered.Y > h-1 {
			jittered.Y = h - 1
		}
	}
	return jittered
}

// deliverClick routes a click service-first. A failing service is a
// routing signal, not an error: the fallback injects directly after a
// brief pause for pointer accuracy.
func (e *Executor) deliverClick(ctx context.Context, pt image.Point) error {
	if e.service != nil {
		err := e.service.Click(ctx, pt.X, pt.Y)
		if err == nil {
			return nil
		}
		e.logger.Debug("Service click unavailable, using direct injection", zap.Error(err))
		if err := e.sleep(ctx, positionSettle); err != nil {
			return err
		}
	}
	return e.injector.Click(ctx, pt.X, pt.Y)
}

func (e *Executor) deliverType(ctx context.Context, text string) error {
	if e.service != nil {
		err := e.service.Type(ctx, text, e.cfg.TypeInterval)
		if err == nil {
			return nil
		}
		e.logger.Debug("Service type unavailable, using direct injection", zap.Error(err))
	}
	return e.injector.TypeText(ctx, text, e.cfg.TypeInterval)
}

func (e *Executor) deliverKey(ctx context.Context, key string) error {
	if e.service != nil {
		err := e.service.PressKey(ctx, key)
		if err == nil {
			return nil
		}
		e.logger.Debug("Service key press unavailable, using direct injection", zap.Error(err))
	}
	return e.injector.PressKey(ctx, key)
}
