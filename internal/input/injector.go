package input

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/internal/config"
)

// positionSettle is the short pause after pointer travel before the
// landing position is trusted.
const positionSettle = 100 * time.Millisecond

// Injector delivers real input events to the operating system. The
// executor and the privileged service daemon both speak to this
// interface; RobotInjector is the production implementation.
type Injector interface {
	// MoveMouse travels the pointer to the given logical coordinates.
	MoveMouse(ctx context.Context, x, y int) error
	// Click moves to the coordinates, verifies the landing position, and
	// presses the primary button.
	Click(ctx context.Context, x, y int) error
	// TypeText injects text one character at a time with the given
	// inter-character delay.
	TypeText(ctx context.Context, text string, interval time.Duration) error
	// PressKey sends a single named key event. Names are normalized
	// before dispatch.
	PressKey(ctx context.Context, key string) error
	// ScreenSize reports the logical display dimensions.
	ScreenSize() (width, height int, err error)
}

// RobotInjector implements Injector on top of the OS input APIs. Pointer
// travel runs along a planned eased path rather than jumping, and clicks
// verify the pointer actually landed where requested before pressing.
type RobotInjector struct {
	moveDuration time.Duration
	planner      *motionPlanner
	logger       *zap.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

var _ Injector = (*RobotInjector)(nil)

// NewRobotInjector creates the production injector.
func NewRobotInjector(cfg config.InputConfig, logger *zap.Logger) *RobotInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotInjector{
		moveDuration: cfg.MoveDuration,
		planner:      newMotionPlanner(time.Now().UnixNano()),
		logger:       logger.Named("injector"),
		sleep:        sleepContext,
	}
}

// MoveMouse implements Injector.
func (r *RobotInjector) MoveMouse(ctx context.Context, x, y int) error {
	curX, curY := robotgo.Location()
	for _, step := range r.planner.plan(image.Pt(curX, curY), image.Pt(x, y), r.moveDuration) {
		if err := ctx.Err(); err != nil {
			return err
		}
		robotgo.Move(step.X, step.Y)
		if err := r.sleep(ctx, step.Sleep); err != nil {
			return err
		}
	}
	return nil
}

// Click implements Injector. After travel it re-reads the pointer
// position and readjusts once if the landing is more than 5px off; the
// press then happens wherever the pointer actually is.
func (r *RobotInjector) Click(ctx context.Context, x, y int) error {
	if err := r.MoveMouse(ctx, x, y); err != nil {
		return err
	}
	if err := r.sleep(ctx, positionSettle); err != nil {
		return err
	}

	curX, curY := robotgo.Location()
	if dist := math.Hypot(float64(curX-x), float64(curY-y)); dist > 5 {
		r.logger.Warn("Pointer landed off target, readjusting",
			zap.Int("target_x", x), zap.Int("target_y", y),
			zap.Int("actual_x", curX), zap.Int("actual_y", curY),
			zap.Float64("distance", dist))
		robotgo.Move(x, y)
		if err := r.sleep(ctx, positionSettle); err != nil {
			return err
		}
	}

	robotgo.Click("left", false)
	return nil
}

// TypeText implements Injector. Characters go out one at a time so the
// receiving application sees realistic keystroke pacing; this also keeps
// IME-composed characters intact.
func (r *RobotInjector) TypeText(ctx context.Context, text string, interval time.Duration) error {
	for _, char := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		robotgo.TypeStr(string(char))
		if err := r.sleep(ctx, interval); err != nil {
			return err
		}
	}
	return nil
}

// PressKey implements Injector.
func (r *RobotInjector) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canonical := NormalizeKey(key)
	if err := robotgo.KeyTap(canonical); err != nil {
		return fmt.Errorf("key tap %q: %w", canonical, err)
	}
	return nil
}

// ScreenSize implements Injector.
func (r *RobotInjector) ScreenSize() (int, int, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("no usable display reported (%dx%d)", w, h)
	}
	return w, h, nil
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
