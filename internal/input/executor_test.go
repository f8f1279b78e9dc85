package input

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// fakeInjector records every delivered event in order.
type fakeInjector struct {
	events   []string
	clickErr error
	typeErr  error
	keyErr   error
}

func (f *fakeInjector) MoveMouse(ctx context.Context, x, y int) error {
	f.events = append(f.events, fmt.Sprintf("move(%d,%d)", x, y))
	return nil
}

func (f *fakeInjector) Click(ctx context.Context, x, y int) error {
	f.events = append(f.events, fmt.Sprintf("click(%d,%d)", x, y))
	return f.clickErr
}

func (f *fakeInjector) TypeText(ctx context.Context, text string, interval time.Duration) error {
	f.events = append(f.events, "type("+text+")")
	return f.typeErr
}

func (f *fakeInjector) PressKey(ctx context.Context, key string) error {
	f.events = append(f.events, "key("+key+")")
	return f.keyErr
}

func (f *fakeInjector) ScreenSize() (int, int, error) {
	return 1920, 1080, nil
}

// fakeService records routed calls and can be switched to unavailable.
type fakeService struct {
	events      []string
	unavailable bool
}

var errServiceDown = errors.New("connection refused")

func (f *fakeService) Click(ctx context.Context, x, y int) error {
	if f.unavailable {
		return errServiceDown
	}
	f.events = append(f.events, fmt.Sprintf("click(%d,%d)", x, y))
	return nil
}

func (f *fakeService) Type(ctx context.Context, text string, interval time.Duration) error {
	if f.unavailable {
		return errServiceDown
	}
	f.events = append(f.events, "type("+text+")")
	return nil
}

func (f *fakeService) PressKey(ctx context.Context, key string) error {
	if f.unavailable {
		return errServiceDown
	}
	f.events = append(f.events, "key("+key+")")
	return nil
}

// fakeLocator resolves every description to a fixed point, or fails.
type fakeLocator struct {
	pt       image.Point
	err      error
	requests []string
}

func (f *fakeLocator) Locate(ctx context.Context, description string, shot *schemas.Screenshot) (image.Point, error) {
	f.requests = append(f.requests, description)
	if f.err != nil {
		return image.Point{}, f.err
	}
	return f.pt, nil
}

func testInputConfig() config.InputConfig {
	return config.InputConfig{
		JitterPx:     3,
		TypeInterval: 30 * time.Millisecond,
		FocusDelay:   300 * time.Millisecond,
		MoveDuration: 200 * time.Millisecond,
	}
}

// newTestExecutor wires an executor with instant sleeps, a fixed RNG
// seed, and recorded sleep durations.
func newTestExecutor(t *testing.T, injector Injector, service ServiceActions, locator Locator) (*Executor, *[]time.Duration) {
	t.Helper()
	e := NewExecutor(testInputConfig(), injector, service, locator, zaptest.NewLogger(t))
	e.rng = rand.New(rand.NewSource(1))

	sleeps := &[]time.Duration{}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return ctx.Err()
	}
	return e, sleeps
}

func ptr(p image.Point) *image.Point { return &p }

func TestExecute_UnknownActionType(t *testing.T) {
	inj := &fakeInjector{}
	e, _ := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{Kind: "scroll"}, nil, nil)

	assert.False(t, result.OK)
	assert.Equal(t, schemas.ErrCodeUnknownAction, result.ErrorCode)
	assert.Empty(t, inj.events)
}

func TestClick_RoutesThroughServiceFirst(t *testing.T) {
	inj := &fakeInjector{}
	svc := &fakeService{}
	e, _ := newTestExecutor(t, inj, svc, nil)

	result := e.Execute(context.Background(), schemas.Decision{Kind: schemas.ActionClick}, ptr(image.Pt(500, 400)), nil)

	require.True(t, result.OK, result.Detail)
	require.Len(t, svc.events, 1)
	assert.Empty(t, inj.events, "direct injection must not run when the service succeeds")

	// The routed click carries the jittered coordinates.
	var x, y int
	_, err := fmt.Sscanf(svc.events[0], "click(%d,%d)", &x, &y)
	require.NoError(t, err)
	assert.InDelta(t, 500, x, 3)
	assert.InDelta(t, 400, y, 3)
}

func TestClick_FallsBackWhenServiceUnavailable(t *testing.T) {
	inj := &fakeInjector{}
	svc := &fakeService{unavailable: true}
	e, _ := newTestExecutor(t, inj, svc, nil)

	result := e.Execute(context.Background(), schemas.Decision{Kind: schemas.ActionClick}, ptr(image.Pt(500, 400)), nil)

	require.True(t, result.OK, result.Detail)
	assert.Empty(t, svc.events)
	require.Len(t, inj.events, 1)
	assert.Contains(t, inj.events[0], "click(")
}

func TestClick_ResolvesTargetByDescription(t *testing.T) {
	inj := &fakeInjector{}
	loc := &fakeLocator{pt: image.Pt(320, 240)}
	e, _ := newTestExecutor(t, inj, nil, loc)

	shot := &schemas.Screenshot{Width: 1920, Height: 1080}
	result := e.Execute(context.Background(), schemas.Decision{
		Kind:        schemas.ActionClick,
		Description: "the Submit button",
	}, nil, shot)

	require.True(t, result.OK, result.Detail)
	assert.Equal(t, []string{"the Submit button"}, loc.requests)
	require.Len(t, inj.events, 1)

	var x, y int
	_, err := fmt.Sscanf(inj.events[0], "click(%d,%d)", &x, &y)
	require.NoError(t, err)
	assert.InDelta(t, 320, x, 3)
	assert.InDelta(t, 240, y, 3)
}

func TestClick_NoTargetAndNoDescription(t *testing.T) {
	inj := &fakeInjector{}
	e, _ := newTestExecutor(t, inj, nil, &fakeLocator{})

	result := e.Execute(context.Background(), schemas.Decision{Kind: schemas.ActionClick}, nil, nil)

	assert.False(t, result.OK)
	assert.Equal(t, schemas.ErrCodeTargetNotResolved, result.ErrorCode)
	assert.Empty(t, inj.events)
}

func TestClick_InjectionFailureSurfaces(t *testing.T) {
	inj := &fakeInjector{clickErr: errors.New("event tap rejected")}
	e, _ := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{Kind: schemas.ActionClick}, ptr(image.Pt(10, 10)), nil)

	assert.False(t, result.OK)
	assert.Equal(t, schemas.ErrCodeInjectionFailure, result.ErrorCode)
	assert.Contains(t, result.Detail, "event tap rejected")
}

func TestType_ClicksProvidedPointBeforeTyping(t *testing.T) {
	inj := &fakeInjector{}
	e, sleeps := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{
		Kind: schemas.ActionTypeText,
		Text: "hello world",
	}, ptr(image.Pt(100, 200)), nil)

	require.True(t, result.OK, result.Detail)
	// The focus click lands exactly on the field (no jitter) and strictly
	// precedes the text injection.
	require.Equal(t, []string{"click(100,200)", "type(hello world)"}, inj.events)
	assert.Contains(t, *sleeps, 300*time.Millisecond, "focus delay must elapse between click and typing")
}

func TestType_ResolvesFieldByDescription(t *testing.T) {
	inj := &fakeInjector{}
	loc := &fakeLocator{pt: image.Pt(40, 50)}
	e, _ := newTestExecutor(t, inj, nil, loc)

	result := e.Execute(context.Background(), schemas.Decision{
		Kind:        schemas.ActionTypeText,
		Description: "the search field",
		Text:        "golang",
	}, nil, nil)

	require.True(t, result.OK, result.Detail)
	assert.Equal(t, []string{"the search field"}, loc.requests)
	assert.Equal(t, []string{"click(40,50)", "type(golang)"}, inj.events)
}

func TestType_UnresolvableDescriptionDoesNotInject(t *testing.T) {
	inj := &fakeInjector{}
	loc := &fakeLocator{err: errors.New("detection exhausted")}
	e, _ := newTestExecutor(t, inj, nil, loc)

	result := e.Execute(context.Background(), schemas.Decision{
		Kind:        schemas.ActionTypeText,
		Description: "a field that does not exist",
		Text:        "must never appear",
	}, nil, nil)

	assert.False(t, result.OK)
	assert.Equal(t, schemas.ErrCodeTargetNotResolved, result.ErrorCode)
	assert.Empty(t, inj.events, "no text may be injected when the field cannot be located")
}

func TestType_NoTextPayload(t *testing.T) {
	inj := &fakeInjector{}
	e, _ := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{Kind: schemas.ActionTypeText}, ptr(image.Pt(1, 1)), nil)

	assert.False(t, result.OK)
	assert.Equal(t, schemas.ErrCodeInvalidParameters, result.ErrorCode)
	assert.Empty(t, inj.events)
}

func TestType_NoTargetTypesIntoCurrentFocus(t *testing.T) {
	inj := &fakeInjector{}
	e, _ := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{
		Kind: schemas.ActionTypeText,
		Text: "plain",
	}, nil, nil)

	require.True(t, result.OK, result.Detail)
	assert.Equal(t, []string{"type(plain)"}, inj.events)
}

func TestPressKey_NormalizesBeforeDispatch(t *testing.T) {
	inj := &fakeInjector{}
	e, _ := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{
		Kind: schemas.ActionPressKey,
		Key:  "Return",
	}, nil, nil)

	require.True(t, result.OK, result.Detail)
	assert.Equal(t, []string{"key(enter)"}, inj.events)
	assert.Contains(t, result.Detail, "enter")
}

func TestPressKey_ServiceFallback(t *testing.T) {
	inj := &fakeInjector{}
	svc := &fakeService{unavailable: true}
	e, _ := newTestExecutor(t, inj, svc, nil)

	result := e.Execute(context.Background(), schemas.Decision{
		Kind: schemas.ActionPressKey,
		Key:  "escape",
	}, nil, nil)

	require.True(t, result.OK, result.Detail)
	assert.Equal(t, []string{"key(esc)"}, inj.events)
}

func TestPressKey_MissingKey(t *testing.T) {
	inj := &fakeInjector{}
	e, _ := newTestExecutor(t, inj, nil, nil)

	result := e.Execute(context.Background(), schemas.Decision{Kind: schemas.ActionPressKey}, nil, nil)

	assert.False(t, result.OK)
	assert.Equal(t, schemas.ErrCodeInvalidParameters, result.ErrorCode)
}

func TestApplyJitter_StaysWithinBoundsAndRadius(t *testing.T) {
	e, _ := newTestExecutor(t, &fakeInjector{}, nil, nil)

	moved := false
	for i := 0; i < 200; i++ {
		pt := e.applyJitter(image.Pt(500, 400))
		assert.InDelta(t, 500, pt.X, 3)
		assert.InDelta(t, 400, pt.Y, 3)
		if pt.X != 500 || pt.Y != 400 {
			moved = true
		}
	}
	assert.True(t, moved, "jitter must actually perturb some clicks")

	// Near the screen edges the jittered point clamps into the display.
	for i := 0; i < 200; i++ {
		origin := e.applyJitter(image.Pt(0, 0))
		assert.GreaterOrEqual(t, origin.X, 0)
		assert.GreaterOrEqual(t, origin.Y, 0)

		corner := e.applyJitter(image.Pt(1919, 1079))
		assert.LessOrEqual(t, corner.X, 1919)
		assert.LessOrEqual(t, corner.Y, 1079)
	}
}

func TestApplyJitter_DisabledLeavesPointUntouched(t *testing.T) {
	cfg := testInputConfig()
	cfg.JitterPx = 0
	e := NewExecutor(cfg, &fakeInjector{}, nil, nil, zaptest.NewLogger(t))

	assert.Equal(t, image.Pt(500, 400), e.applyJitter(image.Pt(500, 400)))
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"enter", "enter"},
		{"Return", "enter"},
		{"ESCAPE", "esc"},
		{"esc", "esc"},
		{"Spacebar", "space"},
		{"ArrowUp", "up"},
		{"arrow_down", "down"},
		{" Tab ", "tab"},
		{"Del", "delete"},
		{"Command", "cmd"},
		{"win", "cmd"},
		{"Control", "ctrl"},
		{"option", "alt"},
		{"F5", "f5"},
		{"q", "q"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeKey(tc.in))
		})
	}
}
