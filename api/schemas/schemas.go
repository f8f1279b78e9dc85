package schemas

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// ActionKind enumerates the concrete input actions the planner can request.
// This provides a structured vocabulary for everything the executor knows
// how to perform against the real input subsystem.
type ActionKind string

const (
	ActionClick    ActionKind = "click"     // Move the pointer to a target and click it.
	ActionTypeText ActionKind = "type"      // Focus a field and inject text character by character.
	ActionPressKey ActionKind = "press_key" // Send a single named key event (enter, esc, tab, ...).
)

// Valid reports whether the kind is one the executor can dispatch.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionClick, ActionTypeText, ActionPressKey:
		return true
	}
	return false
}

// NormalizedPoint is a screen position on the model's fixed 0-1000 grid,
// relative to the screenshot the model was shown, not the physical display.
// The wire order is [y, x] — that is the convention vision models use for
// point annotations, and it is preserved here to keep the JSON contract
// unambiguous.
type NormalizedPoint struct {
	Y float64 // Vertical position, 0 (top) to 1000 (bottom).
	X float64 // Horizontal position, 0 (left) to 1000 (right).
}

// InRange reports whether both components lie inside the inclusive
// [0, 1000] grid. Values outside the grid must never reach the geometry
// pipeline unclamped.
func (p NormalizedPoint) InRange() bool {
	return p.Y >= 0 && p.Y <= 1000 && p.X >= 0 && p.X <= 1000
}

// UnmarshalJSON decodes the model's two-element [y, x] array form.
func (p *NormalizedPoint) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point must be a [y, x] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("point must have exactly two elements, got %d", len(pair))
	}
	p.Y, p.X = pair[0], pair[1]
	return nil
}

// MarshalJSON emits the canonical [y, x] array form.
func (p NormalizedPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Y, p.X})
}

// Decision is the parsed outcome of one planning call, coerced into a fixed
// shape as early as possible so the regex/parsing mess never leaks into the
// execution logic. When Complete is true the action fields are irrelevant
// and ignored. When Complete is false, a click needs Point (or a
// Description the detector can resolve), a type needs Text, and a press_key
// needs Key.
type Decision struct {
	Complete    bool             `json:"complete"`        // True when the model judges the goal achieved.
	Kind        ActionKind       `json:"action_type"`     // Which input action to perform next.
	Description string           `json:"action"`          // Human-readable description of the action/target.
	Point       *NormalizedPoint `json:"point,omitempty"` // Target on the 0-1000 grid, when the model supplied one.
	Text        string           `json:"text,omitempty"`  // Payload for type actions.
	Key         string           `json:"key,omitempty"`   // Key name for press_key actions.
}

// Screenshot is a still image of the display plus its pixel dimensions.
// It is captured fresh before every decision step and discarded after the
// step that produced it; nothing in the core persists it.
type Screenshot struct {
	PNG    []byte // PNG-encoded image bytes, ready for the vision request.
	Width  int    // Raster width in pixels.
	Height int    // Raster height in pixels.
}

// ErrorCode is a string type used for structured error reporting from the
// action executor. Using a custom type keeps free-form strings out of the
// places the loop switches on.
type ErrorCode string

const (
	// -- General execution errors --
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"

	// -- Target resolution errors --
	// ErrCodeTargetNotResolved indicates the action had neither usable
	// coordinates nor a description the detector could locate.
	ErrCodeTargetNotResolved ErrorCode = "TARGET_NOT_RESOLVED"

	// -- Injection errors --
	ErrCodeInjectionFailure ErrorCode = "INJECTION_FAILURE"
)

// ExecutionResult is the standardized outcome of dispatching one Decision
// to the input subsystem. The loop only branches on OK; ErrorCode and
// Detail exist for logs and the task's final reason string.
type ExecutionResult struct {
	OK        bool      `json:"ok"`                   // True when the input event was delivered.
	ErrorCode ErrorCode `json:"error_code,omitempty"` // Structured failure class, empty on success.
	Detail    string    `json:"detail,omitempty"`     // Human-readable context for the outcome.
}

// Failure builds a non-ok result with the given code and formatted detail.
func Failure(code ErrorCode, format string, args ...interface{}) ExecutionResult {
	return ExecutionResult{OK: false, ErrorCode: code, Detail: fmt.Sprintf(format, args...)}
}

// Success builds an ok result with optional formatted detail.
func Success(format string, args ...interface{}) ExecutionResult {
	return ExecutionResult{OK: true, Detail: fmt.Sprintf(format, args...)}
}
