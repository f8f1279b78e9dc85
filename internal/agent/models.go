// internal/agent/models.go
package agent

import "time"

// TaskState represents where one task execution sits in its lifecycle.
// RUNNING is the only non-terminal state; the loop transitions out of it
// exactly once and terminal states are sticky.
type TaskState string

const (
	StateRunning         TaskState = "RUNNING"           // The loop is capturing, planning and acting.
	StateComplete        TaskState = "COMPLETE"          // The model judged the goal achieved.
	StateFailed          TaskState = "FAILED"            // A step-level error or loop detection ended the task.
	StateMaxStepsReached TaskState = "MAX_STEPS_REACHED" // The step budget ran out before completion.
)

// Terminal reports whether the state ends the task.
func (s TaskState) Terminal() bool {
	return s != StateRunning
}

// TaskStatus is the user-visible outcome reported to whoever submitted
// the goal: completed, failed, or error.
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed" // The goal was achieved.
	StatusFailed    TaskStatus = "failed"    // The task ended without achieving the goal.
	StatusError     TaskStatus = "error"     // The task was aborted by cancellation or an internal fault.
)

// Human-readable failure reasons. These are the strings surfaced to the
// caller, so they stay short and stable.
const (
	ReasonMaxSteps      = "max steps reached"
	ReasonStuckInLoop   = "stuck in loop"
	ReasonCaptureFailed = "capture failed"
	ReasonParseFailed   = "could not parse model response"
	ReasonCancelled     = "task cancelled"
)

// TaskResult is the final outcome of one ExecuteTask call.
type TaskResult struct {
	TaskID   string        `json:"task_id"`           // Unique identifier assigned at task start.
	Goal     string        `json:"goal"`              // The natural-language goal that was executed.
	Status   TaskStatus    `json:"status"`            // completed | failed | error.
	State    TaskState     `json:"state"`             // The terminal loop state behind the status.
	Reason   string        `json:"reason,omitempty"`  // Human-readable explanation for failed/error.
	Steps    int           `json:"steps"`             // How many planning steps actually ran.
	Duration time.Duration `json:"duration"`          // Wall-clock time of the execution.
	Summary  string        `json:"summary,omitempty"` // The model's final action description, when it declared completion.
}
