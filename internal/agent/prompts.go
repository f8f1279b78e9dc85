// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"
)

// planningSystemPrompt is the fixed instruction set for the planning
// call. The response contract mirrors the Decision shape: completion
// flag, action kind, description, and exactly one resolvable target
// (point, text, or key) per kind.
const planningSystemPrompt = `You are the controller of 'marionette', an autonomous GUI automation agent.
You are shown a screenshot of the current screen and must decide the single next input action that moves the task toward its goal, or declare the task complete.

Respond with exactly one JSON object and nothing else:
{
  "complete": <true when the goal is visibly achieved, else false>,
  "action_type": "<click | type | press_key>",
  "action": "<short description of the action and its target>",
  "point": [y, x],
  "text": "<text to type, for type actions>",
  "key": "<key name, for press_key actions>"
}

Rules:
- "point" is on a fixed 0-1000 grid relative to the screenshot: [0,0] is the top-left corner, [1000,1000] the bottom-right. The order is [y, x].
- For "click", supply "point" when you can see the target; otherwise describe it precisely in "action" so it can be located.
- For "type", supply "text" and, when a specific field must be focused first, its "point" or description.
- For "press_key", supply "key" (enter, esc, tab, ...).
- When "complete" is true, no action fields are needed.
- Judge completion only from what is visible in the screenshot, never from the action history alone.`

// detectionSystemPrompt is the fixed instruction for the single-purpose
// element-lookup call.
const detectionSystemPrompt = `You locate UI elements in screenshots.
You are given a description of one element and a screenshot. Respond with exactly one JSON object of the form {"point": [y, x]} and nothing else, where y and x are on a fixed 0-1000 grid relative to the screenshot: [0,0] is the top-left corner, [1000,1000] the bottom-right.`

// loop warning addenda, appended to the planning prompt when the guard
// has seen repetition.
const (
	repeatWarning = `WARNING: your last action repeats a recent one. The previous attempt may not have had the intended effect. Re-examine the screenshot carefully and choose a different approach if the state has not changed.`

	verifyCompletionHint = `IMPORTANT: you have issued the same action several times in a row without visible progress. Check the screenshot closely: if the goal is already achieved, respond with {"complete": true}. Otherwise you MUST choose a different action.`
)

// buildPlanningPrompt assembles the user prompt for one planning call:
// the goal, the most recent executed actions, and any loop warnings the
// guard asked for.
func buildPlanningPrompt(goal string, history []string, assessment Assessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal)

	if len(history) == 0 {
		b.WriteString("\nNo actions have been executed yet. This is the first step.\n")
	} else {
		b.WriteString("\nActions executed so far (oldest first):\n")
		for i, entry := range history {
			fmt.Fprintf(&b, "%d. %s\n", i+1, entry)
		}
	}

	if assessment.LoopCount >= loopWarnThreshold {
		b.WriteString("\n" + verifyCompletionHint + "\n")
	} else if assessment.Repeat || assessment.TightLoop {
		b.WriteString("\n" + repeatWarning + "\n")
	}

	b.WriteString("\nThe attached screenshot shows the current screen. Decide the next action or declare completion.")
	return b.String()
}

// buildDetectionPrompt assembles the user prompt for one element-lookup
// call.
func buildDetectionPrompt(description string) string {
	return fmt.Sprintf("Locate this element in the attached screenshot: %s", description)
}
