// internal/agent/guard.go
package agent

import (
	"image"
	"strings"

	"go.uber.org/zap"
)

// Loop detection thresholds. All windows are measured over executed
// actions, case-insensitively.
const (
	// guardDepth is how many executed actions the guard remembers.
	guardDepth = 5
	// repeatWindow: an action matching any of the last 2 is a soft
	// repetition signal that injects a warning into the next prompt.
	repeatWindow = 2
	// tightLoopRun: this many identical actions in a row aborts the task.
	tightLoopRun = 3
	// coordWindow and coordRadiusPx define the coordinate-repeat signal:
	// a target within the radius (both axes) of any of the last
	// coordWindow points earns a longer settle delay, not an abort.
	coordWindow   = 3
	coordRadiusPx = 50
	// loopWarnThreshold and loopFailThreshold act on the rolling counter
	// of consecutive looping planning cycles: the first injects a
	// "verify completion" hint, the second forces task failure.
	loopWarnThreshold = 3
	loopFailThreshold = 4
)

// guardRecord is one executed action: its lowercased description and the
// pixel coordinates used, when any were.
type guardRecord struct {
	desc  string
	point *image.Point
}

// Assessment is the guard's verdict on one proposed action.
type Assessment struct {
	// TightLoop means the last tightLoopRun executed actions were
	// identical; the task must abort as stuck before acting again.
	TightLoop bool
	// Repeat means the proposed action matches one of the last
	// repeatWindow executed actions. A warning, not an abort.
	Repeat bool
	// LoopCount is the rolling count of consecutive looping cycles after
	// this assessment.
	LoopCount int
}

// Guard watches the recent action stream for the agent repeating itself.
// It is created fresh for every task execution and is not safe for
// concurrent use; the loop is strictly sequential.
type Guard struct {
	records   []guardRecord
	loopCount int
	lastSeen  Assessment
	logger    *zap.Logger
}

// NewGuard creates an empty guard.
func NewGuard(logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{logger: logger.Named("guard")}
}

// Assess evaluates a proposed action against the recorded history and
// advances the rolling loop counter: it increments on cycles where the
// last tightLoopRun recorded actions are identical and resets otherwise.
// The tight-loop abort fires on the first such cycle, so the counter's
// hard ceiling is a backstop behind it.
func (g *Guard) Assess(description string) Assessment {
	a := Assessment{
		TightLoop: g.identicalRun(tightLoopRun),
		Repeat:    g.matchesRecent(normalizeAction(description), repeatWindow),
	}
	if a.TightLoop {
		g.loopCount++
	} else {
		g.loopCount = 0
	}
	a.LoopCount = g.loopCount
	g.lastSeen = a

	if a.TightLoop {
		g.logger.Warn("Tight loop detected",
			zap.String("action", description),
			zap.Int("loop_count", a.LoopCount))
	} else if a.Repeat {
		g.logger.Info("Repeated action detected",
			zap.String("action", description))
	}
	return a
}

// Record appends an executed action to the history, dropping the oldest
// entry beyond guardDepth. point may be nil when the action ran without
// resolved coordinates.
func (g *Guard) Record(description string, point *image.Point) {
	g.records = append(g.records, guardRecord{desc: normalizeAction(description), point: point})
	if len(g.records) > guardDepth {
		g.records = g.records[len(g.records)-guardDepth:]
	}
}

// NearRecent reports whether the target lies within coordRadiusPx on
// both axes of any of the last coordWindow recorded coordinates. This is
// the soft signal for "clicking the same spot again": the loop gives the
// UI extra settle time before acting.
func (g *Guard) NearRecent(target image.Point) bool {
	seen := 0
	for i := len(g.records) - 1; i >= 0 && seen < coordWindow; i-- {
		pt := g.records[i].point
		if pt == nil {
			continue
		}
		seen++
		if abs(target.X-pt.X) <= coordRadiusPx && abs(target.Y-pt.Y) <= coordRadiusPx {
			g.logger.Debug("Target is near recently used coordinates",
				zap.Int("x", target.X), zap.Int("y", target.Y),
				zap.Int("recent_x", pt.X), zap.Int("recent_y", pt.Y))
			return true
		}
	}
	return false
}

// Last returns the most recent assessment, for the prompt builder.
func (g *Guard) Last() Assessment {
	return g.lastSeen
}

// identicalRun reports whether the last n recorded actions exist and are
// all identical.
func (g *Guard) identicalRun(n int) bool {
	if len(g.records) < n {
		return false
	}
	tail := g.records[len(g.records)-n:]
	for _, r := range tail[1:] {
		if r.desc != tail[0].desc {
			return false
		}
	}
	return true
}

// matchesRecent reports whether desc equals any of the last n recorded
// actions.
func (g *Guard) matchesRecent(desc string, n int) bool {
	if desc == "" {
		return false
	}
	start := len(g.records) - n
	if start < 0 {
		start = 0
	}
	for _, r := range g.records[start:] {
		if r.desc == desc {
			return true
		}
	}
	return false
}

func normalizeAction(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
