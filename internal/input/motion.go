package input

import (
	"image"
	"math"
	"time"

	"github.com/aquilax/go-perlin"
)

// Perlin noise parameters for pointer drift.
const (
	perlinAlpha     = 2.0
	perlinBeta      = 2.0
	perlinOctaves   = int32(3)
	perlinFrequency = 0.8
	driftAmplitude  = 2.0
)

// pathStep is one intermediate pointer position plus the dwell before the
// next step.
type pathStep struct {
	X, Y  int
	Sleep time.Duration
}

// motionPlanner turns a start/end pair into an eased trajectory with a
// little Perlin drift, so pointer travel does not look like a teleport
// followed by perfectly straight constant-velocity motion.
type motionPlanner struct {
	noiseX, noiseY *perlin.Perlin
}

func newMotionPlanner(seed int64) *motionPlanner {
	return &motionPlanner{
		noiseX: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed),
		noiseY: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed+1),
	}
}

// easeInOutCubic provides a smooth acceleration and deceleration profile.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// plan generates the pointer positions for one move, paced at roughly
// 100Hz over the total duration. The drift fades to zero at both ends of
// the path and the final step is always exactly the target.
func (m *motionPlanner) plan(start, end image.Point, total time.Duration) []pathStep {
	if total <= 0 || start == end {
		return []pathStep{{X: end.X, Y: end.Y}}
	}

	steps := int(total.Seconds() * 100)
	if steps < 2 {
		steps = 2
	}
	interval := total / time.Duration(steps)
	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)

	out := make([]pathStep, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		eased := easeInOutCubic(t)
		fade := math.Sin(math.Pi * t)
		px := float64(start.X) + dx*eased + m.noiseX.Noise1D(t*perlinFrequency)*driftAmplitude*fade
		py := float64(start.Y) + dy*eased + m.noiseY.Noise1D(t*perlinFrequency)*driftAmplitude*fade
		out = append(out, pathStep{
			X:     int(math.Round(px)),
			Y:     int(math.Round(py)),
			Sleep: interval,
		})
	}
	out[len(out)-1] = pathStep{X: end.X, Y: end.Y, Sleep: interval}
	return out
}
