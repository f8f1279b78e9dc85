// Package screen owns everything between the physical display and the
// model: capturing screenshots through a chain of fallback backends and
// translating the model's normalized grid coordinates into device pixels.
package screen

import (
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Mapper converts points on the model's fixed 0-1000 grid into logical
// pixel coordinates the input subsystem can act on. The two spaces rarely
// agree: screenshots are captured in physical pixels while the injector
// addresses logical pixels, and on scaled displays (2x on Retina) the two
// differ by the display scale factor. The mapper owns that translation so
// nothing downstream ever sees a normalized value.
type Mapper struct {
	logicalWidth  int
	logicalHeight int
	logger        *zap.Logger
}

// NewMapper builds a Mapper for the given logical display dimensions,
// normally the screen size reported by the input subsystem.
func NewMapper(logicalWidth, logicalHeight int, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{
		logicalWidth:  logicalWidth,
		logicalHeight: logicalHeight,
		logger:        logger.Named("mapper"),
	}
}

// Map translates a normalized [0,1000] point, expressed relative to a
// captured image of imgWidth x imgHeight pixels, into logical pixel
// coordinates. Out-of-range inputs are clamped and logged, never rejected.
// The result always lies inside [0,logicalWidth-1] x [0,logicalHeight-1],
// and identical inputs always produce identical outputs.
func (m *Mapper) Map(pt schemas.NormalizedPoint, imgWidth, imgHeight int) image.Point {
	normX, normY := pt.X, pt.Y
	if !pt.InRange() {
		m.logger.Warn("Normalized point outside the 0-1000 grid, clamping",
			zap.Float64("y", pt.Y), zap.Float64("x", pt.X))
		normX = math.Max(0, math.Min(1000, normX))
		normY = math.Max(0, math.Min(1000, normY))
	}

	logicalW, logicalH := m.logicalWidth, m.logicalHeight
	if logicalW <= 0 || logicalH <= 0 {
		// Without a usable logical size, treat image pixels as logical
		// pixels (scale factor 1).
		m.logger.Warn("Logical display dimensions unavailable, assuming image dimensions",
			zap.Int("logical_width", logicalW), zap.Int("logical_height", logicalH))
		logicalW, logicalH = imgWidth, imgHeight
	}
	if imgWidth <= 0 || imgHeight <= 0 {
		imgWidth, imgHeight = logicalW, logicalH
	}
	if logicalW <= 0 || logicalH <= 0 {
		m.logger.Warn("No usable display geometry, mapping to origin")
		return image.Point{}
	}

	// Image-space position first, then divide out the physical-to-logical
	// scale factor.
	imgX := normX / 1000.0 * float64(imgWidth)
	imgY := normY / 1000.0 * float64(imgHeight)
	scaleX := float64(imgWidth) / float64(logicalW)
	scaleY := float64(imgHeight) / float64(logicalH)

	px := clampInt(int(imgX/scaleX), 0, logicalW-1)
	py := clampInt(int(imgY/scaleY), 0, logicalH-1)

	m.logger.Debug("Mapped normalized point to device pixels",
		zap.Float64("norm_y", normY),
		zap.Float64("norm_x", normX),
		zap.Int("pixel_x", px),
		zap.Int("pixel_y", py),
		zap.Float64("scale_x", scaleX),
		zap.Float64("scale_y", scaleY))
	return image.Point{X: px, Y: py}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
