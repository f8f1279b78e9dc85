// internal/agent/detector.go
package agent

import (
	"context"
	"image"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/parse"
	"github.com/xkilldash9x/marionette/internal/screen"
)

// detectionRetries is how many extra model calls a lookup gets after the
// first attempt fails to parse or lands outside the normalized grid.
const detectionRetries = 2

// Detector resolves a textual element description to device pixel
// coordinates by asking the fast-tier vision model where the element
// sits on the screenshot. It implements input.Locator.
type Detector struct {
	capture screen.Capturer
	llm     schemas.LLMClient
	parser  *parse.Parser
	mapper  *screen.Mapper
	limiter *rate.Limiter // shared with the planner; nil disables pacing
	logger  *zap.Logger
}

// NewDetector creates a Detector. limiter may be nil.
func NewDetector(capture screen.Capturer, llm schemas.LLMClient, parser *parse.Parser, mapper *screen.Mapper, limiter *rate.Limiter, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		capture: capture,
		llm:     llm,
		parser:  parser,
		mapper:  mapper,
		limiter: limiter,
		logger:  logger.Named("detector"),
	}
}

// Locate finds the element described by description and returns its
// logical pixel coordinates. A nil shot means "capture one now"; a
// supplied shot is reused across retries, since the screen has not
// changed between them. Exhausting the retry budget returns a
// *DetectionError.
func (d *Detector) Locate(ctx context.Context, description string, shot *schemas.Screenshot) (image.Point, error) {
	if shot == nil {
		captured, err := d.capture.Capture(ctx)
		if err != nil {
			return image.Point{}, &DetectionError{Description: description, Attempts: 0, Err: err}
		}
		shot = captured
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= detectionRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return image.Point{}, err
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return image.Point{}, err
			}
		}
		attempts++

		response, err := d.llm.Generate(ctx, schemas.GenerationRequest{
			SystemPrompt: detectionSystemPrompt,
			UserPrompt:   buildDetectionPrompt(description),
			Images:       []schemas.ImageData{{MIMEType: "image/png", Data: shot.PNG}},
			Tier:         schemas.TierFast,
			Options:      schemas.GenerationOptions{ForceJSONFormat: true, Temperature: 0.1},
		})
		if err != nil {
			lastErr = err
			d.logger.Warn("Detection call failed",
				zap.String("description", description),
				zap.Int("attempt", attempts),
				zap.Error(err))
			continue
		}

		// Out-of-range points fail the parse on the point path, which is
		// exactly the case a retry can fix: the model is asked again
		// rather than the bad value being clamped into a wrong location.
		pt, err := d.parser.Point(response)
		if err != nil {
			lastErr = err
			d.logger.Warn("Detection response unusable, retrying",
				zap.String("description", description),
				zap.Int("attempt", attempts),
				zap.Error(err))
			continue
		}

		pixel := d.mapper.Map(pt, shot.Width, shot.Height)
		d.logger.Debug("Element located",
			zap.String("description", description),
			zap.Float64("norm_y", pt.Y), zap.Float64("norm_x", pt.X),
			zap.Int("pixel_x", pixel.X), zap.Int("pixel_y", pixel.Y))
		return pixel, nil
	}

	return image.Point{}, &DetectionError{Description: description, Attempts: attempts, Err: lastErr}
}
