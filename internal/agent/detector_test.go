package agent

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/marionette/internal/parse"
	"github.com/xkilldash9x/marionette/internal/screen"
)

func newTestDetector(t *testing.T, capture *fakeCapturer, llm *scriptedLLM) *Detector {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewDetector(capture, llm, parse.NewParser(logger),
		screen.NewMapper(1920, 1080, logger), nil, logger)
}

func TestLocate_ReturnsMappedPixelCoordinates(t *testing.T) {
	capture := &fakeCapturer{shot: testShot()}
	llm := &scriptedLLM{responses: []string{`{"point": [300, 700]}`}}
	d := newTestDetector(t, capture, llm)

	pt, err := d.Locate(context.Background(), "the Save button", testShot())

	require.NoError(t, err)
	assert.Equal(t, image.Pt(1344, 324), pt)
	assert.Equal(t, 0, capture.captures, "a supplied screenshot must be reused, not recaptured")
	assert.Equal(t, 1, llm.calls())
}

func TestLocate_CapturesWhenNoScreenshotSupplied(t *testing.T) {
	capture := &fakeCapturer{shot: testShot()}
	llm := &scriptedLLM{responses: []string{`{"point": [500, 500]}`}}
	d := newTestDetector(t, capture, llm)

	pt, err := d.Locate(context.Background(), "the menu", nil)

	require.NoError(t, err)
	assert.Equal(t, image.Pt(960, 540), pt)
	assert.Equal(t, 1, capture.captures)
}

func TestLocate_RetriesOnOutOfRangePoint(t *testing.T) {
	capture := &fakeCapturer{shot: testShot()}
	llm := &scriptedLLM{responses: []string{
		`{"point": [1200, 500]}`, // off the 0-1000 grid: retried, never clamped
		`{"point": [500, 500]}`,
	}}
	d := newTestDetector(t, capture, llm)

	pt, err := d.Locate(context.Background(), "the footer link", nil)

	require.NoError(t, err)
	assert.Equal(t, image.Pt(960, 540), pt)
	assert.Equal(t, 2, llm.calls())
}

func TestLocate_ExhaustsRetryBudget(t *testing.T) {
	capture := &fakeCapturer{shot: testShot()}
	llm := &scriptedLLM{responses: []string{"there is no such element on this screen"}}
	d := newTestDetector(t, capture, llm)

	_, err := d.Locate(context.Background(), "a unicorn", nil)

	var detErr *DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, "a unicorn", detErr.Description)
	assert.Equal(t, 1+detectionRetries, detErr.Attempts)
	assert.Equal(t, 1+detectionRetries, llm.calls())
}

func TestLocate_ModelErrorsCountAgainstBudget(t *testing.T) {
	transport := errors.New("upstream 503")
	capture := &fakeCapturer{shot: testShot()}
	llm := &scriptedLLM{errs: []error{transport, transport, transport}}
	d := newTestDetector(t, capture, llm)

	_, err := d.Locate(context.Background(), "anything", nil)

	var detErr *DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.ErrorIs(t, err, transport)
}

func TestLocate_CaptureFailureFailsBeforeAnyModelCall(t *testing.T) {
	capture := &fakeCapturer{err: errors.New("screen recording denied")}
	llm := &scriptedLLM{}
	d := newTestDetector(t, capture, llm)

	_, err := d.Locate(context.Background(), "anything", nil)

	var detErr *DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, 0, detErr.Attempts)
	assert.Equal(t, 0, llm.calls())
}
