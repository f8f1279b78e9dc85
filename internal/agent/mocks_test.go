package agent

import (
	"context"
	"image"
	"sync"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// fakeCapturer hands out a fixed frame, or fails.
type fakeCapturer struct {
	shot     *schemas.Screenshot
	err      error
	captures int
}

func (f *fakeCapturer) Name() string { return "fake" }

func (f *fakeCapturer) Capture(ctx context.Context) (*schemas.Screenshot, error) {
	f.captures++
	if f.err != nil {
		return nil, f.err
	}
	return f.shot, nil
}

// scriptedLLM replays a fixed sequence of responses. After the script
// runs out it keeps returning the last entry, so "always the same
// answer" scenarios need only one line.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []schemas.GenerationRequest
}

func (s *scriptedLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// executedAction is one call the fakeExecutor received.
type executedAction struct {
	decision schemas.Decision
	target   *image.Point
}

// fakeExecutor records dispatched decisions and returns a scripted
// result (success by default).
type fakeExecutor struct {
	actions []executedAction
	result  *schemas.ExecutionResult
}

func (f *fakeExecutor) Execute(ctx context.Context, decision schemas.Decision, target *image.Point, shot *schemas.Screenshot) schemas.ExecutionResult {
	f.actions = append(f.actions, executedAction{decision: decision, target: target})
	if f.result != nil {
		return *f.result
	}
	return schemas.Success("ok")
}

func testShot() *schemas.Screenshot {
	return &schemas.Screenshot{PNG: []byte("not-a-real-png"), Width: 1920, Height: 1080}
}
