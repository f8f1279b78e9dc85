// internal/agent/errors.go
package agent

import "fmt"

// DetectionError is returned when element lookup exhausts its retry
// budget without producing usable coordinates. It is fatal to the action
// that required it, not necessarily to the whole task; the caller
// decides.
type DetectionError struct {
	Description string // What the lookup was asked to find.
	Attempts    int    // How many model calls were made.
	Err         error  // The last underlying failure.
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	return fmt.Sprintf("could not locate %q after %d attempts: %v", e.Description, e.Attempts, e.Err)
}

// Unwrap exposes the last underlying failure for errors.Is/As.
func (e *DetectionError) Unwrap() error {
	return e.Err
}
