package schemas

// Wire types for the privileged GUI service, a long-lived loopback HTTP
// daemon that performs capture and input injection from a process that
// actually holds the screen-recording/accessibility entitlements. Every
// response carries Success; callers treat a non-200 status or
// Success=false identically (the service is "unavailable" and they fall
// back to direct injection).

// PointRequest addresses a single device pixel. Used by /move and /click.
type PointRequest struct {
	X int `json:"x"` // Device pixel column in the logical input space.
	Y int `json:"y"` // Device pixel row in the logical input space.
}

// TypeRequest injects text character-by-character. Interval is the delay
// between characters in seconds, matching the wire contract of the
// original service; zero means the server default.
type TypeRequest struct {
	Text     string  `json:"text"`
	Interval float64 `json:"interval,omitempty"`
}

// KeyRequest sends one named key event. The key name is already
// normalized by the caller (enter, esc, tab, ...).
type KeyRequest struct {
	Key string `json:"key"`
}

// ServiceResponse is the uniform response envelope for every service
// endpoint. Endpoint-specific fields are zero-valued when not applicable.
type ServiceResponse struct {
	Success bool   `json:"success"`           // False on any failure; Error carries the reason.
	Error   string `json:"error,omitempty"`   // Failure detail, empty on success.
	Status  string `json:"status,omitempty"`  // Health state, "ok" when the daemon is serving.
	Version string `json:"version,omitempty"` // Daemon build version, reported by /health.
	Image   string `json:"image,omitempty"`   // Base64-encoded PNG, /screenshot only.
	Width   int    `json:"width,omitempty"`   // Captured image width in pixels.
	Height  int    `json:"height,omitempty"`  // Captured image height in pixels.
	Format  string `json:"format,omitempty"`  // Image encoding, always "png".
}
