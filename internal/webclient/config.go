package webclient

import "time"

// Config controls the outbound transport used to reach the fraud API.
type Config struct {
	// Timeout bounds a whole round trip. Zero means DefaultTimeout.
	Timeout time.Duration

	// DefaultHeaders are added to every request unless the request sets
	// the same header itself.
	DefaultHeaders map[string]string
}

// DefaultTimeout matches the dashboard's fixed request timeout.
const DefaultTimeout = 10 * time.Second
