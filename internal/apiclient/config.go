package apiclient

import "time"

// Config is the single externally supplied description of the backend.
type Config struct {
	// BaseURL of the fraud API, without a trailing slash.
	BaseURL string

	// Timeout bounds every request; it is enforced by the transport.
	Timeout time.Duration

	// SaveTimeout bounds a detached history save.
	SaveTimeout time.Duration

	// WithCredentials forwards the dashboard user's cookies to the backend.
	WithCredentials bool

	// APIKey, when set, is sent as X-API-Key.
	APIKey string
}

const (
	DefaultBaseURL     = "http://localhost:8000"
	DefaultTimeout     = 10 * time.Second
	DefaultSaveTimeout = 10 * time.Second
)
