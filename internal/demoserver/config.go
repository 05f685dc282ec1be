package demoserver

// Config holds configuration for the mock fraud API.
type Config struct {
	// Port is the port on which the mock API listens.
	Port int

	// ModelAccuracy is reported in bulk metrics.
	ModelAccuracy float64

	// SeedHistory pre-populates the history store with sample analyses.
	SeedHistory bool
}

// DefaultConfig returns a Config matching the dashboard's default base URL.
func DefaultConfig() Config {
	return Config{
		Port:          8000,
		ModelAccuracy: 94.2,
		SeedHistory:   true,
	}
}
