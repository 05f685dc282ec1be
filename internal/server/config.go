package server

import (
	"github.com/truthinlistings/dashboard/internal/app"
	"github.com/truthinlistings/dashboard/internal/logging"
)

// Config configures the HTTP/WebSocket server.
type Config struct {
	ListenAddr string
	// App holds the backend client, sessions and PDF renderer. Required.
	App    *app.Application
	Logger logging.Logger
}
