// Command mockapi starts an in-memory fraud analysis API for local
// development of the dashboard.
// Usage: go run ./cmd/mockapi [port]
// Default port: 8000
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/truthinlistings/dashboard/internal/demoserver"
	"github.com/truthinlistings/dashboard/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := demoserver.NewDemoServer(cfg, logging.NewStdoutLogger("mockapi"))
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
