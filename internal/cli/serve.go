package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/truthinlistings/dashboard/internal/app"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/server"
)

const shutdownGrace = 15 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cmd.OutOrStdout(), cfg))
		},
	}
	cmd.Flags().String("listen", "", "listen address (default :8080)")
	cmd.Flags().Bool("no-pdf", false, "disable PDF export")
	return cmd
}

func serve(ctx context.Context, cfg *app.Config, logger logging.Logger) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{App: a})
	if err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	hs := srv.HTTPServer()

	errc := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", logging.Field{Key: "addr", Value: hs.Addr})
		errc <- hs.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", logging.Err(err))
	}
	return errors.Join(serveErr, a.Shutdown(shutdownCtx))
}
