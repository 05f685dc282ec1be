package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/truthinlistings/dashboard/internal/demoserver"
	"github.com/truthinlistings/dashboard/internal/logging"
)

func newMockAPICommand() *cobra.Command {
	cfg := demoserver.DefaultConfig()
	var noSeed bool
	cmd := &cobra.Command{
		Use:   "mockapi",
		Short: "Run an in-memory fraud API for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Port < 1 || cfg.Port > 65535 {
				return fmt.Errorf("invalid port %d", cfg.Port)
			}
			cfg.SeedHistory = !noSeed
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return demoserver.NewDemoServer(cfg, logging.NewLogger(cmd.OutOrStdout(), "mockapi", logging.LevelInfo)).Start(ctx)
		},
	}
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	cmd.Flags().Float64Var(&cfg.ModelAccuracy, "accuracy", cfg.ModelAccuracy, "model accuracy reported in bulk metrics")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "start with an empty history")
	return cmd
}
