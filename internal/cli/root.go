// Package cli holds the dashboard's cobra command tree.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/truthinlistings/dashboard/internal/app"
	"github.com/truthinlistings/dashboard/internal/logging"
)

// flagKeys maps command-line flags to config keys. Only flags a command
// actually defines are bound.
var flagKeys = map[string]string{
	"api-base-url": "api_base_url",
	"log-level":    "log_level",
	"listen":       "listen_addr",
	"no-pdf":       "pdf_enabled",
}

type rootOptions struct {
	configFile string
	envFiles   []string
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dashboard",
		Short:         "TruthInListings fraud-detection dashboard",
		Long:          "Server-rendered dashboard for the TruthInListings fraud analysis API, with terminal tools for health checks and browsing saved analyses.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (YAML, TOML or JSON)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	root.PersistentFlags().String("api-base-url", "", "fraud API base URL (overrides TIL_API_BASE_URL)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(opts),
		newHealthCommand(opts),
		newHistoryCommand(opts),
		newMockAPICommand(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) load(cmd *cobra.Command) (*app.Config, error) {
	return app.Load(app.LoadOptions{
		ConfigFile: o.configFile,
		EnvFiles:   o.envFiles,
		Bind: func(v *viper.Viper) error {
			for flag, key := range flagKeys {
				f := cmd.Flags().Lookup(flag)
				if f == nil || !f.Changed {
					continue
				}
				if flag == "no-pdf" {
					off, err := cmd.Flags().GetBool(flag)
					if err != nil {
						return err
					}
					v.Set(key, !off)
					continue
				}
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

func newLogger(w io.Writer, cfg *app.Config) logging.Logger {
	return logging.NewLogger(w, "dashboard", logging.ParseLevel(cfg.LogLevel))
}
