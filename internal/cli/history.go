package cli

import (
	"github.com/spf13/cobra"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/tui"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Browse saved analyses in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			// The terminal belongs to the UI; logging would corrupt it.
			client, err := apiclient.New(cfg.APIConfig(), nil, logging.Nop{})
			if err != nil {
				return err
			}
			defer client.Close()
			return tui.Run(cmd.Context(), client, logging.Nop{})
		},
	}
}
