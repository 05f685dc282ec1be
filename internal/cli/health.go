package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/truthinlistings/dashboard/internal/apiclient"
)

// healthProbe is one endpoint the health command checks.
type healthProbe struct {
	Name string
	Path string
	call func(context.Context) (*apiclient.HealthReport, error)
}

// probeResult is what --raw prints per probe.
type probeResult struct {
	Endpoint string
	Status   int
	Body     any
	Error    string
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the fraud API's health endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			client, err := apiclient.New(cfg.APIConfig(), nil, newLogger(cmd.ErrOrStderr(), cfg))
			if err != nil {
				return err
			}
			defer client.Close()

			probes := []healthProbe{
				{"liveness", "/", client.Health},
				{"health", "/health", client.DetailedHealth},
				{"analysis", "/api/analyze/status", client.AnalysisStatus},
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fraud API at %s\n", client.BaseURL())
			failed := runProbes(cmd.Context(), cmd.OutOrStdout(), probes, raw)
			if failed > 0 {
				return fmt.Errorf("%d of %d health checks failed", failed, len(probes))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "pretty-print the full response bodies")
	return cmd
}

func runProbes(ctx context.Context, w io.Writer, probes []healthProbe, raw bool) int {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	muted := color.New(color.Faint)

	failed := 0
	for _, p := range probes {
		rep, err := p.call(ctx)
		res := probeResult{Endpoint: p.Path}
		if err != nil {
			failed++
			res.Error = apiclient.UserMessage(err)
			bad.Fprint(w, "  FAIL ")
			fmt.Fprintf(w, "%-9s %s\n", p.Name, res.Error)
		} else {
			res.Status = rep.Status
			_ = json.Unmarshal(rep.Body, &res.Body)
			ok.Fprint(w, "  OK   ")
			fmt.Fprintf(w, "%-9s ", p.Name)
			muted.Fprintf(w, "HTTP %d %s\n", rep.Status, string(rep.Body))
		}
		if raw {
			pp.Fprintln(w, res)
		}
	}
	return failed
}
