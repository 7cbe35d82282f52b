package main

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bobmcallan/keymetrics/internal/app"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "keymetrics",
		Short: "keymetrics fetches financial statements and derives valuation ratios",
		Long: `keymetrics keeps a local fact store of income statements, balance sheets
and cash flow statements fetched from Financial Modeling Prep, and derives
valuation and leverage ratios (P/E, forward P/E, PEG, P/B, D/E, ROE) from them.

Statements are cached for 90 days from their report date, derived metrics for
24 hours. When the upstream provider is unavailable cached data is served,
however stale.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $KEYMETRICS_CONFIG or config/keymetrics.toml)")

	root.AddCommand(
		newMetricsCmd(opts),
		newStatementsCmd(opts),
		newToolsCmd(opts),
		newCallCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, opts *rootOptions, fn func(a *app.App) error) error {
	a, err := app.NewApp(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
