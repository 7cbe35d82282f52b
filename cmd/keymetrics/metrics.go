package main

import (
	"github.com/spf13/cobra"

	"github.com/bobmcallan/keymetrics/internal/app"
)

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	var (
		granularity string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "metrics <ticker>",
		Short: "Derive key metrics for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				result, err := a.MetricsService.GetKeyMetrics(cmd.Context(), args[0], granularity, limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVarP(&granularity, "granularity", "g", "annual", "annual or quarter")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "periods of history (1-20)")
	return cmd
}
