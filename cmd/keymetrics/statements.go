package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/keymetrics/internal/app"
	"github.com/bobmcallan/keymetrics/internal/models"
)

func newStatementsCmd(opts *rootOptions) *cobra.Command {
	var (
		statementType string
		granularity   string
		limit         int
		force         bool
		cached        bool
	)

	cmd := &cobra.Command{
		Use:   "statements <ticker>",
		Short: "Fetch and show financial statements for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := models.ParseStatementType(statementType)
			if err != nil {
				return err
			}
			g, err := models.ParseGranularity(granularity)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, func(a *app.App) error {
				ctx, ticker, svc := cmd.Context(), args[0], a.StatementService

				if cached {
					latest, err := svc.GetLatest(ctx, ticker, st, g)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), latest)
				}

				var rows any
				switch st {
				case models.StatementIncome:
					rows, err = svc.GetIncomeStatements(ctx, ticker, g, limit, force)
				case models.StatementBalanceSheet:
					rows, err = svc.GetBalanceSheets(ctx, ticker, g, limit, force)
				case models.StatementCashFlow:
					rows, err = svc.GetCashFlowReport(ctx, ticker, g, limit, force)
				default:
					return fmt.Errorf("unsupported statement type %q", st)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			})
		},
	}

	cmd.Flags().StringVarP(&statementType, "type", "t", "income", "income, balance or cash_flow")
	cmd.Flags().StringVarP(&granularity, "granularity", "g", "annual", "annual or quarter")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "periods to return (0 means the maximum of 12)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "refetch even when cached rows are fresh")
	cmd.Flags().BoolVar(&cached, "cached", false, "show only the newest cached statement, without fetching")
	return cmd
}
