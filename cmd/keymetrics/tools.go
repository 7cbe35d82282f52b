package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bobmcallan/keymetrics/internal/app"
	"github.com/bobmcallan/keymetrics/internal/common"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the capabilities exposed to the conversational layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := app.Definitions(app.BuildCapabilities(app.ToolDeps{}))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), defs)
			}

			if config, err := app.LoadConfig(opts.configPath); err == nil {
				common.PrintBanner(os.Stderr, config, common.NewLoggerFromConfig(config.Logging))
			}

			w := cmd.OutOrStdout()
			for _, d := range defs {
				fmt.Fprintf(w, "%s\n    %s\n", d.Name, d.Description)
				for _, p := range d.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Fprintf(w, "    --%-12s %-8s %s%s\n", p.Name, p.Type, p.Description, req)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func newCallCmd(opts *rootOptions) *cobra.Command {
	var rawArgs string

	cmd := &cobra.Command{
		Use:   "call <capability>",
		Short: "Invoke a capability with JSON arguments",
		Example: `  keymetrics call get_key_metrics --args '{"ticker": "AAPL", "limit": 5}'
  keymetrics call get_balance_sheets --args '{"ticker": "MSFT", "granularity": "quarter"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs := map[string]any{}
			if strings.TrimSpace(rawArgs) != "" {
				if err := json.Unmarshal([]byte(rawArgs), &callArgs); err != nil {
					return fmt.Errorf("invalid --args JSON: %w", err)
				}
			}

			return withApp(cmd.Context(), opts, func(a *app.App) error {
				c, ok := app.Lookup(a.Capabilities, args[0])
				if !ok {
					return fmt.Errorf("unknown capability %q (see keymetrics tools)", args[0])
				}

				ctx := common.WithCallerContext(cmd.Context(), &common.CallerContext{CallerID: "cli"})
				out, err := c.Invoke(ctx, a.Logger, callArgs)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	cmd.Flags().StringVarP(&rawArgs, "args", "a", "", "capability arguments as a JSON object")
	return cmd
}
