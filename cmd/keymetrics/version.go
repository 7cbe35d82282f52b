package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/keymetrics/internal/common"
)

func newVersionCmd() *cobra.Command {
	var (
		short  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			common.LoadVersionFromFile()
			info := common.CurrentVersion()
			switch {
			case short:
				fmt.Fprintln(cmd.OutOrStdout(), info.Version)
				return nil
			case asJSON:
				return writeJSON(cmd.OutOrStdout(), info)
			}
			common.PrintBanner(cmd.ErrOrStderr(), common.NewDefaultConfig(), common.NewSilentLogger())
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "only print version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version info as JSON")
	return cmd
}
