package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/keymetrics/internal/app"
	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/storage"
	"github.com/bobmcallan/keymetrics/internal/storage/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the fact store schema",
		Long: `migrate applies the embedded SQL migrations when the postgres driver is
configured. The SurrealDB driver defines its tables and unique indexes when
the store is opened, so migrate simply opens and closes it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := app.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			logger := common.NewLoggerFromConfig(config.Logging)

			switch config.Storage.Driver {
			case storage.DriverPostgres:
				if err := postgres.Migrate(config.Storage.Postgres.URL); err != nil {
					return err
				}
			case storage.DriverMemory:
				return fmt.Errorf("the memory driver has no schema to migrate")
			default:
				store, err := storage.NewFactStore(cmd.Context(), logger, config.Storage)
				if err != nil {
					return err
				}
				store.Close()
			}

			logger.Info().Str("driver", config.Storage.Driver).Msg("Schema up to date")
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
