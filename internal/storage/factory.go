// Package storage selects the fact store backend from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/storage/memory"
	"github.com/bobmcallan/keymetrics/internal/storage/postgres"
	"github.com/bobmcallan/keymetrics/internal/storage/surrealdb"
)

// Driver constants.
const (
	DriverSurrealDB = "surrealdb"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

// NewFactStore creates a fact store based on the configuration.
// Supported drivers: "surrealdb" (default), "postgres", "memory".
func NewFactStore(ctx context.Context, logger *common.Logger, config common.StorageConfig) (interfaces.FactStore, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverSurrealDB
	}

	switch driver {
	case DriverSurrealDB:
		m, err := surrealdb.NewManager(ctx, logger, config.SurrealDB)
		if err != nil {
			return nil, err
		}
		return m, nil

	case DriverPostgres:
		s, err := postgres.NewStore(ctx, logger, config.Postgres)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverMemory:
		logger.Warn().Msg("Using in-memory fact store; data is lost on exit")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: surrealdb, postgres, memory)", driver)
	}
}
