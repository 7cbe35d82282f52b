// Package interfaces defines service contracts for keymetrics
package interfaces

import (
	"context"

	"github.com/bobmcallan/keymetrics/internal/models"
)

// FactTable stores one kind of uniquely keyed fact.
type FactTable[T any] interface {
	// Get returns the row for key, or common.ErrNotFound
	Get(ctx context.Context, key models.RecordKey) (*T, error)

	// Latest returns the row with the newest report date, or common.ErrNotFound
	Latest(ctx context.Context, ticker string, g models.Granularity) (*T, error)

	// List returns up to limit rows, newest report date first
	List(ctx context.Context, ticker string, g models.Granularity, limit int) ([]*T, error)

	// Insert creates a row. A row that already exists for the key yields
	// common.ErrInsertConflict and leaves the stored row untouched.
	Insert(ctx context.Context, rec *T) error

	// Update overwrites an existing row in place, or returns common.ErrNotFound
	Update(ctx context.Context, rec *T) error
}

// EstimateStore holds analyst estimates, replaced wholesale on each fetch.
type EstimateStore interface {
	Replace(ctx context.Context, ticker string, estimates []*models.EstimateRecord) error
	List(ctx context.Context, ticker string) ([]*models.EstimateRecord, error)
}

// FactStore is the single writer of persisted statements and derived metrics.
type FactStore interface {
	IncomeStatements() FactTable[models.IncomeStatement]
	BalanceSheets() FactTable[models.BalanceSheet]
	CashFlows() FactTable[models.CashFlow]
	KeyMetrics() FactTable[models.KeyMetricsRecord]
	Estimates() EstimateStore

	// Close releases the underlying connection
	Close() error
}
