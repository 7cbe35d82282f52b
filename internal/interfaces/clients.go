// Package interfaces defines service contracts for keymetrics
package interfaces

import (
	"context"

	"github.com/bobmcallan/keymetrics/internal/models"
)

// FundamentalsClient provides access to an upstream fundamentals provider.
// Every method returns rows as loosely-typed records keyed by provider field names.
type FundamentalsClient interface {
	// GetStatements retrieves income, balance sheet or cash flow rows, newest first
	GetStatements(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, limit int) ([]models.RawRecord, error)

	// GetKeyMetrics retrieves provider-computed key metrics rows
	GetKeyMetrics(ctx context.Context, ticker string, g models.Granularity, limit int) ([]models.RawRecord, error)

	// GetRatios retrieves provider-computed financial ratio rows
	GetRatios(ctx context.Context, ticker string, g models.Granularity, limit int) ([]models.RawRecord, error)

	// GetQuote retrieves the current quote
	GetQuote(ctx context.Context, ticker string) (models.RawRecord, error)

	// GetEstimates retrieves annual analyst estimates
	GetEstimates(ctx context.Context, ticker string, limit int) ([]models.RawRecord, error)
}
