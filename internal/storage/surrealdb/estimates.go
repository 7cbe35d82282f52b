package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// EstimateStore keeps the latest analyst estimates per ticker.
type EstimateStore struct {
	db *surrealdb.DB
}

// NewEstimateStore creates a new EstimateStore.
func NewEstimateStore(db *surrealdb.DB) *EstimateStore {
	return &EstimateStore{db: db}
}

// Replace drops every estimate for ticker and stores the new set.
func (s *EstimateStore) Replace(ctx context.Context, ticker string, estimates []*models.EstimateRecord) error {
	ticker = strings.ToUpper(ticker)
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE estimate WHERE ticker = $ticker", map[string]any{"ticker": ticker}); err != nil {
		return fmt.Errorf("failed to clear estimates for %s: %w", ticker, err)
	}

	for _, est := range estimates {
		if est == nil {
			continue
		}
		rec := *est
		rec.Ticker = ticker
		vars := map[string]any{
			"rid":  surrealmodels.NewRecordID(TableEstimate, fmt.Sprintf("%s_%d", ticker, rec.FiscalYear)),
			"data": rec,
		}
		if _, err := surrealdb.Query[[]models.EstimateRecord](ctx, s.db, "UPSERT $rid CONTENT $data", vars); err != nil {
			return fmt.Errorf("failed to save estimate %s/%d: %w", ticker, rec.FiscalYear, err)
		}
	}
	return nil
}

// List returns estimates for ticker ordered by fiscal year.
func (s *EstimateStore) List(ctx context.Context, ticker string) ([]*models.EstimateRecord, error) {
	sql := "SELECT * FROM estimate WHERE ticker = $ticker ORDER BY fiscal_year ASC"
	results, err := surrealdb.Query[[]models.EstimateRecord](ctx, s.db, sql, map[string]any{"ticker": strings.ToUpper(ticker)})
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}

	var out []*models.EstimateRecord
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			out = append(out, &(*results)[0].Result[i])
		}
	}
	return out, nil
}

// Compile-time check
var _ interfaces.EstimateStore = (*EstimateStore)(nil)
