package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// EstimateStore keeps the latest analyst estimates per ticker.
type EstimateStore struct {
	pool *pgxpool.Pool
}

// NewEstimateStore creates a new EstimateStore.
func NewEstimateStore(pool *pgxpool.Pool) *EstimateStore {
	return &EstimateStore{pool: pool}
}

// Replace swaps the estimate set for ticker in one transaction.
func (s *EstimateStore) Replace(ctx context.Context, ticker string, estimates []*models.EstimateRecord) error {
	ticker = strings.ToUpper(ticker)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin estimate replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM estimate WHERE ticker = $1", ticker); err != nil {
		return fmt.Errorf("failed to clear estimates for %s: %w", ticker, err)
	}

	for _, est := range estimates {
		if est == nil {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO estimate (ticker, fiscal_year, estimated_eps, estimated_revenue, fetched_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (ticker, fiscal_year) DO UPDATE
			 SET estimated_eps = EXCLUDED.estimated_eps,
			     estimated_revenue = EXCLUDED.estimated_revenue,
			     fetched_at = EXCLUDED.fetched_at`,
			ticker, est.FiscalYear, numeric(est.EstimatedEPS), numeric(est.EstimatedRevenue), est.FetchedAt)
		if err != nil {
			return fmt.Errorf("failed to save estimate %s/%d: %w", ticker, est.FiscalYear, err)
		}
	}

	return tx.Commit(ctx)
}

// List returns estimates for ticker ordered by fiscal year.
func (s *EstimateStore) List(ctx context.Context, ticker string) ([]*models.EstimateRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, fiscal_year, estimated_eps, estimated_revenue, fetched_at
		 FROM estimate WHERE ticker = $1 ORDER BY fiscal_year ASC`, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.EstimateRecord, error) {
		var (
			rec      models.EstimateRecord
			eps, rev decimal.NullDecimal
		)
		if err := row.Scan(&rec.Ticker, &rec.FiscalYear, &eps, &rev, &rec.FetchedAt); err != nil {
			return nil, err
		}
		rec.EstimatedEPS = float(eps)
		rec.EstimatedRevenue = float(rev)
		return &rec, nil
	})
}

// Compile-time check
var _ interfaces.EstimateStore = (*EstimateStore)(nil)
