// Package postgres implements the fact store on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Store implements interfaces.FactStore using a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *common.Logger

	income    *FactTable[models.IncomeStatement, *models.IncomeStatement]
	balance   *FactTable[models.BalanceSheet, *models.BalanceSheet]
	cashFlow  *FactTable[models.CashFlow, *models.CashFlow]
	metrics   *FactTable[models.KeyMetricsRecord, *models.KeyMetricsRecord]
	estimates *EstimateStore
}

// NewStore connects to PostgreSQL, applying migrations first when configured.
func NewStore(ctx context.Context, logger *common.Logger, config common.PostgresConfig) (*Store, error) {
	if config.Migrate {
		if err := Migrate(config.URL); err != nil {
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach PostgreSQL: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Bool("migrated", config.Migrate).
		Msg("PostgreSQL fact store initialized")

	return NewStoreFromPool(pool, logger), nil
}

// NewStoreFromPool wraps an existing pool. The schema must already exist.
func NewStoreFromPool(pool *pgxpool.Pool, logger *common.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger,
		income: NewFactTable[models.IncomeStatement, *models.IncomeStatement](pool, "income_statement",
			numericColumn[models.IncomeStatement]{"revenue", func(r *models.IncomeStatement) *float64 { return r.Revenue }},
			numericColumn[models.IncomeStatement]{"net_income", func(r *models.IncomeStatement) *float64 { return r.NetIncome }},
			numericColumn[models.IncomeStatement]{"eps", func(r *models.IncomeStatement) *float64 { return r.EPS }},
		),
		balance: NewFactTable[models.BalanceSheet, *models.BalanceSheet](pool, "balance_sheet",
			numericColumn[models.BalanceSheet]{"total_assets", func(r *models.BalanceSheet) *float64 { return r.TotalAssets }},
			numericColumn[models.BalanceSheet]{"total_liabilities", func(r *models.BalanceSheet) *float64 { return r.TotalLiabilities }},
			numericColumn[models.BalanceSheet]{"total_equity", func(r *models.BalanceSheet) *float64 { return r.TotalEquity }},
		),
		cashFlow: NewFactTable[models.CashFlow, *models.CashFlow](pool, "cash_flow",
			numericColumn[models.CashFlow]{"operating_cash_flow", func(r *models.CashFlow) *float64 { return r.OperatingCashFlow }},
			numericColumn[models.CashFlow]{"free_cash_flow", func(r *models.CashFlow) *float64 { return r.FreeCashFlow }},
		),
		metrics: NewFactTable[models.KeyMetricsRecord, *models.KeyMetricsRecord](pool, "key_metrics",
			numericColumn[models.KeyMetricsRecord]{"pe_ratio", func(r *models.KeyMetricsRecord) *float64 { return r.PERatio }},
			numericColumn[models.KeyMetricsRecord]{"price_to_book", func(r *models.KeyMetricsRecord) *float64 { return r.PriceToBookRatio }},
			numericColumn[models.KeyMetricsRecord]{"debt_to_equity", func(r *models.KeyMetricsRecord) *float64 { return r.DebtToEquity }},
			numericColumn[models.KeyMetricsRecord]{"market_cap", func(r *models.KeyMetricsRecord) *float64 { return r.MarketCap }},
		),
		estimates: NewEstimateStore(pool),
	}
}

func (s *Store) IncomeStatements() interfaces.FactTable[models.IncomeStatement] { return s.income }
func (s *Store) BalanceSheets() interfaces.FactTable[models.BalanceSheet]       { return s.balance }
func (s *Store) CashFlows() interfaces.FactTable[models.CashFlow]               { return s.cashFlow }
func (s *Store) KeyMetrics() interfaces.FactTable[models.KeyMetricsRecord]      { return s.metrics }
func (s *Store) Estimates() interfaces.EstimateStore                            { return s.estimates }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Compile-time check
var _ interfaces.FactStore = (*Store)(nil)
