package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// Table names, one per persisted fact type.
const (
	TableIncomeStatement = "income_statement"
	TableBalanceSheet    = "balance_sheet"
	TableCashFlow        = "cash_flow"
	TableKeyMetrics      = "key_metrics"
	TableEstimate        = "estimate"
)

var factTables = []string{TableIncomeStatement, TableBalanceSheet, TableCashFlow, TableKeyMetrics}

// Manager implements interfaces.FactStore using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	income    *FactTable[models.IncomeStatement, *models.IncomeStatement]
	balance   *FactTable[models.BalanceSheet, *models.BalanceSheet]
	cashFlow  *FactTable[models.CashFlow, *models.CashFlow]
	metrics   *FactTable[models.KeyMetricsRecord, *models.KeyMetricsRecord]
	estimates *EstimateStore
}

// NewManager connects to SurrealDB and defines the fact tables.
func NewManager(ctx context.Context, logger *common.Logger, config common.SurrealDBConfig) (*Manager, error) {
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := NewManagerFromDB(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB fact store initialized")

	return m, nil
}

// NewManagerFromDB defines the schema on an already selected database.
func NewManagerFromDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	if err := defineSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Manager{
		db:        db,
		logger:    logger,
		income:    NewFactTable[models.IncomeStatement, *models.IncomeStatement](db, TableIncomeStatement),
		balance:   NewFactTable[models.BalanceSheet, *models.BalanceSheet](db, TableBalanceSheet),
		cashFlow:  NewFactTable[models.CashFlow, *models.CashFlow](db, TableCashFlow),
		metrics:   NewFactTable[models.KeyMetricsRecord, *models.KeyMetricsRecord](db, TableKeyMetrics),
		estimates: NewEstimateStore(db),
	}, nil
}

// defineSchema creates the tables and their unique keys. SurrealDB v3 errors
// on querying non-existent tables.
func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range append(factTables, TableEstimate) {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	for _, table := range factTables {
		sql := fmt.Sprintf("DEFINE INDEX IF NOT EXISTS %s_key ON TABLE %s FIELDS ticker, granularity, report_date UNIQUE", table, table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index on %s: %w", table, err)
		}
	}
	sql := fmt.Sprintf("DEFINE INDEX IF NOT EXISTS %s_key ON TABLE %s FIELDS ticker, fiscal_year UNIQUE", TableEstimate, TableEstimate)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return fmt.Errorf("failed to define index on %s: %w", TableEstimate, err)
	}
	return nil
}

func (m *Manager) IncomeStatements() interfaces.FactTable[models.IncomeStatement] { return m.income }
func (m *Manager) BalanceSheets() interfaces.FactTable[models.BalanceSheet]       { return m.balance }
func (m *Manager) CashFlows() interfaces.FactTable[models.CashFlow]               { return m.cashFlow }
func (m *Manager) KeyMetrics() interfaces.FactTable[models.KeyMetricsRecord]      { return m.metrics }
func (m *Manager) Estimates() interfaces.EstimateStore                            { return m.estimates }

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.FactStore = (*Manager)(nil)
