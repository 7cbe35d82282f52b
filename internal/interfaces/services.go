// Package interfaces defines service contracts for keymetrics
package interfaces

import (
	"context"

	"github.com/bobmcallan/keymetrics/internal/models"
)

// StatementService keeps the persisted statements fresh
type StatementService interface {
	// Refresh fetches, normalizes and reconciles one statement type when the cached
	// rows are stale or force is set. Upstream failure is logged and yields an empty summary.
	Refresh(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, limit int, force bool) (*models.ReconcileSummary, error)

	// RefreshPeriods force-fetches at least periods rows of one statement type,
	// unbounded by the per-call cap. Used to resolve derivation dependencies.
	RefreshPeriods(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, periods int) (*models.ReconcileSummary, error)

	GetIncomeStatements(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) ([]*models.IncomeStatement, error)
	GetBalanceSheets(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) ([]*models.BalanceSheet, error)
	GetCashFlows(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) ([]*models.CashFlow, error)

	// GetCashFlowReport returns cash flows newest first with the matching income
	// summary and the cash flow analysis of the newest period.
	GetCashFlowReport(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) (*models.CashFlowReport, error)

	// AnalyzeLatestCashFlow analyzes the newest cached cash flow without fetching.
	// Returns nil when nothing is cached.
	AnalyzeLatestCashFlow(ctx context.Context, ticker string, g models.Granularity) *models.CashFlowAnalysis

	// GetLatest returns the newest cached statement without fetching, or common.ErrNotFound
	GetLatest(ctx context.Context, ticker string, st models.StatementType, g models.Granularity) (models.Fact, error)
}

// QuoteService supplies a short-lived quote snapshot
type QuoteService interface {
	// GetQuote returns the cached or freshly fetched snapshot, or nil when upstream has none
	GetQuote(ctx context.Context, ticker string) *models.QuoteSnapshot
}

// MetricsService derives and serves key metrics
type MetricsService interface {
	GetKeyMetrics(ctx context.Context, ticker string, granularity string, limit int) (*models.KeyMetricsResult, error)
}

// CashFlowAnalyzer scores a cash flow series (newest first) against its income
type CashFlowAnalyzer interface {
	AnalyzeCashFlows(flows []*models.CashFlow, income *models.IncomeSummary) *models.CashFlowAnalysis
}

// Analyzer turns a derived metrics series (newest first) into a score
type Analyzer interface {
	Analyze(series []*models.KeyMetricsRecord) *models.Analysis
}
