// Package statements keeps persisted financial statements fresh
package statements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/services/reconcile"
	"github.com/bobmcallan/keymetrics/internal/services/upstream"
)

// DefaultMaxLimit is the most statement periods fetched or returned per call.
const DefaultMaxLimit = 12

// Service implements StatementService
type Service struct {
	store      interfaces.FactStore
	fetcher    *upstream.Fetcher
	normalizer *upstream.Normalizer
	policy     *common.FreshnessPolicy
	logger     *common.Logger
	maxLimit   int
	cashFlows  interfaces.CashFlowAnalyzer
}

// NewService creates a new statement service.
// client may be nil, in which case only cached statements are served.
func NewService(store interfaces.FactStore, client interfaces.FundamentalsClient, policy *common.FreshnessPolicy, logger *common.Logger) *Service {
	if policy == nil {
		policy = common.DefaultFreshnessPolicy()
	}
	normalizer := upstream.NewNormalizer()
	if policy.Now != nil {
		normalizer = normalizer.WithClock(policy.Now)
	}
	return &Service{
		store:      store,
		fetcher:    upstream.NewFetcher(client, logger),
		normalizer: normalizer,
		policy:     policy,
		logger:     logger,
		maxLimit:   DefaultMaxLimit,
	}
}

// WithMaxLimit overrides the per-call period cap.
func (s *Service) WithMaxLimit(n int) *Service {
	if n > 0 {
		s.maxLimit = n
	}
	return s
}

// WithCashFlowAnalyzer sets the analyzer applied to cash flow reports.
func (s *Service) WithCashFlowAnalyzer(a interfaces.CashFlowAnalyzer) *Service {
	s.cashFlows = a
	return s
}

// ClampLimit bounds a requested period count to 1..max, mapping 0 to max.
func (s *Service) ClampLimit(limit int) int {
	if limit <= 0 || limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// Refresh fetches and reconciles one statement type when the newest cached
// period is older than the statement window, or unconditionally when force is set.
func (s *Service) Refresh(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, limit int, force bool) (*models.ReconcileSummary, error) {
	return s.refreshType(ctx, ticker, st, g, s.ClampLimit(limit), force)
}

// RefreshPeriods force-fetches one statement type deep enough to cover the
// given number of derived periods. The request may exceed the per-call cap,
// never falling below it.
func (s *Service) RefreshPeriods(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, periods int) (*models.ReconcileSummary, error) {
	return s.refreshType(ctx, ticker, st, g, max(periods, s.maxLimit), true)
}

func (s *Service) refreshType(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, limit int, force bool) (*models.ReconcileSummary, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", common.ErrInvalidArgument)
	}

	switch st {
	case models.StatementIncome:
		return refresh(ctx, s, s.store.IncomeStatements(), ticker, st, g, limit, force, s.normalizer.IncomeStatement)
	case models.StatementBalanceSheet:
		return refresh(ctx, s, s.store.BalanceSheets(), ticker, st, g, limit, force, s.normalizer.BalanceSheet)
	case models.StatementCashFlow:
		return refresh(ctx, s, s.store.CashFlows(), ticker, st, g, limit, force, s.normalizer.CashFlow)
	}
	return nil, fmt.Errorf("%w: unknown statement type %q", common.ErrInvalidArgument, st)
}

type normalizeFunc[T any] func(ticker string, g models.Granularity, idx int, rec models.RawRecord) (*T, error)

func refresh[T any, PT models.FactPtr[T]](ctx context.Context, s *Service, table interfaces.FactTable[T], ticker string, st models.StatementType, g models.Granularity, limit int, force bool, normalize normalizeFunc[T]) (*models.ReconcileSummary, error) {
	log := s.logger.WithTicker(ticker)

	if !force {
		latest, err := table.Latest(ctx, ticker, g)
		switch {
		case err == nil:
			if s.policy.IsStatementFresh(PT(latest).Header().ReportDate) {
				log.Debug().Str("statement", string(st)).Str("granularity", string(g)).Msg("Statements fresh; skipping fetch")
				return &models.ReconcileSummary{}, nil
			}
		case errors.Is(err, common.ErrNotFound):
		default:
			log.Warn().Err(err).Str("statement", string(st)).Msg("Failed to read latest statement; fetching anyway")
		}
	}

	rows := s.fetcher.FetchRaw(ctx, ticker, upstream.Source(st), g, limit)
	if len(rows) == 0 {
		return &models.ReconcileSummary{}, nil
	}

	records := make([]*T, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		rec, err := normalize(ticker, g, i, row)
		if err != nil {
			skipped++
			log.Warn().Err(err).Str("statement", string(st)).Int("index", i).Msg("Skipping malformed record")
			continue
		}
		records = append(records, rec)
	}

	summary := reconcile.Batch[T, PT](ctx, table, records, reconcile.Options{PreserveCreatedAt: true}, log)
	summary.Fetched = len(rows)
	summary.Skipped = skipped

	log.Info().
		Str("statement", string(st)).
		Str("granularity", string(g)).
		Int("fetched", summary.Fetched).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Statements reconciled")

	return &summary, nil
}

// GetIncomeStatements refreshes if needed and returns income statements newest first.
func (s *Service) GetIncomeStatements(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) ([]*models.IncomeStatement, error) {
	if _, err := s.Refresh(ctx, ticker, models.StatementIncome, g, limit, force); err != nil {
		return nil, err
	}
	return s.store.IncomeStatements().List(ctx, normalizeTicker(ticker), g, s.ClampLimit(limit))
}

// GetBalanceSheets refreshes if needed and returns balance sheets newest first.
func (s *Service) GetBalanceSheets(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) ([]*models.BalanceSheet, error) {
	if _, err := s.Refresh(ctx, ticker, models.StatementBalanceSheet, g, limit, force); err != nil {
		return nil, err
	}
	return s.store.BalanceSheets().List(ctx, normalizeTicker(ticker), g, s.ClampLimit(limit))
}

// GetCashFlows refreshes if needed and returns cash flow statements newest first.
func (s *Service) GetCashFlows(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) ([]*models.CashFlow, error) {
	if _, err := s.Refresh(ctx, ticker, models.StatementCashFlow, g, limit, force); err != nil {
		return nil, err
	}
	return s.store.CashFlows().List(ctx, normalizeTicker(ticker), g, s.ClampLimit(limit))
}

// GetCashFlowReport refreshes if needed and returns cash flows newest first,
// together with the income they are measured against and their analysis.
func (s *Service) GetCashFlowReport(ctx context.Context, ticker string, g models.Granularity, limit int, force bool) (*models.CashFlowReport, error) {
	flows, err := s.GetCashFlows(ctx, ticker, g, limit, force)
	if err != nil {
		return nil, err
	}
	report := &models.CashFlowReport{Records: flows}
	if report.Records == nil {
		report.Records = []*models.CashFlow{}
	}
	if len(flows) > 0 {
		report.IncomeSummary = s.incomeSummary(ctx, flows[0])
	}
	if s.cashFlows != nil {
		report.Analysis = s.cashFlows.AnalyzeCashFlows(flows, report.IncomeSummary)
	}
	return report, nil
}

// AnalyzeLatestCashFlow analyzes the newest cached cash flow without fetching.
func (s *Service) AnalyzeLatestCashFlow(ctx context.Context, ticker string, g models.Granularity) *models.CashFlowAnalysis {
	if s.cashFlows == nil {
		return nil
	}
	cf, err := s.store.CashFlows().Latest(ctx, normalizeTicker(ticker), g)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read latest cash flow")
		}
		return nil
	}
	return s.cashFlows.AnalyzeCashFlows([]*models.CashFlow{cf}, s.incomeSummary(ctx, cf))
}

// incomeSummary finds the income statement for the cash flow's period,
// falling back to the newest one cached.
func (s *Service) incomeSummary(ctx context.Context, cf *models.CashFlow) *models.IncomeSummary {
	income, err := s.store.IncomeStatements().Get(ctx, cf.Key())
	if errors.Is(err, common.ErrNotFound) {
		income, err = s.store.IncomeStatements().Latest(ctx, cf.Ticker, cf.Granularity)
	}
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn().Err(err).Str("ticker", cf.Ticker).Msg("Failed to read income statement for cash flow")
		}
		return nil
	}
	return &models.IncomeSummary{
		ReportDate: income.ReportDate,
		NetIncome:  income.NetIncome,
		Revenue:    income.Revenue,
	}
}

// GetLatest returns the newest cached statement of the given type without fetching.
func (s *Service) GetLatest(ctx context.Context, ticker string, st models.StatementType, g models.Granularity) (models.Fact, error) {
	ticker = normalizeTicker(ticker)
	switch st {
	case models.StatementIncome:
		rec, err := s.store.IncomeStatements().Latest(ctx, ticker, g)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case models.StatementBalanceSheet:
		rec, err := s.store.BalanceSheets().Latest(ctx, ticker, g)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case models.StatementCashFlow:
		rec, err := s.store.CashFlows().Latest(ctx, ticker, g)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: unknown statement type %q", common.ErrInvalidArgument, st)
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Compile-time check
var _ interfaces.StatementService = (*Service)(nil)
