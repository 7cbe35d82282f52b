// Package metrics derives, persists and aggregates key financial metrics
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/services/reconcile"
	"github.com/bobmcallan/keymetrics/internal/services/upstream"
)

// Deps lists every collaborator the metrics service uses.
type Deps struct {
	Store      interfaces.FactStore
	Client     interfaces.FundamentalsClient // nil serves cached data only
	Statements interfaces.StatementService
	Quotes     interfaces.QuoteService
	Analyzer   interfaces.Analyzer // optional
	Policy     *common.FreshnessPolicy
	Config     common.MetricsConfig
	Logger     *common.Logger
}

// Service implements MetricsService
type Service struct {
	store      interfaces.FactStore
	statements interfaces.StatementService
	quotes     interfaces.QuoteService
	analyzer   interfaces.Analyzer
	fetcher    *upstream.Fetcher
	normalizer *upstream.Normalizer
	engine     *Engine
	aggregator Aggregator
	policy     *common.FreshnessPolicy
	config     common.MetricsConfig
	logger     *common.Logger
}

// NewService creates a new metrics service
func NewService(deps Deps) *Service {
	policy := deps.Policy
	if policy == nil {
		policy = common.DefaultFreshnessPolicy()
	}
	cfg := deps.Config
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 20
	}

	aggregator := DefaultAggregator()
	if cfg.TrailingPeriods > 0 {
		aggregator.TrailingPeriods = cfg.TrailingPeriods
	}
	if cfg.MinAveragePeriods > 0 {
		aggregator.MinAveragePeriods = cfg.MinAveragePeriods
	}

	normalizer := upstream.NewNormalizer()
	if policy.Now != nil {
		normalizer = normalizer.WithClock(policy.Now)
	}

	return &Service{
		store:      deps.Store,
		statements: deps.Statements,
		quotes:     deps.Quotes,
		analyzer:   deps.Analyzer,
		fetcher:    upstream.NewFetcher(deps.Client, deps.Logger),
		normalizer: normalizer,
		engine:     NewEngine(cfg, deps.Logger).WithClock(policy.Now),
		aggregator: aggregator,
		policy:     policy,
		config:     cfg,
		logger:     deps.Logger,
	}
}

// ClampLimit maps 0 to the default period count and bounds the rest to 1..max.
func (s *Service) ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return s.config.DefaultLimit
	case limit < 1:
		return 1
	case limit > s.config.MaxLimit:
		return s.config.MaxLimit
	}
	return limit
}

// GetKeyMetrics returns derived metrics for ticker, re-deriving them first
// when the newest stored row is older than the metrics window.
func (s *Service) GetKeyMetrics(ctx context.Context, ticker string, granularity string, limit int) (*models.KeyMetricsResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", common.ErrInvalidArgument)
	}
	g, err := models.ParseGranularity(granularity)
	if err != nil {
		return nil, err
	}
	limit = s.ClampLimit(limit)
	log := s.logger.WithTicker(ticker)

	refreshed := false
	latest, err := s.store.KeyMetrics().Latest(ctx, ticker, g)
	switch {
	case err == nil && s.policy.IsMetricsFresh(latest.CreatedAt):
		log.Debug().Time("created_at", latest.CreatedAt).Msg("Key metrics fresh")
	case err != nil && !errors.Is(err, common.ErrNotFound):
		log.Warn().Err(err).Msg("Failed to read latest key metrics; re-deriving")
		fallthrough
	default:
		refreshed = s.refresh(ctx, ticker, g, limit) > 0
	}

	history, err := s.store.KeyMetrics().List(ctx, ticker, g, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list key metrics: %w", err)
	}

	result := &models.KeyMetricsResult{
		Records: s.aggregator.BuildViews(history),
		History: history,
		Meta: models.KeyMetricsMeta{
			Ticker:      ticker,
			Granularity: g,
			Refreshed:   refreshed,
			GeneratedAt: s.now(),
		},
		CashFlow: s.cashFlowAnalysis(ctx, ticker, g),
	}
	if result.Records == nil {
		result.Records = []models.MetricsView{}
	}
	if result.History == nil {
		result.History = []*models.KeyMetricsRecord{}
	}
	if s.analyzer != nil {
		result.Analysis = s.analyzer.Analyze(history)
	}
	return result, nil
}

func (s *Service) now() time.Time {
	if s.policy.Now != nil {
		return s.policy.Now().UTC()
	}
	return time.Now().UTC()
}

// upstreamBundle is the result of the parallel fetch.
type upstreamBundle struct {
	keyMetrics []models.RawRecord
	ratios     []models.RawRecord
	estimates  []models.RawRecord
	quote      *models.QuoteSnapshot
}

// fetchAll runs the four independent upstream fetches concurrently. A failed
// source contributes nothing; the others are still used.
func (s *Service) fetchAll(ctx context.Context, ticker string, g models.Granularity, limit int) upstreamBundle {
	var (
		b  upstreamBundle
		wg sync.WaitGroup
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		b.keyMetrics = s.fetcher.FetchRaw(ctx, ticker, upstream.SourceKeyMetrics, g, limit)
	}()
	go func() {
		defer wg.Done()
		b.ratios = s.fetcher.FetchRaw(ctx, ticker, upstream.SourceRatios, g, limit)
	}()
	go func() {
		defer wg.Done()
		if s.quotes != nil {
			b.quote = s.quotes.GetQuote(ctx, ticker)
		}
	}()
	go func() {
		defer wg.Done()
		b.estimates = s.fetcher.FetchRaw(ctx, ticker, upstream.SourceEstimates, models.GranularityAnnual, 0)
	}()
	wg.Wait()
	return b
}

// refresh re-derives up to limit periods and returns how many were written.
func (s *Service) refresh(ctx context.Context, ticker string, g models.Granularity, limit int) int {
	log := s.logger.WithTicker(ticker)
	b := s.fetchAll(ctx, ticker, g, limit)

	estimates := s.resolveEstimates(ctx, ticker, b.estimates)

	merged := upstream.MergeByDate(b.keyMetrics, b.ratios)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if len(merged) == 0 {
		log.Warn().Str("granularity", string(g)).Msg("No upstream key metrics; serving cached rows")
		return 0
	}

	type period struct {
		header models.FactHeader
		row    models.RawRecord
	}
	periods := make([]period, 0, len(merged))
	for i, row := range merged {
		h, err := s.normalizer.Header(ticker, g, i, row)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping malformed key metrics row")
			continue
		}
		periods = append(periods, period{header: h, row: row})
	}

	dates := make([]time.Time, len(periods))
	for i, p := range periods {
		dates[i] = p.header.ReportDate
	}
	deps := s.resolveDependencies(ctx, ticker, g, dates)

	records := make([]*models.KeyMetricsRecord, 0, len(periods))
	for i, p := range periods {
		key := p.header.Key()
		records = append(records, s.engine.Derive(Inputs{
			Ticker:      ticker,
			Granularity: g,
			ReportDate:  p.header.ReportDate,
			ReportYear:  p.header.ReportYear,
			Latest:      i == 0,
			Quote:       b.quote,
			Estimates:   estimates,
			Balance:     deps.balance[key],
			Income:      deps.income[key],
			Reported:    upstream.Reported(p.row),
		}))
	}

	// metrics are re-stamped so the TTL restarts
	summary := reconcile.Batch(ctx, s.store.KeyMetrics(), records, reconcile.Options{PreserveCreatedAt: false}, log)
	log.Info().
		Str("granularity", string(g)).
		Int("derived", len(records)).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("failed", summary.Failed).
		Msg("Key metrics derived")

	return summary.Inserted + summary.Updated
}

// resolveEstimates replaces the stored estimates when the fetch returned any,
// otherwise falls back to what is cached. Only the first row per fiscal year is kept.
func (s *Service) resolveEstimates(ctx context.Context, ticker string, rows []models.RawRecord) []*models.EstimateRecord {
	fresh := make([]*models.EstimateRecord, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for i, row := range rows {
		est, err := s.normalizer.Estimate(ticker, i, row)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Skipping malformed estimate")
			continue
		}
		if seen[est.FiscalYear] {
			s.logger.Debug().Str("ticker", ticker).Int("fiscal_year", est.FiscalYear).Msg("Skipping duplicate estimate year")
			continue
		}
		seen[est.FiscalYear] = true
		fresh = append(fresh, est)
	}

	if len(fresh) > 0 {
		if err := s.store.Estimates().Replace(ctx, ticker, fresh); err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to store estimates")
		}
		return fresh
	}

	cached, err := s.store.Estimates().List(ctx, ticker)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read cached estimates")
		return nil
	}
	return cached
}

// dependencies holds the statements matched to each derived period.
type dependencies struct {
	balance map[models.RecordKey]*models.BalanceSheet
	income  map[models.RecordKey]*models.IncomeStatement
}

func (d dependencies) missing(keys []models.RecordKey) []models.StatementType {
	var balanceMissing, incomeMissing bool
	for _, k := range keys {
		if d.balance[k] == nil {
			balanceMissing = true
		}
		if d.income[k] == nil {
			incomeMissing = true
		}
	}
	var out []models.StatementType
	if balanceMissing {
		out = append(out, models.StatementBalanceSheet)
	}
	if incomeMissing {
		out = append(out, models.StatementIncome)
	}
	return out
}

// resolveDependencies loads the statements each period needs. Anything
// missing triggers one forced fetch of that statement type before derivation;
// what is still missing afterwards leaves the dependent ratios null.
func (s *Service) resolveDependencies(ctx context.Context, ticker string, g models.Granularity, dates []time.Time) dependencies {
	keys := make([]models.RecordKey, len(dates))
	for i, d := range dates {
		keys[i] = models.RecordKey{Ticker: ticker, Granularity: g, ReportDate: d}
	}

	deps := s.loadDependencies(ctx, keys)
	missing := deps.missing(keys)
	if len(missing) == 0 || s.statements == nil {
		return deps
	}

	log := s.logger.WithTicker(ticker)
	for _, st := range missing {
		log.Info().Err(common.ErrMissingDependency).Str("statement", string(st)).Msg("Fetching missing dependency")
		if _, err := s.statements.RefreshPeriods(ctx, ticker, st, g, len(dates)); err != nil {
			log.Warn().Err(err).Str("statement", string(st)).Msg("Dependency fetch failed")
		}
	}

	deps = s.loadDependencies(ctx, keys)
	for _, st := range deps.missing(keys) {
		log.Warn().Err(common.ErrMissingDependency).Str("statement", string(st)).Msg("Dependency still missing for some periods; dependent ratios will be null")
	}
	return deps
}

func (s *Service) loadDependencies(ctx context.Context, keys []models.RecordKey) dependencies {
	deps := dependencies{
		balance: make(map[models.RecordKey]*models.BalanceSheet, len(keys)),
		income:  make(map[models.RecordKey]*models.IncomeStatement, len(keys)),
	}
	for _, k := range keys {
		if bs, err := s.store.BalanceSheets().Get(ctx, k); err == nil {
			deps.balance[k] = bs
		} else if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", k.String()).Msg("Failed to read balance sheet")
		}
		if is, err := s.store.IncomeStatements().Get(ctx, k); err == nil {
			deps.income[k] = is
		} else if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", k.String()).Msg("Failed to read income statement")
		}
	}
	return deps
}

// cashFlowAnalysis attaches the analysis of the newest cached cash flow.
func (s *Service) cashFlowAnalysis(ctx context.Context, ticker string, g models.Granularity) *models.CashFlowAnalysis {
	if s.statements == nil {
		return nil
	}
	return s.statements.AnalyzeLatestCashFlow(ctx, ticker, g)
}

// Compile-time check
var _ interfaces.MetricsService = (*Service)(nil)
