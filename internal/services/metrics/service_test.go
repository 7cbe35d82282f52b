package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/services/analysis"
	"github.com/bobmcallan/keymetrics/internal/services/quote"
	"github.com/bobmcallan/keymetrics/internal/services/statements"
	"github.com/bobmcallan/keymetrics/internal/storage/memory"
	tcommon "github.com/bobmcallan/keymetrics/tests/common"
)

const (
	keyMetricsRows = `[
		{"date": "2024-09-28", "calendarYear": "2024", "netIncomePerShare": 6.4, "peRatio": 29},
		{"date": "2023-09-30", "calendarYear": "2023", "netIncomePerShare": 5.0, "peRatio": 28}
	]`
	ratioRows = `[
		{"date": "2024-09-28", "dividendYield": 0.0044, "enterpriseValueOverEBITDA": 22.1},
		{"date": "2023-09-30", "dividendYield": 0.0051}
	]`
	quoteJSON     = `{"symbol": "AAPL", "price": 180, "eps": 6, "sharesOutstanding": 15, "marketCap": 2700}`
	estimateRows  = `[{"date": "2025-09-30", "estimatedEpsAvg": 8}, {"date": "2024-09-28", "estimatedEpsAvg": 6.5}]`
	balanceRows   = `[
		{"date": "2024-09-28", "totalAssets": 365, "totalLiabilities": 308, "totalStockholdersEquity": 57, "totalCurrentAssets": 153, "totalCurrentLiabilities": 176},
		{"date": "2023-09-30", "totalAssets": 352, "totalLiabilities": 290, "totalStockholdersEquity": 62}
	]`
	incomeRows = `[
		{"date": "2024-09-28", "revenue": 391, "netIncome": 94, "eps": 6.1},
		{"date": "2023-09-30", "revenue": 383, "netIncome": 97, "eps": 6.0}
	]`
	cashFlowRows = `[{"date": "2024-09-28", "operatingCashFlow": 118, "commonStockRepurchased": -95, "dividendsPaid": -15}]`
)

type stubAnalyzer struct{ calls int }

func (a *stubAnalyzer) Analyze(series []*models.KeyMetricsRecord) *models.Analysis {
	a.calls++
	return &models.Analysis{Score: len(series), Status: models.StatusNeutral}
}

type fixture struct {
	svc      *Service
	client   *tcommon.FakeClient
	store    *memory.Store
	analyzer *stubAnalyzer
	now      time.Time
}

func newFixture(t *testing.T, client *tcommon.FakeClient) *fixture {
	t.Helper()
	f := &fixture{
		client:   client,
		store:    memory.NewStore(),
		analyzer: &stubAnalyzer{},
		now:      time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC),
	}
	logger := common.NewSilentLogger()
	policy := common.DefaultFreshnessPolicy()
	policy.Now = func() time.Time { return f.now }

	f.svc = NewService(Deps{
		Store:      f.store,
		Client:     client,
		Statements: statements.NewService(f.store, client, policy, logger).WithCashFlowAnalyzer(analysis.NewCashFlowAnalyzer()),
		Quotes:     quote.NewService(client, policy, logger),
		Analyzer:   f.analyzer,
		Policy:     policy,
		Config:     common.NewDefaultConfig().Metrics,
		Logger:     logger,
	})
	return f
}

func fullClient() *tcommon.FakeClient {
	return tcommon.NewFakeClient().
		SetKeyMetrics(tcommon.Rows(keyMetricsRows)).
		SetRatios(tcommon.Rows(ratioRows)).
		SetQuote(quoteJSON).
		SetEstimates(tcommon.Rows(estimateRows)).
		SetStatements(models.StatementBalanceSheet, tcommon.Rows(balanceRows)).
		SetStatements(models.StatementIncome, tcommon.Rows(incomeRows)).
		SetStatements(models.StatementCashFlow, tcommon.Rows(cashFlowRows))
}

func TestGetKeyMetrics_FullPipeline(t *testing.T) {
	f := newFixture(t, fullClient())
	ctx := context.Background()

	result, err := f.svc.GetKeyMetrics(ctx, "aapl", "annual", 0)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Meta.Ticker)
	assert.Equal(t, models.GranularityAnnual, result.Meta.Granularity)
	assert.True(t, result.Meta.Refreshed)
	require.Len(t, result.History, 2)
	require.Len(t, result.Records, 2)

	latest := result.Records[0]
	assert.Equal(t, "2024-09-28", latest.ReportDate.Format(models.DateLayout))
	assert.InDelta(t, 30.0, *latest.PERatio, 1e-9)
	assert.InDelta(t, 22.5, *latest.ForwardPE, 1e-9)
	assert.InDelta(t, 25.0, *latest.EarningsGrowthPct, 1e-9)
	assert.InDelta(t, 0.9, *latest.PEGRatio, 1e-9)
	assert.InDelta(t, 308.0/57.0, *latest.DebtToEquity, 1e-9)
	assert.InDelta(t, 180.0/(57.0/15.0), *latest.PriceToBookRatio, 1e-9)
	assert.InDelta(t, 153.0/176.0, *latest.CurrentRatio, 1e-9)
	assert.InDelta(t, 94.0/57.0, *latest.ReturnOnEquity, 1e-9)
	assert.InDelta(t, 2700.0/391.0, *latest.PriceToSalesRatio, 1e-9)
	assert.Equal(t, 0.0044, *latest.DividendYield)
	assert.Equal(t, models.EquityComputed, latest.EquitySource)
	assert.Empty(t, latest.Discrepancies)

	previous := result.Records[1]
	assert.InDelta(t, 36.0, *previous.PERatio, 1e-9)
	assert.Contains(t, previous.Discrepancies, string(models.MetricPE))

	require.Contains(t, latest.YoY, models.MetricPE)
	assert.Equal(t, -16.67, latest.YoY[models.MetricPE].PctChange)
	assert.Equal(t, 36.0, latest.YoY[models.MetricPE].Previous)
	assert.Nil(t, latest.TrailingAverages, "two periods are not enough for averages")

	require.NotNil(t, result.Analysis)
	assert.Equal(t, 2, result.Analysis.Score)

	// one forced dependency fetch per statement type
	assert.Equal(t, 1, f.client.Calls(tcommon.StatementCall(models.StatementBalanceSheet)))
	assert.Equal(t, 1, f.client.Calls(tcommon.StatementCall(models.StatementIncome)))

	estimates, err := f.store.Estimates().List(ctx, "AAPL")
	require.NoError(t, err)
	assert.Len(t, estimates, 2)
}

func TestGetKeyMetrics_FreshWithinTTL(t *testing.T) {
	f := newFixture(t, fullClient())
	ctx := context.Background()
	t0 := f.now

	_, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)

	// exactly 24h later is still fresh
	f.now = t0.Add(24 * time.Hour)
	result, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)
	assert.False(t, result.Meta.Refreshed)
	assert.Equal(t, 1, f.client.Calls(tcommon.CallKeyMetrics))
	assert.Equal(t, t0, result.History[0].CreatedAt)

	// one second past the window triggers re-derivation
	f.now = t0.Add(24*time.Hour + time.Second)
	result, err = f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)
	assert.True(t, result.Meta.Refreshed)
	assert.Equal(t, 2, f.client.Calls(tcommon.CallKeyMetrics))
	assert.Equal(t, f.now, result.History[0].CreatedAt, "re-derivation restarts the TTL")

	// statements were cached, so no further dependency fetch
	assert.Equal(t, 1, f.client.Calls(tcommon.StatementCall(models.StatementBalanceSheet)))
}

func TestGetKeyMetrics_Idempotent(t *testing.T) {
	f := newFixture(t, fullClient())
	ctx := context.Background()

	first, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)

	f.now = f.now.Add(48 * time.Hour)
	second, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)

	assert.Equal(t, 2, f.store.Metrics.Len())
	require.Len(t, second.History, len(first.History))
	for i := range first.History {
		assert.Equal(t, *first.History[i].PERatio, *second.History[i].PERatio)
		assert.Equal(t, *first.History[i].DebtToEquity, *second.History[i].DebtToEquity)
		assert.Equal(t, *first.History[i].PEGRatio, *second.History[i].PEGRatio)
	}
}

func TestGetKeyMetrics_MissingDependencyYieldsNulls(t *testing.T) {
	client := tcommon.NewFakeClient().
		SetKeyMetrics(tcommon.Rows(keyMetricsRows)).
		SetQuote(quoteJSON)
	f := newFixture(t, client)

	result, err := f.svc.GetKeyMetrics(context.Background(), "AAPL", "annual", 5)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	latest := result.Records[0]
	assert.Nil(t, latest.DebtToEquity)
	assert.Nil(t, latest.PriceToBookRatio)
	assert.Nil(t, latest.CurrentRatio)
	assert.InDelta(t, 30.0, *latest.PERatio, 1e-9)
	assert.Equal(t, 1, client.Calls(tcommon.StatementCall(models.StatementBalanceSheet)), "exactly one on-demand fetch")
}

func TestGetKeyMetrics_MaxLimitResolvesEveryPeriod(t *testing.T) {
	var metricRows, sheetRows []string
	for year := 2024; year > 2004; year-- {
		metricRows = append(metricRows, fmt.Sprintf(`{"date": "%d-09-30", "netIncomePerShare": 5}`, year))
		sheetRows = append(sheetRows, fmt.Sprintf(`{"date": "%d-09-30", "totalAssets": 300, "totalLiabilities": 200}`, year))
	}
	client := tcommon.NewFakeClient().
		SetKeyMetrics(tcommon.Rows("[" + strings.Join(metricRows, ",") + "]")).
		SetStatements(models.StatementBalanceSheet, tcommon.Rows("["+strings.Join(sheetRows, ",")+"]"))
	f := newFixture(t, client)

	result, err := f.svc.GetKeyMetrics(context.Background(), "AAPL", "annual", 20)
	require.NoError(t, err)
	require.Len(t, result.History, 20)
	for _, rec := range result.History {
		require.NotNil(t, rec.DebtToEquity, rec.ReportDate.Format(models.DateLayout))
		assert.InDelta(t, 2.0, *rec.DebtToEquity, 1e-9)
	}
	assert.Equal(t, 20, f.store.Balance.Len())
	assert.Equal(t, 1, client.Calls(tcommon.StatementCall(models.StatementBalanceSheet)))
}

func TestGetKeyMetrics_PartialUpstreamFailure(t *testing.T) {
	client := fullClient().
		Fail(tcommon.CallRatios, errors.New("502 bad gateway")).
		Fail(tcommon.CallEstimates, errors.New("timeout"))
	f := newFixture(t, client)

	result, err := f.svc.GetKeyMetrics(context.Background(), "AAPL", "annual", 5)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	latest := result.Records[0]
	assert.Nil(t, latest.DividendYield, "ratios contributed nothing")
	assert.Nil(t, latest.ForwardPE, "no estimates and no upstream forward P/E")
	assert.InDelta(t, 30.0, *latest.PERatio, 1e-9)
}

func TestGetKeyMetrics_CachedEstimatesUsedWhenFetchFails(t *testing.T) {
	client := fullClient()
	f := newFixture(t, client)
	ctx := context.Background()

	_, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)

	client.Fail(tcommon.CallEstimates, errors.New("timeout"))
	f.now = f.now.Add(48 * time.Hour)
	result, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)
	require.True(t, result.Meta.Refreshed)
	require.NotNil(t, result.Records[0].ForwardPE)
	assert.InDelta(t, 22.5, *result.Records[0].ForwardPE, 1e-9)
}

func TestGetKeyMetrics_DuplicateEstimateYearsKeepFirst(t *testing.T) {
	client := fullClient().SetEstimates(tcommon.Rows(`[
		{"date": "2025-09-30", "estimatedEpsAvg": 8},
		{"date": "2025-06-30", "estimatedEpsAvg": 99},
		{"date": "2024-09-28", "estimatedEpsAvg": 6.5}
	]`))
	f := newFixture(t, client)
	ctx := context.Background()

	result, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)
	require.NotNil(t, result.Records[0].ForwardPE)
	assert.InDelta(t, 22.5, *result.Records[0].ForwardPE, 1e-9)

	estimates, err := f.store.Estimates().List(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, estimates, 2)
	assert.Equal(t, 8.0, *estimates[1].EstimatedEPS)
}

func TestGetKeyMetrics_NoDataAnywhere(t *testing.T) {
	f := newFixture(t, tcommon.NewFakeClient())

	result, err := f.svc.GetKeyMetrics(context.Background(), "ZZZZ", "quarter", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.History)
	assert.False(t, result.Meta.Refreshed)
	assert.Equal(t, models.GranularityQuarter, result.Meta.Granularity)
}

func TestGetKeyMetrics_UpstreamDownServesStaleCache(t *testing.T) {
	client := fullClient()
	f := newFixture(t, client)
	ctx := context.Background()

	_, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)

	client.Fail(tcommon.CallKeyMetrics, errors.New("down")).Fail(tcommon.CallRatios, errors.New("down"))
	f.now = f.now.Add(72 * time.Hour)

	result, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)
	assert.False(t, result.Meta.Refreshed)
	assert.Len(t, result.History, 2)
}

func TestGetKeyMetrics_InvalidArguments(t *testing.T) {
	f := newFixture(t, fullClient())
	ctx := context.Background()

	_, err := f.svc.GetKeyMetrics(ctx, "AAPL", "weekly", 5)
	assert.True(t, errors.Is(err, common.ErrInvalidGranularity))

	_, err = f.svc.GetKeyMetrics(ctx, "", "annual", 5)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestGetKeyMetrics_GranularitySynonym(t *testing.T) {
	f := newFixture(t, fullClient())

	result, err := f.svc.GetKeyMetrics(context.Background(), "AAPL", "Quarterly", 1)
	require.NoError(t, err)
	assert.Equal(t, models.GranularityQuarter, result.Meta.Granularity)
	assert.Len(t, result.History, 1)
}

func TestGetKeyMetrics_CashFlowAnalysis(t *testing.T) {
	f := newFixture(t, fullClient())
	ctx := context.Background()

	_, err := statements.NewService(f.store, f.client, nil, common.NewSilentLogger()).
		Refresh(ctx, "AAPL", models.StatementCashFlow, models.GranularityAnnual, 5, true)
	require.NoError(t, err)

	result, err := f.svc.GetKeyMetrics(ctx, "AAPL", "annual", 5)
	require.NoError(t, err)
	require.NotNil(t, result.CashFlow)
	assert.Equal(t, "2024-09-28", result.CashFlow.ReportDate.Format(models.DateLayout))
	assert.Equal(t, 95.0, result.CashFlow.Metrics.Buybacks)
	assert.Equal(t, 110.0, result.CashFlow.Metrics.ShareholderReturn)
	require.NotNil(t, result.CashFlow.Metrics.ConversionRatio, "income statement cached by the dependency fetch")
	assert.InDelta(t, 118.0/94.0, *result.CashFlow.Metrics.ConversionRatio, 1e-9)
	assert.Contains(t, result.CashFlow.Badges, analysis.BadgeShareholderFriendly)
}

func TestClampLimit(t *testing.T) {
	f := newFixture(t, tcommon.NewFakeClient())

	assert.Equal(t, 5, f.svc.ClampLimit(0))
	assert.Equal(t, 1, f.svc.ClampLimit(-4))
	assert.Equal(t, 7, f.svc.ClampLimit(7))
	assert.Equal(t, 20, f.svc.ClampLimit(21))
}
