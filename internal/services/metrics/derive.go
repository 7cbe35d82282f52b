package metrics

import (
	"math"
	"strings"
	"time"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/services/upstream"
)

// minCurrentEPS guards the growth-rate denominator.
const minCurrentEPS = 0.01

// Inputs is everything one period's derivation reads. Dependencies are
// resolved by the caller beforehand; Derive never fetches.
type Inputs struct {
	Ticker      string
	Granularity models.Granularity
	ReportDate  time.Time
	ReportYear  int

	// Latest marks the newest period, the only one priced against the quote's trailing EPS.
	Latest bool

	Quote     *models.QuoteSnapshot
	Estimates []*models.EstimateRecord
	Balance   *models.BalanceSheet    // nil when still missing after the dependency fetch
	Income    *models.IncomeStatement // nil when still missing after the dependency fetch
	Reported  upstream.ReportedMetrics
}

// Engine computes KeyMetricsRecords from statements, a quote and estimates.
type Engine struct {
	logger         *common.Logger
	discrepancyPct float64
	pegFloor       float64
	now            func() time.Time
}

// NewEngine creates an engine using the [metrics] thresholds.
func NewEngine(cfg common.MetricsConfig, logger *common.Logger) *Engine {
	e := &Engine{
		logger:         logger,
		discrepancyPct: cfg.DiscrepancyPct,
		pegFloor:       cfg.PEGFloor,
		now:            time.Now,
	}
	if e.discrepancyPct <= 0 {
		e.discrepancyPct = 10
	}
	if e.pegFloor <= 0 {
		e.pegFloor = 0.1
	}
	return e
}

// WithClock sets the clock used to stamp created_at.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// derivation holds the per-call working state.
type derivation struct {
	in     Inputs
	rec    *models.KeyMetricsRecord
	log    *common.Logger
	engine *Engine

	price  *float64
	shares *float64
	equity *float64
}

// Derive computes one period's key metrics. Every ratio that cannot be
// computed is null, with the reason logged; Derive never fails as a whole.
func (e *Engine) Derive(in Inputs) *models.KeyMetricsRecord {
	now := e.now().UTC()
	rec := &models.KeyMetricsRecord{
		FactHeader: models.FactHeader{
			Ticker:      strings.ToUpper(in.Ticker),
			Granularity: in.Granularity,
			ReportDate:  in.ReportDate,
			ReportYear:  in.ReportYear,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if rec.ReportYear == 0 {
		rec.ReportYear = in.ReportDate.Year()
	}

	d := &derivation{
		in:     in,
		rec:    rec,
		engine: e,
		log:    e.logger.WithTicker(rec.Ticker),
	}
	d.log = &common.Logger{Logger: d.log.With().Str("report_date", in.ReportDate.Format(models.DateLayout)).Logger()}

	d.marketInputs()
	d.resolveEquity()
	d.debtToEquity()
	d.priceToBook()
	d.currentRatio()
	d.returns()
	d.priceToSales()
	d.priceEarnings()
	d.forwardAndPEG()

	rec.EVToEBITDA = in.Reported.EVToEBITDA
	rec.DividendYield = in.Reported.DividendYield
	rec.RevenuePerShare = in.Reported.RevenuePerShare
	rec.NetIncomePerShare = in.Reported.NetIncomePerShare
	rec.FreeCashFlowPerShare = in.Reported.FreeCashFlowPerShare

	return rec
}

func (d *derivation) marketInputs() {
	var q models.QuoteSnapshot
	if d.in.Quote != nil {
		q = *d.in.Quote
	}
	d.price = positive(q.Price)
	d.shares = first(positive(q.SharesOutstanding), positive(d.in.Reported.Shares))

	d.rec.Price = d.price
	d.rec.SharesOutstanding = d.shares
	d.rec.MarketCap = first(positive(d.in.Reported.MarketCap), positive(q.MarketCap), product(d.price, d.shares))
}

func (d *derivation) resolveEquity() {
	equity, source := upstream.ResolveEquity(d.in.Balance)
	d.equity = equity
	d.rec.EquitySource = source
	if source == models.EquityReported {
		d.log.Warn().Float64("equity", *equity).Msg("Assets or liabilities missing; using reported equity (lower confidence)")
	}
	if equity != nil && *equity < 0 {
		d.rec.NegativeEquity = true
	}
}

func (d *derivation) undefined(metric models.Metric, reason string) {
	d.log.Info().Err(common.Undefined(string(metric), reason)).Msg("Ratio undefined")
}

func (d *derivation) missing(metric models.Metric, reason string) {
	d.log.Info().Err(common.Missing(string(metric), reason)).Msg("Ratio unavailable")
}

func (d *derivation) debtToEquity() {
	if d.in.Balance == nil {
		if d.in.Reported.DebtToEquity == nil {
			d.missing(models.MetricDebtToEquity, "balance sheet not available")
			return
		}
		d.rec.DebtToEquity = d.in.Reported.DebtToEquity
		d.log.Warn().
			Float64("debt_to_equity", *d.rec.DebtToEquity).
			Msg("Balance sheet not available; using provider debt/equity (lower confidence)")
		return
	}
	if d.equity == nil || d.in.Balance.TotalLiabilities == nil {
		d.missing(models.MetricDebtToEquity, "liabilities or equity not reported")
		return
	}
	if *d.equity <= 0 {
		d.undefined(models.MetricDebtToEquity, "equity is not positive")
		return
	}
	d.rec.DebtToEquity = models.Float(*d.in.Balance.TotalLiabilities / *d.equity)

	lt, hasLT := models.Value(d.in.Balance.LongTermDebt)
	st, hasST := models.Value(d.in.Balance.ShortTermDebt)
	if hasLT || hasST {
		d.rec.InterestBearingDebtRatio = models.Float((lt + st) / *d.equity)
	}
}

func (d *derivation) priceToBook() {
	if d.equity != nil && d.shares != nil {
		d.rec.BookValuePerShare = models.Float(*d.equity / *d.shares)
	} else {
		d.rec.BookValuePerShare = d.in.Reported.BookValuePerShare
	}

	switch {
	case d.in.Balance == nil:
		d.missing(models.MetricPriceToBook, "balance sheet not available")
	case d.equity == nil:
		d.missing(models.MetricPriceToBook, "equity not reported")
	case d.shares == nil:
		d.missing(models.MetricPriceToBook, "shares outstanding not available")
	case d.price == nil:
		d.missing(models.MetricPriceToBook, "price not available")
	case *d.equity <= 0:
		d.undefined(models.MetricPriceToBook, "book value is not positive")
	default:
		bvps := *d.equity / *d.shares
		d.rec.PriceToBookRatio = models.Float(*d.price / bvps)
		d.compare(models.MetricPriceToBook, *d.rec.PriceToBookRatio, d.in.Reported.PriceToBook)
	}
}

func (d *derivation) currentRatio() {
	if d.in.Balance == nil {
		d.missing(models.MetricCurrentRatio, "balance sheet not available")
		return
	}
	ca, cl := d.in.Balance.TotalCurrentAssets, d.in.Balance.TotalCurrentLiabilities
	if ca == nil || cl == nil {
		d.missing(models.MetricCurrentRatio, "current assets or liabilities not reported")
		return
	}
	if *cl <= 0 {
		d.undefined(models.MetricCurrentRatio, "current liabilities are not positive")
		return
	}
	d.rec.CurrentRatio = models.Float(*ca / *cl)
}

func (d *derivation) returns() {
	var netIncome *float64
	if d.in.Income != nil {
		netIncome = d.in.Income.NetIncome
	}

	switch {
	case netIncome != nil && d.equity != nil && *d.equity > 0:
		d.rec.ReturnOnEquity = models.Float(*netIncome / *d.equity)
	case netIncome != nil && d.equity != nil:
		d.undefined(models.MetricROE, "equity is not positive")
	default:
		d.rec.ReturnOnEquity = d.in.Reported.ROE
	}

	var assets *float64
	if d.in.Balance != nil {
		assets = positive(d.in.Balance.TotalAssets)
	}
	if netIncome != nil && assets != nil {
		d.rec.ReturnOnAssets = models.Float(*netIncome / *assets)
	} else {
		d.rec.ReturnOnAssets = d.in.Reported.ROA
	}
}

func (d *derivation) priceToSales() {
	var revenue *float64
	if d.in.Income != nil {
		revenue = positive(d.in.Income.Revenue)
	}
	if revenue != nil && d.rec.MarketCap != nil {
		d.rec.PriceToSalesRatio = models.Float(*d.rec.MarketCap / *revenue)
		return
	}
	d.rec.PriceToSalesRatio = d.in.Reported.PriceToSales
}

// trailingEPS is the earnings figure the price is divided by.
func (d *derivation) trailingEPS() *float64 {
	var candidates []*float64
	if d.in.Latest && d.in.Quote != nil {
		candidates = append(candidates, d.in.Quote.EPS)
	}
	candidates = append(candidates, d.in.Reported.NetIncomePerShare)
	if d.in.Income != nil {
		candidates = append(candidates, d.in.Income.EPS)
	}
	return first(candidates...)
}

// currentEPS is the base of the growth rate.
func (d *derivation) currentEPS() *float64 {
	candidates := []*float64{d.in.Reported.NetIncomePerShare}
	if d.in.Income != nil {
		candidates = append(candidates, d.in.Income.EPS)
	}
	if d.in.Quote != nil {
		candidates = append(candidates, d.in.Quote.EPS)
	}
	return first(candidates...)
}

func (d *derivation) priceEarnings() {
	eps := d.trailingEPS()
	upstreamPE := d.in.Reported.PE

	switch {
	case d.price != nil && eps != nil && *eps > 0:
		d.rec.PERatio = models.Float(*d.price / *eps)
		d.compare(models.MetricPE, *d.rec.PERatio, upstreamPE)
	case upstreamPE != nil:
		d.rec.PERatio = upstreamPE
		d.log.Debug().Float64("pe_ratio", *upstreamPE).Msg("Price or positive EPS missing; using upstream P/E")
	case eps != nil && *eps <= 0:
		d.undefined(models.MetricPE, "trailing EPS is not positive")
	default:
		d.missing(models.MetricPE, "price or EPS not available")
	}
}

// compare records a discrepancy when a computed ratio diverges from the
// provider's figure by more than the configured percentage. The computed value stands.
func (d *derivation) compare(metric models.Metric, computed float64, reported *float64) {
	if reported == nil || *reported == 0 {
		return
	}
	diff := math.Abs(computed-*reported) / math.Abs(*reported) * 100
	if diff <= d.engine.discrepancyPct {
		return
	}
	d.rec.Discrepancies = append(d.rec.Discrepancies, string(metric))
	d.log.Warn().
		Str("metric", string(metric)).
		Float64("computed", computed).
		Float64("upstream", *reported).
		Float64("diff_pct", diff).
		Msg("Computed ratio diverges from upstream")
}

func (d *derivation) nextYearEPS() *float64 {
	target := d.rec.ReportYear + 1
	for _, est := range d.in.Estimates {
		if est != nil && est.FiscalYear == target {
			return est.EstimatedEPS
		}
	}
	return nil
}

func (d *derivation) forwardAndPEG() {
	nextEPS := d.nextYearEPS()

	if d.price != nil && nextEPS != nil && *nextEPS > 0 {
		d.rec.ForwardPE = models.Float(*d.price / *nextEPS)
	} else {
		d.rec.ForwardPE = d.in.Reported.ForwardPE
	}

	base := first(positive(d.rec.ForwardPE), d.rec.PERatio)
	current := d.currentEPS()

	if base == nil || nextEPS == nil || current == nil {
		if peg := d.in.Reported.PEG; peg != nil {
			d.rec.PEGRatio = d.applyPEGFloor(*peg)
		} else {
			d.missing(models.MetricPEG, "P/E, estimate or current EPS not available")
		}
		return
	}

	if math.Abs(*current) <= minCurrentEPS {
		d.undefined(models.MetricPEG, "current EPS too close to zero")
		return
	}
	growth := (*nextEPS - *current) / math.Abs(*current) * 100
	d.rec.EarningsGrowthPct = models.Float(growth)
	if growth <= 0 {
		d.undefined(models.MetricPEG, "earnings growth is not positive")
		return
	}
	d.rec.PEGRatio = d.applyPEGFloor(*base / growth)
}

func (d *derivation) applyPEGFloor(peg float64) *float64 {
	if peg < d.engine.pegFloor {
		d.log.Warn().Float64("peg_ratio", peg).Float64("floor", d.engine.pegFloor).Msg("PEG below sanity floor; discarding")
		return nil
	}
	return models.Float(peg)
}

func first(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

func product(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return models.Float(*a * *b)
}
