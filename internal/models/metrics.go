package models

import "time"

// KeyMetricsRecord holds the ratios derived for one period. CreatedAt is the
// derivation time and drives the metrics TTL.
type KeyMetricsRecord struct {
	FactHeader

	Price             *float64 `json:"price"`
	MarketCap         *float64 `json:"market_cap"`
	SharesOutstanding *float64 `json:"shares_outstanding"`

	PERatio           *float64 `json:"pe_ratio"`
	ForwardPE         *float64 `json:"forward_pe"`
	PEGRatio          *float64 `json:"peg_ratio"`
	EarningsGrowthPct *float64 `json:"earnings_growth_pct"`
	PriceToBookRatio  *float64 `json:"price_to_book_ratio"`
	PriceToSalesRatio *float64 `json:"price_to_sales_ratio"`
	EVToEBITDA        *float64 `json:"ev_to_ebitda"`

	DebtToEquity             *float64 `json:"debt_to_equity"`
	InterestBearingDebtRatio *float64 `json:"interest_bearing_debt_ratio"`
	CurrentRatio             *float64 `json:"current_ratio"`
	ReturnOnEquity           *float64 `json:"return_on_equity"`
	ReturnOnAssets           *float64 `json:"return_on_assets"`
	DividendYield            *float64 `json:"dividend_yield"`

	BookValuePerShare    *float64 `json:"book_value_per_share"`
	RevenuePerShare      *float64 `json:"revenue_per_share"`
	NetIncomePerShare    *float64 `json:"net_income_per_share"`
	FreeCashFlowPerShare *float64 `json:"free_cash_flow_per_share"`

	EquitySource   string   `json:"equity_source,omitempty"`
	NegativeEquity bool     `json:"negative_equity"`
	Discrepancies  []string `json:"discrepancies,omitempty"`
}

// Metric names a ratio field for aggregation and reporting.
type Metric string

const (
	MetricPE            Metric = "pe_ratio"
	MetricForwardPE     Metric = "forward_pe"
	MetricPEG           Metric = "peg_ratio"
	MetricPriceToBook   Metric = "price_to_book_ratio"
	MetricPriceToSales  Metric = "price_to_sales_ratio"
	MetricDebtToEquity  Metric = "debt_to_equity"
	MetricCurrentRatio  Metric = "current_ratio"
	MetricROE           Metric = "return_on_equity"
	MetricROA           Metric = "return_on_assets"
	MetricDividendYield Metric = "dividend_yield"
)

// Field returns the nullable value of the named metric, or nil for unknown names.
func (r *KeyMetricsRecord) Field(m Metric) *float64 {
	if r == nil {
		return nil
	}
	switch m {
	case MetricPE:
		return r.PERatio
	case MetricForwardPE:
		return r.ForwardPE
	case MetricPEG:
		return r.PEGRatio
	case MetricPriceToBook:
		return r.PriceToBookRatio
	case MetricPriceToSales:
		return r.PriceToSalesRatio
	case MetricDebtToEquity:
		return r.DebtToEquity
	case MetricCurrentRatio:
		return r.CurrentRatio
	case MetricROE:
		return r.ReturnOnEquity
	case MetricROA:
		return r.ReturnOnAssets
	case MetricDividendYield:
		return r.DividendYield
	}
	return nil
}

// YoYChange is the year-over-year movement of a single metric.
type YoYChange struct {
	PctChange float64 `json:"pct_change"`
	Previous  float64 `json:"previous_value"`
}

// MetricsView is a KeyMetricsRecord enriched for callers with YoY and trailing averages.
type MetricsView struct {
	*KeyMetricsRecord
	YoY              map[Metric]YoYChange `json:"yoy,omitempty"`
	TrailingAverages map[Metric]float64   `json:"trailing_averages,omitempty"`
}

// KeyMetricsMeta echoes the request scope.
type KeyMetricsMeta struct {
	Ticker      string      `json:"ticker"`
	Granularity Granularity `json:"granularity"`
	Refreshed   bool        `json:"refreshed"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// KeyMetricsResult is the response of GetKeyMetrics.
type KeyMetricsResult struct {
	Records  []MetricsView       `json:"records"`
	History  []*KeyMetricsRecord `json:"history"`
	Meta     KeyMetricsMeta      `json:"meta"`
	CashFlow *CashFlowAnalysis   `json:"cash_flow,omitempty"`
	Analysis *Analysis           `json:"analysis,omitempty"`
}
