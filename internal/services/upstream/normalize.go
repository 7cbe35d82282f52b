package upstream

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Provider field names per canonical concept, highest priority first.
var (
	fieldsPE                = []string{"peRatio", "priceEarningsRatio"}
	fieldsForwardPE         = []string{"forwardPE", "peRatioForward"}
	fieldsPEG               = []string{"priceEarningsToGrowthRatio", "pegRatio", "pegRatioTTM"}
	fieldsPriceToSales      = []string{"priceToSalesRatio", "priceToSalesRatioTTM"}
	fieldsPriceToBook       = []string{"priceToBookRatio", "priceBookValueRatio", "pbRatio"}
	fieldsEVToEBITDA        = []string{"enterpriseValueOverEBITDA", "enterpriseValueEbitdaRatio"}
	fieldsROE               = []string{"returnOnEquity", "returnOnEquityTTM", "roe"}
	fieldsROA               = []string{"returnOnAssets", "returnOnAssetsTTM"}
	fieldsDebtToEquity      = []string{"debtToEquity", "debtEquityRatio", "debtEquityTTM"}
	fieldsCurrentRatio      = []string{"currentRatio", "currentRatioTTM"}
	fieldsShares            = []string{"weightedAverageSharesOutstanding", "sharesOutstanding", "commonStockSharesOutstanding", "weightedAverageShsOut"}
	fieldsReportedEquity    = []string{"totalStockholdersEquity", "totalShareholderEquity", "totalEquity"}
	fieldsCash              = []string{"cashAndShortTermInvestments", "cashAndCashEquivalents"}
	fieldsAccountsPayable   = []string{"accountPayables", "accountsPayables"}
	fieldsOperatingCashFlow = []string{"netCashProvidedByOperatingActivities", "operatingCashFlow"}
	fieldsInvestingCashFlow = []string{"netCashUsedForInvestingActivites", "investmentCashFlow"}
	fieldsFinancingCashFlow = []string{"netCashUsedProvidedByFinancingActivities", "financingCashFlow"}
	fieldsEstimatedEPS      = []string{"estimatedEpsAvg", "estimatedEps"}
)

var dateLayouts = []string{models.DateLayout, time.RFC3339, "2006-01-02 15:04:05"}

// Lookup returns the first non-null, numerically coercible field among names.
func Lookup(rec models.RawRecord, names ...string) *float64 {
	for _, name := range names {
		v, ok := rec[name]
		if !ok {
			continue
		}
		if f, ok := coerce(v); ok {
			return &f
		}
	}
	return nil
}

func coerce(v gjson.Result) (float64, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "")
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseReportDate parses a provider date into a UTC calendar date.
func ParseReportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func reportYear(rec models.RawRecord, reportDate time.Time) int {
	if v, ok := rec["calendarYear"]; ok {
		if f, ok := coerce(v); ok && f >= 1900 && f <= 2200 {
			return int(f)
		}
	}
	return reportDate.Year()
}

// Normalizer maps raw provider rows onto canonical records.
type Normalizer struct {
	now func() time.Time // injectable clock for testing
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// WithClock returns a copy of the normalizer that stamps records with now().
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Header builds the key and timestamps for the idx'th row of a batch.
func (n *Normalizer) Header(ticker string, g models.Granularity, idx int, rec models.RawRecord) (models.FactHeader, error) {
	date := rec.Date()
	if date == "" {
		return models.FactHeader{}, &common.RecordError{Index: idx, Reason: "missing date"}
	}
	reportDate, err := ParseReportDate(date)
	if err != nil {
		return models.FactHeader{}, &common.RecordError{Index: idx, Date: date, Reason: "unparseable date"}
	}
	now := n.now().UTC()
	return models.FactHeader{
		Ticker:      strings.ToUpper(ticker),
		Granularity: g,
		ReportDate:  reportDate,
		ReportYear:  reportYear(rec, reportDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IncomeStatement normalizes one income statement row.
func (n *Normalizer) IncomeStatement(ticker string, g models.Granularity, idx int, rec models.RawRecord) (*models.IncomeStatement, error) {
	h, err := n.Header(ticker, g, idx, rec)
	if err != nil {
		return nil, err
	}
	return &models.IncomeStatement{
		FactHeader:        h,
		Revenue:           Lookup(rec, "revenue"),
		CostOfRevenue:     Lookup(rec, "costOfRevenue"),
		GrossProfit:       Lookup(rec, "grossProfit"),
		OperatingIncome:   Lookup(rec, "operatingIncome"),
		OperatingExpenses: Lookup(rec, "operatingExpenses"),
		NetIncome:         Lookup(rec, "netIncome"),
		EBITDA:            Lookup(rec, "ebitda"),
		EPS:               Lookup(rec, "eps"),
		EPSDiluted:        Lookup(rec, "epsdiluted", "epsDiluted"),
	}, nil
}

// BalanceSheet normalizes one balance sheet row. TotalEquity follows the
// accounting identity whenever assets and liabilities are both present.
func (n *Normalizer) BalanceSheet(ticker string, g models.Granularity, idx int, rec models.RawRecord) (*models.BalanceSheet, error) {
	h, err := n.Header(ticker, g, idx, rec)
	if err != nil {
		return nil, err
	}
	bs := &models.BalanceSheet{
		FactHeader:                 h,
		TotalAssets:                Lookup(rec, "totalAssets"),
		TotalCurrentAssets:         Lookup(rec, "totalCurrentAssets"),
		TotalLiabilities:           Lookup(rec, "totalLiabilities"),
		TotalCurrentLiabilities:    Lookup(rec, "totalCurrentLiabilities"),
		TotalNonCurrentLiabilities: Lookup(rec, "totalNonCurrentLiabilities"),
		ReportedEquity:             Lookup(rec, fieldsReportedEquity...),
		Cash:                       Lookup(rec, fieldsCash...),
		Inventory:                  Lookup(rec, "inventory"),
		AccountsReceivable:         Lookup(rec, "netReceivables"),
		AccountsPayable:            Lookup(rec, fieldsAccountsPayable...),
		LongTermDebt:               Lookup(rec, "longTermDebt"),
		ShortTermDebt:              Lookup(rec, "shortTermDebt"),
	}
	bs.TotalEquity, bs.EquitySource = ResolveEquity(bs)
	return bs, nil
}

// ResolveEquity returns assets - liabilities when both are known, otherwise
// the upstream-reported equity marked as lower confidence.
func ResolveEquity(bs *models.BalanceSheet) (*float64, string) {
	if bs == nil {
		return nil, ""
	}
	if bs.TotalAssets != nil && bs.TotalLiabilities != nil {
		return models.Float(*bs.TotalAssets - *bs.TotalLiabilities), models.EquityComputed
	}
	if bs.ReportedEquity != nil {
		return models.Float(*bs.ReportedEquity), models.EquityReported
	}
	return nil, ""
}

// CashFlow normalizes one cash flow row, deriving free cash flow when absent.
func (n *Normalizer) CashFlow(ticker string, g models.Granularity, idx int, rec models.RawRecord) (*models.CashFlow, error) {
	h, err := n.Header(ticker, g, idx, rec)
	if err != nil {
		return nil, err
	}
	cf := &models.CashFlow{
		FactHeader:             h,
		OperatingCashFlow:      Lookup(rec, fieldsOperatingCashFlow...),
		InvestingCashFlow:      Lookup(rec, fieldsInvestingCashFlow...),
		FinancingCashFlow:      Lookup(rec, fieldsFinancingCashFlow...),
		CapitalExpenditure:     Lookup(rec, "capitalExpenditure"),
		FreeCashFlow:           Lookup(rec, "freeCashFlow"),
		StockBasedCompensation: Lookup(rec, "stockBasedCompensation"),
		CommonStockRepurchased: Lookup(rec, "commonStockRepurchased"),
		DividendsPaid:          Lookup(rec, "dividendsPaid"),
	}
	if cf.FreeCashFlow == nil && cf.OperatingCashFlow != nil && cf.CapitalExpenditure != nil {
		cf.FreeCashFlow = models.Float(*cf.OperatingCashFlow - math.Abs(*cf.CapitalExpenditure))
	}
	return cf, nil
}

// Estimate normalizes one analyst estimate row keyed by fiscal year.
func (n *Normalizer) Estimate(ticker string, idx int, rec models.RawRecord) (*models.EstimateRecord, error) {
	date := rec.Date()
	d, err := ParseReportDate(date)
	if err != nil {
		return nil, &common.RecordError{Index: idx, Date: date, Reason: "unparseable estimate date"}
	}
	return &models.EstimateRecord{
		Ticker:           strings.ToUpper(ticker),
		FiscalYear:       d.Year(),
		EstimatedEPS:     Lookup(rec, fieldsEstimatedEPS...),
		EstimatedRevenue: Lookup(rec, "estimatedRevenueAvg"),
		FetchedAt:        n.now().UTC(),
	}, nil
}

// Quote normalizes a quote row.
func (n *Normalizer) Quote(ticker string, rec models.RawRecord) *models.QuoteSnapshot {
	if rec == nil {
		return nil
	}
	return &models.QuoteSnapshot{
		Ticker:            strings.ToUpper(ticker),
		Price:             Lookup(rec, "price"),
		EPS:               Lookup(rec, "eps"),
		SharesOutstanding: Lookup(rec, "sharesOutstanding"),
		MarketCap:         Lookup(rec, "marketCap"),
		PE:                Lookup(rec, "pe"),
		FetchedAt:         n.now().UTC(),
	}
}

// ReportedMetrics are the provider's own ratio figures for one period. They
// are only used where a value cannot be computed from persisted statements.
type ReportedMetrics struct {
	PE                   *float64
	ForwardPE            *float64
	PEG                  *float64
	PriceToSales         *float64
	PriceToBook          *float64
	EVToEBITDA           *float64
	ROE                  *float64
	ROA                  *float64
	DebtToEquity         *float64
	CurrentRatio         *float64
	RevenuePerShare      *float64
	NetIncomePerShare    *float64
	BookValuePerShare    *float64
	FreeCashFlowPerShare *float64
	DividendYield        *float64
	Shares               *float64
	MarketCap            *float64
}

// Reported extracts provider ratios from a merged metrics/ratios row.
func Reported(rec models.RawRecord) ReportedMetrics {
	return ReportedMetrics{
		PE:                   Lookup(rec, fieldsPE...),
		ForwardPE:            Lookup(rec, fieldsForwardPE...),
		PEG:                  Lookup(rec, fieldsPEG...),
		PriceToSales:         Lookup(rec, fieldsPriceToSales...),
		PriceToBook:          Lookup(rec, fieldsPriceToBook...),
		EVToEBITDA:           Lookup(rec, fieldsEVToEBITDA...),
		ROE:                  Lookup(rec, fieldsROE...),
		ROA:                  Lookup(rec, fieldsROA...),
		DebtToEquity:         Lookup(rec, fieldsDebtToEquity...),
		CurrentRatio:         Lookup(rec, fieldsCurrentRatio...),
		RevenuePerShare:      Lookup(rec, "revenuePerShare"),
		NetIncomePerShare:    Lookup(rec, "netIncomePerShare"),
		BookValuePerShare:    Lookup(rec, "bookValuePerShare"),
		FreeCashFlowPerShare: Lookup(rec, "freeCashFlowPerShare"),
		DividendYield:        Lookup(rec, "dividendYield"),
		Shares:               Lookup(rec, fieldsShares...),
		MarketCap:            Lookup(rec, "marketCap"),
	}
}

// MergeByDate joins key-metrics and ratio rows on their date field. A ratio
// value overrides a metrics value only when it is non-null. Rows without a
// date are dropped. The result is ordered newest date first.
func MergeByDate(metrics, ratios []models.RawRecord) []models.RawRecord {
	byDate := make(map[string]models.RawRecord)
	for _, batch := range [][]models.RawRecord{metrics, ratios} {
		for _, rec := range batch {
			date := rec.Date()
			if date == "" {
				continue
			}
			merged, ok := byDate[date]
			if !ok {
				merged = make(models.RawRecord, len(rec))
				byDate[date] = merged
			}
			merged.MergeNonNull(rec)
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	out := make([]models.RawRecord, 0, len(dates))
	for _, d := range dates {
		out = append(out, byDate[d])
	}
	return out
}
