package metrics

import (
	"fmt"
	"time"

	"github.com/bobmcallan/keymetrics/internal/models"
)

// BuildGlossary explains the latest period of result term by term. It returns
// nil when result has no records.
func BuildGlossary(result *models.KeyMetricsResult, now time.Time) *models.GlossaryResponse {
	if result == nil || len(result.Records) == 0 {
		return nil
	}
	latest := result.Records[0]
	r := latest.KeyMetricsRecord

	return &models.GlossaryResponse{
		Ticker:      result.Meta.Ticker,
		Granularity: result.Meta.Granularity,
		ReportDate:  r.ReportDate,
		GeneratedAt: now,
		Categories: []models.GlossaryCategory{
			buildValuationCategory(latest),
			buildLeverageCategory(latest),
			buildReturnsCategory(latest),
		},
	}
}

func buildValuationCategory(v models.MetricsView) models.GlossaryCategory {
	r := v.KeyMetricsRecord
	return models.GlossaryCategory{
		Name: "Valuation",
		Terms: []models.GlossaryTerm{
			{
				Term:       string(models.MetricPE),
				Label:      "P/E Ratio",
				Definition: "Price paid for each unit of trailing earnings. Undefined when earnings are not positive.",
				Formula:    "price / trailing EPS",
				Value:      r.PERatio,
				Example:    withAverage(v, models.MetricPE, fmtRatioCalc(r.Price, r.PERatio, "P/E")),
			},
			{
				Term:       string(models.MetricForwardPE),
				Label:      "Forward P/E",
				Definition: "Price relative to the analyst consensus EPS for the next fiscal year.",
				Formula:    "price / estimated EPS (report year + 1)",
				Value:      r.ForwardPE,
				Example:    fmtValue(r.ForwardPE),
			},
			{
				Term:       string(models.MetricPEG),
				Label:      "PEG Ratio",
				Definition: "P/E scaled by expected earnings growth. Below 1 suggests growth is cheap; undefined when growth is not positive.",
				Formula:    "forward P/E (or P/E) / earnings growth %",
				Value:      r.PEGRatio,
				Example:    fmtPEG(r),
			},
			{
				Term:       string(models.MetricPriceToBook),
				Label:      "Price/Book",
				Definition: "Price relative to book value per share, with equity taken as total assets minus total liabilities.",
				Formula:    "price / (equity / shares outstanding)",
				Value:      r.PriceToBookRatio,
				Example:    withAverage(v, models.MetricPriceToBook, fmtRatioCalc(r.Price, r.PriceToBookRatio, "P/B")),
			},
			{
				Term:       string(models.MetricPriceToSales),
				Label:      "Price/Sales",
				Definition: "Market capitalisation relative to revenue.",
				Formula:    "market cap / revenue",
				Value:      r.PriceToSalesRatio,
				Example:    fmtValue(r.PriceToSalesRatio),
			},
		},
	}
}

func buildLeverageCategory(v models.MetricsView) models.GlossaryCategory {
	r := v.KeyMetricsRecord

	equityNote := "equity computed from the balance sheet"
	if r.EquitySource == models.EquityReported {
		equityNote = "equity as reported upstream (low confidence)"
	}
	if r.NegativeEquity {
		equityNote = "equity is negative, so leverage ratios are undefined"
	}

	return models.GlossaryCategory{
		Name: "Leverage & Liquidity",
		Terms: []models.GlossaryTerm{
			{
				Term:       string(models.MetricDebtToEquity),
				Label:      "Debt/Equity",
				Definition: "Total liabilities carried per unit of shareholder equity.",
				Formula:    "total liabilities / (total assets - total liabilities)",
				Value:      r.DebtToEquity,
				Example:    withYoY(v, models.MetricDebtToEquity, fmt.Sprintf("%s; %s", fmtValue(r.DebtToEquity), equityNote)),
			},
			{
				Term:       "interest_bearing_debt_ratio",
				Label:      "Interest-Bearing Debt/Equity",
				Definition: "Borrowings only (long and short term debt) per unit of equity.",
				Formula:    "(long term debt + short term debt) / equity",
				Value:      r.InterestBearingDebtRatio,
				Example:    fmtValue(r.InterestBearingDebtRatio),
			},
			{
				Term:       string(models.MetricCurrentRatio),
				Label:      "Current Ratio",
				Definition: "Short-term assets available to cover short-term liabilities.",
				Formula:    "total current assets / total current liabilities",
				Value:      r.CurrentRatio,
				Example:    withYoY(v, models.MetricCurrentRatio, fmtValue(r.CurrentRatio)),
			},
		},
	}
}

func buildReturnsCategory(v models.MetricsView) models.GlossaryCategory {
	r := v.KeyMetricsRecord
	return models.GlossaryCategory{
		Name: "Returns",
		Terms: []models.GlossaryTerm{
			{
				Term:       string(models.MetricROE),
				Label:      "Return on Equity",
				Definition: "Net income earned per unit of shareholder equity.",
				Formula:    "net income / equity",
				Value:      r.ReturnOnEquity,
				Example:    withYoY(v, models.MetricROE, fmtPct(r.ReturnOnEquity)),
			},
			{
				Term:       string(models.MetricROA),
				Label:      "Return on Assets",
				Definition: "Net income earned per unit of total assets.",
				Formula:    "net income / total assets",
				Value:      r.ReturnOnAssets,
				Example:    withYoY(v, models.MetricROA, fmtPct(r.ReturnOnAssets)),
			},
			{
				Term:       string(models.MetricDividendYield),
				Label:      "Dividend Yield",
				Definition: "Annual dividends per share relative to price.",
				Value:      r.DividendYield,
				Example:    fmtPct(r.DividendYield),
			},
		},
	}
}

func fmtValue(v *float64) string {
	if v == nil {
		return "not available"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtPct(v *float64) string {
	if v == nil {
		return "not available"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

func fmtRatioCalc(price, ratio *float64, label string) string {
	if price == nil || ratio == nil || *ratio == 0 {
		return fmtValue(ratio)
	}
	return fmt.Sprintf("%.2f / %.2f = %s %.2f", *price, *price / *ratio, label, *ratio)
}

func fmtPEG(r *models.KeyMetricsRecord) string {
	if r.PEGRatio == nil || r.EarningsGrowthPct == nil {
		return fmtValue(r.PEGRatio)
	}
	return fmt.Sprintf("growth %.2f%% gives PEG %.2f", *r.EarningsGrowthPct, *r.PEGRatio)
}

func withAverage(v models.MetricsView, m models.Metric, example string) string {
	if avg, ok := v.TrailingAverages[m]; ok {
		return fmt.Sprintf("%s (trailing average %.2f)", example, avg)
	}
	return example
}

func withYoY(v models.MetricsView, m models.Metric, example string) string {
	if yoy, ok := v.YoY[m]; ok {
		return fmt.Sprintf("%s (%+.2f%% year over year from %.2f)", example, yoy.PctChange, yoy.Previous)
	}
	return example
}
