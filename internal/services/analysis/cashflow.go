package analysis

import (
	"math"

	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Badges awarded by the cash flow analyzer.
const (
	BadgeStrongCashConversion = "Strong Cash Conversion"
	BadgeCashCow              = "Cash Cow"
	BadgeShareholderFriendly  = "Shareholder Friendly"
)

// CashFlowAnalyzer scores earnings quality and capital allocation from the
// newest cash flow statement and the income it is measured against.
type CashFlowAnalyzer struct{}

// NewCashFlowAnalyzer creates a cash flow analyzer
func NewCashFlowAnalyzer() *CashFlowAnalyzer {
	return &CashFlowAnalyzer{}
}

// AnalyzeCashFlows scores flows[0] (newest first). income may be nil, in
// which case the conversion and margin checks are skipped.
func (a *CashFlowAnalyzer) AnalyzeCashFlows(flows []*models.CashFlow, income *models.IncomeSummary) *models.CashFlowAnalysis {
	if len(flows) == 0 || flows[0] == nil {
		return &models.CashFlowAnalysis{
			Analysis: models.Analysis{
				Score:    0,
				Status:   models.StatusNeutral,
				Badges:   []string{},
				Insights: []string{"no cash flow data"},
			},
		}
	}

	latest := flows[0]
	m := cashFlowMetrics(latest)

	var netIncome, revenue float64
	if income != nil {
		netIncome, _ = models.Value(income.NetIncome)
		revenue, _ = models.Value(income.Revenue)
	}

	c := &scorecard{score: baseScore}

	if netIncome > 0 {
		ratio := m.OperatingCashFlow / netIncome
		m.ConversionRatio = models.Float(ratio)
		switch {
		case ratio > 1.0:
			c.badges = append(c.badges, BadgeStrongCashConversion)
			c.add(10, "Operating cash flow is %.1fx net income, high-quality earnings", ratio)
		case ratio < 0.8:
			c.add(-10, "Operating cash flow is only %.1fx net income; check earnings quality", ratio)
		}
	}

	if revenue > 0 {
		margin := m.FreeCashFlow / revenue
		m.FCFMargin = models.Float(margin)
		if margin > 0.20 {
			c.badges = append(c.badges, BadgeCashCow)
			c.add(10, "%.1f%% of revenue is left as free cash flow", margin*100)
		}
	}

	if m.ShareholderReturn > 0 {
		c.badges = append(c.badges, BadgeShareholderFriendly)
		c.add(10, "Returned %.0f to shareholders through buybacks and dividends", m.ShareholderReturn)
		if m.StockBasedCompensation > m.Buybacks {
			c.add(-5, "Stock-based compensation exceeds buybacks; shareholders are being diluted")
		}
	}

	score := clamp(c.score, 0, 100)
	if c.badges == nil {
		c.badges = []string{}
	}
	if c.insights == nil {
		c.insights = []string{}
	}
	return &models.CashFlowAnalysis{
		Analysis: models.Analysis{
			Score:    score,
			Status:   statusFor(score),
			Badges:   c.badges,
			Insights: c.insights,
		},
		ReportDate: latest.ReportDate,
		Metrics:    m,
	}
}

func cashFlowMetrics(cf *models.CashFlow) models.CashFlowMetrics {
	ocf, _ := models.Value(cf.OperatingCashFlow)
	capex, _ := models.Value(cf.CapitalExpenditure)
	capex = math.Abs(capex)

	fcf, ok := models.Value(cf.FreeCashFlow)
	if !ok || fcf == 0 {
		fcf = ocf - capex
	}

	buybacks, _ := models.Value(cf.CommonStockRepurchased)
	dividends, _ := models.Value(cf.DividendsPaid)
	sbc, _ := models.Value(cf.StockBasedCompensation)
	buybacks, dividends = math.Abs(buybacks), math.Abs(dividends)

	return models.CashFlowMetrics{
		OperatingCashFlow:      ocf,
		FreeCashFlow:           fcf,
		CapitalExpenditure:     capex,
		Buybacks:               buybacks,
		Dividends:              dividends,
		ShareholderReturn:      buybacks + dividends,
		TotalCapitalAllocation: buybacks + dividends + capex,
		StockBasedCompensation: sbc,
	}
}

// Compile-time check
var _ interfaces.CashFlowAnalyzer = (*CashFlowAnalyzer)(nil)
