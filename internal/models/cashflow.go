package models

import "time"

// IncomeSummary is the income a cash flow period is measured against.
type IncomeSummary struct {
	ReportDate time.Time `json:"report_date"`
	NetIncome  *float64  `json:"net_income"`
	Revenue    *float64  `json:"revenue"`
}

// CashFlowMetrics are the figures a cash flow analysis was scored on.
// Outflows are reported as positive amounts.
type CashFlowMetrics struct {
	OperatingCashFlow      float64  `json:"operating_cash_flow"`
	FreeCashFlow           float64  `json:"free_cash_flow"`
	CapitalExpenditure     float64  `json:"capital_expenditure"`
	Buybacks               float64  `json:"buybacks"`
	Dividends              float64  `json:"dividends"`
	ShareholderReturn      float64  `json:"shareholder_return"`       // buybacks + dividends
	TotalCapitalAllocation float64  `json:"total_capital_allocation"` // buybacks + dividends + capex
	StockBasedCompensation float64  `json:"stock_based_compensation"`
	ConversionRatio        *float64 `json:"conversion_ratio"` // operating cash flow / net income
	FCFMargin              *float64 `json:"fcf_margin"`       // free cash flow / revenue
}

// CashFlowAnalysis scores the quality of the latest cash flow period and
// how its cash was allocated.
type CashFlowAnalysis struct {
	Analysis
	ReportDate time.Time       `json:"report_date"`
	Metrics    CashFlowMetrics `json:"metrics"`
}

// CashFlowReport is the response of the cash flow capability.
type CashFlowReport struct {
	Records       []*CashFlow       `json:"records"`
	IncomeSummary *IncomeSummary    `json:"income_summary,omitempty"`
	Analysis      *CashFlowAnalysis `json:"analysis,omitempty"`
}
