package models

// Equity provenance markers.
const (
	EquityComputed = "computed" // total_assets - total_liabilities
	EquityReported = "reported" // upstream equity field, lower confidence
)

// IncomeStatement holds one period's income statement.
type IncomeStatement struct {
	FactHeader
	Revenue           *float64 `json:"revenue"`
	CostOfRevenue     *float64 `json:"cost_of_revenue"`
	GrossProfit       *float64 `json:"gross_profit"`
	OperatingIncome   *float64 `json:"operating_income"`
	OperatingExpenses *float64 `json:"operating_expenses"`
	NetIncome         *float64 `json:"net_income"`
	EBITDA            *float64 `json:"ebitda"`
	EPS               *float64 `json:"eps"`
	EPSDiluted        *float64 `json:"eps_diluted"`
}

// BalanceSheet holds one period's balance sheet. TotalEquity is always the
// accounting-identity value when assets and liabilities are both known.
type BalanceSheet struct {
	FactHeader
	TotalAssets                *float64 `json:"total_assets"`
	TotalCurrentAssets         *float64 `json:"total_current_assets"`
	TotalLiabilities           *float64 `json:"total_liabilities"`
	TotalCurrentLiabilities    *float64 `json:"total_current_liabilities"`
	TotalNonCurrentLiabilities *float64 `json:"total_noncurrent_liabilities"`
	TotalEquity                *float64 `json:"total_equity"`
	ReportedEquity             *float64 `json:"reported_equity"`
	EquitySource               string   `json:"equity_source"`
	Cash                       *float64 `json:"cash"`
	Inventory                  *float64 `json:"inventory"`
	AccountsReceivable         *float64 `json:"accounts_receivable"`
	AccountsPayable            *float64 `json:"accounts_payable"`
	LongTermDebt               *float64 `json:"long_term_debt"`
	ShortTermDebt              *float64 `json:"short_term_debt"`
}

// CashFlow holds one period's cash flow statement.
type CashFlow struct {
	FactHeader
	OperatingCashFlow      *float64 `json:"operating_cash_flow"`
	InvestingCashFlow      *float64 `json:"investing_cash_flow"`
	FinancingCashFlow      *float64 `json:"financing_cash_flow"`
	CapitalExpenditure     *float64 `json:"capital_expenditure"`
	FreeCashFlow           *float64 `json:"free_cash_flow"`
	StockBasedCompensation *float64 `json:"stock_based_compensation"`
	CommonStockRepurchased *float64 `json:"common_stock_repurchased"`
	DividendsPaid          *float64 `json:"dividends_paid"`
}
