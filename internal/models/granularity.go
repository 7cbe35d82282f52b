// Package models defines data structures for keymetrics
package models

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/keymetrics/internal/common"
)

// Granularity is the reporting cadence of a statement or metrics row.
type Granularity string

const (
	GranularityAnnual  Granularity = "annual"
	GranularityQuarter Granularity = "quarter"
)

// ParseGranularity canonicalizes user and provider spellings onto the
// {annual, quarter} enum. Unknown values are rejected, never defaulted.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annual", "annually", "year", "yearly", "fy":
		return GranularityAnnual, nil
	case "quarter", "quarterly", "q":
		return GranularityQuarter, nil
	default:
		return "", fmt.Errorf("%w: %q (want annual or quarter)", common.ErrInvalidGranularity, s)
	}
}

// StatementType names one of the three persisted financial statements.
type StatementType string

const (
	StatementIncome       StatementType = "income_statement"
	StatementBalanceSheet StatementType = "balance_sheet"
	StatementCashFlow     StatementType = "cash_flow"
)

// ParseStatementType accepts the canonical names and common short forms.
func ParseStatementType(s string) (StatementType, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "income", "income_statement", "is":
		return StatementIncome, nil
	case "balance", "balance_sheet", "balance_sheet_statement", "bs":
		return StatementBalanceSheet, nil
	case "cash_flow", "cashflow", "cash_flow_statement", "cf":
		return StatementCashFlow, nil
	default:
		return "", fmt.Errorf("%w: unknown statement type %q", common.ErrInvalidArgument, s)
	}
}

// AllStatementTypes lists the statement types in dependency order.
var AllStatementTypes = []StatementType{StatementIncome, StatementBalanceSheet, StatementCashFlow}
