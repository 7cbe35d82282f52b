package models

import "time"

// EstimateRecord is one fiscal year's consensus forecast.
type EstimateRecord struct {
	Ticker           string    `json:"ticker"`
	FiscalYear       int       `json:"fiscal_year"`
	EstimatedEPS     *float64  `json:"estimated_eps"`
	EstimatedRevenue *float64  `json:"estimated_revenue"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// QuoteSnapshot is the current market quote used at derivation time. It is cached
// briefly and never persisted with statement semantics.
type QuoteSnapshot struct {
	Ticker            string    `json:"ticker"`
	Price             *float64  `json:"price"`
	EPS               *float64  `json:"eps"`
	SharesOutstanding *float64  `json:"shares_outstanding"`
	MarketCap         *float64  `json:"market_cap"`
	PE                *float64  `json:"pe"`
	FetchedAt         time.Time `json:"fetched_at"`
}
