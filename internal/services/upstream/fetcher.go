// Package upstream fetches raw provider rows and normalizes them onto canonical facts
package upstream

import (
	"context"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Source names one upstream dataset.
type Source string

const (
	SourceIncome       = Source(models.StatementIncome)
	SourceBalanceSheet = Source(models.StatementBalanceSheet)
	SourceCashFlow     = Source(models.StatementCashFlow)
	SourceKeyMetrics   Source = "key_metrics"
	SourceRatios       Source = "ratios"
	SourceQuote        Source = "quote"
	SourceEstimates    Source = "estimates"
)

// Fetcher wraps a FundamentalsClient with the degrade-to-cache policy:
// an upstream failure is logged and yields no rows, never an error.
type Fetcher struct {
	client interfaces.FundamentalsClient
	logger *common.Logger
}

// NewFetcher creates a fetcher. client may be nil when no API key is configured,
// in which case every fetch returns no rows.
func NewFetcher(client interfaces.FundamentalsClient, logger *common.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// FetchRaw retrieves rows for one dataset.
func (f *Fetcher) FetchRaw(ctx context.Context, ticker string, src Source, g models.Granularity, limit int) []models.RawRecord {
	if f.client == nil {
		f.logger.Warn().Str("ticker", ticker).Str("source", string(src)).Msg("No upstream client configured; using cached data")
		return nil
	}

	var (
		records []models.RawRecord
		err     error
	)
	switch src {
	case SourceIncome, SourceBalanceSheet, SourceCashFlow:
		records, err = f.client.GetStatements(ctx, ticker, models.StatementType(src), g, limit)
	case SourceKeyMetrics:
		records, err = f.client.GetKeyMetrics(ctx, ticker, g, limit)
	case SourceRatios:
		records, err = f.client.GetRatios(ctx, ticker, g, limit)
	case SourceQuote:
		var rec models.RawRecord
		rec, err = f.client.GetQuote(ctx, ticker)
		if rec != nil {
			records = []models.RawRecord{rec}
		}
	case SourceEstimates:
		records, err = f.client.GetEstimates(ctx, ticker, limit)
	default:
		f.logger.Error().Str("source", string(src)).Msg("Unknown upstream source")
		return nil
	}

	if err != nil {
		f.logger.Warn().
			Err(err).
			Str("ticker", ticker).
			Str("source", string(src)).
			Str("granularity", string(g)).
			Msg("Upstream fetch failed; using cached data")
		return nil
	}

	f.logger.Debug().
		Str("ticker", ticker).
		Str("source", string(src)).
		Int("rows", len(records)).
		Msg("Upstream fetch complete")

	return records
}
