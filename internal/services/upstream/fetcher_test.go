package upstream

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
	tcommon "github.com/bobmcallan/keymetrics/tests/common"
)

func TestFetchRaw_Dispatch(t *testing.T) {
	client := tcommon.NewFakeClient().
		SetStatements(models.StatementBalanceSheet, tcommon.Rows(`[{"date":"2024-12-31"},{"date":"2023-12-31"}]`)).
		SetKeyMetrics(tcommon.Rows(`[{"date":"2024-12-31","peRatio":20}]`)).
		SetQuote(`{"price": 10}`)
	f := NewFetcher(client, common.NewSilentLogger())
	ctx := context.Background()

	assert.Len(t, f.FetchRaw(ctx, "AAPL", SourceBalanceSheet, models.GranularityAnnual, 5), 2)
	assert.Len(t, f.FetchRaw(ctx, "AAPL", SourceBalanceSheet, models.GranularityAnnual, 1), 1)
	assert.Len(t, f.FetchRaw(ctx, "AAPL", SourceKeyMetrics, models.GranularityAnnual, 5), 1)
	assert.Len(t, f.FetchRaw(ctx, "AAPL", SourceQuote, models.GranularityAnnual, 1), 1)
	assert.Empty(t, f.FetchRaw(ctx, "AAPL", SourceRatios, models.GranularityAnnual, 5))
	assert.Empty(t, f.FetchRaw(ctx, "AAPL", Source("bogus"), models.GranularityAnnual, 5))

	assert.Equal(t, 2, client.Calls(tcommon.StatementCall(models.StatementBalanceSheet)))
}

func TestFetchRaw_UpstreamFailureYieldsNoRows(t *testing.T) {
	client := tcommon.NewFakeClient().
		SetKeyMetrics(tcommon.Rows(`[{"date":"2024-12-31"}]`)).
		Fail(tcommon.CallKeyMetrics, fmt.Errorf("boom: %w", common.ErrUpstreamUnavailable))
	f := NewFetcher(client, common.NewSilentLogger())

	rows := f.FetchRaw(context.Background(), "AAPL", SourceKeyMetrics, models.GranularityAnnual, 5)
	assert.Empty(t, rows)
}

func TestFetchRaw_NoClient(t *testing.T) {
	f := NewFetcher(nil, common.NewSilentLogger())
	assert.Empty(t, f.FetchRaw(context.Background(), "AAPL", SourceQuote, models.GranularityAnnual, 1))
}
