package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keymetrics/internal/models"
)

func series(pe ...*float64) []*models.KeyMetricsRecord {
	out := make([]*models.KeyMetricsRecord, len(pe))
	for i, v := range pe {
		out[i] = &models.KeyMetricsRecord{
			FactHeader: models.FactHeader{
				Ticker:      "AAPL",
				Granularity: models.GranularityAnnual,
				ReportDate:  time.Date(2024-i, 9, 30, 0, 0, 0, 0, time.UTC),
			},
			PERatio: v,
		}
	}
	return out
}

func TestTrailingAverage_ExcludesNonPositive(t *testing.T) {
	s := series(models.Float(30), models.Float(-10), models.Float(25), models.Float(28), models.Float(27))

	avg := TrailingAverage(s, models.MetricPE, 5)
	require.NotNil(t, avg)
	assert.InDelta(t, 27.5, *avg, 1e-9)
}

func TestTrailingAverage_WindowAndNulls(t *testing.T) {
	s := series(models.Float(10), nil, models.Float(0), models.Float(20), models.Float(30), models.Float(1000))

	avg := TrailingAverage(s, models.MetricPE, 5)
	require.NotNil(t, avg)
	assert.InDelta(t, 20.0, *avg, 1e-9, "only the first five periods count")

	assert.Nil(t, TrailingAverage(series(nil, models.Float(-1)), models.MetricPE, 5))
	assert.Nil(t, TrailingAverage(nil, models.MetricPE, 5))
}

func TestYearOverYear(t *testing.T) {
	s := series(models.Float(30), models.Float(36))

	c := YearOverYear(s[0], s[1], models.MetricPE)
	require.NotNil(t, c)
	assert.Equal(t, -16.67, c.PctChange)
	assert.Equal(t, 36.0, c.Previous)
}

func TestYearOverYear_NegativePrevious(t *testing.T) {
	s := series(models.Float(5), models.Float(-10))

	c := YearOverYear(s[0], s[1], models.MetricPE)
	require.NotNil(t, c)
	assert.Equal(t, 150.0, c.PctChange)
}

func TestYearOverYear_Undefined(t *testing.T) {
	assert.Nil(t, YearOverYear(series(models.Float(5), models.Float(0))[0], series(models.Float(5), models.Float(0))[1], models.MetricPE))

	s := series(nil, models.Float(10))
	assert.Nil(t, YearOverYear(s[0], s[1], models.MetricPE))

	s = series(models.Float(10), nil)
	assert.Nil(t, YearOverYear(s[0], s[1], models.MetricPE))
}

func TestBuildViews(t *testing.T) {
	s := series(models.Float(30), models.Float(-10), models.Float(25), models.Float(28), models.Float(27), models.Float(99))
	s[0].DebtToEquity = models.Float(1.1)
	s[1].DebtToEquity = models.Float(1.0)

	views := DefaultAggregator().BuildViews(s)
	require.Len(t, views, 2)
	assert.Same(t, s[0], views[0].KeyMetricsRecord)
	assert.Same(t, s[1], views[1].KeyMetricsRecord)

	assert.InDelta(t, 27.5, views[0].TrailingAverages[models.MetricPE], 1e-9)
	assert.InDelta(t, 1.05, views[0].TrailingAverages[models.MetricDebtToEquity], 1e-9)
	_, hasPB := views[0].TrailingAverages[models.MetricPriceToBook]
	assert.False(t, hasPB)

	assert.Equal(t, 10.0, views[0].YoY[models.MetricDebtToEquity].PctChange)
	assert.Equal(t, 400.0, views[0].YoY[models.MetricPE].PctChange)

	assert.Nil(t, views[1].YoY)
	assert.Nil(t, views[1].TrailingAverages)
}

func TestBuildViews_ShortHistory(t *testing.T) {
	views := DefaultAggregator().BuildViews(series(models.Float(30), models.Float(25)))
	require.Len(t, views, 2)
	assert.Nil(t, views[0].TrailingAverages, "averages need at least three periods")
	assert.Equal(t, 20.0, views[0].YoY[models.MetricPE].PctChange)

	views = DefaultAggregator().BuildViews(series(models.Float(30)))
	require.Len(t, views, 1)
	assert.Nil(t, views[0].YoY)

	assert.Nil(t, DefaultAggregator().BuildViews(nil))
}
