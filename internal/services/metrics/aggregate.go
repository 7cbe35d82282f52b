package metrics

import (
	"math"

	"github.com/bobmcallan/keymetrics/internal/models"
)

// Metrics averaged over the trailing window.
var averagedMetrics = []models.Metric{
	models.MetricPE,
	models.MetricPriceToBook,
	models.MetricPEG,
	models.MetricPriceToSales,
	models.MetricDebtToEquity,
}

// Metrics compared between the latest and previous period.
var yoyMetrics = []models.Metric{
	models.MetricDebtToEquity,
	models.MetricCurrentRatio,
	models.MetricPE,
	models.MetricPriceToBook,
	models.MetricROE,
	models.MetricROA,
	models.MetricPEG,
}

// TrailingAverage returns the mean of the positive values of metric across the
// first n records of series (newest first), or nil when none qualify.
// Non-positive values are excluded, not clamped.
func TrailingAverage(series []*models.KeyMetricsRecord, metric models.Metric, n int) *float64 {
	if n > 0 && len(series) > n {
		series = series[:n]
	}
	var sum float64
	count := 0
	for _, rec := range series {
		v, ok := models.Value(rec.Field(metric))
		if !ok || v <= 0 {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return nil
	}
	return models.Float(sum / float64(count))
}

// YearOverYear returns the percentage change of metric from previous to latest,
// rounded to two decimals. It is nil unless both values exist and previous is non-zero.
func YearOverYear(latest, previous *models.KeyMetricsRecord, metric models.Metric) *models.YoYChange {
	l, ok := models.Value(latest.Field(metric))
	if !ok {
		return nil
	}
	p, ok := models.Value(previous.Field(metric))
	if !ok || p == 0 {
		return nil
	}
	return &models.YoYChange{
		PctChange: round2((l - p) / math.Abs(p) * 100),
		Previous:  p,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregator builds the caller-facing views over a derived series.
type Aggregator struct {
	TrailingPeriods   int // window for trailing averages
	MinAveragePeriods int // history needed before averages are reported
	RecordCount       int // views returned in Records
}

// DefaultAggregator returns the aggregator with the standard window sizes.
func DefaultAggregator() Aggregator {
	return Aggregator{TrailingPeriods: 5, MinAveragePeriods: 3, RecordCount: 2}
}

// BuildViews returns the latest periods of history (newest first). The first
// view carries trailing averages and year-over-year changes.
func (a Aggregator) BuildViews(history []*models.KeyMetricsRecord) []models.MetricsView {
	if len(history) == 0 {
		return nil
	}
	count := a.RecordCount
	if count <= 0 || count > len(history) {
		count = len(history)
	}

	views := make([]models.MetricsView, count)
	for i := 0; i < count; i++ {
		views[i] = models.MetricsView{KeyMetricsRecord: history[i]}
	}

	if len(history) >= a.MinAveragePeriods {
		averages := make(map[models.Metric]float64)
		for _, m := range averagedMetrics {
			if avg := TrailingAverage(history, m, a.TrailingPeriods); avg != nil {
				averages[m] = *avg
			}
		}
		if len(averages) > 0 {
			views[0].TrailingAverages = averages
		}
	}

	if len(history) >= 2 {
		changes := make(map[models.Metric]models.YoYChange)
		for _, m := range yoyMetrics {
			if c := YearOverYear(history[0], history[1], m); c != nil {
				changes[m] = *c
			}
		}
		if len(changes) > 0 {
			views[0].YoY = changes
		}
	}

	return views
}
