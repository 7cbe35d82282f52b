package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keymetrics/internal/models"
)

func TestBuildGlossary_Empty(t *testing.T) {
	assert.Nil(t, BuildGlossary(nil, time.Now()))
	assert.Nil(t, BuildGlossary(&models.KeyMetricsResult{}, time.Now()))
}

func TestBuildGlossary_LiveExamples(t *testing.T) {
	date := time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC)
	rec := &models.KeyMetricsRecord{
		FactHeader:        models.FactHeader{Ticker: "AAPL", Granularity: models.GranularityAnnual, ReportDate: date},
		Price:             models.Float(180),
		PERatio:           models.Float(30),
		PEGRatio:          models.Float(0.9),
		EarningsGrowthPct: models.Float(25),
		DebtToEquity:      models.Float(1.5),
		ReturnOnEquity:    models.Float(0.25),
		EquitySource:      models.EquityComputed,
	}
	result := &models.KeyMetricsResult{
		Meta: models.KeyMetricsMeta{Ticker: "AAPL", Granularity: models.GranularityAnnual},
		Records: []models.MetricsView{{
			KeyMetricsRecord: rec,
			YoY:              map[models.Metric]models.YoYChange{models.MetricDebtToEquity: {PctChange: -16.67, Previous: 1.8}},
			TrailingAverages: map[models.Metric]float64{models.MetricPE: 27.5},
		}},
	}

	g := BuildGlossary(result, date)
	require.NotNil(t, g)
	assert.Equal(t, "AAPL", g.Ticker)
	require.Len(t, g.Categories, 3)

	terms := make(map[string]models.GlossaryTerm)
	for _, c := range g.Categories {
		for _, term := range c.Terms {
			terms[term.Term] = term
		}
	}

	pe := terms["pe_ratio"]
	assert.Equal(t, 30.0, *pe.Value)
	assert.Equal(t, "180.00 / 6.00 = P/E 30.00 (trailing average 27.50)", pe.Example)

	assert.Equal(t, "growth 25.00% gives PEG 0.90", terms["peg_ratio"].Example)
	assert.Contains(t, terms["debt_to_equity"].Example, "-16.67% year over year from 1.80")
	assert.Equal(t, "25.00%", terms["return_on_equity"].Example)
	assert.Nil(t, terms["price_to_book_ratio"].Value)
	assert.Equal(t, "not available", terms["price_to_book_ratio"].Example)
}

func TestBuildGlossary_NegativeEquityNote(t *testing.T) {
	rec := &models.KeyMetricsRecord{
		FactHeader:     models.FactHeader{Ticker: "DIST", Granularity: models.GranularityAnnual},
		NegativeEquity: true,
	}
	g := BuildGlossary(&models.KeyMetricsResult{Records: []models.MetricsView{{KeyMetricsRecord: rec}}}, time.Now())
	require.NotNil(t, g)

	de := g.Categories[1].Terms[0]
	assert.Equal(t, "debt_to_equity", de.Term)
	assert.Contains(t, de.Example, "equity is negative")
}
