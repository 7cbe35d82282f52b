// Package analysis scores a derived key metrics series
package analysis

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Badges awarded by the valuation analyzer.
const (
	BadgeHighEfficiency    = "High Efficiency"
	BadgeAssetPlay         = "Asset Play"
	BadgeUndervaluedGrowth = "Undervalued Growth"
	BadgeNegativeEquity    = "Negative Equity"
)

const baseScore = 50

// ValuationAnalyzer implements Analyzer. It is a pure function of its input.
type ValuationAnalyzer struct{}

// NewValuationAnalyzer creates a valuation analyzer
func NewValuationAnalyzer() *ValuationAnalyzer {
	return &ValuationAnalyzer{}
}

type scorecard struct {
	score    int
	badges   []string
	insights []string
}

func (c *scorecard) add(points int, format string, args ...any) {
	c.score += points
	c.insights = append(c.insights, fmt.Sprintf(format, args...))
}

// Analyze scores the newest record of series (newest first) and adds context
// from the rest of the history.
func (a *ValuationAnalyzer) Analyze(series []*models.KeyMetricsRecord) *models.Analysis {
	if len(series) == 0 || series[0] == nil {
		return &models.Analysis{
			Score:    0,
			Status:   models.StatusNeutral,
			Badges:   []string{},
			Insights: []string{"insufficient data"},
		}
	}

	latest := series[0]
	c := &scorecard{score: baseScore}

	pe, hasPE := models.Value(latest.PERatio)
	if hasPE && pe > 0 {
		switch {
		case pe < 15:
			c.add(10, "P/E of %.1f is below 15, a low valuation", pe)
		case pe > 30:
			c.add(-10, "P/E of %.1f is above 30, a demanding valuation", pe)
		}
	}

	if fwd, ok := models.Value(latest.ForwardPE); ok && fwd != 0 && hasPE && pe != 0 {
		if fwd < pe {
			c.add(5, "Forward P/E of %.1f is below trailing %.1f; earnings expected to improve", fwd, pe)
		} else {
			c.add(0, "Forward P/E of %.1f is at or above trailing %.1f; earnings expected to slow", fwd, pe)
		}
	}

	pb, hasPB := models.Value(latest.PriceToBookRatio)
	roe, hasROE := models.Value(latest.ReturnOnEquity)
	if hasPB && pb != 0 && hasROE && roe != 0 {
		switch {
		case pb > 3 && roe > 0.20:
			c.badges = append(c.badges, BadgeHighEfficiency)
			c.add(10, "P/B of %.1f is high but justified by ROE of %.1f%%", pb, roe*100)
		case pb > 3:
			c.add(-10, "P/B of %.1f is high with ROE of only %.1f%%", pb, roe*100)
		case pb < 1:
			c.badges = append(c.badges, BadgeAssetPlay)
			c.add(5, "P/B of %.2f is below book value", pb)
		}
	}

	if peg, ok := models.Value(latest.PEGRatio); ok {
		switch {
		case peg > 0 && peg < 1:
			c.badges = append(c.badges, BadgeUndervaluedGrowth)
			c.add(15, "PEG of %.2f is below 1, cheap relative to growth", peg)
		case peg > 2:
			c.add(-5, "PEG of %.2f is above 2, a steep premium for growth", peg)
		}
	}

	if latest.NegativeEquity {
		c.badges = append(c.badges, BadgeNegativeEquity)
		c.add(-15, "Liabilities exceed assets; debt/equity is undefined")
	}

	if len(latest.Discrepancies) > 0 {
		c.add(0, "Computed %s differ from provider figures by more than 10%%", strings.Join(latest.Discrepancies, ", "))
	}

	if hasPE && pe > 0 && len(series) > 1 {
		if avg := averagePositive(series, models.MetricPE); avg > 0 {
			c.add(0, "P/E of %.1f versus %.1f average over %d periods", pe, avg, len(series))
		}
	}

	score := clamp(c.score, 0, 100)
	if c.badges == nil {
		c.badges = []string{}
	}
	return &models.Analysis{
		Score:    score,
		Status:   statusFor(score),
		Badges:   c.badges,
		Insights: c.insights,
	}
}

func statusFor(score int) models.AnalysisStatus {
	switch {
	case score >= 80:
		return models.StatusGood
	case score >= 50:
		return models.StatusNeutral
	case score >= 30:
		return models.StatusWarning
	default:
		return models.StatusBad
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func averagePositive(series []*models.KeyMetricsRecord, m models.Metric) float64 {
	var sum float64
	n := 0
	for _, rec := range series {
		if v, ok := models.Value(rec.Field(m)); ok && v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Compile-time check
var _ interfaces.Analyzer = (*ValuationAnalyzer)(nil)
