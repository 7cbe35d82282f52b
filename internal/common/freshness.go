// Package common provides shared utilities for keymetrics
package common

import "time"

// Default freshness windows
const (
	FreshnessStatements = 90 * 24 * time.Hour // measured against report_date
	FreshnessMetrics    = 24 * time.Hour      // measured against created_at
	FreshnessQuote      = 5 * time.Minute
)

// IsFresh returns true if the given timestamp is within the TTL.
// The boundary is inclusive: a timestamp exactly ttl old is still fresh.
func IsFresh(updated time.Time, ttl time.Duration, now time.Time) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) <= ttl
}

// FreshnessPolicy decides whether cached facts need a refresh.
type FreshnessPolicy struct {
	StatementTTL time.Duration
	MetricsTTL   time.Duration
	QuoteTTL     time.Duration
	Now          func() time.Time // injectable clock for testing
}

// NewFreshnessPolicy builds a policy from the [freshness] config section.
func NewFreshnessPolicy(cfg FreshnessConfig) *FreshnessPolicy {
	return &FreshnessPolicy{
		StatementTTL: cfg.GetStatementTTL(),
		MetricsTTL:   cfg.GetMetricsTTL(),
		QuoteTTL:     cfg.GetQuoteTTL(),
		Now:          time.Now,
	}
}

// DefaultFreshnessPolicy returns the policy with the default windows and the wall clock.
func DefaultFreshnessPolicy() *FreshnessPolicy {
	return &FreshnessPolicy{
		StatementTTL: FreshnessStatements,
		MetricsTTL:   FreshnessMetrics,
		QuoteTTL:     FreshnessQuote,
		Now:          time.Now,
	}
}

func (p *FreshnessPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// IsStatementFresh reports whether a statement whose period ended on reportDate
// is recent enough that no newer filing is expected yet.
func (p *FreshnessPolicy) IsStatementFresh(reportDate time.Time) bool {
	return IsFresh(reportDate, p.StatementTTL, p.now())
}

// IsMetricsFresh reports whether a derived metrics row created at createdAt is still usable.
func (p *FreshnessPolicy) IsMetricsFresh(createdAt time.Time) bool {
	return IsFresh(createdAt, p.MetricsTTL, p.now())
}

// IsQuoteFresh reports whether a cached quote fetched at fetchedAt is still usable.
func (p *FreshnessPolicy) IsQuoteFresh(fetchedAt time.Time) bool {
	return IsFresh(fetchedAt, p.QuoteTTL, p.now())
}
