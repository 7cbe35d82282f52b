// Package quote provides a short-lived quote cache in front of the upstream provider
package quote

import (
	"context"
	"strings"

	"github.com/alphadose/haxmap"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/services/upstream"
)

// Service implements QuoteService. Snapshots are cached per ticker for the
// policy's quote window, independent of statement freshness.
type Service struct {
	fetcher    *upstream.Fetcher
	normalizer *upstream.Normalizer
	policy     *common.FreshnessPolicy
	cache      *haxmap.Map[string, *models.QuoteSnapshot]
	logger     *common.Logger
}

// NewService creates a new quote service.
// client may be nil; every lookup then returns the cached snapshot or nil.
func NewService(client interfaces.FundamentalsClient, policy *common.FreshnessPolicy, logger *common.Logger) *Service {
	if policy == nil {
		policy = common.DefaultFreshnessPolicy()
	}
	normalizer := upstream.NewNormalizer()
	if policy.Now != nil {
		normalizer = normalizer.WithClock(policy.Now)
	}
	return &Service{
		fetcher:    upstream.NewFetcher(client, logger),
		normalizer: normalizer,
		policy:     policy,
		cache:      haxmap.New[string, *models.QuoteSnapshot](),
		logger:     logger,
	}
}

// GetQuote returns a fresh cached snapshot, or fetches one. When upstream is
// unavailable a stale snapshot is still preferred over none.
func (s *Service) GetQuote(ctx context.Context, ticker string) *models.QuoteSnapshot {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil
	}

	cached, ok := s.cache.Get(ticker)
	if ok && s.policy.IsQuoteFresh(cached.FetchedAt) {
		return copySnapshot(cached)
	}

	rows := s.fetcher.FetchRaw(ctx, ticker, upstream.SourceQuote, "", 0)
	if len(rows) == 0 {
		if ok {
			s.logger.Debug().Str("ticker", ticker).Time("fetched_at", cached.FetchedAt).Msg("Serving stale quote")
			return copySnapshot(cached)
		}
		return nil
	}

	snap := s.normalizer.Quote(ticker, rows[0])
	s.cache.Set(ticker, snap)
	return copySnapshot(snap)
}

func copySnapshot(q *models.QuoteSnapshot) *models.QuoteSnapshot {
	if q == nil {
		return nil
	}
	cp := *q
	return &cp
}

// Compile-time check
var _ interfaces.QuoteService = (*Service)(nil)
