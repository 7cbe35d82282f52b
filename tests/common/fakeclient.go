package common

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Call names recorded by FakeClient.
const (
	CallKeyMetrics = "key_metrics"
	CallRatios     = "ratios"
	CallQuote      = "quote"
	CallEstimates  = "estimates"
)

// StatementCall returns the call name recorded for a statement fetch.
func StatementCall(st models.StatementType) string {
	return "statements:" + string(st)
}

// Rows parses a JSON array literal into raw records.
func Rows(js string) []models.RawRecord {
	var out []models.RawRecord
	for _, item := range gjson.Parse(js).Array() {
		if rec := models.ParseRawRecord(item); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// FakeClient is an in-memory FundamentalsClient serving canned rows.
type FakeClient struct {
	mu         sync.Mutex
	statements map[models.StatementType][]models.RawRecord
	keyMetrics []models.RawRecord
	ratios     []models.RawRecord
	quote      models.RawRecord
	estimates  []models.RawRecord
	errs       map[string]error
	calls      map[string]int
	delay      time.Duration
}

// NewFakeClient returns an empty fake; every endpoint yields no rows until set.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		statements: make(map[models.StatementType][]models.RawRecord),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (f *FakeClient) SetStatements(st models.StatementType, rows []models.RawRecord) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements[st] = rows
	return f
}

func (f *FakeClient) SetKeyMetrics(rows []models.RawRecord) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyMetrics = rows
	return f
}

func (f *FakeClient) SetRatios(rows []models.RawRecord) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratios = rows
	return f
}

func (f *FakeClient) SetQuote(js string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quote = models.ParseRawRecord(gjson.Parse(js))
	return f
}

func (f *FakeClient) SetEstimates(rows []models.RawRecord) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates = rows
	return f
}

// Fail makes the named call return err.
func (f *FakeClient) Fail(call string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[call] = err
	return f
}

// SetDelay makes every call sleep before answering.
func (f *FakeClient) SetDelay(d time.Duration) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Calls returns how many times the named call was made.
func (f *FakeClient) Calls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *FakeClient) record(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls[call]++
	delay := f.delay
	err := f.errs[call]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func limitRows(rows []models.RawRecord, limit int) []models.RawRecord {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func (f *FakeClient) GetStatements(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, limit int) ([]models.RawRecord, error) {
	if err := f.record(ctx, StatementCall(st)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return limitRows(f.statements[st], limit), nil
}

func (f *FakeClient) GetKeyMetrics(ctx context.Context, ticker string, g models.Granularity, limit int) ([]models.RawRecord, error) {
	if err := f.record(ctx, CallKeyMetrics); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return limitRows(f.keyMetrics, limit), nil
}

func (f *FakeClient) GetRatios(ctx context.Context, ticker string, g models.Granularity, limit int) ([]models.RawRecord, error) {
	if err := f.record(ctx, CallRatios); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return limitRows(f.ratios, limit), nil
}

func (f *FakeClient) GetQuote(ctx context.Context, ticker string) (models.RawRecord, error) {
	if err := f.record(ctx, CallQuote); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quote, nil
}

func (f *FakeClient) GetEstimates(ctx context.Context, ticker string, limit int) ([]models.RawRecord, error) {
	if err := f.record(ctx, CallEstimates); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return limitRows(f.estimates, limit), nil
}

var _ interfaces.FundamentalsClient = (*FakeClient)(nil)
