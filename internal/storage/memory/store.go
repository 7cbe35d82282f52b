// Package memory provides an in-process Fact Store with the same key and
// conflict semantics as the database backends.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Table is a mutex-guarded map of facts keyed by RecordKey.ID().
type Table[T any, PT models.FactPtr[T]] struct {
	mu   sync.RWMutex
	rows map[string]*T
}

// NewTable creates an empty table.
func NewTable[T any, PT models.FactPtr[T]]() *Table[T, PT] {
	return &Table[T, PT]{rows: make(map[string]*T)}
}

func clone[T any](rec *T) *T {
	cp := *rec
	return &cp
}

func (t *Table[T, PT]) Get(_ context.Context, key models.RecordKey) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.rows[key.ID()]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(rec), nil
}

func (t *Table[T, PT]) Latest(ctx context.Context, ticker string, g models.Granularity) (*T, error) {
	rows, err := t.List(ctx, ticker, g, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, common.ErrNotFound
	}
	return rows[0], nil
}

func (t *Table[T, PT]) List(_ context.Context, ticker string, g models.Granularity, limit int) ([]*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ticker = strings.ToUpper(ticker)
	var out []*T
	for _, rec := range t.rows {
		h := PT(rec).Header()
		if h.Ticker == ticker && h.Granularity == g {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return PT(out[i]).Header().ReportDate.After(PT(out[j]).Header().ReportDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *Table[T, PT]) Insert(_ context.Context, rec *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := PT(rec).Key().ID()
	if _, exists := t.rows[id]; exists {
		return common.ErrInsertConflict
	}
	t.rows[id] = clone(rec)
	return nil
}

func (t *Table[T, PT]) Update(_ context.Context, rec *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := PT(rec).Key().ID()
	if _, exists := t.rows[id]; !exists {
		return common.ErrNotFound
	}
	t.rows[id] = clone(rec)
	return nil
}

// Len returns the number of stored rows.
func (t *Table[T, PT]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// EstimateTable holds estimates per ticker.
type EstimateTable struct {
	mu   sync.RWMutex
	rows map[string][]*models.EstimateRecord
}

func (e *EstimateTable) Replace(_ context.Context, ticker string, estimates []*models.EstimateRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]*models.EstimateRecord, 0, len(estimates))
	for _, est := range estimates {
		cp = append(cp, clone(est))
	}
	e.rows[strings.ToUpper(ticker)] = cp
	return nil
}

func (e *EstimateTable) List(_ context.Context, ticker string) ([]*models.EstimateRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rows := e.rows[strings.ToUpper(ticker)]
	out := make([]*models.EstimateRecord, 0, len(rows))
	for _, est := range rows {
		out = append(out, clone(est))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalYear < out[j].FiscalYear })
	return out, nil
}

// Store implements interfaces.FactStore in memory.
type Store struct {
	Income   *Table[models.IncomeStatement, *models.IncomeStatement]
	Balance  *Table[models.BalanceSheet, *models.BalanceSheet]
	Cash     *Table[models.CashFlow, *models.CashFlow]
	Metrics  *Table[models.KeyMetricsRecord, *models.KeyMetricsRecord]
	Estimate *EstimateTable
}

// NewStore creates an empty in-memory Fact Store.
func NewStore() *Store {
	return &Store{
		Income:   NewTable[models.IncomeStatement](),
		Balance:  NewTable[models.BalanceSheet](),
		Cash:     NewTable[models.CashFlow](),
		Metrics:  NewTable[models.KeyMetricsRecord](),
		Estimate: &EstimateTable{rows: make(map[string][]*models.EstimateRecord)},
	}
}

func (s *Store) IncomeStatements() interfaces.FactTable[models.IncomeStatement] { return s.Income }
func (s *Store) BalanceSheets() interfaces.FactTable[models.BalanceSheet]       { return s.Balance }
func (s *Store) CashFlows() interfaces.FactTable[models.CashFlow]               { return s.Cash }
func (s *Store) KeyMetrics() interfaces.FactTable[models.KeyMetricsRecord]      { return s.Metrics }
func (s *Store) Estimates() interfaces.EstimateStore                            { return s.Estimate }
func (s *Store) Close() error                                                   { return nil }

// Compile-time check
var _ interfaces.FactStore = (*Store)(nil)
