package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// FactTable stores one fact type in its own table. Record ids are derived
// from the (ticker, granularity, report_date) key, so a second CREATE for the
// same key fails instead of duplicating the row.
type FactTable[T any, PT models.FactPtr[T]] struct {
	db    *surrealdb.DB
	table string
}

// NewFactTable creates a table accessor for table.
func NewFactTable[T any, PT models.FactPtr[T]](db *surrealdb.DB, table string) *FactTable[T, PT] {
	return &FactTable[T, PT]{db: db, table: table}
}

func (t *FactTable[T, PT]) rid(key models.RecordKey) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(t.table, key.ID())
}

func (t *FactTable[T, PT]) Get(ctx context.Context, key models.RecordKey) (*T, error) {
	rec, err := surrealdb.Select[T](ctx, t.db, t.rid(key))
	if err != nil {
		return nil, fmt.Errorf("failed to select %s %s: %w", t.table, key, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%s %s: %w", t.table, key, common.ErrNotFound)
	}
	return rec, nil
}

func (t *FactTable[T, PT]) Latest(ctx context.Context, ticker string, g models.Granularity) (*T, error) {
	rows, err := t.List(ctx, ticker, g, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s/%s: %w", t.table, ticker, g, common.ErrNotFound)
	}
	return rows[0], nil
}

func (t *FactTable[T, PT]) List(ctx context.Context, ticker string, g models.Granularity, limit int) ([]*T, error) {
	if limit <= 0 {
		return nil, nil
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE ticker = $ticker AND granularity = $granularity ORDER BY report_date DESC LIMIT $limit", t.table)
	vars := map[string]any{
		"ticker":      strings.ToUpper(ticker),
		"granularity": string(g),
		"limit":       limit,
	}

	results, err := surrealdb.Query[[]T](ctx, t.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}

	var rows []*T
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			rows = append(rows, &(*results)[0].Result[i])
		}
	}
	return rows, nil
}

func (t *FactTable[T, PT]) Insert(ctx context.Context, rec *T) error {
	key := PT(rec).Key()
	sql := "CREATE $rid CONTENT $data"
	vars := map[string]any{"rid": t.rid(key), "data": rec}

	if _, err := write[T](ctx, t.db, sql, vars); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s: %w", t.table, key, common.ErrInsertConflict)
		}
		return fmt.Errorf("failed to create %s %s: %w", t.table, key, err)
	}
	return nil
}

func (t *FactTable[T, PT]) Update(ctx context.Context, rec *T) error {
	key := PT(rec).Key()
	sql := "UPDATE $rid CONTENT $data"
	vars := map[string]any{"rid": t.rid(key), "data": rec}

	n, err := write[T](ctx, t.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.table, key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", t.table, key, common.ErrNotFound)
	}
	return nil
}

// isUniqueViolation reports whether err is SurrealDB rejecting a duplicate
// record id or a duplicate value in a UNIQUE index.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains")
}

// write runs a single statement and returns the number of affected rows,
// retrying when SurrealDB aborts the transaction on a read/write conflict.
func write[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
		if err == nil {
			if results == nil || len(*results) == 0 {
				return 0, nil
			}
			return len((*results)[0].Result), nil
		}
		if !strings.Contains(strings.ToLower(err.Error()), "can be retried") {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}
