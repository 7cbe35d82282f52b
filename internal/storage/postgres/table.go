package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// uniqueViolation is the SQLSTATE for a duplicate primary key.
const uniqueViolation = "23505"

// numericColumn projects one ratio or line item into a NUMERIC column so it
// can be queried without unpacking the JSONB body.
type numericColumn[T any] struct {
	name  string
	value func(*T) *float64
}

// FactTable stores one fact type keyed by (ticker, granularity, report_date).
// The full record lives in the data column; headline figures are duplicated
// into NUMERIC columns.
type FactTable[T any, PT models.FactPtr[T]] struct {
	pool    *pgxpool.Pool
	table   string
	columns []numericColumn[T]

	insertSQL string
	updateSQL string
}

// NewFactTable creates a table accessor. columns must match the migration.
func NewFactTable[T any, PT models.FactPtr[T]](pool *pgxpool.Pool, table string, columns ...numericColumn[T]) *FactTable[T, PT] {
	t := &FactTable[T, PT]{pool: pool, table: table, columns: columns}

	names := []string{"ticker", "granularity", "report_date", "report_year"}
	for _, c := range columns {
		names = append(names, c.name)
	}
	names = append(names, "data", "created_at", "updated_at")

	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	t.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	var sets []string
	for i, name := range names[3:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", name, i+4))
	}
	t.updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE ticker = $1 AND granularity = $2 AND report_date = $3",
		table, strings.Join(sets, ", "))

	return t
}

func (t *FactTable[T, PT]) args(rec *T) ([]any, error) {
	h := PT(rec).Header()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", t.table, h.Key(), err)
	}

	args := []any{h.Ticker, string(h.Granularity), h.ReportDate, h.ReportYear}
	for _, c := range t.columns {
		args = append(args, numeric(c.value(rec)))
	}
	return append(args, data, h.CreatedAt, h.UpdatedAt), nil
}

func (t *FactTable[T, PT]) Get(ctx context.Context, key models.RecordKey) (*T, error) {
	sql := fmt.Sprintf("SELECT data FROM %s WHERE ticker = $1 AND granularity = $2 AND report_date = $3", t.table)

	var data []byte
	err := t.pool.QueryRow(ctx, sql, key.Ticker, string(key.Granularity), key.ReportDate).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", t.table, key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", t.table, key, err)
	}
	return t.decode(data)
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
	sql := fmt.Sprintf("SELECT data FROM %s WHERE ticker = $1 AND granularity = $2 ORDER BY report_date DESC LIMIT $3", t.table)

	rows, err := t.pool.Query(ctx, sql, strings.ToUpper(ticker), string(g), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", t.table, err)
	}

	out := make([]*T, 0, len(bodies))
	for _, data := range bodies {
		rec, err := t.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *FactTable[T, PT]) Insert(ctx context.Context, rec *T) error {
	key := PT(rec).Key()
	args, err := t.args(rec)
	if err != nil {
		return err
	}

	if _, err := t.pool.Exec(ctx, t.insertSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s %s: %w", t.table, key, common.ErrInsertConflict)
		}
		return fmt.Errorf("failed to insert %s %s: %w", t.table, key, err)
	}
	return nil
}

func (t *FactTable[T, PT]) Update(ctx context.Context, rec *T) error {
	key := PT(rec).Key()
	args, err := t.args(rec)
	if err != nil {
		return err
	}

	tag, err := t.pool.Exec(ctx, t.updateSQL, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.table, key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", t.table, key, common.ErrNotFound)
	}
	return nil
}

func (t *FactTable[T, PT]) decode(data []byte) (*T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", t.table, err)
	}
	return &rec, nil
}

// numeric converts an optional float into a nullable NUMERIC value.
func numeric(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

// float converts a nullable NUMERIC value back into an optional float.
func float(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}
