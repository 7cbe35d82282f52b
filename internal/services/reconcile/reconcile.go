// Package reconcile merges normalized records into the Fact Store one row at a time
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

// Outcome reports what Upsert did with a record.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeInserted
	OutcomeUpdated
	OutcomeConflictResolved // insert lost a race and was retried as an update
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeConflictResolved:
		return "conflict_resolved"
	default:
		return "failed"
	}
}

// Options tune how an existing row is overwritten.
type Options struct {
	// PreserveCreatedAt keeps the stored row's creation time on update.
	// Statements keep it; derived metrics are re-stamped so their TTL restarts.
	PreserveCreatedAt bool
}

// Upsert locates the stored row for rec's key and updates it in place, or
// inserts rec when absent. A unique-key violation on insert means a concurrent
// caller inserted first: the row is re-read and rec is applied as an update.
func Upsert[T any, PT models.FactPtr[T]](ctx context.Context, table interfaces.FactTable[T], rec *T, opts Options) (Outcome, error) {
	key := PT(rec).Key()

	existing, err := table.Get(ctx, key)
	switch {
	case err == nil:
		if err := update[T, PT](ctx, table, existing, rec, opts); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeUpdated, nil

	case errors.Is(err, common.ErrNotFound):
		insertErr := table.Insert(ctx, rec)
		if insertErr == nil {
			return OutcomeInserted, nil
		}
		if !errors.Is(insertErr, common.ErrInsertConflict) {
			return OutcomeFailed, fmt.Errorf("insert %s: %w", key, insertErr)
		}

		existing, err = table.Get(ctx, key)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("re-read %s after conflict: %w", key, err)
		}
		if err := update[T, PT](ctx, table, existing, rec, opts); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeConflictResolved, nil

	default:
		return OutcomeFailed, fmt.Errorf("lookup %s: %w", key, err)
	}
}

func update[T any, PT models.FactPtr[T]](ctx context.Context, table interfaces.FactTable[T], existing, rec *T, opts Options) error {
	if opts.PreserveCreatedAt && existing != nil {
		if created := PT(existing).Header().CreatedAt; !created.IsZero() {
			PT(rec).Header().CreatedAt = created
		}
	}
	if err := table.Update(ctx, rec); err != nil {
		return fmt.Errorf("update %s: %w", PT(rec).Key(), err)
	}
	return nil
}

// Batch upserts every record independently. A failure on one record is logged
// and counted; it never aborts or rolls back its siblings.
func Batch[T any, PT models.FactPtr[T]](ctx context.Context, table interfaces.FactTable[T], records []*T, opts Options, logger *common.Logger) models.ReconcileSummary {
	summary := models.ReconcileSummary{Fetched: len(records)}

	for _, rec := range records {
		outcome, err := Upsert[T, PT](ctx, table, rec, opts)
		key := PT(rec).Key()
		switch outcome {
		case OutcomeInserted:
			summary.Inserted++
		case OutcomeUpdated:
			summary.Updated++
		case OutcomeConflictResolved:
			summary.Conflicts++
			summary.Updated++
			logger.Info().Str("key", key.String()).Msg("Insert conflict resolved as update")
		default:
			summary.Failed++
			logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to reconcile record; continuing batch")
		}
	}

	return summary
}
