package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/storage/memory"
)

var reportDate = time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)

func newBalanceSheet(assets float64, created time.Time) *models.BalanceSheet {
	return &models.BalanceSheet{
		FactHeader: models.FactHeader{
			Ticker:      "AAPL",
			Granularity: models.GranularityQuarter,
			ReportDate:  reportDate,
			ReportYear:  2024,
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		TotalAssets: models.Float(assets),
	}
}

// staleReadTable reports "absent" on the first Get even though another writer
// has already inserted the row, reproducing the check-then-insert race.
type staleReadTable struct {
	interfaces.FactTable[models.BalanceSheet]
	mu     sync.Mutex
	misses int
}

func (s *staleReadTable) Get(ctx context.Context, key models.RecordKey) (*models.BalanceSheet, error) {
	s.mu.Lock()
	if s.misses > 0 {
		s.misses--
		s.mu.Unlock()
		return nil, common.ErrNotFound
	}
	s.mu.Unlock()
	return s.FactTable.Get(ctx, key)
}

// failingTable fails Insert for one report date.
type failingTable struct {
	interfaces.FactTable[models.BalanceSheet]
	failDate time.Time
}

func (f *failingTable) Insert(ctx context.Context, rec *models.BalanceSheet) error {
	if rec.ReportDate.Equal(f.failDate) {
		return errors.New("disk full")
	}
	return f.FactTable.Insert(ctx, rec)
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	outcome, err := Upsert(ctx, store.BalanceSheets(), newBalanceSheet(500, t0), Options{PreserveCreatedAt: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	t1 := t0.Add(48 * time.Hour)
	outcome, err = Upsert(ctx, store.BalanceSheets(), newBalanceSheet(600, t1), Options{PreserveCreatedAt: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	got, err := store.BalanceSheets().Get(ctx, newBalanceSheet(0, t0).Key())
	require.NoError(t, err)
	assert.Equal(t, 600.0, *got.TotalAssets)
	assert.Equal(t, t0, got.CreatedAt, "creation time survives the update")
	assert.Equal(t, t1, got.UpdatedAt)
	assert.Equal(t, 1, store.Balance.Len())
}

func TestUpsert_RestampsCreatedAtWhenNotPreserved(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(25 * time.Hour)

	_, err := Upsert(ctx, store.BalanceSheets(), newBalanceSheet(1, t0), Options{})
	require.NoError(t, err)
	_, err = Upsert(ctx, store.BalanceSheets(), newBalanceSheet(2, t1), Options{})
	require.NoError(t, err)

	got, _ := store.BalanceSheets().Get(ctx, newBalanceSheet(0, t0).Key())
	assert.Equal(t, t1, got.CreatedAt)
}

func TestUpsert_InsertConflictBecomesUpdate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// another writer won the race
	require.NoError(t, store.BalanceSheets().Insert(ctx, newBalanceSheet(500, t0)))

	table := &staleReadTable{FactTable: store.BalanceSheets(), misses: 1}
	outcome, err := Upsert(ctx, interfaces.FactTable[models.BalanceSheet](table), newBalanceSheet(550, t0.Add(time.Hour)), Options{PreserveCreatedAt: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflictResolved, outcome)

	got, _ := store.BalanceSheets().Get(ctx, newBalanceSheet(0, t0).Key())
	assert.Equal(t, 550.0, *got.TotalAssets)
	assert.Equal(t, t0, got.CreatedAt)
	assert.Equal(t, 1, store.Balance.Len())
}

func TestUpsert_ConcurrentCallersLeaveOneRow(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Upsert(ctx, store.BalanceSheets(), newBalanceSheet(float64(100+i), t0), Options{PreserveCreatedAt: true})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.Balance.Len())
}

func TestBatch_PerRecordFailureDoesNotAbort(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	bad := newBalanceSheet(2, t0)
	bad.ReportDate = reportDate.AddDate(0, -3, 0)
	good1 := newBalanceSheet(1, t0)
	good2 := newBalanceSheet(3, t0)
	good2.ReportDate = reportDate.AddDate(0, -6, 0)

	table := &failingTable{FactTable: store.BalanceSheets(), failDate: bad.ReportDate}
	summary := Batch(ctx, interfaces.FactTable[models.BalanceSheet](table), []*models.BalanceSheet{good1, bad, good2}, Options{}, common.NewSilentLogger())

	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, store.Balance.Len())
}

func TestBatch_Idempotent(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	records := func() []*models.BalanceSheet {
		a := newBalanceSheet(500, t0)
		b := newBalanceSheet(400, t0)
		b.ReportDate = reportDate.AddDate(0, -3, 0)
		return []*models.BalanceSheet{a, b}
	}

	first := Batch(ctx, store.BalanceSheets(), records(), Options{PreserveCreatedAt: true}, common.NewSilentLogger())
	second := Batch(ctx, store.BalanceSheets(), records(), Options{PreserveCreatedAt: true}, common.NewSilentLogger())

	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 2, store.Balance.Len())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", OutcomeInserted.String())
	assert.Equal(t, "conflict_resolved", OutcomeConflictResolved.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
