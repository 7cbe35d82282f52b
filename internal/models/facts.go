package models

import (
	"fmt"
	"time"
)

// DateLayout is the provider's report date format.
const DateLayout = "2006-01-02"

// RecordKey uniquely identifies a statement or metrics row.
type RecordKey struct {
	Ticker      string
	Granularity Granularity
	ReportDate  time.Time
}

// ID returns a stable string form usable as a database record id.
func (k RecordKey) ID() string {
	return fmt.Sprintf("%s_%s_%s", k.Ticker, k.Granularity, k.ReportDate.Format(DateLayout))
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Ticker, k.Granularity, k.ReportDate.Format(DateLayout))
}

// FactHeader carries the key and bookkeeping timestamps shared by every persisted fact.
type FactHeader struct {
	Ticker      string      `json:"ticker"`
	Granularity Granularity `json:"granularity"`
	ReportDate  time.Time   `json:"report_date"`
	ReportYear  int         `json:"report_year"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Key returns the unique key of the fact.
func (h *FactHeader) Key() RecordKey {
	return RecordKey{Ticker: h.Ticker, Granularity: h.Granularity, ReportDate: h.ReportDate}
}

// Header exposes the shared header for generic store code.
func (h *FactHeader) Header() *FactHeader {
	return h
}

// Fact is implemented by pointers to every persisted record type.
type Fact interface {
	Key() RecordKey
	Header() *FactHeader
}

// Float returns a pointer to v, for building nullable fields.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences a nullable field, reporting whether it was set.
func Value(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// ReconcileSummary counts the outcome of merging one batch into the Fact Store.
type ReconcileSummary struct {
	Fetched   int `json:"fetched"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"` // insert races resolved as updates
	Skipped   int `json:"skipped"`   // malformed rows
	Failed    int `json:"failed"`    // storage errors
}

// FactPtr constrains generic store code to pointers of persisted record types.
type FactPtr[T any] interface {
	*T
	Fact
}
