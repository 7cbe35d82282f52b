package common

import (
	"errors"
	"fmt"
)

// Failure kinds raised by the fetch, reconcile and derive pipeline.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrInsertConflict      = errors.New("insert conflict")
	ErrMissingDependency   = errors.New("missing dependency")
	ErrUndefinedRatio      = errors.New("undefined ratio")
	ErrNotFound            = errors.New("not found")
	ErrInvalidGranularity  = errors.New("invalid granularity")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// RecordError describes a single upstream row that could not be normalized.
type RecordError struct {
	Index  int
	Date   string
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (date %q): %s", e.Index, e.Date, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

// RatioError explains why a derived metric was left null.
type RatioError struct {
	Metric string
	Reason string
	Err    error // ErrUndefinedRatio or ErrMissingDependency
}

func (e *RatioError) Error() string {
	return fmt.Sprintf("%s: %s", e.Metric, e.Reason)
}

func (e *RatioError) Unwrap() error {
	return e.Err
}

// Undefined returns a RatioError for a ratio that is mathematically undefined.
func Undefined(metric, reason string) *RatioError {
	return &RatioError{Metric: metric, Reason: reason, Err: ErrUndefinedRatio}
}

// Missing returns a RatioError for a ratio whose input statement is not available.
func Missing(metric, reason string) *RatioError {
	return &RatioError{Metric: metric, Reason: reason, Err: ErrMissingDependency}
}
