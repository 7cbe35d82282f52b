package models

import "github.com/tidwall/gjson"

// RawRecord is one loosely-typed upstream row keyed by provider field name.
type RawRecord map[string]gjson.Result

// ParseRawRecord builds a RawRecord from a JSON object. Non-objects yield nil.
func ParseRawRecord(obj gjson.Result) RawRecord {
	if !obj.IsObject() {
		return nil
	}
	rec := make(RawRecord)
	obj.ForEach(func(key, value gjson.Result) bool {
		rec[key.String()] = value
		return true
	})
	return rec
}

// Date returns the provider "date" field, or "" when absent.
func (r RawRecord) Date() string {
	if v, ok := r["date"]; ok && v.Type == gjson.String {
		return v.String()
	}
	return ""
}

// MergeNonNull copies every non-null field of src over r.
func (r RawRecord) MergeNonNull(src RawRecord) {
	for k, v := range src {
		if v.Type == gjson.Null || !v.Exists() {
			continue
		}
		r[k] = v
	}
}
