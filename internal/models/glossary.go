package models

import "time"

// GlossaryResponse explains each derived metric using the ticker's own figures.
type GlossaryResponse struct {
	Ticker      string             `json:"ticker"`
	Granularity Granularity        `json:"granularity"`
	ReportDate  time.Time          `json:"report_date"`
	GeneratedAt time.Time          `json:"generated_at"`
	Categories  []GlossaryCategory `json:"categories"`
}

// GlossaryCategory groups related glossary terms.
type GlossaryCategory struct {
	Name  string         `json:"name"`
	Terms []GlossaryTerm `json:"terms"`
}

// GlossaryTerm defines a single term with a live example from the latest period.
type GlossaryTerm struct {
	Term       string   `json:"term"`
	Label      string   `json:"label"`
	Definition string   `json:"definition"`
	Formula    string   `json:"formula,omitempty"`
	Value      *float64 `json:"value"`
	Example    string   `json:"example,omitempty"`
}
