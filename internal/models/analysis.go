package models

// AnalysisStatus buckets an analysis score.
type AnalysisStatus string

const (
	StatusGood    AnalysisStatus = "good"
	StatusNeutral AnalysisStatus = "neutral"
	StatusWarning AnalysisStatus = "warning"
	StatusBad     AnalysisStatus = "bad"
)

// Analysis is the scored interpretation of a derived metrics series.
type Analysis struct {
	Score    int            `json:"score"`
	Status   AnalysisStatus `json:"status"`
	Badges   []string       `json:"badges"`
	Insights []string       `json:"insights"`
}

// ToolDefinition describes one capability exposed to the conversational layer.
type ToolDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Params      []ParamDefinition `json:"params,omitempty"`
}

// ParamDefinition describes one capability parameter.
type ParamDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "number" or "boolean"
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}
