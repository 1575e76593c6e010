package models

// AnalysisDetails carries the supporting material behind an analysis
// conclusion. Plots is nullable because the model is not always asked to
// describe plots.
type AnalysisDetails struct {
	Process          string  `json:"process"`
	RegressionModels string  `json:"regression_models"`
	Plots            *string `json:"plots,omitempty"`
}

// AnalysisResult is the final structured output of the pipeline, produced by
// the analysis stage and validated against the schema before acceptance.
// Immutable once accepted.
type AnalysisResult struct {
	Summary    string          `json:"summary"`
	Confidence Confidence      `json:"confidence"`
	Details    AnalysisDetails `json:"details"`
}
