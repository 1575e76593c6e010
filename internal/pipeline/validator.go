package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timothy-han/mara/pkg/models"
)

// SchemaError reports analysis output that could not be validated. Raw holds
// the full offending text for diagnostics; callers must log it but never
// forward it to the end user.
type SchemaError struct {
	Raw string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("analysis output failed schema validation: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// analysisWire mirrors the JSON contract the model is prompted with. Keys
// are matched after defensive lower-casing.
type analysisWire struct {
	Summary    string `json:"summary"`
	Confidence string `json:"confidence"`
	Details    struct {
		Process          string  `json:"process"`
		RegressionModels string  `json:"regression_models"`
		Plots            *string `json:"plots"`
	} `json:"details"`
}

// ParseAnalysis converts the analysis stage's raw text into a validated
// AnalysisResult. The model occasionally wraps output in markdown fences,
// leaves raw control characters inside string values, or drifts on key
// casing; all three are normalized before structural validation. An
// unrecognized confidence token is a hard failure, never coerced.
func ParseAnalysis(raw string, scheme models.ConfidenceScheme) (models.AnalysisResult, error) {
	text := strings.TrimSpace(raw)
	text = stripFences(text)
	text = sanitizeStringControls(text)

	var loose map[string]any
	if err := json.Unmarshal([]byte(text), &loose); err != nil {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	lowerKeys(loose)

	normalized, err := json.Marshal(loose)
	if err != nil {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: err}
	}
	var wire analysisWire
	if err := json.Unmarshal(normalized, &wire); err != nil {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: fmt.Errorf("wrong structure: %w", err)}
	}

	if strings.TrimSpace(wire.Summary) == "" {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: fmt.Errorf("summary is empty")}
	}
	confidence, ok := scheme.Normalize(wire.Confidence)
	if !ok {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: fmt.Errorf("unrecognized confidence %q", wire.Confidence)}
	}
	if strings.TrimSpace(wire.Details.Process) == "" {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: fmt.Errorf("details.process is empty")}
	}
	if strings.TrimSpace(wire.Details.RegressionModels) == "" {
		return models.AnalysisResult{}, &SchemaError{Raw: raw, Err: fmt.Errorf("details.regression_models is empty")}
	}

	return models.AnalysisResult{
		Summary:    wire.Summary,
		Confidence: confidence,
		Details: models.AnalysisDetails{
			Process:          wire.Details.Process,
			RegressionModels: wire.Details.RegressionModels,
			Plots:            wire.Details.Plots,
		},
	}, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving inner fences untouched.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	trimmed := strings.TrimPrefix(text, "```")
	// Drop a language tag like "json" up to the first newline.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// sanitizeStringControls replaces raw control characters appearing inside
// JSON string values with spaces. The JSON grammar forbids them unescaped,
// but the model emits them when regression output contains line breaks.
func sanitizeStringControls(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	escaped := false
	for _, r := range text {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case inString && r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case inString && r < 0x20:
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lowerKeys rewrites all object keys to lower case, recursively, so casing
// drift in model output does not fail structural validation.
func lowerKeys(obj map[string]any) {
	for k, v := range obj {
		lower := strings.ToLower(k)
		if nested, ok := v.(map[string]any); ok {
			lowerKeys(nested)
		}
		if lower != k {
			delete(obj, k)
			obj[lower] = v
		}
	}
}
