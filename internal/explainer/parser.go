package explainer

import (
	"encoding/json"
	"strings"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/aleister1102/envdrift/internal/models"
)

// parseExplanation turns raw model output into a validated
// Explanation. Models wrap JSON in markdown fences or preamble text
// often enough that both are stripped before decoding.
func parseExplanation(raw string) (*models.Explanation, error) {
	cleaned := stripMarkdownFences(raw)
	object, err := extractFirstJSONObject(cleaned)
	if err != nil {
		return nil, err
	}

	var explanation models.Explanation
	if err := json.Unmarshal([]byte(object), &explanation); err != nil {
		return nil, errorwrapper.WrapError(err, "explanation is not valid JSON")
	}

	if err := validateExplanation(&explanation); err != nil {
		return nil, err
	}
	return &explanation, nil
}

// stripMarkdownFences removes a leading ```/```json fence and its
// closing fence when present.
func stripMarkdownFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// extractFirstJSONObject returns the first balanced top-level JSON
// object in the text. Braces inside string literals are ignored, and
// escaped quotes do not terminate strings.
func extractFirstJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errorwrapper.NewError("no JSON object found in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", errorwrapper.NewError("unterminated JSON object in model output")
}

// validateExplanation enforces the response contract: a non-empty
// summary, confidences in [0,1], and no empty causes or actions.
func validateExplanation(explanation *models.Explanation) error {
	if strings.TrimSpace(explanation.Summary) == "" {
		return errorwrapper.NewError("explanation summary is empty")
	}
	for i, cause := range explanation.RankedCauses {
		if strings.TrimSpace(cause.Cause) == "" {
			return errorwrapper.NewError("ranked cause %d has no cause text", i)
		}
		if cause.Confidence < 0 || cause.Confidence > 1 {
			return errorwrapper.NewError("ranked cause %d has confidence %v outside [0,1]", i, cause.Confidence)
		}
	}
	for i, action := range explanation.Actions {
		if strings.TrimSpace(action.Action) == "" {
			return errorwrapper.NewError("action %d has no action text", i)
		}
	}
	return nil
}
