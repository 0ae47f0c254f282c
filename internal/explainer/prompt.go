package explainer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aleister1102/envdrift/internal/models"
)

// historyEntry is the compact per-comparison summary included in the
// prompt instead of full past results.
type historyEntry struct {
	ComparisonID string   `json:"comparison_id"`
	MaxSeverity  string   `json:"max_severity"`
	FindingCodes []string `json:"finding_codes"`
}

// buildPrompt assembles the explanation request. Findings and history
// are truncated to their character budgets so the prompt size stays
// bounded regardless of how noisy the drift is.
func buildPrompt(diff *models.EnvDiff, history []models.Comparison, maxFindingsChars, maxHistoryChars int) string {
	findingsJSON := encodeFindings(diff.Findings, maxFindingsChars)
	historyJSON := encodeHistory(history, maxHistoryChars)

	var sb strings.Builder
	sb.WriteString("You are analyzing drift between two deployments of the same HTTP endpoint.\n")
	sb.WriteString("Left URL and right URL were probed once each; the classified findings are:\n\n")
	sb.WriteString(findingsJSON)
	sb.WriteString("\n\nOverall severity: ")
	sb.WriteString(string(diff.MaxSeverity))
	if historyJSON != "" {
		sb.WriteString("\n\nRecent comparisons of the same pair, newest first:\n")
		sb.WriteString(historyJSON)
	}
	sb.WriteString("\n\nRespond with a single JSON object and nothing else, using exactly these fields:\n")
	sb.WriteString(`{"summary": string, "ranked_causes": [{"cause": string, "confidence": number in [0,1], "evidence": [string]}], "actions": [{"action": string, "why": string}], "notes": [string]}`)
	sb.WriteString("\nOrder ranked_causes by descending confidence. Base every cause on the findings given; do not invent observations.")
	return sb.String()
}

// encodeFindings serializes findings one by one until the character
// budget is reached, so truncation never cuts a JSON value in half.
func encodeFindings(findings []models.Finding, maxChars int) string {
	if len(findings) == 0 {
		return "[]"
	}

	var parts []string
	used := 2
	truncated := 0
	for _, finding := range findings {
		encoded, err := json.Marshal(finding)
		if err != nil {
			continue
		}
		if used+len(encoded)+1 > maxChars && len(parts) > 0 {
			truncated = len(findings) - len(parts)
			break
		}
		parts = append(parts, string(encoded))
		used += len(encoded) + 1
	}

	out := "[" + strings.Join(parts, ",") + "]"
	if truncated > 0 {
		out += fmt.Sprintf("\n(%d lower-severity finding(s) omitted for length)", truncated)
	}
	return out
}

// encodeHistory reduces past comparisons to id, max severity, and
// finding codes, bounded by the character budget.
func encodeHistory(history []models.Comparison, maxChars int) string {
	if len(history) == 0 {
		return ""
	}

	var entries []historyEntry
	used := 2
	for _, cmp := range history {
		entry := summarizeComparison(cmp)
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if used+len(encoded)+1 > maxChars && len(entries) > 0 {
			break
		}
		entries = append(entries, entry)
		used += len(encoded) + 1
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func summarizeComparison(cmp models.Comparison) historyEntry {
	entry := historyEntry{
		ComparisonID: cmp.ID,
		MaxSeverity:  string(models.SeverityInfo),
	}
	if len(cmp.Result) == 0 {
		return entry
	}

	var result models.CompareResult
	if err := json.Unmarshal(cmp.Result, &result); err != nil || result.Diff == nil {
		return entry
	}

	entry.MaxSeverity = string(result.Diff.MaxSeverity)
	seen := make(map[models.FindingCode]bool)
	for _, finding := range result.Diff.Findings {
		if seen[finding.Code] {
			continue
		}
		seen[finding.Code] = true
		entry.FindingCodes = append(entry.FindingCodes, string(finding.Code))
	}
	return entry
}
