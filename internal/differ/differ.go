// Package differ computes the structured diff of two probe envelopes
// and classifies the drift into severity-graded findings. The whole
// pipeline is pure: equal envelope pairs always produce byte-equal
// diffs.
package differ

import (
	"strings"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/aleister1102/envdrift/internal/models"
	"github.com/rs/zerolog"
)

// Differ turns a pair of signal envelopes into an EnvDiff.
type Differ struct {
	logger zerolog.Logger
}

// NewDiffer creates a differ.
func NewDiffer(logger zerolog.Logger) *Differ {
	return &Differ{
		logger: logger.With().Str("component", "Differ").Logger(),
	}
}

// Compute builds every section the envelope data supports, classifies
// the drift, and post-processes the findings. The only error path is
// an evidence-vocabulary violation, which indicates a classifier bug.
func (d *Differ) Compute(left, right *models.SignalEnvelope) (*models.EnvDiff, error) {
	if left == nil || right == nil {
		return nil, errorwrapper.NewError("both envelopes are required")
	}

	diff := &models.EnvDiff{
		SchemaVersion: models.SchemaVersion,
		ComparisonID:  left.ComparisonID,
		LeftProbeID:   left.ProbeID,
		RightProbeID:  right.ProbeID,
		Probe:         buildProbeOutcomeDiff(left, right),
	}

	if diff.Probe.ResponsePresent {
		leftResp, rightResp := left.Result.Response, right.Result.Response

		status := buildChange(leftResp.Status, rightResp.Status)
		diff.Status = &status

		finalURL := buildChange(leftResp.FinalURL, rightResp.FinalURL)
		diff.FinalURL = &finalURL

		diff.Headers = buildHeaderSectionDiff(leftResp, rightResp)
		diff.Redirects = buildRedirectDiff(&left.Result, &right.Result)
		diff.Content = buildContentDiff(leftResp, rightResp)
		diff.Timing = buildTimingDiff(&left.Result, &right.Result)
		diff.CF = buildCFDiff(left, right)
	}

	findings := newClassifier(diff, left, right).classify()
	findings = dedupeFindings(findings)
	models.SortFindings(findings)

	if err := validateFindingEvidence(findings); err != nil {
		return nil, errorwrapper.WrapError(err, "classification produced invalid evidence")
	}

	diff.Findings = findings
	diff.MaxSeverity = maxSeverityOf(findings)

	d.logger.Debug().
		Str("comparison_id", diff.ComparisonID).
		Int("findings", len(findings)).
		Str("max_severity", string(diff.MaxSeverity)).
		Msg("Diff computed")

	return diff, nil
}

// dedupeFindings drops later findings that share the identity tuple
// (code, primary section, sorted primary keys) with an earlier one.
// Rule order decides which instance survives.
func dedupeFindings(findings []models.Finding) []models.Finding {
	seen := make(map[string]bool, len(findings))
	deduped := findings[:0]
	for _, finding := range findings {
		identity := string(finding.Code) + "|" + string(finding.PrimarySection()) + "|" +
			strings.Join(finding.PrimaryKeys(), ",")
		if seen[identity] {
			continue
		}
		seen[identity] = true
		deduped = append(deduped, finding)
	}
	return deduped
}

// maxSeverityOf returns the most urgent severity present, or info for
// an empty finding list.
func maxSeverityOf(findings []models.Finding) models.Severity {
	severity := models.SeverityInfo
	for _, finding := range findings {
		severity = models.MaxSeverity(severity, finding.Severity)
	}
	return severity
}
