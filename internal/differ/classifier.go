package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aleister1102/envdrift/internal/models"
)

// Core headers claimed by a dedicated rule. Drift on any other
// whitelisted header falls through to the unknown-drift rule.
var claimedCoreHeaders = map[string]bool{
	"cache-control":    true,
	"content-type":     true,
	"vary":             true,
	"www-authenticate": true,
}

// classifier walks the structured diff and emits findings in a fixed
// rule order. It holds no state across runs, so equal inputs always
// produce equal findings.
type classifier struct {
	diff     *models.EnvDiff
	left     *models.SignalEnvelope
	right    *models.SignalEnvelope
	findings []models.Finding
}

func newClassifier(diff *models.EnvDiff, left, right *models.SignalEnvelope) *classifier {
	return &classifier{diff: diff, left: left, right: right}
}

// classify applies the rules. Probe failures short-circuit: a missing
// response on either side makes every response-level rule moot.
func (c *classifier) classify() []models.Finding {
	if !c.diff.Probe.ResponsePresent {
		c.classifyProbeFailure()
		return c.findings
	}

	c.classifyStatus()
	c.classifyFinalURL()
	c.classifyRedirects()
	c.classifyAuthChallenge()
	c.classifyCORSHeaders()
	c.classifyCacheHeaders()
	c.classifyVary()
	c.classifyContentType()
	c.classifyBodyHash()
	c.classifyContentLength()
	timingEmitted := c.classifyTiming()
	c.classifyCFContext(timingEmitted)
	c.classifyUnknownHeaders()

	return c.findings
}

func (c *classifier) add(finding models.Finding) {
	finding.ID = models.FindingID(finding.Code, finding.PrimarySection(), finding.PrimaryKeys())
	c.findings = append(c.findings, finding)
}

// classifyProbeFailure covers both-sides and one-side network
// failures. The evidence keys name the failed side, or nothing when
// both failed.
func (c *classifier) classifyProbeFailure() {
	probe := c.diff.Probe
	leftFailed := isNetworkFailure(probe, models.SideLeft)
	rightFailed := isNetworkFailure(probe, models.SideRight)

	switch {
	case leftFailed && rightFailed:
		c.add(models.Finding{
			Code:     models.FindingProbeFailure,
			Category: models.CategoryUnknown,
			Severity: models.SeverityCritical,
			Message: fmt.Sprintf("Both probes failed: left=%s, right=%s",
				probe.LeftErrorCode, probe.RightErrorCode),
			Evidence:        []models.Evidence{newEvidence(models.SectionProbe, nil, "")},
			LeftValue:       string(probe.LeftErrorCode),
			RightValue:      string(probe.RightErrorCode),
			Recommendations: []string{"Verify both URLs are reachable before comparing them."},
		})
	case leftFailed:
		c.add(models.Finding{
			Code:     models.FindingProbeFailure,
			Category: models.CategoryUnknown,
			Severity: models.SeverityCritical,
			Message: fmt.Sprintf("Left probe failed (%s); right responded with %s",
				probe.LeftErrorCode, c.describeOutcome(c.right)),
			Evidence:        []models.Evidence{newEvidence(models.SectionProbe, []string{string(models.SideLeft)}, "")},
			LeftValue:       string(probe.LeftErrorCode),
			RightValue:      c.outcomeValue(c.right),
			Recommendations: []string{"Check availability and DNS of the left endpoint."},
		})
	case rightFailed:
		c.add(models.Finding{
			Code:     models.FindingProbeFailure,
			Category: models.CategoryUnknown,
			Severity: models.SeverityCritical,
			Message: fmt.Sprintf("Right probe failed (%s); left responded with %s",
				probe.RightErrorCode, c.describeOutcome(c.left)),
			Evidence:        []models.Evidence{newEvidence(models.SectionProbe, []string{string(models.SideRight)}, "")},
			LeftValue:       c.outcomeValue(c.left),
			RightValue:      string(probe.RightErrorCode),
			Recommendations: []string{"Check availability and DNS of the right endpoint."},
		})
	}
}

func (c *classifier) describeOutcome(env *models.SignalEnvelope) string {
	if env.Result.HasResponse() {
		return fmt.Sprintf("HTTP %d", env.Result.Response.Status)
	}
	return string(env.Result.ErrorCode())
}

func (c *classifier) outcomeValue(env *models.SignalEnvelope) any {
	if env.Result.HasResponse() {
		return env.Result.Response.Status
	}
	return string(env.Result.ErrorCode())
}

// classifyStatus grades a status mismatch by class transition:
// 2xx<->4xx, 2xx<->5xx, and crossing the 3xx boundary in either
// direction are critical; any other mismatch is a warning.
func (c *classifier) classifyStatus() {
	status := c.diff.Status
	if status == nil || !status.Changed {
		return
	}

	leftClass, rightClass := statusClass(status.Left), statusClass(status.Right)
	severity := models.SeverityWarn
	switch {
	case leftClass == 2 && rightClass == 4, leftClass == 4 && rightClass == 2:
		severity = models.SeverityCritical
	case leftClass == 2 && rightClass == 5, leftClass == 5 && rightClass == 2:
		severity = models.SeverityCritical
	case (leftClass == 3) != (rightClass == 3):
		severity = models.SeverityCritical
	}

	c.add(models.Finding{
		Code:       models.FindingStatusMismatch,
		Category:   models.CategoryRouting,
		Severity:   severity,
		Message:    fmt.Sprintf("HTTP status differs: %d vs %d", status.Left, status.Right),
		Evidence:   []models.Evidence{newEvidence(models.SectionStatus, nil, "")},
		LeftValue:  status.Left,
		RightValue: status.Right,
	})
}

// classifyFinalURL grades final-URL drift by which URL component
// moved: host is critical, path or query is a warning, scheme alone
// is informational.
func (c *classifier) classifyFinalURL() {
	finalURL := c.diff.FinalURL
	if finalURL == nil || !finalURL.Changed {
		return
	}

	leftParts := decomposeURL(finalURL.Left)
	rightParts := decomposeURL(finalURL.Right)

	var keys []string
	if leftParts.valid && rightParts.valid {
		if leftParts.scheme != rightParts.scheme {
			keys = append(keys, "scheme")
		}
		if leftParts.host != rightParts.host {
			keys = append(keys, "host")
		}
		if leftParts.path != rightParts.path {
			keys = append(keys, "path")
		}
		if leftParts.query != rightParts.query {
			keys = append(keys, "query")
		}
	}

	severity := models.SeverityInfo
	switch {
	case contains(keys, "host"):
		severity = models.SeverityCritical
	case contains(keys, "path") || contains(keys, "query"):
		severity = models.SeverityWarn
	case contains(keys, "scheme"):
		severity = models.SeverityInfo
	default:
		// The strings differ but no graded component does (or a side
		// failed to parse); point at the URL as a whole.
		keys = []string{"finalUrl"}
	}

	c.add(models.Finding{
		Code:       models.FindingFinalURLMismatch,
		Category:   models.CategoryRouting,
		Severity:   severity,
		Message:    fmt.Sprintf("Final URL differs: %s vs %s", finalURL.Left, finalURL.Right),
		Evidence:   []models.Evidence{newEvidence(models.SectionFinalURL, keys, "")},
		LeftValue:  finalURL.Left,
		RightValue: finalURL.Right,
	})
}

// classifyRedirects fires when the hop count or the hop-by-hop chain
// changed. Landing on a different hostname escalates to critical.
func (c *classifier) classifyRedirects() {
	redirects := c.diff.Redirects
	if redirects == nil {
		return
	}
	if !redirects.ChainChanged && !redirects.HopCount.Changed {
		return
	}

	finalHostChanged := false
	if c.diff.FinalURL != nil {
		finalHostChanged = hostnameOf(c.diff.FinalURL.Left) != hostnameOf(c.diff.FinalURL.Right)
	}

	var keys []string
	if redirects.ChainChanged {
		keys = append(keys, "chain")
	}
	if finalHostChanged {
		keys = append(keys, "finalHost")
	}
	if redirects.HopCount.Changed {
		keys = append(keys, "hopCount")
	}

	severity := models.SeverityWarn
	if finalHostChanged {
		severity = models.SeverityCritical
	}

	c.add(models.Finding{
		Code:     models.FindingRedirectChainChanged,
		Category: models.CategoryRouting,
		Severity: severity,
		Message: fmt.Sprintf("Redirect chain differs: %d vs %d hop(s)",
			redirects.HopCount.Left, redirects.HopCount.Right),
		Evidence:   []models.Evidence{newEvidence(models.SectionRedirects, keys, "")},
		LeftValue:  redirects.HopCount.Left,
		RightValue: redirects.HopCount.Right,
	})
}

// classifyAuthChallenge treats a WWW-Authenticate header appearing on
// only one side as a critical auth boundary difference; a challenge
// present on both sides with different values is a warning.
func (c *classifier) classifyAuthChallenge() {
	leftValue, leftHas := c.coreHeader(c.left, "www-authenticate")
	rightValue, rightHas := c.coreHeader(c.right, "www-authenticate")

	var severity models.Severity
	var message string
	switch {
	case leftHas && !rightHas:
		severity = models.SeverityCritical
		message = "Authentication challenge present only on the left side"
	case !leftHas && rightHas:
		severity = models.SeverityCritical
		message = "Authentication challenge present only on the right side"
	case leftHas && rightHas && leftValue != rightValue:
		severity = models.SeverityWarn
		message = "Authentication challenge differs between sides"
	default:
		return
	}

	c.add(models.Finding{
		Code:            models.FindingAuthChallengePresent,
		Category:        models.CategorySecurity,
		Severity:        severity,
		Message:         message,
		Evidence:        []models.Evidence{newEvidence(models.SectionHeaders, []string{"www-authenticate"}, "")},
		LeftValue:       leftValue,
		RightValue:      rightValue,
		Recommendations: []string{"Confirm both environments enforce the same authentication policy."},
	})
}

// classifyCORSHeaders fires on any access-control-* drift; drift that
// touches the allow-origin header is critical.
func (c *classifier) classifyCORSHeaders() {
	headers := c.diff.Headers
	if headers == nil || headers.AccessControl == nil || !headers.AccessControl.HasDrift() {
		return
	}

	keys := driftedKeys(headers.AccessControl)
	severity := models.SeverityWarn
	if contains(keys, "access-control-allow-origin") {
		severity = models.SeverityCritical
	}

	c.add(models.Finding{
		Code:            models.FindingCORSHeaderDrift,
		Category:        models.CategorySecurity,
		Severity:        severity,
		Message:         fmt.Sprintf("CORS headers differ: %s", strings.Join(keys, ", ")),
		Evidence:        []models.Evidence{newEvidence(models.SectionHeaders, keys, "")},
		Recommendations: []string{"Align CORS configuration; mismatched origins break browser clients in one environment only."},
	})
}

// classifyCacheHeaders compares Cache-Control at the directive level:
// a different directive set is a warning, while equal sets with
// different arguments (e.g. max-age values) are informational.
func (c *classifier) classifyCacheHeaders() {
	leftValue, leftHas := c.coreHeader(c.left, "cache-control")
	rightValue, rightHas := c.coreHeader(c.right, "cache-control")
	if !leftHas && !rightHas {
		return
	}
	if leftValue == rightValue {
		return
	}

	severity := models.SeverityInfo
	if !directiveSetsEqual(normalizeCacheControl(leftValue), normalizeCacheControl(rightValue)) {
		severity = models.SeverityWarn
	}

	c.add(models.Finding{
		Code:       models.FindingCacheHeaderDrift,
		Category:   models.CategoryCache,
		Severity:   severity,
		Message:    "Cache-Control differs between sides",
		Evidence:   []models.Evidence{newEvidence(models.SectionHeaders, []string{"cache-control"}, "")},
		LeftValue:  leftValue,
		RightValue: rightValue,
	})
}

// classifyVary covers Vary drift, which has no dedicated rule but is
// a known cache-correctness signal.
func (c *classifier) classifyVary() {
	leftValue, leftHas := c.coreHeader(c.left, "vary")
	rightValue, rightHas := c.coreHeader(c.right, "vary")
	if !leftHas && !rightHas {
		return
	}
	if leftValue == rightValue {
		return
	}

	c.add(models.Finding{
		Code:       models.FindingUnknownDrift,
		Category:   models.CategoryUnknown,
		Severity:   models.SeverityWarn,
		Message:    "Vary differs between sides",
		Evidence:   []models.Evidence{newEvidence(models.SectionHeaders, []string{"vary"}, "")},
		LeftValue:  leftValue,
		RightValue: rightValue,
	})
}

// classifyContentType grades content-type drift after normalization:
// a different major type is critical, a different subtype or a
// missing side is a warning, and parameter-only drift is
// informational.
func (c *classifier) classifyContentType() {
	leftValue, leftHas := c.coreHeader(c.left, "content-type")
	rightValue, rightHas := c.coreHeader(c.right, "content-type")
	if !leftHas && !rightHas {
		return
	}
	if leftValue == rightValue {
		return
	}

	leftNorm := normalizeContentType(leftValue)
	rightNorm := normalizeContentType(rightValue)

	var severity models.Severity
	switch {
	case !leftHas || !rightHas:
		severity = models.SeverityWarn
	case leftNorm == rightNorm:
		severity = models.SeverityInfo
	case majorType(leftNorm) != majorType(rightNorm):
		severity = models.SeverityCritical
	default:
		severity = models.SeverityWarn
	}

	c.add(models.Finding{
		Code:       models.FindingContentTypeDrift,
		Category:   models.CategoryContent,
		Severity:   severity,
		Message:    fmt.Sprintf("Content-Type differs: %q vs %q", leftValue, rightValue),
		Evidence:   []models.Evidence{newEvidence(models.SectionContent, []string{"content-type"}, "")},
		LeftValue:  leftValue,
		RightValue: rightValue,
	})
}

// classifyBodyHash fires only when the body hash moved while status
// and normalized content type did not, so the drift cannot be
// explained by a cheaper signal.
func (c *classifier) classifyBodyHash() {
	content := c.diff.Content
	if content == nil || content.BodyHash == nil || !content.BodyHash.Changed {
		return
	}
	if c.diff.Status != nil && c.diff.Status.Changed {
		return
	}
	if content.ContentType != nil &&
		normalizeContentType(content.ContentType.Left) != normalizeContentType(content.ContentType.Right) {
		return
	}

	c.add(models.Finding{
		Code:            models.FindingBodyHashDrift,
		Category:        models.CategoryContent,
		Severity:        models.SeverityCritical,
		Message:         "Response bodies differ despite identical status and content type",
		Evidence:        []models.Evidence{newEvidence(models.SectionContent, []string{"body-hash"}, "")},
		LeftValue:       content.BodyHash.Left,
		RightValue:      content.BodyHash.Right,
		Recommendations: []string{"Diff the two response bodies directly to locate the divergence."},
	})
}

// classifyContentLength grades length drift by absolute delta, with
// the top band escalating to critical only when the status is stable.
func (c *classifier) classifyContentLength() {
	content := c.diff.Content
	if content == nil || content.ContentLength == nil || !content.ContentLength.Changed {
		return
	}

	delta := absInt64(content.ContentLength.Left - content.ContentLength.Right)
	statusStable := c.diff.Status == nil || !c.diff.Status.Changed

	var severity models.Severity
	switch {
	case delta < 200:
		severity = models.SeverityInfo
	case delta < 2000:
		severity = models.SeverityWarn
	case statusStable:
		severity = models.SeverityCritical
	default:
		severity = models.SeverityWarn
	}

	c.add(models.Finding{
		Code:     models.FindingContentLengthDrift,
		Category: models.CategoryContent,
		Severity: severity,
		Message: fmt.Sprintf("Content length differs by %d byte(s): %d vs %d",
			delta, content.ContentLength.Left, content.ContentLength.Right),
		Evidence:   []models.Evidence{newEvidence(models.SectionContent, []string{"content-length"}, "")},
		LeftValue:  content.ContentLength.Left,
		RightValue: content.ContentLength.Right,
	})
}

// classifyTiming ignores sub-50ms measurements entirely, then grades
// by ratio and absolute delta. Returns whether a finding was emitted
// so context drift can piggyback on it.
func (c *classifier) classifyTiming() bool {
	timing := c.diff.Timing
	if timing == nil || !timing.DurationMs.Changed {
		return false
	}
	maxDuration := timing.DurationMs.Left
	if timing.DurationMs.Right > maxDuration {
		maxDuration = timing.DurationMs.Right
	}
	if maxDuration < 50 {
		return false
	}

	var severity models.Severity
	switch {
	case timing.Ratio >= 2.5 || timing.DeltaMs >= 1000:
		severity = models.SeverityCritical
	case timing.Ratio >= 1.5 || timing.DeltaMs >= 300:
		severity = models.SeverityWarn
	default:
		severity = models.SeverityInfo
	}

	c.add(models.Finding{
		Code:     models.FindingTimingDrift,
		Category: models.CategoryTiming,
		Severity: severity,
		Message: fmt.Sprintf("Probe duration differs: %dms vs %dms",
			timing.DurationMs.Left, timing.DurationMs.Right),
		Evidence:   []models.Evidence{newEvidence(models.SectionTiming, []string{"duration_ms"}, "")},
		LeftValue:  timing.DurationMs.Left,
		RightValue: timing.DurationMs.Right,
	})
	return true
}

// classifyCFContext reports differing execution-context fields. The
// drift only matters operationally when timing also moved, so it is
// informational on its own.
func (c *classifier) classifyCFContext(timingEmitted bool) {
	cf := c.diff.CF
	if cf == nil {
		return
	}

	var keys []string
	if cf.ASN != nil && cf.ASN.Changed {
		keys = append(keys, "asn")
	}
	if cf.Colo != nil && cf.Colo.Changed {
		keys = append(keys, "colo")
	}
	if cf.Country != nil && cf.Country.Changed {
		keys = append(keys, "country")
	}
	if len(keys) == 0 {
		return
	}

	severity := models.SeverityInfo
	if timingEmitted {
		severity = models.SeverityWarn
	}

	c.add(models.Finding{
		Code:     models.FindingCFContextDrift,
		Category: models.CategoryPlatform,
		Severity: severity,
		Message:  fmt.Sprintf("Probes executed from different network contexts (%s)", strings.Join(keys, ", ")),
		Evidence: []models.Evidence{newEvidence(models.SectionCF, keys, "")},
	})
}

// classifyUnknownHeaders catches whitelisted core headers that
// drifted without a dedicated rule claiming them.
func (c *classifier) classifyUnknownHeaders() {
	headers := c.diff.Headers
	if headers == nil || headers.Core == nil {
		return
	}

	var keys []string
	for _, key := range driftedKeys(headers.Core) {
		if !claimedCoreHeaders[key] {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}

	severity := models.SeverityInfo
	if len(keys) >= 3 {
		severity = models.SeverityWarn
	}

	c.add(models.Finding{
		Code:     models.FindingUnknownDrift,
		Category: models.CategoryUnknown,
		Severity: severity,
		Message:  fmt.Sprintf("Unclassified header drift: %s", strings.Join(keys, ", ")),
		Evidence: []models.Evidence{newEvidence(models.SectionHeaders, keys, "")},
	})
}

// coreHeader reads a normalized core header off an envelope's
// response. The second return distinguishes absent from empty.
func (c *classifier) coreHeader(env *models.SignalEnvelope, name string) (string, bool) {
	if env.Result.Response == nil {
		return "", false
	}
	value, ok := env.Result.Response.Headers.Core[name]
	return value, ok
}

// driftedKeys returns the sorted union of added, removed, and changed
// keys of a header diff.
func driftedKeys(diff *models.HeaderDiff) []string {
	var keys []string
	for key := range diff.Added {
		keys = append(keys, key)
	}
	for key := range diff.Removed {
		keys = append(keys, key)
	}
	for key := range diff.Changed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
