package differ

import (
	"strings"

	"github.com/aleister1102/envdrift/internal/models"
)

// buildProbeOutcomeDiff compares the outcome variants of both sides.
// ResponsePresent gates every response-level section downstream.
func buildProbeOutcomeDiff(left, right *models.SignalEnvelope) models.ProbeOutcomeDiff {
	diff := models.ProbeOutcomeDiff{
		LeftOK:          left.Result.OK,
		RightOK:         right.Result.OK,
		OutcomeChanged:  left.Result.OK != right.Result.OK,
		ResponsePresent: left.Result.HasResponse() && right.Result.HasResponse(),
	}
	if left.Result.Kind() == models.ProbeNetworkFailure {
		diff.LeftErrorCode = left.Result.ErrorCode()
	}
	if right.Result.Kind() == models.ProbeNetworkFailure {
		diff.RightErrorCode = right.Result.ErrorCode()
	}
	return diff
}

// isNetworkFailure reports whether the given side of the outcome diff
// is a network failure. True only when responses are not present on
// both sides and that side's error code is set.
func isNetworkFailure(probe models.ProbeOutcomeDiff, side models.Side) bool {
	if probe.ResponsePresent {
		return false
	}
	if side == models.SideLeft {
		return probe.LeftErrorCode != ""
	}
	return probe.RightErrorCode != ""
}

// buildChange compares two comparable values.
func buildChange[T comparable](left, right T) models.Change[T] {
	if left == right {
		return models.Unchanged(left)
	}
	return models.Changed(left, right)
}

// buildHeaderDiff classifies the case-insensitive key union of the
// two maps. Inputs carry lowercased keys already; "added" means
// present on the right side only.
func buildHeaderDiff(left, right map[string]string) *models.HeaderDiff {
	diff := &models.HeaderDiff{
		Added:     make(map[string]string),
		Removed:   make(map[string]string),
		Changed:   make(map[string]models.Change[string]),
		Unchanged: make(map[string]string),
	}

	for key, leftValue := range left {
		rightValue, inRight := right[key]
		switch {
		case !inRight:
			diff.Removed[key] = leftValue
		case leftValue == rightValue:
			diff.Unchanged[key] = leftValue
		default:
			diff.Changed[key] = models.Changed(leftValue, rightValue)
		}
	}
	for key, rightValue := range right {
		if _, inLeft := left[key]; !inLeft {
			diff.Added[key] = rightValue
		}
	}

	return diff
}

// buildHeaderSectionDiff assembles the core and access-control header
// diffs; returns nil when neither carries any key.
func buildHeaderSectionDiff(left, right *models.ResponseMetadata) *models.HeaderSectionDiff {
	core := buildHeaderDiff(left.Headers.Core, right.Headers.Core)
	accessControl := buildHeaderDiff(left.Headers.AccessControl, right.Headers.AccessControl)

	if core.IsEmpty() && accessControl.IsEmpty() {
		return nil
	}

	section := &models.HeaderSectionDiff{}
	if !core.IsEmpty() {
		section.Core = core
	}
	if !accessControl.IsEmpty() {
		section.AccessControl = accessControl
	}
	return section
}

// buildRedirectDiff compares the recorded chains; returns nil when
// neither side redirected. The chain comparison is element-wise and
// case-insensitive over the toUrl sequence.
func buildRedirectDiff(left, right *models.ProbeResult) *models.RedirectDiff {
	if len(left.Redirects) == 0 && len(right.Redirects) == 0 {
		return nil
	}

	diff := &models.RedirectDiff{
		Left:         left.Redirects,
		Right:        right.Redirects,
		HopCount:     buildChange(len(left.Redirects), len(right.Redirects)),
		ChainChanged: chainsDiffer(left.Redirects, right.Redirects),
	}

	if len(left.Redirects) > 0 && len(right.Redirects) > 0 {
		change := buildChange(
			left.Redirects[len(left.Redirects)-1].ToURL,
			right.Redirects[len(right.Redirects)-1].ToURL,
		)
		diff.FinalURLFromRedirects = &change
	}

	return diff
}

func chainsDiffer(left, right []models.RedirectHop) bool {
	if len(left) != len(right) {
		return true
	}
	for i := range left {
		if !strings.EqualFold(left[i].ToURL, right[i].ToURL) {
			return true
		}
	}
	return false
}

// buildContentDiff compares content-level fields; each subfield is
// set only when the underlying data exists on both sides. Returns nil
// when nothing is comparable.
func buildContentDiff(left, right *models.ResponseMetadata) *models.ContentDiff {
	diff := &models.ContentDiff{}
	populated := false

	leftCT, leftHasCT := left.Headers.Core["content-type"]
	rightCT, rightHasCT := right.Headers.Core["content-type"]
	if leftHasCT && rightHasCT {
		change := buildChange(leftCT, rightCT)
		diff.ContentType = &change
		populated = true
	}

	if left.ContentLength != nil && right.ContentLength != nil {
		change := buildChange(*left.ContentLength, *right.ContentLength)
		diff.ContentLength = &change
		populated = true
	}

	if left.BodyHash != "" && right.BodyHash != "" {
		change := buildChange(left.BodyHash, right.BodyHash)
		diff.BodyHash = &change
		populated = true
	}

	if !populated {
		return nil
	}
	return diff
}

// buildTimingDiff compares probe durations; returns nil unless both
// sides measured one.
func buildTimingDiff(left, right *models.ProbeResult) *models.TimingDiff {
	if left.DurationMs == nil || right.DurationMs == nil {
		return nil
	}

	l, r := *left.DurationMs, *right.DurationMs
	diff := &models.TimingDiff{
		DurationMs: buildChange(l, r),
		DeltaMs:    absInt64(l - r),
	}

	minDur, maxDur := l, r
	if minDur > maxDur {
		minDur, maxDur = maxDur, minDur
	}
	if minDur > 0 {
		diff.Ratio = float64(maxDur) / float64(minDur)
	}

	return diff
}

// buildCFDiff compares execution-context snapshots; returns nil
// unless both envelopes carry one.
func buildCFDiff(left, right *models.SignalEnvelope) *models.CFContextDiff {
	if left.CFContext == nil || right.CFContext == nil {
		return nil
	}

	colo := buildChange(left.CFContext.Colo, right.CFContext.Colo)
	country := buildChange(left.CFContext.Country, right.CFContext.Country)
	asn := buildChange(left.CFContext.ASN, right.CFContext.ASN)

	return &models.CFContextDiff{
		Colo:    &colo,
		Country: &country,
		ASN:     &asn,
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
