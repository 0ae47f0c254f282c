package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortFindings_SeverityThenCodeThenMessage(t *testing.T) {
	findings := []Finding{
		{Code: FindingUnknownDrift, Severity: SeverityInfo, Message: "b"},
		{Code: FindingCacheHeaderDrift, Severity: SeverityWarn, Message: "a"},
		{Code: FindingStatusMismatch, Severity: SeverityCritical, Message: "x"},
		{Code: FindingCORSHeaderDrift, Severity: SeverityCritical, Message: "y"},
		{Code: FindingUnknownDrift, Severity: SeverityInfo, Message: "a"},
	}

	SortFindings(findings)

	assert.Equal(t, FindingCORSHeaderDrift, findings[0].Code)
	assert.Equal(t, FindingStatusMismatch, findings[1].Code)
	assert.Equal(t, FindingCacheHeaderDrift, findings[2].Code)
	assert.Equal(t, "a", findings[3].Message)
	assert.Equal(t, "b", findings[4].Message)

	for i := 1; i < len(findings); i++ {
		assert.LessOrEqual(t, findings[i-1].Severity.Rank(), findings[i].Severity.Rank())
	}
}

func TestFindingID_SortsKeys(t *testing.T) {
	id := FindingID(FindingCacheHeaderDrift, SectionHeaders, []string{"vary", "cache-control"})
	assert.Equal(t, "CACHE_HEADER_DRIFT:headers:cache-control,vary", id)
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityWarn, SeverityCritical))
	assert.Equal(t, SeverityWarn, MaxSeverity(SeverityWarn, SeverityInfo))
	assert.Equal(t, SeverityInfo, MaxSeverity(SeverityInfo, SeverityInfo))
}

func TestProbeResult_Kind(t *testing.T) {
	resp := &ResponseMetadata{Status: 200, FinalURL: "https://example.com"}

	success := NewSuccessResult(resp, nil, 100)
	assert.Equal(t, ProbeSuccess, success.Kind())
	assert.True(t, success.HasResponse())

	respErr := NewResponseErrorResult(&ResponseMetadata{Status: 404}, nil, 80)
	assert.Equal(t, ProbeResponseError, respErr.Kind())
	assert.True(t, respErr.HasResponse())
	assert.False(t, respErr.OK)

	failure := NewNetworkFailureResult(ProbeErrTimeout, "request timed out", "", nil)
	assert.Equal(t, ProbeNetworkFailure, failure.Kind())
	assert.False(t, failure.HasResponse())
	assert.Equal(t, ProbeErrTimeout, failure.ErrorCode())
}

func TestSignalEnvelope_StorageURL(t *testing.T) {
	env := NewSignalEnvelope("cmp", SideLeft, "https://requested.example.com", nil,
		NewSuccessResult(&ResponseMetadata{Status: 200, FinalURL: "https://final.example.com"}, nil, 10))
	assert.Equal(t, "https://final.example.com", env.StorageURL())

	failed := NewSignalEnvelope("cmp", SideRight, "https://requested.example.com", nil,
		NewNetworkFailureResult(ProbeErrDNS, "no such host", "", nil))
	assert.Equal(t, "https://requested.example.com", failed.StorageURL())
}
