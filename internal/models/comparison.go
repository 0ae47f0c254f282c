package models

import "encoding/json"

// CompareErrorCode is the closed set of error codes surfaced to
// clients and persisted with failed comparisons.
type CompareErrorCode string

const (
	CompareErrInvalidRequest CompareErrorCode = "invalid_request"
	CompareErrInvalidURL     CompareErrorCode = "invalid_url"
	CompareErrSSRFBlocked    CompareErrorCode = "ssrf_blocked"
	CompareErrTimeout        CompareErrorCode = "timeout"
	CompareErrDNS            CompareErrorCode = "dns_error"
	CompareErrTLS            CompareErrorCode = "tls_error"
	CompareErrFetch          CompareErrorCode = "fetch_error"
	CompareErrInternal       CompareErrorCode = "internal_error"
)

// CompareError is the structured error object returned by the API and
// stored with failed comparisons. Never a raw stack or platform
// error string.
type CompareError struct {
	Code    CompareErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
}

// ComparisonStatus is the lifecycle state of a stored comparison. A
// comparison never reverts from a terminal state.
type ComparisonStatus string

const (
	StatusRunning   ComparisonStatus = "running"
	StatusCompleted ComparisonStatus = "completed"
	StatusFailed    ComparisonStatus = "failed"
)

// Comparison is the stored state of one comparison run.
type Comparison struct {
	ID        string           `json:"id"`
	CreatedAt int64            `json:"created_at"` // ms since epoch
	LeftURL   string           `json:"left_url"`
	RightURL  string           `json:"right_url"`
	Status    ComparisonStatus `json:"status"`
	Result    json.RawMessage  `json:"result,omitempty"`
	Error     *CompareError    `json:"error,omitempty"`
}

// ProbeRecord is the stored form of one probe envelope. ID is
// `${comparisonId}:${side}`; (comparison_id, side) is unique.
type ProbeRecord struct {
	ID           string `json:"id"`
	ComparisonID string `json:"comparison_id"`
	CreatedAt    int64  `json:"created_at"`
	Side         Side   `json:"side"`
	URL          string `json:"url"`
	EnvelopeJSON []byte `json:"envelope_json"`
}

// CompareResult is the completed payload served to pollers.
type CompareResult struct {
	ComparisonID string          `json:"comparison_id"`
	LeftURL      string          `json:"left_url"`
	RightURL     string          `json:"right_url"`
	LeftLabel    string          `json:"left_label,omitempty"`
	RightLabel   string          `json:"right_label,omitempty"`
	Left         *SignalEnvelope `json:"left,omitempty"`
	Right        *SignalEnvelope `json:"right,omitempty"`
	Diff         *EnvDiff        `json:"diff,omitempty"`
	Explanation  *Explanation    `json:"explanation,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
}

// Explanation is the validated output of the generative model.
type Explanation struct {
	Summary      string        `json:"summary"`
	RankedCauses []RankedCause `json:"ranked_causes"`
	Actions      []Action      `json:"actions"`
	Notes        []string      `json:"notes,omitempty"`
}

// RankedCause is one hypothesized cause with a confidence in [0,1].
type RankedCause struct {
	Cause      string   `json:"cause"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// Action is one recommended follow-up.
type Action struct {
	Action string `json:"action"`
	Why    string `json:"why"`
}
