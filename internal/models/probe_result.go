package models

// SchemaVersion is incremented only on breaking changes to the
// persisted envelope/diff shapes.
const SchemaVersion = 1

// Side identifies which endpoint of the pair a probe targeted.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ProbeErrorCode classifies network-level probe failures.
type ProbeErrorCode string

const (
	ProbeErrInvalidURL  ProbeErrorCode = "invalid_url"
	ProbeErrDNS         ProbeErrorCode = "dns_error"
	ProbeErrTimeout     ProbeErrorCode = "timeout"
	ProbeErrTLS         ProbeErrorCode = "tls_error"
	ProbeErrSSRFBlocked ProbeErrorCode = "ssrf_blocked"
	ProbeErrFetch       ProbeErrorCode = "fetch_error"
	ProbeErrUnknown     ProbeErrorCode = "unknown_error"
)

// ResponseHeaders carries the whitelisted response headers, keys
// lowercased. AccessControl holds every access-control-* header.
type ResponseHeaders struct {
	Core          map[string]string `json:"core"`
	AccessControl map[string]string `json:"access_control,omitempty"`
}

// ResponseMetadata is the normalized view of the terminal HTTP
// response of a probe.
type ResponseMetadata struct {
	Status        int             `json:"status"`
	FinalURL      string          `json:"final_url"`
	Headers       ResponseHeaders `json:"headers"`
	ContentLength *int64          `json:"content_length,omitempty"`
	BodyHash      string          `json:"body_hash,omitempty"`
}

// RedirectHop records a single 3xx hop observed during the manual
// redirect walk.
type RedirectHop struct {
	FromURL string `json:"from_url"`
	ToURL   string `json:"to_url"`
	Status  int    `json:"status"`
}

// ProbeError describes a network-level failure. A ProbeError never
// coexists with a response.
type ProbeError struct {
	Code    ProbeErrorCode `json:"code"`
	Message string         `json:"message"`
	Details string         `json:"details,omitempty"`
}

// ProbeResultKind enumerates the three variants of ProbeResult.
type ProbeResultKind int

const (
	// ProbeSuccess: 2xx/3xx terminal response.
	ProbeSuccess ProbeResultKind = iota
	// ProbeResponseError: 4xx/5xx terminal response. Still carries a
	// response; not a network failure.
	ProbeResponseError
	// ProbeNetworkFailure: no response at all (DNS/TLS/timeout/SSRF).
	ProbeNetworkFailure
)

// ProbeResult is the tagged result of a single probe. Exactly one of
// Response or Error is set; use Kind for exhaustive dispatch instead
// of inspecting the fields directly.
type ProbeResult struct {
	OK         bool              `json:"ok"`
	Response   *ResponseMetadata `json:"response,omitempty"`
	Redirects  []RedirectHop     `json:"redirects,omitempty"`
	DurationMs *int64            `json:"duration_ms,omitempty"`
	Error      *ProbeError       `json:"error,omitempty"`
}

// NewSuccessResult builds the Success variant from a 2xx/3xx response.
func NewSuccessResult(resp *ResponseMetadata, redirects []RedirectHop, durationMs int64) ProbeResult {
	d := durationMs
	return ProbeResult{
		OK:         true,
		Response:   resp,
		Redirects:  redirects,
		DurationMs: &d,
	}
}

// NewResponseErrorResult builds the ResponseError variant from a
// 4xx/5xx response.
func NewResponseErrorResult(resp *ResponseMetadata, redirects []RedirectHop, durationMs int64) ProbeResult {
	d := durationMs
	return ProbeResult{
		OK:         false,
		Response:   resp,
		Redirects:  redirects,
		DurationMs: &d,
	}
}

// NewNetworkFailureResult builds the NetworkFailure variant.
func NewNetworkFailureResult(code ProbeErrorCode, message, details string, durationMs *int64) ProbeResult {
	return ProbeResult{
		OK: false,
		Error: &ProbeError{
			Code:    code,
			Message: message,
			Details: details,
		},
		DurationMs: durationMs,
	}
}

// Kind returns the variant of the result. The response field is the
// discriminator: any result carrying a response is Success or
// ResponseError, never a network failure.
func (pr *ProbeResult) Kind() ProbeResultKind {
	switch {
	case pr.Response != nil && pr.OK:
		return ProbeSuccess
	case pr.Response != nil:
		return ProbeResponseError
	default:
		return ProbeNetworkFailure
	}
}

// HasResponse reports whether the result carries an HTTP response
// (Success or ResponseError).
func (pr *ProbeResult) HasResponse() bool {
	return pr.Response != nil
}

// ErrorCode returns the network failure code, or empty when the
// result carries a response.
func (pr *ProbeResult) ErrorCode() ProbeErrorCode {
	if pr.Error == nil {
		return ""
	}
	return pr.Error.Code
}
