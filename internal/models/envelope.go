package models

import "time"

// CFContext is a snapshot of the execution context the probe ran in.
// Field names follow the upstream runtime's request metadata.
type CFContext struct {
	Colo           string `json:"colo,omitempty"`
	Country        string `json:"country,omitempty"`
	ASN            int    `json:"asn,omitempty"`
	ASOrganization string `json:"as_organization,omitempty"`
	TLSVersion     string `json:"tls_version,omitempty"`
	HTTPProtocol   string `json:"http_protocol,omitempty"`
}

// Defaults applied when the runtime provides no context snapshot.
const (
	DefaultColo    = "LOCAL"
	DefaultCountry = "XX"
)

// SignalEnvelope is the immutable record of one probe execution. It
// is created by the probe, upserted once per side, and never mutated
// after save.
type SignalEnvelope struct {
	SchemaVersion int         `json:"schema_version"`
	ComparisonID  string      `json:"comparison_id"`
	ProbeID       string      `json:"probe_id"`
	Side          Side        `json:"side"`
	RequestedURL  string      `json:"requested_url"`
	CapturedAt    string      `json:"captured_at"`
	CFContext     *CFContext  `json:"cf_context,omitempty"`
	Result        ProbeResult `json:"result"`
}

// NewSignalEnvelope assembles an envelope with the capture instant in
// RFC 3339 UTC.
func NewSignalEnvelope(comparisonID string, side Side, requestedURL string, cf *CFContext, result ProbeResult) SignalEnvelope {
	return SignalEnvelope{
		SchemaVersion: SchemaVersion,
		ComparisonID:  comparisonID,
		ProbeID:       ProbeID(comparisonID, side),
		Side:          side,
		RequestedURL:  requestedURL,
		CapturedAt:    time.Now().UTC().Format(time.RFC3339),
		CFContext:     cf,
		Result:        result,
	}
}

// StorageURL returns the URL a probe record is stored under: the
// response's final URL when a response exists, else the requested URL.
func (se *SignalEnvelope) StorageURL() string {
	if se.Result.Response != nil && se.Result.Response.FinalURL != "" {
		return se.Result.Response.FinalURL
	}
	return se.RequestedURL
}
