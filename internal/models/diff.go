package models

// Change records a field-wise difference between the two sides.
type Change[T any] struct {
	Left    T    `json:"left"`
	Right   T    `json:"right"`
	Changed bool `json:"changed"`
}

// Unchanged builds a Change whose sides are identical.
func Unchanged[T any](v T) Change[T] {
	return Change[T]{Left: v, Right: v, Changed: false}
}

// Changed builds a Change whose sides differ.
func Changed[T any](left, right T) Change[T] {
	return Change[T]{Left: left, Right: right, Changed: true}
}

// HeaderDiff classifies the key union of two header maps. Keys are
// lowercased; iteration order, when surfaced, is alphabetical.
type HeaderDiff struct {
	Added     map[string]string         `json:"added,omitempty"`
	Removed   map[string]string         `json:"removed,omitempty"`
	Changed   map[string]Change[string] `json:"changed,omitempty"`
	Unchanged map[string]string         `json:"unchanged,omitempty"`
}

// IsEmpty reports whether the diff carries no keys at all.
func (hd *HeaderDiff) IsEmpty() bool {
	return len(hd.Added) == 0 && len(hd.Removed) == 0 && len(hd.Changed) == 0 && len(hd.Unchanged) == 0
}

// HasDrift reports whether any key was added, removed, or changed.
func (hd *HeaderDiff) HasDrift() bool {
	return len(hd.Added) > 0 || len(hd.Removed) > 0 || len(hd.Changed) > 0
}

// HeaderSectionDiff groups the core and access-control header diffs.
type HeaderSectionDiff struct {
	Core          *HeaderDiff `json:"core,omitempty"`
	AccessControl *HeaderDiff `json:"access_control,omitempty"`
}

// RedirectDiff compares the recorded redirect chains of both sides.
type RedirectDiff struct {
	Left                  []RedirectHop   `json:"left"`
	Right                 []RedirectHop   `json:"right"`
	HopCount              Change[int]     `json:"hop_count"`
	FinalURLFromRedirects *Change[string] `json:"final_url_from_redirects,omitempty"`
	ChainChanged          bool            `json:"chain_changed"`
}

// ContentDiff compares content-level response fields.
type ContentDiff struct {
	ContentType   *Change[string] `json:"content_type,omitempty"`
	ContentLength *Change[int64]  `json:"content_length,omitempty"`
	BodyHash      *Change[string] `json:"body_hash,omitempty"`
}

// TimingDiff compares probe durations. Ratio is max/min; DeltaMs is
// the absolute difference.
type TimingDiff struct {
	DurationMs Change[int64] `json:"duration_ms"`
	Ratio      float64       `json:"ratio"`
	DeltaMs    int64         `json:"delta_ms"`
}

// CFContextDiff compares execution-context snapshots.
type CFContextDiff struct {
	Colo    *Change[string] `json:"colo,omitempty"`
	Country *Change[string] `json:"country,omitempty"`
	ASN     *Change[int]    `json:"asn,omitempty"`
}

// ProbeOutcomeDiff compares the outcome variants of the two probes.
// ResponsePresent is the sole discriminator used downstream to gate
// response-level comparisons.
type ProbeOutcomeDiff struct {
	LeftOK          bool           `json:"left_ok"`
	RightOK         bool           `json:"right_ok"`
	LeftErrorCode   ProbeErrorCode `json:"left_error_code,omitempty"`
	RightErrorCode  ProbeErrorCode `json:"right_error_code,omitempty"`
	OutcomeChanged  bool           `json:"outcome_changed"`
	ResponsePresent bool           `json:"response_present"`
}

// EnvDiff is the full structured diff of two signal envelopes.
// Sections beyond probe are present only when both sides carried a
// response and the underlying data exists.
type EnvDiff struct {
	SchemaVersion int                `json:"schema_version"`
	ComparisonID  string             `json:"comparison_id"`
	LeftProbeID   string             `json:"left_probe_id"`
	RightProbeID  string             `json:"right_probe_id"`
	Probe         ProbeOutcomeDiff   `json:"probe"`
	Status        *Change[int]       `json:"status,omitempty"`
	FinalURL      *Change[string]    `json:"final_url,omitempty"`
	Headers       *HeaderSectionDiff `json:"headers,omitempty"`
	Redirects     *RedirectDiff      `json:"redirects,omitempty"`
	Content       *ContentDiff       `json:"content,omitempty"`
	Timing        *TimingDiff        `json:"timing,omitempty"`
	CF            *CFContextDiff     `json:"cf,omitempty"`
	Findings      []Finding          `json:"findings"`
	MaxSeverity   Severity           `json:"max_severity"`
}
