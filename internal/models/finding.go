package models

import (
	"fmt"
	"sort"
	"strings"
)

// Severity orders findings from most to least urgent.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarn     Severity = "warn"
	SeverityInfo     Severity = "info"
)

// severityRank maps severities to their sort position
// (critical < warn < info).
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityWarn:     1,
	SeverityInfo:     2,
}

// Rank returns the sort position of the severity; unknown severities
// sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// MaxSeverity returns the more urgent of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() < a.Rank() {
		return b
	}
	return a
}

// FindingCode is the closed vocabulary of classified drifts.
type FindingCode string

const (
	FindingProbeFailure         FindingCode = "PROBE_FAILURE"
	FindingStatusMismatch       FindingCode = "STATUS_MISMATCH"
	FindingFinalURLMismatch     FindingCode = "FINAL_URL_MISMATCH"
	FindingRedirectChainChanged FindingCode = "REDIRECT_CHAIN_CHANGED"
	FindingAuthChallengePresent FindingCode = "AUTH_CHALLENGE_PRESENT"
	FindingCORSHeaderDrift      FindingCode = "CORS_HEADER_DRIFT"
	FindingCacheHeaderDrift     FindingCode = "CACHE_HEADER_DRIFT"
	FindingContentTypeDrift     FindingCode = "CONTENT_TYPE_DRIFT"
	FindingBodyHashDrift        FindingCode = "BODY_HASH_DRIFT"
	FindingContentLengthDrift   FindingCode = "CONTENT_LENGTH_DRIFT"
	FindingTimingDrift          FindingCode = "TIMING_DRIFT"
	FindingCFContextDrift       FindingCode = "CF_CONTEXT_DRIFT"
	FindingUnknownDrift         FindingCode = "UNKNOWN_DRIFT"
)

// FindingCategory groups findings for presentation.
type FindingCategory string

const (
	CategoryRouting  FindingCategory = "routing"
	CategorySecurity FindingCategory = "security"
	CategoryCache    FindingCategory = "cache"
	CategoryContent  FindingCategory = "content"
	CategoryTiming   FindingCategory = "timing"
	CategoryPlatform FindingCategory = "platform"
	CategoryUnknown  FindingCategory = "unknown"
)

// EvidenceSection names the part of the diff an evidence entry points
// into.
type EvidenceSection string

const (
	SectionProbe     EvidenceSection = "probe"
	SectionStatus    EvidenceSection = "status"
	SectionFinalURL  EvidenceSection = "finalUrl"
	SectionRedirects EvidenceSection = "redirects"
	SectionHeaders   EvidenceSection = "headers"
	SectionContent   EvidenceSection = "content"
	SectionTiming    EvidenceSection = "timing"
	SectionCF        EvidenceSection = "cf"
)

// Evidence is a typed pointer into the diff identifying what a
// finding is about. Keys must be lexicographically sorted and
// duplicate-free; each section has its own closed key vocabulary.
type Evidence struct {
	Section EvidenceSection `json:"section"`
	Keys    []string        `json:"keys,omitempty"`
	Note    string          `json:"note,omitempty"`
}

// Finding is one classified drift instance.
type Finding struct {
	ID              string          `json:"id"`
	Code            FindingCode     `json:"code"`
	Category        FindingCategory `json:"category"`
	Severity        Severity        `json:"severity"`
	Message         string          `json:"message"`
	Evidence        []Evidence      `json:"evidence"`
	LeftValue       any             `json:"left_value,omitempty"`
	RightValue      any             `json:"right_value,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
}

// FindingID derives the deterministic finding identifier
// `${code}:${section}:${sortedKeys,}`.
func FindingID(code FindingCode, section EvidenceSection, keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s:%s:%s", code, section, strings.Join(sorted, ","))
}

// PrimarySection returns the section of the first evidence entry,
// used for identity and deduplication.
func (f *Finding) PrimarySection() EvidenceSection {
	if len(f.Evidence) == 0 {
		return ""
	}
	return f.Evidence[0].Section
}

// PrimaryKeys returns the sorted keys of the first evidence entry.
func (f *Finding) PrimaryKeys() []string {
	if len(f.Evidence) == 0 {
		return nil
	}
	keys := append([]string(nil), f.Evidence[0].Keys...)
	sort.Strings(keys)
	return keys
}

// SortFindings orders findings by severity, then code, then message,
// all ascending. The order is total for the identity tuple, so equal
// inputs always serialize identically.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
}
