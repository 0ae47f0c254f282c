package differ

import (
	"regexp"
	"sort"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/aleister1102/envdrift/internal/models"
)

// Per-section evidence key vocabularies. Every finding the classifier
// emits must point at keys drawn from these sets; a violation is a
// classifier bug, not bad input, so validation failures surface as
// errors instead of findings.
var evidenceKeyVocab = map[models.EvidenceSection]map[string]bool{
	models.SectionProbe: {
		string(models.SideLeft):  true,
		string(models.SideRight): true,
	},
	models.SectionStatus: {},
	models.SectionFinalURL: {
		"scheme":   true,
		"host":     true,
		"path":     true,
		"query":    true,
		"finalUrl": true,
	},
	models.SectionRedirects: {
		"hopCount":  true,
		"chain":     true,
		"finalHost": true,
	},
	models.SectionContent: {
		"content-type":   true,
		"content-length": true,
		"body-hash":      true,
	},
	models.SectionTiming: {
		"duration_ms": true,
	},
	models.SectionCF: {
		"colo":    true,
		"asn":     true,
		"country": true,
	},
}

// The headers section accepts any lowercase header name instead of a
// closed set.
var headerKeyPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// newEvidence builds an evidence entry with its keys sorted and
// deduplicated.
func newEvidence(section models.EvidenceSection, keys []string, note string) models.Evidence {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	deduped := sorted[:0]
	for i, key := range sorted {
		if i > 0 && sorted[i-1] == key {
			continue
		}
		deduped = append(deduped, key)
	}
	return models.Evidence{Section: section, Keys: deduped, Note: note}
}

// validateFindingEvidence checks every evidence entry of every finding
// against the section vocabularies and the sorted/duplicate-free rule.
func validateFindingEvidence(findings []models.Finding) error {
	for i := range findings {
		finding := &findings[i]
		if len(finding.Evidence) == 0 {
			return errorwrapper.NewError("finding %s carries no evidence", finding.ID)
		}
		for _, evidence := range finding.Evidence {
			if err := validateEvidenceKeys(evidence); err != nil {
				return errorwrapper.WrapError(err, "finding "+finding.ID)
			}
		}
	}
	return nil
}

func validateEvidenceKeys(evidence models.Evidence) error {
	for i, key := range evidence.Keys {
		if i > 0 {
			if evidence.Keys[i-1] == key {
				return errorwrapper.NewError("evidence keys for section %s contain duplicate %q", evidence.Section, key)
			}
			if evidence.Keys[i-1] > key {
				return errorwrapper.NewError("evidence keys for section %s are not sorted", evidence.Section)
			}
		}
		if evidence.Section == models.SectionHeaders {
			if !headerKeyPattern.MatchString(key) {
				return errorwrapper.NewError("evidence key %q is not a lowercase header name", key)
			}
			continue
		}
		vocab, known := evidenceKeyVocab[evidence.Section]
		if !known {
			return errorwrapper.NewError("unknown evidence section %q", evidence.Section)
		}
		if !vocab[key] {
			return errorwrapper.NewError("evidence key %q is outside the %s vocabulary", key, evidence.Section)
		}
	}

	if evidence.Section == models.SectionProbe && len(evidence.Keys) > 1 {
		return errorwrapper.NewError("probe evidence names at most one side")
	}
	if evidence.Section == models.SectionStatus && len(evidence.Keys) != 0 {
		return errorwrapper.NewError("status evidence carries no keys")
	}
	return nil
}
