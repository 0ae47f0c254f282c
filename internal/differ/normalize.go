package differ

import (
	"net/url"
	"sort"
	"strings"
)

// normalizeCacheControl reduces a Cache-Control value to its sorted,
// deduplicated directive-name set: split on commas, keep the text
// before any "=", trim, lowercase. Directive arguments are ignored on
// purpose, so "max-age=60" and "max-age=3600" normalize identically.
func normalizeCacheControl(value string) []string {
	seen := make(map[string]bool)
	var directives []string
	for _, part := range strings.Split(value, ",") {
		name := part
		if idx := strings.Index(name, "="); idx >= 0 {
			name = name[:idx]
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		directives = append(directives, name)
	}
	sort.Strings(directives)
	return directives
}

func directiveSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeContentType strips parameters (the text after ";"), trims,
// and lowercases. An empty input normalizes to the empty string.
func normalizeContentType(value string) string {
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// majorType returns the part of a normalized media type before "/".
func majorType(mediaType string) string {
	if idx := strings.Index(mediaType, "/"); idx >= 0 {
		return mediaType[:idx]
	}
	return mediaType
}

// urlParts is the decomposition used to grade final-URL drift.
type urlParts struct {
	scheme string
	host   string
	path   string
	query  string
	valid  bool
}

func decomposeURL(rawURL string) urlParts {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return urlParts{}
	}
	return urlParts{
		scheme: strings.ToLower(parsed.Scheme),
		host:   strings.ToLower(parsed.Host),
		path:   parsed.Path,
		query:  parsed.RawQuery,
		valid:  true,
	}
}

// hostnameOf returns the lowercased hostname (no port) of a URL, or
// "" when it cannot be parsed.
func hostnameOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// statusClass maps an HTTP status to its class digit (2xx -> 2).
func statusClass(status int) int {
	return status / 100
}
