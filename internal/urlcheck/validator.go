// Package urlcheck implements the SSRF guard used by both the request
// gateway and the active probe. Validation is a pure function of the
// URL string.
package urlcheck

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/aleister1102/envdrift/internal/models"
)

// ValidationResult is the outcome of validating a URL. Reason is set
// only on rejection.
type ValidationResult struct {
	OK     bool
	Reason string
}

// blockedV4Ranges are the IPv4 ranges a probe must never reach, each
// paired with the reason reported to the caller.
var blockedV4Ranges = []struct {
	prefix netip.Prefix
	reason string
}{
	{netip.MustParsePrefix("0.0.0.0/8"), "any-address range 0.0.0.0/8 is blocked"},
	{netip.MustParsePrefix("127.0.0.0/8"), "loopback range 127.0.0.0/8 is blocked"},
	{netip.MustParsePrefix("10.0.0.0/8"), "private range 10.0.0.0/8 is blocked"},
	{netip.MustParsePrefix("172.16.0.0/12"), "private range 172.16.0.0/12 is blocked"},
	{netip.MustParsePrefix("192.168.0.0/16"), "private range 192.168.0.0/16 is blocked"},
	{netip.MustParsePrefix("169.254.0.0/16"), "link-local range 169.254.0.0/16 is blocked"},
}

// blockedV6Ranges are the IPv6 ranges a probe must never reach.
var blockedV6Ranges = []struct {
	prefix netip.Prefix
	reason string
}{
	{netip.MustParsePrefix("::1/128"), "loopback address ::1 is blocked"},
	{netip.MustParsePrefix("fe80::/10"), "link-local range fe80::/10 is blocked"},
}

// localhostNames are hostnames rejected by exact (case-insensitive)
// match before any IP parsing.
var localhostNames = map[string]bool{
	"localhost":             true,
	"localhost.":            true,
	"localhost.localdomain": true,
	"::1":                   true,
	"[::1]":                 true,
	"0:0:0:0:0:0:0:1":       true,
}

// Validate checks a raw URL against the SSRF policy. Rejections carry
// a human-readable reason; MapReason translates it to an error code.
func Validate(rawURL string) ValidationResult {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rejected(fmt.Sprintf("URL is not parseable: %v", err))
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return rejected(fmt.Sprintf("unsupported scheme %q (only http and https are allowed)", parsed.Scheme))
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return rejected("URL has no hostname")
	}

	if isNumericEncodedHost(host) {
		return rejected(fmt.Sprintf("numeric-encoded hostname %q is blocked (SSRF bypass)", host))
	}

	if localhostNames[host] {
		return rejected(fmt.Sprintf("localhost hostname %q is blocked", host))
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP literal; regular hostnames pass.
		return ValidationResult{OK: true}
	}

	if addr.Is4() {
		return checkV4(addr)
	}

	// IPv4-mapped IPv6 decodes into the IPv4 policy.
	if addr.Is4In6() {
		if res := checkV4(addr.Unmap()); !res.OK {
			return rejected("ipv6-mapped address decodes into a blocked range: " + res.Reason)
		}
		return ValidationResult{OK: true}
	}

	for _, r := range blockedV6Ranges {
		if r.prefix.Contains(addr) {
			return rejected(r.reason)
		}
	}

	return ValidationResult{OK: true}
}

func checkV4(addr netip.Addr) ValidationResult {
	for _, r := range blockedV4Ranges {
		if r.prefix.Contains(addr) {
			return rejected(r.reason)
		}
	}
	return ValidationResult{OK: true}
}

// isNumericEncodedHost detects hostnames encoded as a bare number:
// wholly decimal digits, hex with 0x prefix, or octal 0[0-7]+. These
// decode to IP addresses and are treated as SSRF bypass attempts.
func isNumericEncodedHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.HasPrefix(host, "0x") && len(host) > 2 {
		rest := host[2:]
		for _, c := range rest {
			if !isHexDigit(c) {
				return false
			}
		}
		return true
	}
	if host[0] == '0' && len(host) > 1 {
		octal := true
		for _, c := range host[1:] {
			if c < '0' || c > '7' {
				octal = false
				break
			}
		}
		if octal {
			return true
		}
	}
	for _, c := range host {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

func rejected(reason string) ValidationResult {
	return ValidationResult{OK: false, Reason: reason}
}

// ssrfReasonMarkers are the substrings of rejection reasons that map
// to ssrf_blocked rather than invalid_url.
var ssrfReasonMarkers = []string{
	"localhost", "loopback", "private", "link-local",
	"blocked", "any-address", "ipv6-mapped",
}

// MapReason translates a rejection reason into the probe error code
// the gateway and probe surface to callers.
func MapReason(reason string) models.ProbeErrorCode {
	lower := strings.ToLower(reason)
	for _, marker := range ssrfReasonMarkers {
		if strings.Contains(lower, marker) {
			return models.ProbeErrSSRFBlocked
		}
	}
	return models.ProbeErrInvalidURL
}
