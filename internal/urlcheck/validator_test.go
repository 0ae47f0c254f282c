package urlcheck

import (
	"testing"

	"github.com/aleister1102/envdrift/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidate_AcceptsPublicURLs(t *testing.T) {
	accepted := []string{
		"https://example.com",
		"http://example.com/path?q=1",
		"https://api.example.com:8443/health",
		"https://8.8.8.8",
		"https://[2606:4700::1111]/",
	}
	for _, raw := range accepted {
		res := Validate(raw)
		assert.True(t, res.OK, "expected %q to be accepted, got reason %q", raw, res.Reason)
	}
}

func TestValidate_RejectsMalformedAndScheme(t *testing.T) {
	cases := []string{
		"not a url at all ::",
		"ftp://example.com",
		"file:///etc/passwd",
		"https://",
	}
	for _, raw := range cases {
		res := Validate(raw)
		assert.False(t, res.OK, "expected %q to be rejected", raw)
		assert.Equal(t, models.ProbeErrInvalidURL, MapReason(res.Reason), "reason %q", res.Reason)
	}
}

func TestValidate_RejectsLocalhostNames(t *testing.T) {
	cases := []string{
		"http://localhost:3000",
		"http://localhost./x",
		"http://localhost.localdomain",
		"http://[::1]:8080",
		"http://[0:0:0:0:0:0:0:1]/",
		"http://LOCALHOST",
	}
	for _, raw := range cases {
		res := Validate(raw)
		assert.False(t, res.OK, "expected %q to be rejected", raw)
		assert.Equal(t, models.ProbeErrSSRFBlocked, MapReason(res.Reason), "reason %q", res.Reason)
	}
}

func TestValidate_RejectsNumericEncodedHosts(t *testing.T) {
	cases := []string{
		"http://2130706433/",   // decimal 127.0.0.1
		"http://0x7f000001/",   // hex
		"http://017700000001/", // octal
		"http://0/",
	}
	for _, raw := range cases {
		res := Validate(raw)
		assert.False(t, res.OK, "expected %q to be rejected", raw)
		assert.Equal(t, models.ProbeErrSSRFBlocked, MapReason(res.Reason), "reason %q", res.Reason)
	}
}

func TestValidate_RejectsBlockedRanges(t *testing.T) {
	cases := []string{
		"http://0.0.0.1",
		"http://127.0.0.1",
		"http://127.255.255.254",
		"http://10.0.0.5",
		"http://172.16.0.1",
		"http://172.31.255.255",
		"http://192.168.1.1",
		"http://169.254.169.254/latest/meta-data/",
		"http://[fe80::1]/",
		"http://[::ffff:127.0.0.1]/",
		"http://[::ffff:10.0.0.1]/",
	}
	for _, raw := range cases {
		res := Validate(raw)
		assert.False(t, res.OK, "expected %q to be rejected", raw)
		assert.Equal(t, models.ProbeErrSSRFBlocked, MapReason(res.Reason), "reason %q", res.Reason)
	}
}

func TestValidate_AcceptsBoundaryNeighbors(t *testing.T) {
	// One octet outside each blocked range.
	accepted := []string{
		"http://128.0.0.0",
		"http://169.253.0.0",
		"http://169.255.0.0",
		"http://172.15.0.0",
		"http://172.32.0.0",
		"http://9.255.255.255",
		"http://193.168.0.1",
	}
	for _, raw := range accepted {
		res := Validate(raw)
		assert.True(t, res.OK, "expected %q to be accepted, got reason %q", raw, res.Reason)
	}
}

func TestMapReason(t *testing.T) {
	assert.Equal(t, models.ProbeErrSSRFBlocked, MapReason("loopback range 127.0.0.0/8 is blocked"))
	assert.Equal(t, models.ProbeErrSSRFBlocked, MapReason("ipv6-mapped address decodes into a blocked range"))
	assert.Equal(t, models.ProbeErrInvalidURL, MapReason("unsupported scheme \"ftp\""))
	assert.Equal(t, models.ProbeErrInvalidURL, MapReason("URL has no hostname"))
}
