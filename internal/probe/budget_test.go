package probe

import (
	"context"
	"testing"
	"time"

	"github.com/aleister1102/envdrift/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_ShouldContinue(t *testing.T) {
	budget := NewBudget(context.Background(), 200*time.Millisecond, 50*time.Millisecond)
	defer budget.Release()

	assert.True(t, budget.ShouldContinue())

	time.Sleep(180 * time.Millisecond)
	assert.False(t, budget.ShouldContinue())
}

func TestBudget_ContextExpires(t *testing.T) {
	budget := NewBudget(context.Background(), 30*time.Millisecond, 10*time.Millisecond)
	defer budget.Release()

	select {
	case <-budget.Context().Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("budget context did not expire")
	}
	assert.Equal(t, time.Duration(0), budget.Remaining())
}

func TestNormalizeHeaders(t *testing.T) {
	headers := NormalizeHeaders(map[string]string{
		"Content-Type":                 "text/html",
		"Cache-Control":                "no-store",
		"VARY":                         "Accept-Encoding",
		"WWW-Authenticate":             `Basic realm="x"`,
		"Location":                     "/next",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET",
		"Server":                       "nginx",
		"X-Request-Id":                 "abc",
	})

	assert.Equal(t, map[string]string{
		"content-type":     "text/html",
		"cache-control":    "no-store",
		"vary":             "Accept-Encoding",
		"www-authenticate": `Basic realm="x"`,
		"location":         "/next",
	}, headers.Core)
	assert.Equal(t, map[string]string{
		"access-control-allow-origin":  "*",
		"access-control-allow-methods": "GET",
	}, headers.AccessControl)
}

func TestNormalizeHeaders_EmptyAccessControlOmitted(t *testing.T) {
	headers := NormalizeHeaders(map[string]string{"Server": "nginx"})

	assert.Empty(t, headers.Core)
	assert.Nil(t, headers.AccessControl)
}

func TestParseContentLength(t *testing.T) {
	n := parseContentLength(map[string]string{"Content-Length": "1234"})
	require.NotNil(t, n)
	assert.Equal(t, int64(1234), *n)

	assert.Nil(t, parseContentLength(map[string]string{"Content-Length": "nope"}))
	assert.Nil(t, parseContentLength(map[string]string{}))
}

func TestMapFetchError(t *testing.T) {
	cases := []struct {
		msg  string
		want models.ProbeErrorCode
	}{
		{"context deadline exceeded", models.ProbeErrTimeout},
		{"request aborted by peer", models.ProbeErrTimeout},
		{"lookup x.invalid: no such host", models.ProbeErrDNS},
		{"getaddrinfo enotfound", models.ProbeErrDNS},
		{"x509: certificate signed by unknown authority", models.ProbeErrTLS},
		{"tls handshake failure", models.ProbeErrTLS},
		{"connection refused", models.ProbeErrFetch},
	}
	for _, tc := range cases {
		code, _ := mapFetchError(errorMsg(tc.msg))
		assert.Equal(t, tc.want, code, "message %q", tc.msg)
	}
}

type errorMsg string

func (e errorMsg) Error() string { return string(e) }
