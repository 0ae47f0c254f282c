package httpclient

import "time"

// HTTPClientConfig defines transport-level settings for probe fetches
type HTTPClientConfig struct {
	Timeout               time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	InsecureSkipVerify    bool
	EnableHTTP2           bool
	UserAgent             string
	CustomHeaders         map[string]string
	// MaxReadBytes caps how much of a response body is read; the rest
	// is discarded. Zero means read nothing.
	MaxReadBytes int64
}

// DefaultHTTPClientConfig returns transport defaults suitable for
// single-shot probes.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:               10 * time.Second,
		DialTimeout:           5 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       8,
		EnableHTTP2:           true,
		UserAgent:             "envdrift-probe/1.0",
		MaxReadBytes:          4 * 1024 * 1024,
	}
}
