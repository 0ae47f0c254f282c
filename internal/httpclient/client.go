// Package httpclient wraps net/http for the active probe. Redirects
// are never followed by the client; the probe walks them manually.
package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

// HTTPRequest describes a single probe fetch.
type HTTPRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Context context.Context
}

// HTTPResponse is the raw outcome of one fetch. Headers keep their
// first value per key with the wire casing; normalization happens in
// the probe.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	// EffectiveURL is the URL the response was actually served from
	// (after the request's own URL resolution).
	EffectiveURL string
	Protocol     string
}

// HTTPClient wraps net/http.Client with tuned transport settings and
// redirect following disabled.
type HTTPClient struct {
	client *http.Client
	config HTTPClientConfig
	logger zerolog.Logger
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config HTTPClientConfig, logger zerolog.Logger) (*HTTPClient, error) {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		// The probe owns redirect handling; always surface the 3xx.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	logger.Debug().
		Dur("timeout", config.Timeout).
		Bool("insecure_skip_verify", config.InsecureSkipVerify).
		Bool("http2_enabled", config.EnableHTTP2).
		Msg("HTTP client created")

	return &HTTPClient{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Do performs a single HTTP request without following redirects.
func (c *HTTPClient) Do(req *HTTPRequest) (*HTTPResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequest(method, req.URL, nil)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to create HTTP request")
	}

	if req.Context != nil {
		httpReq = httpReq.WithContext(req.Context)
	}

	for key, value := range c.config.CustomHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "*/*")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errorwrapper.NewNetworkError(req.URL, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	var body []byte
	if c.config.MaxReadBytes > 0 {
		body, err = io.ReadAll(io.LimitReader(resp.Body, c.config.MaxReadBytes))
		if err != nil {
			return nil, errorwrapper.NewNetworkError(req.URL, "failed to read response body", err)
		}
	}
	// Drain the remainder so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	httpResp := &HTTPResponse{
		StatusCode:   resp.StatusCode,
		Headers:      make(map[string]string, len(resp.Header)),
		Body:         body,
		EffectiveURL: resp.Request.URL.String(),
		Protocol:     resp.Proto,
	}
	for key, values := range resp.Header {
		if len(values) > 0 {
			httpResp.Headers[key] = values[0]
		}
	}

	return httpResp, nil
}
