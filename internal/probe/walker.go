package probe

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aleister1102/envdrift/internal/httpclient"
	"github.com/aleister1102/envdrift/internal/models"
	"github.com/rs/zerolog"
)

// redirectStatuses are the 3xx codes the walker follows. Any other
// 3xx (e.g. 304) terminates the walk as a non-redirect response.
var redirectStatuses = map[int]bool{
	301: true,
	302: true,
	303: true,
	307: true,
	308: true,
}

// walkError is a network-level failure raised during the walk.
type walkError struct {
	code    models.ProbeErrorCode
	message string
	details string
}

func (e *walkError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// walkOutcome is the terminal state of a redirect walk.
type walkOutcome struct {
	response *httpclient.HTTPResponse
	// lastURL is the URL actually requested on the final hop, used as
	// finalUrl when the response carries no effective URL of its own.
	lastURL string
	hops    []models.RedirectHop
}

// redirectWalker follows redirects manually, one request per hop,
// under a cooperative time budget.
type redirectWalker struct {
	client       *httpclient.HTTPClient
	maxRedirects int
	logger       zerolog.Logger
}

// walk issues requests hop by hop until a non-redirect response, the
// hop limit, a loop, or budget exhaustion.
func (w *redirectWalker) walk(budget *Budget, startURL string) (*walkOutcome, *walkError) {
	currentURL := startURL
	visited := map[string]bool{startURL: true}
	var hops []models.RedirectHop

	for hop := 0; ; hop++ {
		if !budget.ShouldContinue() {
			return nil, &walkError{
				code:    models.ProbeErrTimeout,
				message: "probe time budget exhausted",
				details: fmt.Sprintf("after %d redirect hop(s)", len(hops)),
			}
		}

		resp, err := w.client.Do(&httpclient.HTTPRequest{
			URL:     currentURL,
			Context: budget.Context(),
		})
		if err != nil {
			code, message := mapFetchError(err)
			return nil, &walkError{code: code, message: message, details: currentURL}
		}

		if !redirectStatuses[resp.StatusCode] {
			return &walkOutcome{response: resp, lastURL: currentURL, hops: hops}, nil
		}

		location := resp.Headers["Location"]
		if location == "" {
			location = resp.Headers["location"]
		}
		if location == "" {
			return nil, &walkError{
				code:    models.ProbeErrFetch,
				message: fmt.Sprintf("redirect response %d is missing the Location header", resp.StatusCode),
				details: currentURL,
			}
		}

		nextURL, resolveErr := resolveLocation(currentURL, location)
		if resolveErr != nil {
			return nil, &walkError{
				code:    models.ProbeErrFetch,
				message: "failed to resolve redirect Location",
				details: resolveErr.Error(),
			}
		}

		if len(hops) >= w.maxRedirects {
			return nil, &walkError{
				code:    models.ProbeErrFetch,
				message: fmt.Sprintf("too many redirects (limit %d)", w.maxRedirects),
				details: nextURL,
			}
		}

		if visited[nextURL] {
			return nil, &walkError{
				code:    models.ProbeErrFetch,
				message: "redirect loop detected",
				details: nextURL,
			}
		}
		visited[nextURL] = true

		hops = append(hops, models.RedirectHop{
			FromURL: currentURL,
			ToURL:   nextURL,
			Status:  resp.StatusCode,
		})

		w.logger.Debug().
			Str("from", currentURL).
			Str("to", nextURL).
			Int("status", resp.StatusCode).
			Msg("Following redirect")

		currentURL = nextURL
	}
}

// resolveLocation resolves a Location header value relative to the
// URL of the response that carried it.
func resolveLocation(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// mapFetchError classifies a transport error by substring inspection
// of the platform error text.
func mapFetchError(err error) (models.ProbeErrorCode, string) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "abort"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "context canceled"):
		return models.ProbeErrTimeout, "request timed out"
	case strings.Contains(msg, "dns"),
		strings.Contains(msg, "enotfound"),
		strings.Contains(msg, "no such host"):
		return models.ProbeErrDNS, "DNS resolution failed"
	case strings.Contains(msg, "certificate"),
		strings.Contains(msg, "tls"),
		strings.Contains(msg, "x509"):
		return models.ProbeErrTLS, "TLS negotiation failed"
	default:
		return models.ProbeErrFetch, "fetch failed"
	}
}
