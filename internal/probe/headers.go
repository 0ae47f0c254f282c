package probe

import (
	"strconv"
	"strings"

	"github.com/aleister1102/envdrift/internal/models"
)

// coreHeaderWhitelist is the closed set of non-CORS headers captured
// into an envelope. Everything else is discarded.
var coreHeaderWhitelist = map[string]bool{
	"cache-control":    true,
	"content-type":     true,
	"vary":             true,
	"www-authenticate": true,
	"location":         true,
}

const accessControlPrefix = "access-control-"

// NormalizeHeaders lowercases all header names, keeps the whitelisted
// core headers, and collects every access-control-* header. The
// access-control map is nil when empty so it serializes as absent.
func NormalizeHeaders(raw map[string]string) models.ResponseHeaders {
	headers := models.ResponseHeaders{
		Core: make(map[string]string),
	}

	for name, value := range raw {
		lower := strings.ToLower(name)
		switch {
		case coreHeaderWhitelist[lower]:
			headers.Core[lower] = value
		case strings.HasPrefix(lower, accessControlPrefix):
			if headers.AccessControl == nil {
				headers.AccessControl = make(map[string]string)
			}
			headers.AccessControl[lower] = value
		}
	}

	return headers
}

// parseContentLength extracts the declared content length from the
// raw headers; returns nil when absent or malformed.
func parseContentLength(raw map[string]string) *int64 {
	for name, value := range raw {
		if strings.EqualFold(name, "content-length") {
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || n < 0 {
				return nil
			}
			return &n
		}
	}
	return nil
}
