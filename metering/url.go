package metering

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is used when no base URL is configured or the configured
// value cannot be parsed.
const DefaultBaseURL = "https://api.revenium.ai/meter"

var versionSuffixes = []string{"/v1", "/v2", "/v3", "/v4", "/v5"}

// EnsureMeterInURL normalizes a configured base URL so it always ends in
// /meter: trailing slashes are dropped, a trailing version segment such as
// /v1 is stripped first, and any other path is replaced with /meter. Empty
// or unparseable input falls back to DefaultBaseURL. The function is
// idempotent.
func EnsureMeterInURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBaseURL
	}
	raw = strings.TrimRight(raw, "/")

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return DefaultBaseURL
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}

	path := strings.TrimRight(parsed.Path, "/")
	for _, suffix := range versionSuffixes {
		if strings.HasSuffix(path, suffix) {
			path = strings.TrimSuffix(path, suffix)
			break
		}
	}
	if strings.HasSuffix(path, "/meter") {
		return scheme + "://" + parsed.Host + path
	}
	return scheme + "://" + parsed.Host + "/meter"
}
