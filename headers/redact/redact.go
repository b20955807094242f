// headers/redact/redact.go
package redact

import (
	"net/http"
	"sort"
)

// sensitiveKeys holds canonical header names whose values never reach the logs when redaction is on.
var sensitiveKeys = map[string]bool{
	"Accesstoken":         true,
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"X-Api-Key":           true,
}

// RedactSensitiveHeaderData redacts sensitive data based on the hideSensitiveData flag.
// Header names are compared in canonical form, so "authorization" and "Authorization" are treated alike.
func RedactSensitiveHeaderData(hideSensitiveData bool, key, value string) string {
	if hideSensitiveData && sensitiveKeys[http.CanonicalHeaderKey(key)] {
		return "REDACTED"
	}
	return value
}

// SensitiveHeaderNames returns the canonical names of the headers treated as sensitive, sorted.
func SensitiveHeaderNames() []string {
	names := make([]string, 0, len(sensitiveKeys))
	for name := range sensitiveKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
