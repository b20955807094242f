// headers/headers.go
package headers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-api-load-driver/headers/redact"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"go.uber.org/zap"
)

// HeaderHandler is responsible for managing and setting headers on load requests.
type HeaderHandler struct {
	req *http.Request // The http.Request for which headers are being managed
	log logger.Logger // The logger to use for logging headers
}

// NewHeaderHandler creates a new instance of HeaderHandler for a given http.Request and logger.
func NewHeaderHandler(req *http.Request, log logger.Logger) *HeaderHandler {
	return &HeaderHandler{
		req: req,
		log: log,
	}
}

// SetContentType sets the Content-Type header for the request.
func (h *HeaderHandler) SetContentType(contentType string) {
	h.req.Header.Set("Content-Type", contentType)
}

// SetAccept sets the Accept header for the request.
func (h *HeaderHandler) SetAccept(acceptHeader string) {
	h.req.Header.Set("Accept", acceptHeader)
}

// SetUserAgent sets the User-Agent header for the request.
func (h *HeaderHandler) SetUserAgent(userAgent string) {
	h.req.Header.Set("User-Agent", userAgent)
}

// SetCustomHeaders sets every header in custom, overriding any standard header of the same name.
func (h *HeaderHandler) SetCustomHeaders(custom map[string]string) {
	for name, value := range custom {
		h.req.Header.Set(name, value)
	}
}

// SetRequestHeaders sets the headers every load request carries: User-Agent and Accept always,
// Content-Type when the request has a JSON body, then the target's own headers.
func (h *HeaderHandler) SetRequestHeaders(userAgent string, hasJSONBody bool, custom map[string]string) {
	h.SetUserAgent(userAgent)
	h.SetAccept("application/json")
	if hasJSONBody {
		h.SetContentType("application/json")
	}
	h.SetCustomHeaders(custom)
}

// LogHeaders logs the current request headers at debug level, redacting sensitive values when
// hideSensitiveData is set.
func (h *HeaderHandler) LogHeaders(hideSensitiveData bool) {
	if h.log.GetLogLevel() <= logger.LogLevelDebug {
		h.log.Debug("HTTP Request Headers", zap.String("Headers", HeadersToString(RedactHeaders(hideSensitiveData, h.req.Header))))
	}
}

// RedactHeaders returns a copy of headers with sensitive values replaced.
func RedactHeaders(hideSensitiveData bool, headers http.Header) http.Header {
	redactedHeaders := http.Header{}
	for name, values := range headers {
		for _, value := range values {
			redactedHeaders.Add(name, redact.RedactSensitiveHeaderData(hideSensitiveData, name, value))
		}
	}
	return redactedHeaders
}

// HeadersToString converts a http.Header to a string for logging, one header per line, sorted by name.
func HeadersToString(headers http.Header) string {
	var headerStrings []string
	for name, values := range headers {
		headerStrings = append(headerStrings, fmt.Sprintf("%s: %s", name, strings.Join(values, ", ")))
	}
	sort.Strings(headerStrings)
	return strings.Join(headerStrings, "\n")
}
