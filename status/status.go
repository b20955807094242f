// status.go
// This package provides utility functions for categorizing HTTP status codes observed while driving load.
package status

import (
	"net/http"
)

// IsSuccessStatusCode reports whether statusCode counts as a successful load request: 200 <= code < 300.
// Redirects and informational codes are not successes.
func IsSuccessStatusCode(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

// IsRedirectStatusCode checks if the provided HTTP status code is one of the redirect codes.
//
// - 301 Moved Permanently
// - 302 Found
// - 303 See Other
// - 307 Temporary Redirect
// - 308 Permanent Redirect
//
// The load client does not follow redirects unless configured to, so these arrive as failed requests.
func IsRedirectStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if the provided HTTP status code is considered retryable.
func IsRetryableStatusCode(statusCode int) bool {
	retryableStatusCodes := map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}

	_, retryable := retryableStatusCodes[statusCode]
	return retryable
}

// TranslateStatusCode provides a human-readable message for HTTP status codes.
func TranslateStatusCode(statusCode int) string {
	messages := map[int]string{
		0:                                "No status code received, possible network or connection error.",
		http.StatusOK:                    "Request successful.",
		http.StatusCreated:               "Request to create or update resource successful.",
		http.StatusAccepted:              "The request was accepted for processing, but the processing has not completed.",
		http.StatusNoContent:             "Request successful. No content to send for this request.",
		http.StatusMovedPermanently:      "Moved permanently. Redirects are not followed by the load client.",
		http.StatusFound:                 "Found. Redirects are not followed by the load client.",
		http.StatusBadRequest:            "Bad request. Verify the syntax of the request.",
		http.StatusUnauthorized:          "Authentication failed. Verify the credentials being used for the request.",
		http.StatusForbidden:             "Invalid permissions. Verify the account has the proper permissions for the resource.",
		http.StatusNotFound:              "Resource not found. Verify the URL path is correct.",
		http.StatusMethodNotAllowed:      "Method not allowed. The method specified is not allowed for the resource.",
		http.StatusRequestTimeout:        "Request timeout. The server timed out waiting for the request.",
		http.StatusConflict:              "Conflict. The request could not be processed because of conflict in the request.",
		http.StatusUnprocessableEntity:   "Unprocessable entity. The request body was rejected by the server.",
		http.StatusTooManyRequests:       "Too many requests. The target is rate limiting the load client.",
		http.StatusInternalServerError:   "Internal server error. The server encountered an unexpected condition.",
		http.StatusNotImplemented:        "Not implemented. The server does not support the functionality required.",
		http.StatusBadGateway:            "Bad gateway. The server received an invalid response from the upstream server.",
		http.StatusServiceUnavailable:    "Service unavailable. The server is overloaded or down for maintenance.",
		http.StatusGatewayTimeout:        "Gateway timeout. The upstream server failed to respond in time.",
	}

	if message, exists := messages[statusCode]; exists {
		return message
	}
	return "An unexpected error occurred. Please try again later."
}
