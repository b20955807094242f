// loadtest/target.go
package loadtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultPostBody is sent by the default submission target.
const DefaultPostBody = `{"payload": {"k": "v"}}`

// Target is one endpoint under load. Targets are fixed once configuration is loaded; the scheduler
// shares a single Target value across every request of its batch.
type Target struct {
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Body         json.RawMessage   `json:"body,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	ReadinessURL string            `json:"readiness_url,omitempty"`
}

// Validate reports the first problem that would make the target unusable.
func (t Target) Validate() error {
	if t.Name == "" {
		return errors.New("target name cannot be empty")
	}
	if err := validateHTTPURL(t.URL); err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}
	if t.Method != http.MethodGet && t.Method != http.MethodPost {
		return fmt.Errorf("target %q: unsupported method %q, expected GET or POST", t.Name, t.Method)
	}
	if len(t.Body) > 0 && !json.Valid(t.Body) {
		return fmt.Errorf("target %q: body is not valid JSON", t.Name)
	}
	if t.ReadinessURL != "" {
		if err := validateHTTPURL(t.ReadinessURL); err != nil {
			return fmt.Errorf("target %q readiness URL: %w", t.Name, err)
		}
	}
	return nil
}

// sendsBody reports whether requests to t carry a JSON body. Only POST targets send one.
func (t Target) sendsBody() bool {
	return t.Method == http.MethodPost && len(t.Body) > 0
}

// ValidateTargets validates every target and rejects duplicate names, which would make the report ambiguous.
func ValidateTargets(targets []Target) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// DefaultTargets returns the three simulated services in run order: service1 and service2 are read with
// GET, service3 receives DefaultPostBody with POST. Each target's readiness URL is /readyz on the same host.
func DefaultTargets(service1URL, service2URL, service3URL string) []Target {
	return []Target{
		{Name: "service1", URL: service1URL, Method: http.MethodGet, ReadinessURL: readinessURLFor(service1URL)},
		{Name: "service2", URL: service2URL, Method: http.MethodGet, ReadinessURL: readinessURLFor(service2URL)},
		{Name: "service3", URL: service3URL, Method: http.MethodPost, Body: json.RawMessage(DefaultPostBody), ReadinessURL: readinessURLFor(service3URL)},
	}
}

func readinessURLFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/readyz"}).String()
}

func validateHTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return nil
}
