package redirecthandler

import (
	"fmt"
	"net/http"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"go.uber.org/zap"
)

// RedirectHandler contains configurations for handling HTTP redirects on the load client.
// It holds no per-request state, so one handler is safe to share across every in-flight request of a batch.
type RedirectHandler struct {
	Logger           logger.Logger // Logger instance for logging.
	MaxRedirects     int           // Maximum allowed redirects to prevent infinite loops.
	SensitiveHeaders []string      // Headers to be removed on cross-domain redirects.
}

// NewRedirectHandler creates a new instance of RedirectHandler.
func NewRedirectHandler(log logger.Logger, maxRedirects int) *RedirectHandler {
	return &RedirectHandler{
		Logger:           log,
		MaxRedirects:     maxRedirects,
		SensitiveHeaders: []string{"Authorization", "Cookie"},
	}
}

// AddSensitiveHeader allows adding configurable sensitive headers.
func (r *RedirectHandler) AddSensitiveHeader(header string) {
	r.SensitiveHeaders = append(r.SensitiveHeaders, header)
}

// WithRedirectHandling applies the redirect handling policy to an http.Client.
func (r *RedirectHandler) WithRedirectHandling(client *http.Client) {
	client.CheckRedirect = r.checkRedirect
}

// checkRedirect implements the redirect policy. Whenever a redirect is not followed the last response is
// handed back to the caller unchanged, so the load executor classifies it by its 3xx status.
func (r *RedirectHandler) checkRedirect(req *http.Request, via []*http.Request) error {
	// net/http rewrites POST to GET on 301/302/303, so the method that matters is the original one
	if len(via) > 0 && isNonIdempotent(via[0].Method) {
		r.Logger.Debug("Redirect attempted on non-idempotent method, not following", zap.String("method", via[0].Method))
		return http.ErrUseLastResponse
	}

	if len(via) >= r.MaxRedirects {
		r.Logger.Debug("Maximum redirects reached", zap.Int("maxRedirects", r.MaxRedirects))
		return http.ErrUseLastResponse
	}

	if hasLoop(req, via) {
		r.Logger.Debug("Redirect loop detected", zap.String("url", req.URL.String()))
		return http.ErrUseLastResponse
	}

	if len(via) > 0 && via[0].URL.Host != req.URL.Host {
		r.secureRequest(req)
	}

	return nil
}

// secureRequest removes sensitive headers from the request if the new destination is a different domain.
func (r *RedirectHandler) secureRequest(req *http.Request) {
	for _, header := range r.SensitiveHeaders {
		req.Header.Del(header)
	}
}

func isNonIdempotent(method string) bool {
	return method == http.MethodPost || method == http.MethodPatch
}

// hasLoop reports whether req targets a URL already visited in this redirect chain.
func hasLoop(req *http.Request, via []*http.Request) bool {
	target := req.URL.String()
	for _, previous := range via {
		if previous.URL.String() == target {
			return true
		}
	}
	return false
}

// SetupRedirectHandler configures the HTTP client for redirect handling. When followRedirects is false every
// redirect response is returned as-is. sensitiveHeaders are stripped, in addition to Authorization and Cookie,
// when a followed redirect changes host.
func SetupRedirectHandler(client *http.Client, followRedirects bool, maxRedirects int, log logger.Logger, sensitiveHeaders ...string) error {
	if !followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return nil
	}

	if maxRedirects < 1 {
		log.Error("Invalid maxRedirects value", zap.Int("maxRedirects", maxRedirects))
		return fmt.Errorf("invalid maxRedirects value: %d", maxRedirects)
	}

	redirectHandler := NewRedirectHandler(log, maxRedirects)
	for _, header := range sensitiveHeaders {
		redirectHandler.AddSensitiveHeader(header)
	}
	redirectHandler.WithRedirectHandling(client)
	log.Info("Redirect handling enabled", zap.Int("MaxRedirects", maxRedirects))
	return nil
}
