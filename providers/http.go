package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// EnsureHTTPClient returns the given client or a default with a sane timeout.
func EnsureHTTPClient(client HTTPDoer, timeout time.Duration) HTTPDoer {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ReadLimitedBody drains a response body with a hard cap so a misbehaving
// upstream cannot exhaust memory.
func ReadLimitedBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("providers: read response body: %w", err)
	}
	return body, nil
}

// ClassifyTransportError maps a client-side request failure onto the broker
// error taxonomy. Timeouts and dial failures are transient network errors.
func ClassifyTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewNetworkError(provider, "request deadline exceeded", err)
	}
	return core.NewNetworkError(provider, "request failed", err)
}

// IsAuthStatus reports whether an HTTP status signals rejected credentials.
func IsAuthStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// UpstreamStatusError builds the error for a non-2xx upstream response.
// Auth statuses become terminal auth failures, everything else is retryable.
func UpstreamStatusError(provider string, statusCode int, body []byte) error {
	summary := summarizeBody(body)
	if IsAuthStatus(statusCode) {
		message := fmt.Sprintf("upstream rejected credentials with status %d", statusCode)
		if summary != "" {
			message += ": " + summary
		}
		return core.NewAuthError(provider, message)
	}
	message := fmt.Sprintf("upstream returned status %d", statusCode)
	if summary != "" {
		message += ": " + summary
	}
	return core.NewNetworkError(provider, message, nil)
}

func summarizeBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 160 {
		text = text[:160]
	}
	return text
}
