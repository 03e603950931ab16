package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

func transportError(err error, host string, timeout time.Duration) string {
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		if timeout > 0 {
			return fmt.Sprintf("Connection timeout: %s did not respond within %s", host, timeout)
		}
		return fmt.Sprintf("Connection timeout: %s did not respond in time", host)
	case errors.Is(err, context.Canceled):
		return "Request cancelled before the server responded"
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("Server not found: could not resolve %s", host)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Sprintf("Connection refused: no server is listening at %s", host)
	default:
		return fmt.Sprintf("Connection error: %v", redact(err))
	}
}

func statusError(status int, sending bool) string {
	switch {
	case status == http.StatusBadRequest && sending:
		return "Bad request: the server rejected the message"
	case status == http.StatusUnauthorized:
		return "Authentication failed: invalid token"
	case status == http.StatusForbidden:
		return "Access forbidden: the token is not allowed to perform this action"
	case status == http.StatusNotFound:
		return "Not found: the URL does not point to a valid push server"
	default:
		return fmt.Sprintf("Unexpected response from server: HTTP %d", status)
	}
}

// isServerFault reports whether a failure message points at the server being
// unhealthy rather than at the request or its credentials.
func isServerFault(msg string) bool {
	for _, prefix := range []string{"Connection ", "Server not found", "Unexpected response"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// redact drops the request URL from url.Error values so tokens carried in the
// query string never reach logs or history.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
