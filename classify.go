package tangguh

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// User-facing messages for the error taxonomy. Raw transport details go to
// diagnostics, never to the end user.
const (
	msgRateLimited        = "Too many requests. Please slow down and try again."
	msgServiceUnavailable = "Service is temporarily unavailable. Please try again later."
	msgServerError        = "Something went wrong on our end. Please try again."
	msgNotFound           = "The requested resource was not found."
	msgSessionExpired     = "Your session has expired. Please sign in again."
	msgForbidden          = "You don't have permission to perform this action."
	msgRequestFailed      = "Request failed. Please try again."
	msgTimeout            = "The request timed out. Please try again."
	msgOffline            = "You appear to be offline. Please check your connection."
	msgNetwork            = "A network error occurred. Please check your connection and try again."
)

// APIError is the classified form of a raw transport failure: a short
// human-readable message, the HTTP status (0 for network-class failures),
// field-level errors when the backend provided them, and taxonomy flags.
type APIError struct {
	Message string
	Status  int
	Errors  []FieldError

	IsRateLimit          bool
	IsServiceUnavailable bool
	IsNetworkError       bool
	IsTimeout            bool
	IsOffline            bool

	Cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Status > 0 {
		return fmt.Sprintf("tangguh: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("tangguh: %s", e.Message)
}

// Unwrap returns the raw failure this classification was derived from.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Classify maps a raw failure into the fixed error taxonomy. It is a pure
// function of the error chain; collaborator notifications are handled by
// the client wrapper.
func Classify(err error) *APIError {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrRateLimited) {
		return &APIError{Message: msgRateLimited, Status: 429, IsRateLimit: true, Cause: err}
	}
	if errors.Is(err, ErrCircuitOpen) {
		return &APIError{Message: msgServiceUnavailable, Status: 0, IsServiceUnavailable: true, Cause: err}
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Response != nil {
			return classifyResponse(te)
		}
		return classifyNetwork(te)
	}

	// No response and no request: wrap the raw message, mapping a few
	// known substrings to friendlier text.
	apiErr := &APIError{Status: 0, IsNetworkError: true, Cause: err}
	raw := err.Error()
	switch {
	case strings.Contains(raw, "timeout"), strings.Contains(raw, "deadline exceeded"):
		apiErr.Message = msgTimeout
		apiErr.IsTimeout = true
	case strings.Contains(raw, "Network Error"), strings.Contains(raw, "Failed to fetch"):
		apiErr.Message = msgNetwork
	default:
		apiErr.Message = msgNetwork
	}
	return apiErr
}

func classifyResponse(te *TransportError) *APIError {
	resp := te.Response
	apiErr := &APIError{Status: resp.StatusCode, Errors: resp.Errors, Cause: te}

	switch {
	case resp.StatusCode == 429:
		apiErr.Message = msgRateLimited
		apiErr.IsRateLimit = true
	case resp.StatusCode == 503:
		apiErr.Message = msgServiceUnavailable
		apiErr.IsServiceUnavailable = true
	case resp.StatusCode >= 500:
		apiErr.Message = msgServerError
	case resp.StatusCode == 404:
		apiErr.Message = msgNotFound
	case resp.StatusCode == 401:
		apiErr.Message = msgSessionExpired
	case resp.StatusCode == 403:
		apiErr.Message = msgForbidden
	default:
		if resp.Message != "" {
			apiErr.Message = resp.Message
		} else {
			apiErr.Message = msgRequestFailed
		}
	}
	return apiErr
}

func classifyNetwork(te *TransportError) *APIError {
	apiErr := &APIError{Status: 0, IsNetworkError: true, Cause: te}

	switch {
	case te.Timeout:
		apiErr.Message = msgTimeout
		apiErr.IsTimeout = true
	case isOffline(te.Err):
		apiErr.Message = msgOffline
		apiErr.IsOffline = true
	default:
		apiErr.Message = msgNetwork
	}
	return apiErr
}

// isOffline approximates "no connectivity": DNS resolution failures and
// unreachable-network errnos.
func isOffline(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH)
}

// classify runs the pure classifier and forwards diagnostics for 5xx and
// network-class failures to observability listeners. Dispatch is
// panic-guarded and never affects the returned classification. Rate-limit
// events are emitted at dispatch time, not here, so a retried 429 notifies
// once per response rather than once per classification.
func (c *Client) classify(err error) *APIError {
	apiErr := Classify(err)
	if apiErr == nil {
		return nil
	}

	if apiErr.Status >= 500 || apiErr.IsNetworkError {
		diag := Diagnostic{
			Message:   apiErr.Message,
			Status:    apiErr.Status,
			Cause:     err,
			Timestamp: time.Now(),
		}
		var te *TransportError
		if errors.As(err, &te) {
			diag.Method = te.Method
			diag.URL = te.URL
		}
		c.events.diagnostic(diag)
	}
	return apiErr
}
