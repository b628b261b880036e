package tangguh

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios
var (
	// ErrRateLimited is returned when a request is denied by the client-side
	// rate limiter.
	ErrRateLimited = errors.New("tangguh: rate limited")

	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("tangguh: circuit open")

	// ErrSessionInvalid is returned to waiters when a credential refresh
	// fails; the session cannot be recovered without a fresh sign-in.
	ErrSessionInvalid = errors.New("tangguh: session invalid")
)

// TransportError is the raw failure shape produced by the Transport. When
// the server answered with a non-2xx status, Response is non-nil; when the
// request never completed, Err holds the underlying network error.
type TransportError struct {
	Method   string
	URL      string
	Response *Response
	Err      error
	Timeout  bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Response != nil {
		msg := e.Response.Message
		if msg == "" {
			msg = "request failed"
		}
		return fmt.Sprintf("tangguh: %s %s: status %d: %s", e.Method, e.URL, e.Response.StatusCode, msg)
	}
	if e.Timeout {
		return fmt.Sprintf("tangguh: %s %s: timeout: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("tangguh: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Status returns the HTTP status of the failure, or 0 when no response
// was received.
func (e *TransportError) Status() int {
	if e == nil || e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// statusOf extracts an HTTP status from any error in the chain.
func statusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status()
	}
	return 0
}
