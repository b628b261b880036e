package tangguh

import (
	"context"
	"encoding/json"
	"time"

	internalbackoff "github.com/satriajdh/tangguh/internal/backoff"
)

// DefaultRetryableStatuses are the statuses retried when RetryOptions does
// not specify its own set. Status 0 (network/timeout sentinel) is always
// retryable.
var DefaultRetryableStatuses = []int{408, 429, 500, 502, 503, 504}

// RetryOptions configures one Run call.
type RetryOptions struct {
	// Retries is the number of additional attempts after the first (0 means
	// a single attempt).
	Retries int

	// BaseDelay is the delay before the first retry; the delay before retry
	// k is BaseDelay * 2^(k-1). Defaults to 1s.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Defaults to 30s.
	MaxDelay time.Duration

	// RetryableStatuses overrides DefaultRetryableStatuses when non-nil.
	RetryableStatuses []int

	// OnRetry fires before each backoff wait with the 1-indexed attempt
	// number about to be retried.
	OnRetry func(attempt, maxRetries int, apiErr *APIError)
}

// Result is the structured terminal outcome of a retried operation. Run is
// the only layer that converts failures into values instead of rejecting.
// A terminal failure always reports IsRetryable false: either the failure
// was never retryable, or every retry was already spent on it.
type Result struct {
	Success     bool
	Data        json.RawMessage
	Message     string
	Err         *APIError
	Errors      []FieldError
	Status      int
	IsRetryable bool
}

// Run attempts op, retrying classified-retryable failures with exponential
// backoff. A failure is retried while attempts remain and its classified
// status is in the retryable set or is the network sentinel 0. Backoff
// waits respect ctx; cancellation surfaces as the last classified failure.
func (c *Client) Run(ctx context.Context, op func(context.Context) (*Response, error), opts RetryOptions) Result {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = c.retryBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	statuses := opts.RetryableStatuses
	if statuses == nil {
		statuses = c.retryableStatuses
	}

	calc := internalbackoff.GetExponentialCalculator()

	for attempt := 0; ; attempt++ {
		resp, err := op(ctx)
		if err == nil {
			result := Result{Success: true}
			if resp != nil {
				result.Data = resp.Data
				result.Message = resp.Message
			}
			return result
		}

		apiErr := c.classify(err)
		retryable := apiErr.Status == 0 || containsStatus(statuses, apiErr.Status)

		if !retryable || attempt >= opts.Retries {
			return Result{
				Message: apiErr.Message,
				Err:     apiErr,
				Errors:  apiErr.Errors,
				Status:  apiErr.Status,
			}
		}

		if c.metrics != nil {
			c.metrics.RecordRetry(attempt + 1)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("Scheduling retry", "attempt", attempt+1, "maxRetries", opts.Retries, "status", apiErr.Status)
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, opts.Retries, apiErr)
		}

		delay := calc.Calculate(attempt, opts.BaseDelay, opts.MaxDelay, 2.0, 0)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Result{
				Message: apiErr.Message,
				Err:     apiErr,
				Errors:  apiErr.Errors,
				Status:  apiErr.Status,
			}
		}
	}
}

// ExecuteWithRetry runs Execute under the retry policy.
func (c *Client) ExecuteWithRetry(ctx context.Context, method, path string, reqOpts *RequestOptions, retryOpts RetryOptions) Result {
	return c.Run(ctx, func(ctx context.Context) (*Response, error) {
		return c.Execute(ctx, method, path, reqOpts)
	}, retryOpts)
}

func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
