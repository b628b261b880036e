package tangguh

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func failNTimes(n int, status int, then *Response) (func(context.Context) (*Response, error), *int64) {
	var calls int64
	op := func(ctx context.Context) (*Response, error) {
		attempt := atomic.AddInt64(&calls, 1)
		if attempt <= int64(n) {
			resp := &Response{StatusCode: status, Message: "failed"}
			return resp, &TransportError{Method: "GET", URL: "/api/items", Response: resp}
		}
		return then, nil
	}
	return op, &calls
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	client := New()
	op, calls := failNTimes(2, 500, &Response{StatusCode: 200, Success: true, Message: "ok"})

	start := time.Now()
	result := client.Run(context.Background(), op, RetryOptions{Retries: 2, BaseDelay: 100 * time.Millisecond})
	elapsed := time.Since(start)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if got := atomic.LoadInt64(calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	// Backoff: 100ms before attempt 2, 200ms before attempt 3.
	if elapsed < 300*time.Millisecond {
		t.Errorf("expected at least 300ms of backoff, elapsed %v", elapsed)
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	client := New()
	op, _ := failNTimes(2, 503, &Response{StatusCode: 200, Success: true})

	var delays []time.Duration
	last := time.Now()
	result := client.Run(context.Background(), op, RetryOptions{
		Retries:   2,
		BaseDelay: 100 * time.Millisecond,
		OnRetry: func(attempt, maxRetries int, apiErr *APIError) {
			now := time.Now()
			delays = append(delays, now.Sub(last))
			last = now
		},
	})
	if !result.Success {
		t.Fatal("expected success")
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 retries, got %d", len(delays))
	}
}

func TestRetryNonRetryableStatus(t *testing.T) {
	client := New()
	op, calls := failNTimes(5, 400, nil)

	result := client.Run(context.Background(), op, RetryOptions{Retries: 3, BaseDelay: 10 * time.Millisecond})

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("status 400 must never retry, got %d attempts", got)
	}
	if result.Status != 400 {
		t.Errorf("result status = %d, want 400", result.Status)
	}
	if result.IsRetryable {
		t.Error("terminal result must report IsRetryable=false")
	}
}

func TestRetryBadGatewayThenSuccess(t *testing.T) {
	client := New()
	op, calls := failNTimes(1, 502, &Response{
		StatusCode: 200,
		Success:    true,
		Data:       json.RawMessage(`{"id":1}`),
	})

	result := client.Run(context.Background(), op, RetryOptions{Retries: 1, BaseDelay: 100 * time.Millisecond})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if string(result.Data) != `{"id":1}` {
		t.Errorf("data = %s, want {\"id\":1}", result.Data)
	}
	if got := atomic.LoadInt64(calls); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestRetryNetworkSentinelAlwaysRetryable(t *testing.T) {
	client := New()
	var calls int64
	op := func(ctx context.Context) (*Response, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			return nil, &TransportError{Method: "GET", URL: "/api/items", Err: errors.New("connection reset")}
		}
		return &Response{StatusCode: 200, Success: true}, nil
	}

	result := client.Run(context.Background(), op, RetryOptions{
		Retries:           1,
		BaseDelay:         10 * time.Millisecond,
		RetryableStatuses: []int{}, // status 0 retries even with an empty set
	})

	if !result.Success {
		t.Fatalf("expected success after network retry, got %+v", result)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestRetryExhaustionReturnsStructuredFailure(t *testing.T) {
	client := New()
	op, calls := failNTimes(10, 500, nil)

	result := client.Run(context.Background(), op, RetryOptions{Retries: 2, BaseDelay: 5 * time.Millisecond})

	if result.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if got := atomic.LoadInt64(calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if result.Status != 500 {
		t.Errorf("status = %d, want 500", result.Status)
	}
	if result.Err == nil || result.Message == "" {
		t.Error("terminal failure must carry a classified error and message")
	}
	if result.IsRetryable {
		t.Error("exhausted retries must report IsRetryable=false")
	}
}

func TestRetryNilResponseSuccess(t *testing.T) {
	client := New()

	result := client.Run(context.Background(), func(ctx context.Context) (*Response, error) {
		return nil, nil
	}, RetryOptions{})

	if !result.Success {
		t.Fatalf("nil response with nil error is a success, got %+v", result)
	}
	if result.Data != nil || result.Message != "" {
		t.Errorf("nil response should carry no payload, got %+v", result)
	}
}

func TestRetryOnRetryCallback(t *testing.T) {
	client := New()
	op, _ := failNTimes(2, 500, &Response{StatusCode: 200, Success: true})

	type call struct {
		attempt, max int
		status       int
	}
	var seen []call
	client.Run(context.Background(), op, RetryOptions{
		Retries:   2,
		BaseDelay: 5 * time.Millisecond,
		OnRetry: func(attempt, maxRetries int, apiErr *APIError) {
			seen = append(seen, call{attempt, maxRetries, apiErr.Status})
		},
	})

	if len(seen) != 2 {
		t.Fatalf("expected 2 onRetry calls, got %d", len(seen))
	}
	if seen[0].attempt != 1 || seen[1].attempt != 2 {
		t.Errorf("attempts should be 1-indexed in order, got %+v", seen)
	}
	if seen[0].max != 2 || seen[0].status != 500 {
		t.Errorf("callback args mismatch: %+v", seen[0])
	}
}

func TestRetryContextCancellationDuringBackoff(t *testing.T) {
	client := New()
	op, calls := failNTimes(10, 500, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result := client.Run(ctx, op, RetryOptions{Retries: 5, BaseDelay: 200 * time.Millisecond})

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("cancelled backoff should stop further attempts, got %d", got)
	}
	if result.IsRetryable {
		t.Error("a cancelled run is terminal and must report IsRetryable=false")
	}
}

func TestRetryZeroRetriesSingleAttempt(t *testing.T) {
	client := New()
	op, calls := failNTimes(10, 503, nil)

	result := client.Run(context.Background(), op, RetryOptions{})

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("default retries=0 means one attempt, got %d", got)
	}
}
