package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRetryPolicy_CalculateBackoff(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"attempt 0 returns 0", 0, 0},
		{"attempt 1 returns initial backoff", 1, 1 * time.Second},
		{"attempt 2 doubles backoff", 2, 2 * time.Second},
		{"attempt 3 quadruples backoff", 3, 4 * time.Second},
		{"large attempt caps at max backoff", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.CalculateBackoff(tt.attempt)
			if got != tt.expected {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_CalculateBackoffZeroMultiplier(t *testing.T) {
	policy := &RetryPolicy{InitialBackoff: 10 * time.Millisecond}
	if got := policy.CalculateBackoff(3); got != 10*time.Millisecond {
		t.Errorf("CalculateBackoff(3) = %v, want constant initial backoff", got)
	}
}

func TestRetryPolicy_IsRetryableError(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("boom"), false},
		{"500 retryable", &HTTPError{StatusCode: http.StatusInternalServerError}, true},
		{"429 retryable", &HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"404 not retryable", &HTTPError{StatusCode: http.StatusNotFound}, false},
		{"wrapped 503 retryable", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: http.StatusServiceUnavailable}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_IsRateLimitError(t *testing.T) {
	policy := DefaultRetryPolicy()

	if !policy.IsRateLimitError(&HTTPError{StatusCode: http.StatusTooManyRequests}) {
		t.Error("429 should be a rate limit error")
	}
	if policy.IsRateLimitError(&HTTPError{StatusCode: http.StatusInternalServerError}) {
		t.Error("500 should not be a rate limit error")
	}
	if policy.IsRateLimitError(nil) {
		t.Error("nil should not be a rate limit error")
	}
}

func TestConservativeRetryPolicy(t *testing.T) {
	policy := ConservativeRetryPolicy()

	if policy.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", policy.MaxAttempts)
	}
	if policy.IsRetryableError(&HTTPError{StatusCode: http.StatusGatewayTimeout}) {
		t.Error("conservative policy should not retry 504")
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal Server Error",
	}

	expected := "HTTP 500: Internal Server Error"
	if err.Error() != expected {
		t.Errorf("HTTPError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("about: %w", &HTTPError{StatusCode: http.StatusNotFound})
	if !IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus should see through wrapping")
	}
	if IsStatus(err, http.StatusForbidden) {
		t.Error("IsStatus matched the wrong code")
	}
	if IsStatus(errors.New("plain"), http.StatusNotFound) {
		t.Error("IsStatus matched a plain error")
	}
}

func TestExecuteWithRetry(t *testing.T) {
	fast := &RetryPolicy{
		MaxAttempts:     3,
		InitialBackoff:  5 * time.Millisecond,
		RetryableErrors: []int{http.StatusInternalServerError, http.StatusTooManyRequests},
	}

	tests := []struct {
		name             string
		failures         int
		failWith         error
		wantErr          bool
		expectedAttempts int
	}{
		{"success on first attempt", 0, nil, false, 1},
		{"non-retryable error stops", 10, &HTTPError{StatusCode: http.StatusNotFound}, true, 1},
		{"succeeds after retries", 2, &HTTPError{StatusCode: http.StatusInternalServerError}, false, 3},
		{"exhausts all retries", 10, &HTTPError{StatusCode: http.StatusInternalServerError}, true, 3},
		{"rate limit retried", 1, &HTTPError{StatusCode: http.StatusTooManyRequests}, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			operation := func() error {
				attempts++
				if attempts <= tt.failures {
					return tt.failWith
				}
				return nil
			}

			err := ExecuteWithRetry(context.Background(), operation, fast, "test-operation")

			if (err != nil) != tt.wantErr {
				t.Errorf("ExecuteWithRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.expectedAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.expectedAttempts)
			}
		})
	}
}

func TestExecuteWithRetry_OperationName(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:     2,
		InitialBackoff:  1 * time.Millisecond,
		RetryableErrors: []int{http.StatusInternalServerError},
	}

	operation := func() error {
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Server Error"}
	}

	err := ExecuteWithRetry(context.Background(), operation, policy, "test-operation")
	if err == nil {
		t.Fatal("ExecuteWithRetry() should have failed")
	}
	if !strings.Contains(err.Error(), "test-operation") {
		t.Errorf("Error message should contain operation name: %v", err.Error())
	}
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("final error should wrap the last HTTPError: %v", err)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:     3,
		InitialBackoff:  time.Hour,
		RetryableErrors: []int{http.StatusInternalServerError},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ExecuteWithRetry(ctx, func() error {
		return &HTTPError{StatusCode: http.StatusInternalServerError}
	}, policy, "slow")

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("backoff did not stop on cancellation")
	}
}

func BenchmarkExecuteWithRetry_Success(b *testing.B) {
	policy := DefaultRetryPolicy()
	operation := func() error {
		return nil
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ExecuteWithRetry(context.Background(), operation, policy, "benchmark")
	}
}
