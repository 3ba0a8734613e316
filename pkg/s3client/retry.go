package s3client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/aws/smithy-go"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 100 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
)

type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
}

// withRetry runs op until it succeeds, fails with a non-retryable error, or
// the retry budget is spent.
func withRetry[T any](ctx context.Context, p retryPolicy, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		output, err := op()
		if err == nil {
			return output, nil
		}

		if !isRetryableError(err) {
			return zero, err
		}

		lastErr = err
		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(p.calculateDelay(attempt)):
			}
		}
	}
	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryableError checks if an error is retryable
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "RequestTimeoutException", "InternalError":
			return true
		}
	}

	// Retry on 5xx errors
	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		code := httpErr.HTTPStatusCode()
		return code >= 500 && code < 600
	}

	// Also retry on network errors
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// calculateDelay calculates the retry delay with exponential backoff and jitter
func (p retryPolicy) calculateDelay(attempt int) time.Duration {
	base := float64(p.baseDelay)
	delay := base * math.Pow(2.0, float64(attempt))

	// Add jitter (±25%)
	jitter := delay * 0.25 * (2*rand.Float64() - 1)
	delay += jitter

	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}

	return time.Duration(delay)
}
