package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"slices"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines retry behavior with exponential backoff
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []int
}

// NewRetryPolicy creates a default retry policy
func NewRetryPolicy(maxAttempts int) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableStatusCodes: []int{
			408, // Request Timeout
			429, // Too Many Requests
			500, // Internal Server Error
			502, // Bad Gateway
			503, // Service Unavailable
			504, // Gateway Timeout
		},
	}
}

// ShouldRetry reports whether a failed attempt is worth repeating
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	if statusCode > 0 {
		return slices.Contains(p.RetryableStatusCodes, statusCode)
	}
	return isRetryableError(err)
}

// CalculateBackoff returns the wait before the next attempt, with ±25% jitter
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

// ExecuteWithRetry runs fn until it succeeds, fails for good or runs out of attempts.
// fn returns the HTTP status code (0 when no response arrived) and an error.
func (p *RetryPolicy) ExecuteWithRetry(ctx context.Context, logger arbor.ILogger, fn func() (int, error)) (int, error) {
	var (
		lastErr    error
		statusCode int
	)

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		statusCode, lastErr = fn()
		if lastErr == nil {
			return statusCode, nil
		}

		if !p.ShouldRetry(attempt, statusCode, lastErr) {
			break
		}

		backoff := p.CalculateBackoff(attempt)
		logger.Debug().
			Int("attempt", attempt+1).
			Int("status_code", statusCode).
			Err(lastErr).
			Dur("backoff", backoff).
			Msg("Retrying after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return statusCode, ctx.Err()
		case <-timer.C:
		}
	}

	return statusCode, lastErr
}

// isRetryableError checks for timeouts and connection errors
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
