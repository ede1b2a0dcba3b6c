package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func fastRetry(attempts int) *RetryPolicy {
	policy := NewRetryPolicy(attempts)
	policy.InitialBackoff = time.Millisecond
	policy.MaxBackoff = 5 * time.Millisecond
	return policy
}

func TestFetch_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://comic.test", r.Header.Get("Referer"))
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(),
		WithUserAgent("custom-agent"),
		WithPerHostInterval(0),
	)

	body, err := client.Fetch(context.Background(), server.URL, HeadersFrom(map[string]string{"Referer": "https://comic.test"}))
	require.NoError(t, err)
	assert.Equal(t, "hello", body)
}

func TestFetch_TargetHeaderOverridesUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithPerHostInterval(0))

	body, err := client.Fetch(context.Background(), server.URL, HeadersFrom(map[string]string{"User-Agent": "Mozilla/5.0"}))
	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0", body)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithRetryPolicy(fastRetry(3)), WithPerHostInterval(0))

	body, err := client.Fetch(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithRetryPolicy(fastRetry(3)), WithPerHostInterval(0))

	_, err := client.Fetch(context.Background(), server.URL, nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_RejectsOversizedBody(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(strings.Repeat("x", 33)))
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithRetryPolicy(fastRetry(3)), WithPerHostInterval(0), WithMaxBodySize(32))

	_, err := client.Fetch(context.Background(), server.URL, nil)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Exactly at the limit is fine
	exact := NewClient(arbor.NewLogger(), WithPerHostInterval(0), WithMaxBodySize(33))
	body, err := exact.Fetch(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Len(t, body, 33)
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithRetryPolicy(fastRetry(2)), WithPerHostInterval(0))

	_, err := client.Fetch(context.Background(), server.URL, nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_RateLimitsPerHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithPerHostInterval(100*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Fetch(ctx, server.URL, nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestFetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(arbor.NewLogger(), WithPerHostInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, server.URL, nil)
	assert.Error(t, err)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(3)

	assert.True(t, policy.ShouldRetry(0, 500, errors.New("x")))
	assert.True(t, policy.ShouldRetry(1, 429, errors.New("x")))
	assert.False(t, policy.ShouldRetry(2, 500, errors.New("x")))
	assert.False(t, policy.ShouldRetry(0, 404, errors.New("x")))
	assert.True(t, policy.ShouldRetry(0, 0, context.DeadlineExceeded))
	assert.False(t, policy.ShouldRetry(0, 0, context.Canceled))
	assert.False(t, policy.ShouldRetry(0, 0, errors.New("parse failure")))
}

func TestRetryPolicy_CalculateBackoff(t *testing.T) {
	policy := NewRetryPolicy(5)

	first := policy.CalculateBackoff(0)
	assert.GreaterOrEqual(t, first, 750*time.Millisecond)
	assert.LessOrEqual(t, first, 1250*time.Millisecond)

	capped := policy.CalculateBackoff(10)
	assert.LessOrEqual(t, capped, policy.MaxBackoff+policy.MaxBackoff/4)
}
