package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter() (*Limiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(Config{Window: 15 * time.Minute, Max: 10}, clock), clock
}

func TestEleventhRequestRejected(t *testing.T) {
	l, _ := newLimiter()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Allow("10.0.0.1"), "request %d", i+1)
	}
	assert.ErrorIs(t, l.Allow("10.0.0.1"), ErrLimited)
	assert.ErrorIs(t, l.Allow("10.0.0.1"), ErrLimited)

	// other addresses have their own budget
	assert.NoError(t, l.Allow("10.0.0.2"))
}

func TestWindowReset(t *testing.T) {
	l, clock := newLimiter()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Allow("a"))
	}
	require.ErrorIs(t, l.Allow("a"), ErrLimited)

	clock.Advance(15 * time.Minute)
	assert.ErrorIs(t, l.Allow("a"), ErrLimited, "window elapses strictly after its length")

	clock.Advance(time.Millisecond)
	assert.NoError(t, l.Allow("a"))
	for i := 0; i < 9; i++ {
		require.NoError(t, l.Allow("a"))
	}
	assert.ErrorIs(t, l.Allow("a"), ErrLimited, "fresh window has the same budget")
}

func TestPurgeStaleEntries(t *testing.T) {
	l, clock := newLimiter()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, 5, l.Len())

	clock.Advance(16 * time.Minute)
	require.NoError(t, l.Allow("10.0.1.1"))
	assert.Equal(t, 1, l.Len())
}

func TestConcurrentAllow(t *testing.T) {
	l := New(Config{Window: time.Hour, Max: 50}, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestMiddleware(t *testing.T) {
	l := New(Config{Window: time.Minute, Max: 1}, nil)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Too many requests. Please try again later."}`, rec.Body.String())
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", New(Config{}, nil).ClientAddr(req))
	assert.Equal(t, "10.0.0.1", New(Config{TrustProxy: true}, nil).ClientAddr(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2, ")
	assert.Equal(t, "10.0.0.2", New(Config{TrustProxy: true}, nil).ClientAddr(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Add("X-Forwarded-For", "10.0.0.3")
	assert.Equal(t, "10.0.0.3", New(Config{TrustProxy: true}, nil).ClientAddr(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.1", New(Config{TrustProxy: true}, nil).ClientAddr(req))
}

func TestForgedForwardedForStillLimited(t *testing.T) {
	l := New(Config{Window: time.Minute, Max: 10, TrustProxy: true}, clockwork.NewFakeClock())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	allowed := 0
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", nil)
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("1.2.3.%d, 198.51.100.7", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusNoContent {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
	assert.Equal(t, 1, l.Len())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("RATE_LIMIT_MAX", "3")
	t.Setenv("TRUST_PROXY", "true")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{Window: time.Minute, Max: 3, TrustProxy: true}, cfg)
}
