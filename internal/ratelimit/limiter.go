// Package ratelimit throttles requests per client address with a fixed window.
package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jonboulle/clockwork"
)

var ErrLimited = errors.New("too many requests")

type Config struct {
	Window     time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	Max        int           `env:"RATE_LIMIT_MAX" envDefault:"10"`
	TrustProxy bool          `env:"TRUST_PROXY"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse rate limit env: %w", err)
	}
	return cfg, nil
}

type window struct {
	count int
	start time.Time
}

// Limiter owns the address to window map. Safe for concurrent use.
type Limiter struct {
	cfg   Config
	clock clockwork.Clock

	mu      sync.Mutex
	windows map[string]*window
}

func New(cfg Config, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{cfg: cfg, clock: clock, windows: make(map[string]*window)}
}

// Allow counts one request from addr and returns ErrLimited once the
// window budget is spent. A rejected request does not change the counter.
func (l *Limiter) Allow(addr string) error {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(now)

	w, ok := l.windows[addr]
	if !ok || now.Sub(w.start) > l.cfg.Window {
		l.windows[addr] = &window{count: 1, start: now}
		return nil
	}
	if w.count >= l.cfg.Max {
		return ErrLimited
	}
	w.count++
	return nil
}

// purge drops windows older than one window length. Caller holds mu.
func (l *Limiter) purge(now time.Time) {
	for addr, w := range l.windows {
		if now.Sub(w.start) > l.cfg.Window {
			delete(l.windows, addr)
		}
	}
}

// Len returns the number of tracked addresses.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Middleware rejects over-budget clients with 429 before next runs.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := l.Allow(l.ClientAddr(r)); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", l.cfg.Window.Seconds()))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "Too many requests. Please try again later.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientAddr returns the X-Forwarded-For entry appended by the single trusted
// proxy (the rightmost one) when TrustProxy is set, otherwise the host part of
// RemoteAddr. Entries further left are client supplied and ignored.
func (l *Limiter) ClientAddr(r *http.Request) string {
	if l.cfg.TrustProxy {
		hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			if ip := strings.TrimSpace(hops[i]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
