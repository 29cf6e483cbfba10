package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/note"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ratelimit"
)

type Config struct {
	// comma separated list; the web client origin
	AllowedOrigins []string `env:"CLIENT_URL" envSeparator:"," envDefault:"http://localhost:5173"`
}

// ConfigFromEnv reads router settings from env vars.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse router env: %w", err)
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimRight(strings.TrimSpace(o), "/")
	}
	return cfg, nil
}

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the handlers mounted by RegisterRoutes.
type Deps struct {
	Auth    *auth.Handler
	Notes   *note.Handler
	Limiter *ratelimit.Limiter
	DB      Pinger
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs each request; server errors at warn level, the rest at debug.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the API on an http.ServeMux under /api.
func RegisterRoutes(logger *zap.SugaredLogger, cfg Config, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", health(d.DB))

	limited := func(h http.HandlerFunc) http.Handler { return d.Limiter.Middleware(h) }
	mux.Handle("POST /api/auth/send-otp", limited(d.Auth.SendOTP))
	mux.Handle("POST /api/auth/verify-otp", limited(d.Auth.VerifyOTP))
	mux.Handle("POST /api/auth/login", limited(d.Auth.Login))
	mux.HandleFunc("POST /api/auth/logout", d.Auth.Logout)
	mux.HandleFunc("GET /api/auth/google", d.Auth.GoogleStart)
	mux.HandleFunc("GET /api/auth/google/callback", d.Auth.GoogleCallback)

	protected := func(h http.HandlerFunc) http.Handler { return d.Auth.RequireAuth(h) }
	mux.Handle("GET /api/auth/profile", protected(d.Auth.Profile))
	mux.Handle("GET /api/notes", protected(d.Notes.List))
	mux.Handle("POST /api/notes", protected(d.Notes.Create))
	mux.Handle("PUT /api/notes/{id}", protected(d.Notes.Update))
	mux.Handle("DELETE /api/notes/{id}", protected(d.Notes.Delete))

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(corsHandler(mux)))
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok", "database": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
