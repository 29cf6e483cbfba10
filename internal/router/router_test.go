package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/note"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ratelimit"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newRouter(t *testing.T, db Pinger, logger *zap.SugaredLogger) http.Handler {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	authHandler := auth.NewHandler(auth.NewService(auth.Deps{}), nil, nil, auth.Config{ClientURL: "http://client.test"}, logger, nil)
	notesHandler := note.NewHandler(note.NewService(nil, nil), logger, nil)
	return RegisterRoutes(logger, Config{AllowedOrigins: []string{"http://client.test"}}, Deps{
		Auth:    authHandler,
		Notes:   notesHandler,
		Limiter: ratelimit.New(ratelimit.Config{Window: time.Minute, Max: 2}, nil),
		DB:      db,
	})
}

func do(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newRouter(t, pinger{}, nil), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())

	rec = do(newRouter(t, pinger{err: errors.New("down")}, nil), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := do(newRouter(t, nil, nil), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	h := newRouter(t, nil, nil)

	rec := do(h, http.MethodOptions, "/api/auth/login", "", map[string]string{
		"Origin":                        "http://client.test",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, "http://client.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(h, http.MethodGet, "/api/health", "", map[string]string{"Origin": "http://evil.test"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOTPRoutesAreRateLimited(t *testing.T) {
	h := newRouter(t, nil, nil)
	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodPost, "/api/auth/send-otp", `{"email":"bad"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := do(h, http.MethodPost, "/api/auth/send-otp", `{"email":"bad"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// the budget is per address across all limited routes
	rec = do(h, http.MethodPost, "/api/auth/login", `{}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// logout is not limited
	rec = do(h, http.MethodPost, "/api/auth/logout", ``, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newRouter(t, nil, nil)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/profile"},
		{http.MethodGet, "/api/notes"},
		{http.MethodPost, "/api/notes"},
		{http.MethodPut, "/api/notes/n1"},
		{http.MethodDelete, "/api/notes/n1"},
	} {
		rec := do(h, r.method, r.path, `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.method+" "+r.path)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := do(newRouter(t, nil, nil), http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newRouter(t, pinger{}, zap.New(core).Sugar())

	do(h, http.MethodGet, "/api/health", "", nil)
	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/health", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CLIENT_URL", "http://a.test/, http://b.test")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}
