package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
	maxBody     = 1 << 20
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// Handler exposes HTTP endpoints for the auth flows.
type Handler struct {
	svc      *Service
	provider IdentityProvider
	tokens   TokenParser
	cfg      Config
	logger   *zap.SugaredLogger
	reporter *utilities.Reporter
}

// NewHandler builds the handler. provider may be nil when Google login is not configured.
func NewHandler(svc *Service, provider IdentityProvider, tokens TokenParser, cfg Config, logger *zap.SugaredLogger, reporter *utilities.Reporter) *Handler {
	return &Handler{svc: svc, provider: provider, tokens: tokens, cfg: cfg, logger: logger, reporter: reporter}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email     string `json:"email"`
	OTP       string `json:"otp"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DOB       string `json:"dob"`
}

type loginRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// per-endpoint client messages
type messages struct {
	notFound string
	failed   string
}

var (
	sendOTPMessages = messages{failed: "Failed to send OTP. Please try again."}
	verifyMessages  = messages{notFound: "User not found. Please request a new OTP.", failed: "Failed to verify OTP. Please try again."}
	loginMessages   = messages{notFound: "User not registered. Please signup first.", failed: "Login failed. Please try again."}
)

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	email, err := h.svc.SendOTP(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err, sendOTPMessages)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "OTP sent successfully to your email",
		"email":   email,
	})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), VerifyRequest(req))
	if err != nil {
		h.fail(w, r, err, verifyMessages)
		return
	}
	msg := "OTP verified successfully"
	if res.SignedUp {
		msg = "Account created successfully! Please login with your email."
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, r, err, loginMessages)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"token":   sess.Token,
		"user":    sess.Profile,
	})
}

// Logout only acknowledges; tokens are discarded by the client.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	a, ok := AccountFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": a.Profile()})
}

// GoogleStart redirects to the provider with a fresh state bound to a cookie.
func (h *Handler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.redirectError(w, r, "google_auth_failed")
		return
	}
	state, err := randomState()
	if err != nil {
		h.logger.Errorw("oauth state", "err", err)
		h.redirectError(w, r, "auth_error")
		return
	}
	http.SetCookie(w, h.stateCookie(state, int(stateTTL.Seconds())))
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback verifies state, exchanges the code, reconciles the account
// and hands the session to the client through a redirect.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.provider == nil || q.Get("error") != "" {
		h.logger.Infow("google login refused", "error", q.Get("error"))
		h.redirectError(w, r, "google_auth_failed")
		return
	}

	c, err := r.Cookie(stateCookie)
	http.SetCookie(w, h.stateCookie("", -1))
	if err != nil || c.Value == "" || !constantTimeEqual(c.Value, q.Get("state")) {
		h.logger.Infow("google login state mismatch", "remote", r.RemoteAddr)
		h.redirectError(w, r, "auth_failed")
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirectError(w, r, "auth_failed")
		return
	}

	id, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warnw("google exchange failed", "err", err)
		h.redirectError(w, r, "auth_error")
		return
	}
	sess, err := h.svc.FederatedLogin(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAuthProvider) {
			h.logger.Infow("google identity rejected", "err", err)
			h.redirectError(w, r, "auth_failed")
			return
		}
		h.logger.Errorw("federated login failed", "err", err)
		h.reporter.Capture(r.Context(), err)
		h.redirectError(w, r, "auth_error")
		return
	}

	user, err := json.Marshal(map[string]any{
		"id":             sess.Profile.ID,
		"firstName":      sess.Profile.FirstName,
		"lastName":       sess.Profile.LastName,
		"email":          sess.Profile.Email,
		"profilePicture": sess.Profile.ProfilePicture,
	})
	if err != nil {
		h.redirectError(w, r, "auth_error")
		return
	}
	target := h.cfg.ClientURL + "/auth/callback?token=" + encodeURIComponent(sess.Token) +
		"&user=" + encodeURIComponent(string(user))
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.cfg.ClientURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
}

func (h *Handler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/api/auth/google",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !h.cfg.Development(),
		SameSite: http.SameSiteLaxMode,
	}
}

type ctxKey struct{}

// WithAccount stores the authenticated account on ctx.
func WithAccount(ctx context.Context, a *entity.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func AccountFromContext(ctx context.Context) (*entity.Account, bool) {
	a, ok := ctx.Value(ctxKey{}).(*entity.Account)
	return a, ok && a != nil
}

// RequireAuth rejects requests without a valid bearer token and loads the account.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r.Header.Get("Authorization"))
		if !ok {
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
			return
		}
		claims, err := h.tokens.Parse(raw)
		if err != nil {
			h.logger.Debugw("token rejected", "err", err)
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid token"})
			return
		}
		a, err := h.svc.Account(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				h.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
				return
			}
			h.fail(w, r, err, messages{failed: "Server Error"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), a)))
	})
}

func bearer(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request payload"})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, m messages) {
	status := StatusFor(err)
	msg := m.failed
	switch status {
	case http.StatusBadRequest:
		var ve *ValidationError
		var fe *entity.FieldError
		switch {
		case errors.As(err, &ve):
			msg = ve.Reason
		case errors.As(err, &fe):
			msg = fe.Error()
		}
	case http.StatusUnauthorized:
		msg = "Invalid or expired OTP"
	case http.StatusForbidden:
		msg = "Please complete your signup first"
	case http.StatusNotFound:
		msg = m.notFound
	default:
		h.logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
		h.reporter.Capture(r.Context(), err)
	}

	body := map[string]any{"success": false, "message": msg}
	if status >= http.StatusInternalServerError && h.cfg.Development() {
		body["error"] = err.Error()
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// encodeURIComponent matches the browser function so the client can decode the value.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
