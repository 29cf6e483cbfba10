package note

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// Handler exposes note CRUD for the account on the request context.
type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	reporter *utilities.Reporter
}

func NewHandler(svc *Service, logger *zap.SugaredLogger, reporter *utilities.Reporter) *Handler {
	return &Handler{svc: svc, logger: logger, reporter: reporter}
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	notes, err := h.svc.List(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notes)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.svc.Create(r.Context(), accountID, req.Title, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, n)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.svc.Update(r.Context(), accountID, r.PathValue("id"), req.Title, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, n)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), accountID, r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Note removed"})
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) (string, bool) {
	a, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return "", false
	}
	return a.ID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid note payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request payload"})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTitleMissing):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Title is required"})
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Note not found"})
	case errors.Is(err, ErrForbidden):
		// authenticated but not the owner; 401 stays reserved for missing or bad tokens
		h.writeJSON(w, http.StatusForbidden, map[string]string{"message": "User not authorized"})
	default:
		h.logger.Errorw("note request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		h.reporter.Capture(r.Context(), err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
