package auth

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

const healthMessage = "Auth service is running"

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	resp, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, ToAppError(err))
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	resp, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, ToAppError(err))
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /auth/refresh. The refresh token travels in the
// Authorization header, not the body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := h.ExtractTokenFromHeader(r)
	if raw == "" {
		h.WriteAppError(w, r, apperrors.ErrMissingToken)
		return
	}

	resp, err := h.Service.Refresh(r.Context(), raw)
	if err != nil {
		h.WriteAppError(w, r, ToAppError(err))
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Health handles GET /auth/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthMessage))
}

// ToAppError maps service errors onto transport errors. Unknown users and
// wrong passwords produce the same response.
func ToAppError(err error) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		return apperrors.ErrDuplicateUsername
	case errors.Is(err, ErrDuplicateEmail):
		return apperrors.ErrDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrNotFound):
		return apperrors.ErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return apperrors.ErrAccountDisabled
	case errors.Is(err, ErrExpiredToken):
		return apperrors.ErrTokenExpired
	case errors.Is(err, ErrInvalidToken):
		return apperrors.ErrInvalidToken
	case errors.Is(err, ErrUnknownSubject):
		return apperrors.ErrUnknownSubject
	default:
		return err
	}
}
