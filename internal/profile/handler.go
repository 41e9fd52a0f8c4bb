package profile

import (
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/authz"
	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

const (
	adminMessage   = "This is an admin-only endpoint"
	hrMessage      = "This is an HR or Admin endpoint"
	managerMessage = "This is a Manager or Admin endpoint"
)

// CurrentUserResponse describes the caller as seen through their access token.
type CurrentUserResponse struct {
	Username     string     `json:"username"`
	Roles        []string   `json:"roles"`
	EmployeeID   *uuid.UUID `json:"employeeId,omitempty"`
	EmployeeName *string    `json:"employeeName,omitempty"`
}

// Handler serves the endpoints under /users. Every route expects
// authz.Authenticate to have run; role gating is applied by the router.
type Handler struct {
	*transport.BaseHandler
}

func NewHandler() *Handler {
	return &Handler{BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper())}
}

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username, ok := authz.CurrentUsername(ctx)
	if !ok {
		h.WriteAppError(w, r, apperrors.ErrMissingToken)
		return
	}

	resp := CurrentUserResponse{
		Username: username,
		Roles:    authz.CurrentRoles(ctx),
	}
	if id, ok := authz.CurrentEmployeeID(ctx); ok {
		resp.EmployeeID = &id
	}
	if name, ok := authz.CurrentEmployeeName(ctx); ok {
		resp.EmployeeName = &name
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// MyEmployeeID handles GET /users/me/employee-id. Accounts without an
// employee record get 403.
func (h *Handler) MyEmployeeID(w http.ResponseWriter, r *http.Request) {
	id, err := authz.CurrentEmployeeIDOrErr(r.Context())
	if err != nil {
		h.WriteAppError(w, r, apperrors.ErrMissingEmployeeID)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"employeeId": id.String()})
}

func (h *Handler) Admin(w http.ResponseWriter, _ *http.Request) {
	writeText(w, adminMessage)
}

func (h *Handler) HR(w http.ResponseWriter, _ *http.Request) {
	writeText(w, hrMessage)
}

func (h *Handler) Manager(w http.ResponseWriter, _ *http.Request) {
	writeText(w, managerMessage)
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}
