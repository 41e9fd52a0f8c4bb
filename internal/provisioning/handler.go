package provisioning

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/core/common/validation"
	"github.com/frahmantamala/hrms-identity/internal/core/events"
	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EmployeeCreatedDTO is the body of POST /internal/events/employee-created.
type EmployeeCreatedDTO struct {
	EmployeeID     uuid.UUID `json:"employeeId"`
	EmployeeNumber string    `json:"employeeNumber"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          *string   `json:"email,omitempty"`
	CompanyID      uuid.UUID `json:"companyId"`
}

func (d EmployeeCreatedDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("employeeId", d.EmployeeID).Custom(func(value interface{}) *errors.AppError {
		if value.(uuid.UUID) == uuid.Nil {
			return errors.NewValidationFieldError("employeeId", "employeeId is required", errors.ErrCodeValidationFailed)
		}
		return nil
	})
	v.Field("employeeNumber", d.EmployeeNumber).Required().MaxLength(validation.UsernameMaxLength)
	v.Field("email", d.Email).Required()
	if d.Email != nil {
		v.Field("email", *d.Email).Email()
	}
	return v.Validate()
}

type Handler struct {
	*transport.BaseHandler
	Bus Publisher
}

func NewHandler(bus Publisher) *Handler {
	return &Handler{BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()), Bus: bus}
}

// PublishEmployeeCreated accepts the event and hands it to the bus. The account
// is created asynchronously, so the response is 202.
func (h *Handler) PublishEmployeeCreated(w http.ResponseWriter, r *http.Request) {
	var dto EmployeeCreatedDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	event := events.NewEmployeeCreatedEvent(dto.EmployeeID, dto.EmployeeNumber, dto.FirstName, dto.LastName, dto.Email, dto.CompanyID)
	if err := h.Bus.Publish(r.Context(), event); err != nil {
		h.WriteAppError(w, r, errors.NewInternalError("failed to publish event", err))
		return
	}
	h.WriteJSON(w, http.StatusAccepted, map[string]string{"eventId": event.EventID()})
}
