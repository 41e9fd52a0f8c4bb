package events

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeEmployeeCreated = "employee.created"

// EmployeeCreatedEvent is published by the employee service when a new
// employee record exists. Email may be absent.
type EmployeeCreatedEvent struct {
	BaseEvent
	EmployeeID     uuid.UUID `json:"employee_id"`
	EmployeeNumber string    `json:"employee_number"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          *string   `json:"email,omitempty"`
	CompanyID      uuid.UUID `json:"company_id"`
}

func NewEmployeeCreatedEvent(employeeID uuid.UUID, employeeNumber, firstName, lastName string, email *string, companyID uuid.UUID) *EmployeeCreatedEvent {
	data := map[string]interface{}{
		"employee_id":     employeeID.String(),
		"employee_number": employeeNumber,
		"first_name":      firstName,
		"last_name":       lastName,
		"company_id":      companyID.String(),
	}
	if email != nil {
		data["email"] = *email
	}
	return &EmployeeCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEmployeeCreated,
			Timestamp: time.Now(),
			Data:      data,
		},
		EmployeeID:     employeeID,
		EmployeeNumber: employeeNumber,
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		CompanyID:      companyID,
	}
}
