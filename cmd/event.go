package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/core/events"
	"github.com/frahmantamala/hrms-identity/internal/provisioning"
	userPostgres "github.com/frahmantamala/hrms-identity/internal/user/postgres"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish domain events to the in-process event bus and run their handlers.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish an event",
	Long:  `Publish an event and wait for its handlers. Supported: employee.created`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if args[0] != events.EventTypeEmployeeCreated {
			return fmt.Errorf("unsupported event type %q", args[0])
		}
		return publishEmployeeCreated(ctx)
	},
}

var (
	eventEmployeeID     string
	eventEmployeeNumber string
	eventFirstName      string
	eventLastName       string
	eventEmail          string
	eventCompanyID      string
)

func publishEmployeeCreated(ctx context.Context) error {
	employeeID, err := uuid.Parse(eventEmployeeID)
	if err != nil {
		return fmt.Errorf("invalid --employee-id: %w", err)
	}
	companyID := uuid.Nil
	if eventCompanyID != "" {
		if companyID, err = uuid.Parse(eventCompanyID); err != nil {
			return fmt.Errorf("invalid --company-id: %w", err)
		}
	}
	var email *string
	if eventEmail != "" {
		email = &eventEmail
	}
	dto := provisioning.EmployeeCreatedDTO{
		EmployeeID:     employeeID,
		EmployeeNumber: eventEmployeeNumber,
		FirstName:      eventFirstName,
		LastName:       eventLastName,
		Email:          email,
		CompanyID:      companyID,
	}
	if verr := dto.Validate(); verr != nil {
		return errors.New(verr.GetDetailedMessage())
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := setupLogger(cfg.Observability.Logging)

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := openGorm(db)
	if err != nil {
		return err
	}

	bus := events.NewEventBus(lg)
	provisioning.NewProvisioner(userPostgres.NewUserRepository(gdb), auth.NewBcryptHasher(cfg.Security.BCryptCost), lg).
		RegisterEventHandlers(bus)

	event := events.NewEmployeeCreatedEvent(dto.EmployeeID, dto.EmployeeNumber, dto.FirstName, dto.LastName, dto.Email, dto.CompanyID)
	lg.Info("publishing event", "event_type", event.EventType(), "event_id", event.EventID())

	if err := bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("handle %s: %w", event.EventType(), err)
	}
	lg.Info("event handled", "event_id", event.EventID())
	return nil
}

func init() {
	f := publishEventCmd.Flags()
	f.StringVar(&eventEmployeeID, "employee-id", "", "employee UUID")
	f.StringVar(&eventEmployeeNumber, "employee-number", "", "employee number, used as the username")
	f.StringVar(&eventFirstName, "first-name", "", "first name")
	f.StringVar(&eventLastName, "last-name", "", "last name")
	f.StringVar(&eventEmail, "email", "", "email address")
	f.StringVar(&eventCompanyID, "company-id", "", "company UUID")
	_ = publishEventCmd.MarkFlagRequired("employee-id")
	_ = publishEventCmd.MarkFlagRequired("employee-number")
	_ = publishEventCmd.MarkFlagRequired("email")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
