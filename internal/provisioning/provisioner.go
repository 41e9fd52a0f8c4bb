package provisioning

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/core/common/validation"
	"github.com/frahmantamala/hrms-identity/internal/core/events"
	"github.com/frahmantamala/hrms-identity/internal/obs"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

var (
	ErrMissingEmail          = errors.New("employee email is required")
	ErrMissingEmployeeNumber = errors.New("employee number is required")
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
)

// Provisioner creates login accounts for newly hired employees. Accounts start
// with an unguessable password and expired credentials; an operator sets the
// first real password with SetPassword.
type Provisioner struct {
	users  user.Repository
	hasher auth.PasswordHasher
	logger *slog.Logger
}

func NewProvisioner(users user.Repository, hasher auth.PasswordHasher, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{users: users, hasher: hasher, logger: logger}
}

func (p *Provisioner) RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeEmployeeCreated, p.HandleEmployeeCreated)
	p.logger.Info("provisioning event handlers registered", "handlers", []string{events.EventTypeEmployeeCreated})
}

func (p *Provisioner) HandleEmployeeCreated(ctx context.Context, event events.Event) error {
	employeeEvent, ok := event.(*events.EmployeeCreatedEvent)
	if !ok {
		p.logger.Error("invalid event type for employee created handler", "event_type", event.EventType())
		return fmt.Errorf("expected EmployeeCreatedEvent, got %T", event)
	}
	_, err := p.Provision(ctx, employeeEvent)
	return err
}

// Provision creates the account for one employee. An email or username that
// already belongs to an account is skipped, not treated as a failure.
func (p *Provisioner) Provision(ctx context.Context, e *events.EmployeeCreatedEvent) (Outcome, error) {
	log := p.logger.With("employee_id", e.EmployeeID, "event_id", e.EventID())
	log.InfoContext(ctx, "provisioning account for employee")

	username := strings.TrimSpace(e.EmployeeNumber)
	if username == "" {
		obs.ProvisioningEvent(obs.OutcomeFailure)
		return "", ErrMissingEmployeeNumber
	}
	if e.Email == nil || strings.TrimSpace(*e.Email) == "" {
		obs.ProvisioningEvent(obs.OutcomeFailure)
		return "", ErrMissingEmail
	}
	email := strings.ToLower(strings.TrimSpace(*e.Email))

	taken, err := p.users.ExistsByEmail(ctx, email)
	if err != nil {
		obs.ProvisioningEvent(obs.OutcomeFailure)
		return "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		log.WarnContext(ctx, "account already exists for email, skipping", "email", email)
		obs.ProvisioningEvent(obs.OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	secret, err := randomPassword()
	if err != nil {
		obs.ProvisioningEvent(obs.OutcomeFailure)
		return "", err
	}
	hash, err := p.hasher.Hash(secret)
	if err != nil {
		obs.ProvisioningEvent(obs.OutcomeFailure)
		return "", fmt.Errorf("hash password: %w", err)
	}

	identity := user.NewIdentity(username, email, hash, user.RoleEmployee)
	employeeID := e.EmployeeID
	identity.EmployeeID = &employeeID
	identity.FirstName = optional(e.FirstName)
	identity.LastName = optional(e.LastName)
	identity.CredentialsNonExpired = false

	if err := p.users.Create(ctx, identity); err != nil {
		if errors.Is(err, user.ErrDuplicateUsername) || errors.Is(err, user.ErrDuplicateEmail) {
			log.WarnContext(ctx, "account already exists, skipping", "username", username, "error", err)
			obs.ProvisioningEvent(obs.OutcomeSkipped)
			return OutcomeSkipped, nil
		}
		obs.ProvisioningEvent(obs.OutcomeFailure)
		return "", fmt.Errorf("create account: %w", err)
	}

	log.InfoContext(ctx, "account provisioned, password must be set before first login", "username", username)
	obs.ProvisioningEvent(obs.OutcomeSuccess)
	return OutcomeCreated, nil
}

// SetPassword replaces the password and marks the credentials as current.
func (p *Provisioner) SetPassword(ctx context.Context, username, password string) error {
	v := validation.NewValidator()
	validation.ValidatePassword(v, password)
	if err := v.Validate(); err != nil {
		return err
	}
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.users.UpdatePassword(ctx, username, hash, true); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "password set", "username", username)
	return nil
}

func randomPassword() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
