package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/hrms-identity/internal/user"
)

type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*user.Identity, error)
}

// Authenticator checks a username and password against the stored credential.
type Authenticator struct {
	store     CredentialStore
	hasher    PasswordHasher
	dummyHash string
	logger    *slog.Logger
}

func NewAuthenticator(store CredentialStore, hasher PasswordHasher, logger *slog.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// compared against when the username is unknown so both paths cost one hash comparison
	dummy, err := hasher.Hash("unknown-user-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Authenticator{store: store, hasher: hasher, dummyHash: dummy, logger: logger}, nil
}

// Authenticate returns ErrNotFound, ErrInvalidCredentials or ErrAccountDisabled,
// in that order of precedence. The password is checked before the status flags
// so a wrong password never reveals that an account is disabled.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*user.Identity, error) {
	identity, err := a.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = a.hasher.Compare(a.dummyHash, password)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}

	if err := a.hasher.Compare(identity.PasswordHash, password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			a.logger.WarnContext(ctx, "stored password hash is unusable", "username", username, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	if !identity.CanLogin() {
		return nil, ErrAccountDisabled
	}
	return identity, nil
}
