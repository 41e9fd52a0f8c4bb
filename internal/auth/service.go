package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/hrms-identity/internal/obs"
	"github.com/frahmantamala/hrms-identity/internal/token"
	"github.com/frahmantamala/hrms-identity/internal/user"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

// Service orchestrates register, login and refresh on top of the identity
// store and the token issuer.
type Service struct {
	users         user.Repository
	hasher        PasswordHasher
	authenticator *Authenticator
	issuer        TokenIssuer
	verifier      TokenVerifier
	guard         RefreshGuard
}

// NewService wires the orchestrator. A nil guard lets refresh tokens be reused
// until they expire.
func NewService(users user.Repository, hasher PasswordHasher, issuer TokenIssuer, verifier TokenVerifier, guard RefreshGuard, lg *slog.Logger) (*Service, error) {
	if lg == nil {
		lg = slog.Default()
	}
	authenticator, err := NewAuthenticator(users, hasher, lg)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:         users,
		hasher:        hasher,
		authenticator: authenticator,
		issuer:        issuer,
		verifier:      verifier,
		guard:         guard,
	}, nil
}

func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*AuthenticationResponse, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		obs.AuthAttempt("register", obs.OutcomeFailure, "validation")
		return nil, err
	}

	if err := s.ensureAvailable(ctx, dto.Username, dto.Email); err != nil {
		obs.AuthAttempt("register", obs.OutcomeFailure, reason(err))
		return nil, err
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := user.NewIdentity(dto.Username, dto.Email, hash, dto.ParsedRoles()...)
	identity.FirstName = dto.FirstName
	identity.LastName = dto.LastName

	if err := s.users.Create(ctx, identity); err != nil {
		obs.AuthAttempt("register", obs.OutcomeFailure, reason(err))
		return nil, err
	}

	logger.From(ctx).InfoContext(ctx, "user registered", "username", identity.Username, "roles", identity.Roles)
	obs.AuthAttempt("register", obs.OutcomeSuccess, "")
	return s.issuePair(identity)
}

// Login never distinguishes an unknown username from a wrong password.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*AuthenticationResponse, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		obs.AuthAttempt("login", obs.OutcomeFailure, "validation")
		return nil, err
	}

	identity, err := s.authenticator.Authenticate(ctx, dto.Username, dto.Password)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		obs.AuthAttempt("login", obs.OutcomeFailure, reason(err))
		logger.From(ctx).WarnContext(ctx, "login rejected", "username", dto.Username, "reason", reason(err))
		return nil, err
	}

	obs.AuthAttempt("login", obs.OutcomeSuccess, "")
	return s.issuePair(identity)
}

// Refresh re-reads the account so role changes since the original login are
// reflected in the new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthenticationResponse, error) {
	resp, err := s.refresh(ctx, token.StripBearer(refreshToken))
	if err != nil {
		obs.AuthAttempt("refresh", obs.OutcomeFailure, reason(err))
		logger.From(ctx).WarnContext(ctx, "refresh rejected", "reason", reason(err))
		return nil, err
	}
	obs.AuthAttempt("refresh", obs.OutcomeSuccess, "")
	return resp, nil
}

func (s *Service) refresh(ctx context.Context, raw string) (*AuthenticationResponse, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.verifier.Verify(raw, token.TypeRefresh)
	if err != nil {
		return nil, err
	}

	identity, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("reload identity: %w", err)
	}
	if !identity.CanLogin() {
		return nil, ErrUnknownSubject
	}

	if s.guard != nil {
		if claims.ID == "" {
			return nil, fmt.Errorf("%w: refresh token has no id", ErrInvalidToken)
		}
		first, err := s.guard.MarkUsed(ctx, claims.ID, claims.ExpiresAt.Time)
		if err != nil {
			return nil, fmt.Errorf("record refresh token use: %w", err)
		}
		if !first {
			return nil, ErrRefreshReused
		}
	}

	return s.issuePair(identity)
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return ErrDuplicateUsername
	}
	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return ErrDuplicateEmail
	}
	return nil
}

func (s *Service) issuePair(identity *user.Identity) (*AuthenticationResponse, error) {
	subject := SubjectFromIdentity(identity)

	access, err := s.issuer.IssueAccessToken(subject)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefreshToken(subject)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	obs.TokenIssued(string(token.TypeAccess))
	obs.TokenIssued(string(token.TypeRefresh))

	return &AuthenticationResponse{
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.issuer.AccessTTL().Milliseconds(),
		Username:     identity.Username,
		Email:        identity.Email,
	}, nil
}

func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrRefreshReused):
		return "reused"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	default:
		return "error"
	}
}
