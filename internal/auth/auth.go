package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/hrms-identity/internal/token"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

var (
	ErrNotFound          = user.ErrNotFound
	ErrDuplicateUsername = user.ErrDuplicateUsername
	ErrDuplicateEmail    = user.ErrDuplicateEmail

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUnknownSubject     = errors.New("token subject no longer resolves to an active account")

	ErrInvalidToken = token.ErrInvalidToken
	ErrExpiredToken = token.ErrExpiredToken

	// ErrRefreshReused is returned for a refresh token presented a second time.
	ErrRefreshReused = fmt.Errorf("%w: refresh token already used", token.ErrInvalidToken)
)

const TokenTypeBearer = "Bearer"

// AuthenticationResponse is returned by register, login and refresh alike.
type AuthenticationResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	// ExpiresIn is the access token lifetime in milliseconds.
	ExpiresIn int64  `json:"expiresIn"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*AuthenticationResponse, error)
	Login(ctx context.Context, dto LoginDTO) (*AuthenticationResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthenticationResponse, error)
}

type TokenIssuer interface {
	IssueAccessToken(s token.Subject) (token.Token, error)
	IssueRefreshToken(s token.Subject) (token.Token, error)
	AccessTTL() time.Duration
}

type TokenVerifier interface {
	Verify(raw string, want token.Type) (*token.Claims, error)
}

// SubjectFromIdentity maps a stored account onto the claims a token carries.
func SubjectFromIdentity(i *user.Identity) token.Subject {
	return token.Subject{
		Username:   i.Username,
		Roles:      user.Authorities(i.Roles),
		EmployeeID: i.EmployeeID,
		FirstName:  i.FirstName,
		LastName:   i.LastName,
	}
}
