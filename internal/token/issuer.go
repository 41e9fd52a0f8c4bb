package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Config holds the issuing parameters shared by the Issuer and Verifier.
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Token is a signed token together with the claims it carries.
type Token struct {
	Value     string
	Type      Type
	Claims    *Claims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints access and refresh tokens. It keeps no record of what it issued.
type Issuer struct {
	signer     Signer
	header     string
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(signer Signer, cfg Config, opts ...Option) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("token: issuer needs a signer")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	hdr, err := encodeHeader(signer.Alg())
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	o := buildOptions(opts)
	return &Issuer{
		signer:     signer,
		header:     hdr,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        o.now,
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccessToken(s Subject) (Token, error) {
	return i.issue(s, TypeAccess, i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(s Subject) (Token, error) {
	return i.issue(s, TypeRefresh, i.refreshTTL)
}

func (i *Issuer) issue(s Subject, typ Type, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(s.Username) == "" {
		return Token{}, errors.New("token: subject username is required")
	}

	issuedAt := i.now().UTC().Truncate(jwt.TimePrecision)
	expiresAt := issuedAt.Add(ttl)

	claims := (&Claims{
		TokenType:  typ,
		Roles:      s.Roles,
		EmployeeID: s.EmployeeID,
		FirstName:  s.FirstName,
		LastName:   s.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   s.Username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}).normalized()

	payload, err := Encode(claims)
	if err != nil {
		return Token{}, err
	}

	signingInput := i.header + "." + payload
	sig, err := i.signer.Sign(signingInput)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		Value:     signingInput + "." + segmentEncoder.EncodeSegment(sig),
		Type:      typ,
		Claims:    claims,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
