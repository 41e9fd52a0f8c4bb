package token

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verifier validates tokens minted by an Issuer holding the same key.
type Verifier struct {
	signer Signer
	issuer string
	now    func() time.Time
}

// NewVerifier builds a verifier. A non-empty issuer is enforced against the iss claim.
func NewVerifier(signer Signer, issuer string, opts ...Option) (*Verifier, error) {
	if signer == nil {
		return nil, errors.New("token: verifier needs a signer")
	}
	o := buildOptions(opts)
	return &Verifier{signer: signer, issuer: issuer, now: o.now}, nil
}

// Verify checks the signature, claim set, token type and validity window of raw.
// Every failure is either ErrInvalidToken or ErrExpiredToken; no claims are
// returned alongside an error.
func (v *Verifier) Verify(raw string, want Type) (*Claims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected three segments", ErrInvalidToken)
	}

	h, err := decodeHeader(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad header: %v", ErrInvalidToken, err)
	}
	if h.Alg != v.signer.Alg() {
		return nil, fmt.Errorf("%w: unexpected signing method %q", ErrInvalidToken, h.Alg)
	}

	sig, err := segmentDecoder.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature encoding", ErrInvalidToken)
	}
	if err := v.signer.Verify(parts[0]+"."+parts[1], sig); err != nil {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	claims, err := Decode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrInvalidToken, want, claims.TokenType)
	}

	now := v.now()
	if now.Before(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// StripBearer removes an optional "Bearer " scheme prefix.
func StripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
