package authz

import (
	"errors"
	"fmt"

	"github.com/frahmantamala/hrms-identity/internal/obs"
	"github.com/frahmantamala/hrms-identity/internal/token"
)

var ErrMissingToken = errors.New("missing bearer token")

type Verifier interface {
	Verify(raw string, want token.Type) (*token.Claims, error)
}

// Reconstructor rebuilds a Principal from an access token without touching
// the identity store, so any service holding the verification key can use it.
type Reconstructor struct {
	verifier Verifier
}

func NewReconstructor(v Verifier) *Reconstructor {
	return &Reconstructor{verifier: v}
}

// PrincipalFromToken accepts the token with or without a "Bearer " prefix.
// It fails closed: on any error the returned Principal is the zero value.
func (r *Reconstructor) PrincipalFromToken(raw string) (Principal, error) {
	raw = token.StripBearer(raw)
	if raw == "" {
		obs.TokenVerification(obs.OutcomeFailure, "missing")
		return Principal{}, ErrMissingToken
	}

	claims, err := r.verifier.Verify(raw, token.TypeAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			obs.TokenVerification(obs.OutcomeFailure, "expired")
		} else {
			obs.TokenVerification(obs.OutcomeFailure, "invalid")
		}
		return Principal{}, err
	}

	p, err := FromClaims(claims)
	if err != nil {
		obs.TokenVerification(obs.OutcomeFailure, "invalid")
		return Principal{}, fmt.Errorf("%w: %v", token.ErrInvalidToken, err)
	}
	obs.TokenVerification(obs.OutcomeSuccess, "")
	return p, nil
}
