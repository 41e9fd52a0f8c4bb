package token

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HS256 secret accepted at startup.
const MinSecretLength = 32

var (
	ErrWeakSecret         = fmt.Errorf("token: signing secret must be at least %d bytes", MinSecretLength)
	ErrSigningUnavailable = errors.New("token: signer holds no private key")
)

// Signer produces and checks signatures over a token's signing input
// (the "header.payload" part of the compact serialization).
type Signer interface {
	Alg() string
	Sign(signingInput string) ([]byte, error)
	Verify(signingInput string, signature []byte) error
}

// HMACSigner signs with a shared secret. Verification compares MACs with
// hmac.Equal inside jwt, which is constant time.
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &HMACSigner{key: key}, nil
}

func (s *HMACSigner) Alg() string { return jwt.SigningMethodHS256.Alg() }

func (s *HMACSigner) Sign(signingInput string) ([]byte, error) {
	return jwt.SigningMethodHS256.Sign(signingInput, s.key)
}

func (s *HMACSigner) Verify(signingInput string, signature []byte) error {
	return jwt.SigningMethodHS256.Verify(signingInput, signature, s.key)
}

// RSASigner signs with RS256. Services that only verify tokens hold the public key alone.
type RSASigner struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

func NewRSASigner(private *rsa.PrivateKey, public *rsa.PublicKey) (*RSASigner, error) {
	if public == nil && private != nil {
		public = &private.PublicKey
	}
	if public == nil {
		return nil, errors.New("token: rsa signer needs at least a public key")
	}
	return &RSASigner{private: private, public: public}, nil
}

func (s *RSASigner) Alg() string { return jwt.SigningMethodRS256.Alg() }

func (s *RSASigner) Sign(signingInput string) ([]byte, error) {
	if s.private == nil {
		return nil, ErrSigningUnavailable
	}
	return jwt.SigningMethodRS256.Sign(signingInput, s.private)
}

func (s *RSASigner) Verify(signingInput string, signature []byte) error {
	return jwt.SigningMethodRS256.Verify(signingInput, signature, s.public)
}
