package token

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	segmentEncoder = &jwt.Token{}
	segmentDecoder = jwt.NewParser(jwt.WithStrictDecoding())
)

// Encode serializes claims into the base64url payload segment. Identical claims
// always produce identical bytes, so signatures over them are stable.
func Encode(c *Claims) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: nil claims", ErrDecode)
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(c.normalized())
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	return segmentEncoder.EncodeSegment(raw), nil
}

// Decode parses a payload segment produced by Encode. It does not check the
// signature or the validity window; that is the Verifier's job.
func Decode(payload string) (*Claims, error) {
	raw, err := segmentDecoder.DecodeSegment(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Roles == nil {
		c.Roles = []string{}
	}
	return &c, nil
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

func encodeHeader(alg string) (string, error) {
	raw, err := json.Marshal(header{Alg: alg, Typ: "JWT"})
	if err != nil {
		return "", err
	}
	return segmentEncoder.EncodeSegment(raw), nil
}

func decodeHeader(seg string) (header, error) {
	var h header
	raw, err := segmentDecoder.DecodeSegment(seg)
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(raw, &h)
	return h, err
}
